package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/techstore/internal/config"
)

func TestRun_ServerFailureJoinsShutdownError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	flushErr := errors.New("flush spans")
	a := &App{
		cfg:            &config.Config{StorageDriver: "memory"},
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		httpServer:     &http.Server{Addr: busy.Addr().String()},
		tracerShutdown: func(context.Context) error { return flushErr },
	}

	err = a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http server")
	assert.ErrorIs(t, err, flushErr)
}

func TestShutdown_JoinsComponentErrors(t *testing.T) {
	flushErr := errors.New("flush spans")
	a := &App{
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracerShutdown: func(context.Context) error { return flushErr },
	}

	assert.ErrorIs(t, a.Shutdown(), flushErr)
}
