package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestRetryBackoff_Bounds(t *testing.T) {
	for attempt := 0; attempt < 3; attempt++ {
		base := retryBaseWait << attempt
		lo := time.Duration(float64(base) * (1 - retryJitterFraction))
		hi := time.Duration(float64(base) * (1 + retryJitterFraction))
		for i := 0; i < 20; i++ {
			d := retryBackoff(attempt)
			assert.GreaterOrEqual(t, d, lo)
			assert.LessOrEqual(t, d, hi)
		}
	}
	assert.GreaterOrEqual(t, retryBackoff(-1), time.Duration(float64(retryBaseWait)*(1-retryJitterFraction)))
}

func TestNewPostgresPool_InvalidURL(t *testing.T) {
	_, err := NewPostgresPool(context.Background(), PostgresConfig{URL: "::not a url::"}, nil)
	assert.ErrorContains(t, err, "parse postgres config")
}

func TestNewPostgresPool_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPostgresPool(ctx, PostgresConfig{
		URL:             "postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=1",
		ConnectAttempts: 2,
	}, nil)
	assert.Error(t, err)
}

func TestErrorClassification(t *testing.T) {
	wrap := func(code string) error {
		return fmt.Errorf("exec: %w", &pgconn.PgError{Code: code})
	}

	assert.True(t, IsConcurrencyConflict(wrap("40001")))
	assert.True(t, IsConcurrencyConflict(wrap("40P01")))
	assert.True(t, IsConcurrencyConflict(wrap("55P03")))
	assert.False(t, IsConcurrencyConflict(wrap("23505")))
	assert.False(t, IsConcurrencyConflict(errors.New("plain")))

	assert.True(t, IsUniqueViolation(wrap("23505")))
	assert.True(t, IsForeignKeyViolation(wrap("23503")))
	assert.False(t, IsForeignKeyViolation(nil))
}
