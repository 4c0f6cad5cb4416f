package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleConfig struct {
	Port    int           `env:"SAMPLE_PORT" envDefault:"8080"`
	Brokers []string      `env:"SAMPLE_BROKERS" envSeparator:","`
	TTL     time.Duration `env:"SAMPLE_TTL" envDefault:"1m"`
}

type checkedConfig struct {
	Port int `env:"CHECKED_PORT" envDefault:"0"`
}

func (c *checkedConfig) Validate() error {
	if c.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func TestLoad_Defaults(t *testing.T) {
	var cfg sampleConfig
	require.NoError(t, Load(&cfg))
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, time.Minute, cfg.TTL)
	assert.Empty(t, cfg.Brokers)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SAMPLE_PORT", "9000")
	t.Setenv("SAMPLE_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SAMPLE_TTL", "5s")

	var cfg sampleConfig
	require.NoError(t, Load(&cfg))
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers)
	assert.Equal(t, 5*time.Second, cfg.TTL)
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("SAMPLE_PORT", "not-a-number")

	var cfg sampleConfig
	err := Load(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_RunsValidate(t *testing.T) {
	var cfg checkedConfig
	err := Load(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port must be positive")

	t.Setenv("CHECKED_PORT", "80")
	require.NoError(t, Load(&cfg))
}
