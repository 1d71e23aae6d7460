package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "abc")

	cfg := Load()
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, 24*time.Hour, cfg.TokenExpires)
	assert.Equal(t, 720*time.Hour, cfg.RememberMeExpires)
	assert.Equal(t, 6, cfg.MinPasswordLength)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "abc")
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("JWT_TTL_HOURS", "2")
	t.Setenv("SWEEP_INTERVAL_SECONDS", "15")
	t.Setenv("MIN_PASSWORD_LENGTH", "not-a-number")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")

	cfg := Load()
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, 2*time.Hour, cfg.TokenExpires)
	assert.Equal(t, 15*time.Second, cfg.SweepInterval)
	assert.Equal(t, 6, cfg.MinPasswordLength)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}
