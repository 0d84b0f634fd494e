package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("MPESA_ENVIRONMENT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.App.Port)
	assert.Equal(t, 30*time.Second, cfg.Mpesa.Timeout)
	assert.Equal(t, time.Duration(0), cfg.Reaper.PendingTTL)
	assert.Contains(t, cfg.DSN(), "dbname=pos_db")
	assert.Equal(t, MpesaSandboxURL, cfg.MpesaBaseURL())
	assert.False(t, cfg.EnvFileLoaded, "no .env next to the package")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/pos")
	t.Setenv("MPESA_ENVIRONMENT", "production")
	t.Setenv("MPESA_TIMEOUT", "5s")
	t.Setenv("REAPER_PENDING_TTL", "15m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "postgres://u:p@db:5432/pos", cfg.DSN())
	assert.Equal(t, MpesaProductionURL, cfg.MpesaBaseURL())
	assert.Equal(t, 5*time.Second, cfg.Mpesa.Timeout)
	assert.Equal(t, 15*time.Minute, cfg.Reaper.PendingTTL)

	t.Setenv("MPESA_BASE_URL", "http://localhost:9999")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999", cfg.MpesaBaseURL())
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("PORT", "not-a-port")

	_, err := Load()
	assert.Error(t, err)
}
