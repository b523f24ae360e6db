package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORAGE", "DB_HOST", "DB_MAX_CONNS", "SHUTDOWN_TIMEOUT", "MAX_STAY_DAYS", "MAX_QUERY_DAYS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, int32(20), cfg.DB.MaxConns)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 366, cfg.MaxStayDays)
	assert.Equal(t, 366, cfg.MaxQueryDays)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE", StorageMemory)
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "dorms")
	t.Setenv("DB_MAX_CONNS", "5")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("MAX_STAY_DAYS", "90")
	t.Setenv("MAX_QUERY_DAYS", "60")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, int32(5), cfg.DB.MaxConns)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 90, cfg.MaxStayDays)
	assert.Equal(t, 60, cfg.MaxQueryDays)
	assert.Contains(t, cfg.DB.DSN(), "host=db.internal")
	assert.Contains(t, cfg.DB.DSN(), "dbname=dorms")
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("STORAGE", "sqlite")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("STORAGE", "")
	t.Setenv("DB_MAX_CONNS", "zero")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("DB_MAX_CONNS", "")
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("SHUTDOWN_TIMEOUT", "")
	t.Setenv("MAX_STAY_DAYS", "0")
	_, err = Load()
	assert.ErrorContains(t, err, "MAX_STAY_DAYS")
}
