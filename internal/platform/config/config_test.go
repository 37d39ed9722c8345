package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_DSN", "LOCAL_STORE_PATH", "CORS_ALLOWED_ORIGINS", "SHUTDOWN_TIMEOUT"} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	require.Equal(t, ":8080", cfg.Addr())
	require.Empty(t, cfg.DBDSN)
	require.Nil(t, cfg.CORSAllowedOrigins)
	require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOCAL_STORE_PATH", "/tmp/calendar.db")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000, ,https://cattery.example")
	t.Setenv("SHUTDOWN_TIMEOUT", "3")

	cfg := FromEnv()
	require.Equal(t, ":9090", cfg.Addr())
	require.Equal(t, "/tmp/calendar.db", cfg.LocalStorePath)
	require.Equal(t, []string{"http://localhost:3000", "https://cattery.example"}, cfg.CORSAllowedOrigins)
	require.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}
