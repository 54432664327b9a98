package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"ATTEMPTS_CONFIG_PATH",
		"ATTEMPTS_ENV_FILE",
		"ATTEMPTS_ALLOWED_ORIGINS",
		"ATTEMPTS_SERVER_HOST",
		"ATTEMPTS_SERVER_PORT",
		"ATTEMPTS_DB_PATH",
		"ATTEMPTS_LOG_LEVEL",
		"ATTEMPTS_LOG_PATH",
		"ATTEMPTS_TRANSPORT_MODE",
		"ATTEMPTS_AUTH_ENABLED",
		"ATTEMPTS_DAY_START_HOUR",
		"ATTEMPTS_TIME_ZONE",
		"ATTEMPTS_DEFAULT_USER",
	} {
		t.Setenv(name, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, 4, cfg.StudyDay.DayStartHour)
	require.Equal(t, TransportStdio, cfg.Transport.Mode)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
db:
  path: /tmp/file.db
transport:
  mode: http
study_day:
  day_start_hour: 5
  time_zone: UTC
`), 0o600))

	t.Setenv("ATTEMPTS_CONFIG_PATH", path)
	t.Setenv("ATTEMPTS_DB_PATH", "/tmp/env.db")
	t.Setenv("ATTEMPTS_AUTH_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "/tmp/env.db", cfg.DB.Path)
	require.Equal(t, TransportHTTP, cfg.Transport.Mode)
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, 5, cfg.StudyDay.DayStartHour)
	require.Equal(t, "UTC", cfg.StudyDay.TimeZone)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port not a number", "ATTEMPTS_SERVER_PORT", "eighty"},
		{"port out of range", "ATTEMPTS_SERVER_PORT", "70000"},
		{"bad bool", "ATTEMPTS_AUTH_ENABLED", "maybe"},
		{"bad transport", "ATTEMPTS_TRANSPORT_MODE", "carrier-pigeon"},
		{"bad hour", "ATTEMPTS_DAY_START_HOUR", "24"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("ATTEMPTS_CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.ErrorContains(t, err, "read config file")
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	// Unset rather than empty, so the file may supply them.
	require.NoError(t, os.Unsetenv("ATTEMPTS_DB_PATH"))
	require.NoError(t, os.Unsetenv("ATTEMPTS_TIME_ZONE"))

	path := filepath.Join(t.TempDir(), "attempts.env")
	require.NoError(t, os.WriteFile(path, []byte("ATTEMPTS_DB_PATH=/data/from-dotenv.db\nATTEMPTS_TIME_ZONE=Europe/Berlin\n"), 0o600))
	t.Setenv("ATTEMPTS_ENV_FILE", path)
	t.Setenv("ATTEMPTS_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/data/from-dotenv.db", cfg.DB.Path)
	require.Equal(t, "Europe/Berlin", cfg.StudyDay.TimeZone)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("ATTEMPTS_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	_, err := Load()
	require.ErrorContains(t, err, "load env file")
}

func TestLoad_AllowedOrigins(t *testing.T) {
	clearEnv(t)
	t.Setenv("ATTEMPTS_ALLOWED_ORIGINS", "https://app.example.com, http://localhost:5173,")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"https://app.example.com", "http://localhost:5173"}, cfg.Server.AllowedOrigins)
}
