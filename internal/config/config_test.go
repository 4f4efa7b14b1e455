package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TANDEM_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	c := Load()

	assert.Equal(t, "8080", c.ServerPort)
	assert.Equal(t, BackendMemory, c.StoreBackend)
	assert.Equal(t, 2*time.Second, c.TypingIdle)
	assert.Equal(t, 6, c.InviteCodeLength)
	assert.Equal(t, 24*time.Hour, c.TokenTTL)
	require.NoError(t, c.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TANDEM_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_BACKEND", BackendPostgres)
	t.Setenv("TYPING_IDLE", "500ms")
	t.Setenv("WEATHER_RPM", "not-a-number")

	c := Load()

	assert.Equal(t, "9090", c.ServerPort)
	assert.Equal(t, BackendPostgres, c.StoreBackend)
	assert.Equal(t, 500*time.Millisecond, c.TypingIdle)
	assert.Equal(t, 60, c.WeatherRPM, "bad ints fall back to the default")
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("MONGODB_DATABASE=from_file\n"), 0o600))
	t.Setenv("TANDEM_ENV_FILE", path)
	t.Cleanup(func() { os.Unsetenv("MONGODB_DATABASE") })

	c := Load()

	assert.Equal(t, "from_file", c.MongoDatabase)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "ok", mutate: func(c *Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.StoreBackend = "redis" }, wantErr: true},
		{name: "empty secret", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: true},
		{name: "zero typing idle", mutate: func(c *Config) { c.TypingIdle = 0 }, wantErr: true},
		{name: "short invite code", mutate: func(c *Config) { c.InviteCodeLength = 2 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{
				StoreBackend:     BackendMemory,
				JWTSecret:        "s",
				TypingIdle:       time.Second,
				InviteCodeLength: 6,
			}
			tt.mutate(c)
			if tt.wantErr {
				assert.Error(t, c.Validate())
			} else {
				assert.NoError(t, c.Validate())
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	c := &Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "1", DBName: "d"}
	assert.Equal(t, "postgres://u:p@h:1/d?sslmode=disable", c.PostgresDSN())
}
