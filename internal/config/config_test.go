package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	originalDir, _ := os.Getwd()
	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	defer os.Chdir(originalDir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, uint(1), cfg.DefaultParallelTasks)
	assert.False(t, cfg.PauseOnFailure)
	assert.Equal(t, "", cfg.Callback)
	assert.Equal(t, 100*time.Millisecond, cfg.TickInterval)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 8081, cfg.Server.AdminPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 5*time.Second, cfg.Redis.HeartbeatInterval)

	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_WithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := tmpDir + "/config.yaml"

	configContent := `
pueuedirectory: "/var/lib/taskd"
defaultparalleltasks: 4
groups:
  build: 2
  deploy: 1
pauseonfailure: true
callback: "notify-me {{.ID}} {{.Result}}"

server:
  host: "127.0.0.1"
  port: 9090

redis:
  enabled: true
  addr: "custom-redis:6380"

loglevel: "warn"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	originalDir, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(originalDir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/taskd", cfg.PueueDirectory)
	assert.Equal(t, uint(4), cfg.DefaultParallelTasks)
	assert.Equal(t, uint(2), cfg.Groups["build"])
	assert.Equal(t, uint(1), cfg.Groups["deploy"])
	assert.True(t, cfg.PauseOnFailure)
	assert.Equal(t, "notify-me {{.ID}} {{.Result}}", cfg.Callback)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)

	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "custom-redis:6380", cfg.Redis.Addr)

	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestServerConfig_Fields(t *testing.T) {
	cfg := ServerConfig{
		Host:         "localhost",
		Port:         8080,
		AdminPort:    8081,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 8081, cfg.AdminPort)
}

func TestRedisConfig_Fields(t *testing.T) {
	cfg := RedisConfig{
		Enabled:           true,
		Addr:              "redis:6379",
		Password:          "pass",
		DB:                1,
		HeartbeatInterval: 5 * time.Second,
	}

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "redis:6379", cfg.Addr)
	assert.Equal(t, "pass", cfg.Password)
	assert.Equal(t, 1, cfg.DB)
}

func TestAuthConfig_Fields(t *testing.T) {
	cfg := AuthConfig{
		Enabled:   true,
		JWTSecret: "shh",
		APIKeys:   []string{"key1"},
	}

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "shh", cfg.JWTSecret)
	assert.Len(t, cfg.APIKeys, 1)
}
