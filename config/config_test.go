package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
auth:
  jwt_secret: "file-secret-0123456789"
  access_token_ttl: 5m
jobs:
  stale_room_ttl: 2h
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file-secret-0123456789", cfg.Auth.JWTSecret)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.Equal(t, 2*time.Hour, cfg.Jobs.StaleRoomTTL)
	assert.Equal(t, "gochannel", cfg.Broker.Backend)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, "08:00", cfg.Routine.WindowStart)
	assert.True(t, cfg.Feature.FriendsOnlyRoutines)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: "file-secret-0123456789"
`)
	t.Setenv("CAMPUS_AUTH_JWT_SECRET", "env-secret-0123456789")
	t.Setenv("CAMPUS_SERVER_PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-secret-0123456789", cfg.Auth.JWTSecret)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_MissingSecret(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "jwt_secret")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  ServerConfig{Port: 8080},
			Auth:    AuthConfig{JWTSecret: "0123456789abcdef"},
			Routine: RoutineConfig{WindowStart: "08:00", WindowEnd: "22:00", Timezone: "UTC"},
			Broker:  BrokerConfig{Backend: "gochannel"},
			Storage: StorageConfig{Driver: "local"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"合法配置", func(c *Config) {}, ""},
		{"密钥过短", func(c *Config) { c.Auth.JWTSecret = "short" }, "jwt_secret"},
		{"端口越界", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"窗口倒置", func(c *Config) { c.Routine.WindowStart = "23:00" }, "window_start"},
		{"时间格式错误", func(c *Config) { c.Routine.WindowEnd = "10pm" }, "window_end"},
		{"未知时区", func(c *Config) { c.Routine.Timezone = "Mars/Base" }, "timezone"},
		{"kafka 缺少地址", func(c *Config) { c.Broker.Backend = "kafka" }, "kafka_brokers"},
		{"kafka 正常", func(c *Config) {
			c.Broker.Backend = "kafka"
			c.Broker.KafkaBrokers = []string{"localhost:9092"}
		}, ""},
		{"未知存储", func(c *Config) { c.Storage.Driver = "ftp" }, "storage.driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
