package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disasterproject/fanout/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FANOUT_ACCOUNTS", "main=sk-key-1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9090, cfg.GRPCPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "anthropic", cfg.LLMProvider)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Redis.ResultTTL)
	assert.Equal(t, "round-robin", cfg.Workers.Balancing)
	assert.Equal(t, 5, cfg.Engine.MaxConcurrent)
	assert.Equal(t, 5, cfg.Engine.MaxSubTasks)
	assert.Equal(t, 30*time.Minute, cfg.Timeouts.RunTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Timeouts.BatchTimeout)
	assert.Equal(t, ":8080", cfg.GetHTTPAddr())
	assert.Equal(t, ":9090", cfg.GetGRPCAddr())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FANOUT_HTTP_PORT", "8181")
	t.Setenv("FANOUT_ACCOUNTS", "primary=sk-1,backup=sk-2")
	t.Setenv("FANOUT_BALANCING", "least-loaded")
	t.Setenv("FANOUT_MAX_CONCURRENT", "10")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TIMEOUT_RUN", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.HTTPPort)
	assert.Equal(t, 10, cfg.Engine.MaxConcurrent)
	assert.Equal(t, 90*time.Second, cfg.Timeouts.RunTimeout)
	assert.Equal(t, domain.BalanceLeastLoaded, cfg.BalanceStrategy())

	creds, err := cfg.AccountCredentials()
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, AccountCredential{Name: "primary", Credential: "sk-1"}, creds[0])
	assert.Equal(t, AccountCredential{Name: "backup", Credential: "sk-2"}, creds[1])
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		return &Config{
			HTTPPort:    8080,
			GRPCPort:    9090,
			LogLevel:    "info",
			LLMProvider: "anthropic",
			Redis:       RedisConfig{Addr: "localhost:6379"},
			Workers: WorkerConfig{
				Accounts:  []string{"main=sk-key"},
				Balancing: "round-robin",
			},
			Engine: EngineConfig{MaxConcurrent: 5, MaxSubTasks: 5},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad http port",
			mutate:  func(c *Config) { c.HTTPPort = 0 },
			wantErr: "invalid HTTP port",
		},
		{
			name:    "bad grpc port",
			mutate:  func(c *Config) { c.GRPCPort = 70000 },
			wantErr: "invalid gRPC port",
		},
		{
			name:    "missing redis addr",
			mutate:  func(c *Config) { c.Redis.Addr = "" },
			wantErr: "redis address is required",
		},
		{
			name:    "no accounts",
			mutate:  func(c *Config) { c.Workers.Accounts = nil },
			wantErr: "at least one worker account",
		},
		{
			name:    "malformed account entry",
			mutate:  func(c *Config) { c.Workers.Accounts = []string{"just-a-name"} },
			wantErr: "invalid account entry",
		},
		{
			name:    "duplicate account name",
			mutate:  func(c *Config) { c.Workers.Accounts = []string{"main=a", "main=b"} },
			wantErr: "duplicate account name",
		},
		{
			name:    "unknown balancing policy",
			mutate:  func(c *Config) { c.Workers.Balancing = "random" },
			wantErr: "balancing",
		},
		{
			name:    "max concurrent too high",
			mutate:  func(c *Config) { c.Engine.MaxConcurrent = 11 },
			wantErr: "max concurrent must be between",
		},
		{
			name:    "max concurrent too low",
			mutate:  func(c *Config) { c.Engine.MaxConcurrent = 0 },
			wantErr: "max concurrent must be between",
		},
		{
			name:    "max subtasks too low",
			mutate:  func(c *Config) { c.Engine.MaxSubTasks = 0 },
			wantErr: "max subtasks must be at least 1",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestAccountCredentialsTrimsWhitespace(t *testing.T) {
	t.Parallel()

	cfg := &Config{Workers: WorkerConfig{Accounts: []string{" main=sk-key "}}}
	creds, err := cfg.AccountCredentials()
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "main", creds[0].Name)
}
