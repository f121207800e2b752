package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/disasterproject/fanout/internal/domain"
)

// Config holds all configuration for the fan-out orchestrator.
type Config struct {
	// Server configuration
	HTTPPort int    `env:"FANOUT_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"FANOUT_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// LLMProvider selects the backend implementation for worker accounts.
	LLMProvider string `env:"FANOUT_LLM_PROVIDER" envDefault:"anthropic"`

	// Redis configuration
	Redis RedisConfig

	// Worker account configuration
	Workers WorkerConfig

	// Engine configuration
	Engine EngineConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`

	// ResultTTL bounds how long run results are kept.
	ResultTTL time.Duration `env:"REDIS_RESULT_TTL" envDefault:"24h"`
}

// WorkerConfig holds the worker account pool configuration.
type WorkerConfig struct {
	// Accounts is a list of name=credential pairs.
	Accounts []string `env:"FANOUT_ACCOUNTS" envSeparator:","`

	// Balancing selects the load-balancing policy for the pool.
	Balancing string `env:"FANOUT_BALANCING" envDefault:"round-robin"`

	// StatsInterval is how often pool usage is logged and exported.
	StatsInterval time.Duration `env:"FANOUT_STATS_INTERVAL" envDefault:"30s"`
}

// EngineConfig holds execution engine configuration.
type EngineConfig struct {
	// MaxConcurrent bounds simultaneously in-flight subtask executions.
	// Hard-capped at domain.MaxConcurrentLimit.
	MaxConcurrent int `env:"FANOUT_MAX_CONCURRENT" envDefault:"5"`

	// MaxSubTasks is the default decomposition bound when a task does not
	// set its own.
	MaxSubTasks int `env:"FANOUT_MAX_SUBTASKS" envDefault:"5"`
}

// TimeoutConfig holds various timeout configurations.
type TimeoutConfig struct {
	RunTimeout      time.Duration `env:"TIMEOUT_RUN" envDefault:"1800s"`
	BatchTimeout    time.Duration `env:"TIMEOUT_BATCHES" envDefault:"900s"`
	RequestTimeout  time.Duration `env:"TIMEOUT_LLM_REQUEST" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if len(c.Workers.Accounts) == 0 {
		return fmt.Errorf("at least one worker account is required")
	}
	if _, err := c.AccountCredentials(); err != nil {
		return err
	}
	if _, err := domain.ParseBalanceStrategy(c.Workers.Balancing); err != nil {
		return err
	}

	if c.Engine.MaxConcurrent < 1 || c.Engine.MaxConcurrent > domain.MaxConcurrentLimit {
		return fmt.Errorf("max concurrent must be between 1 and %d, got %d",
			domain.MaxConcurrentLimit, c.Engine.MaxConcurrent)
	}
	if c.Engine.MaxSubTasks < 1 {
		return fmt.Errorf("max subtasks must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// AccountCredential is one parsed worker account entry.
type AccountCredential struct {
	Name       string
	Credential string
}

// AccountCredentials parses the FANOUT_ACCOUNTS entries. Each entry is a
// name=credential pair; order is preserved because it breaks load-balancing
// ties.
func (c *Config) AccountCredentials() ([]AccountCredential, error) {
	creds := make([]AccountCredential, 0, len(c.Workers.Accounts))
	seen := make(map[string]bool, len(c.Workers.Accounts))
	for _, entry := range c.Workers.Accounts {
		name, credential, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || name == "" || credential == "" {
			return nil, fmt.Errorf("invalid account entry %q (want name=credential)", entry)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate account name %q", name)
		}
		seen[name] = true
		creds = append(creds, AccountCredential{Name: name, Credential: credential})
	}
	return creds, nil
}

// BalanceStrategy returns the parsed load-balancing policy. Validate must
// have succeeded first.
func (c *Config) BalanceStrategy() domain.BalanceStrategy {
	strategy, _ := domain.ParseBalanceStrategy(c.Workers.Balancing)
	return strategy
}

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address.
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
