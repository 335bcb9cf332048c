// Package config holds the engine configuration. All tunables are snapshotted
// into the pipeline at entry; nothing reads configuration mid-run.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/promptforge/promptforge/internal/logging"
)

// Config carries every tunable the engine consumes. Values are fixed for the
// duration of one pipeline run.
type Config struct {
	// Optimizer bounds.
	MaxIterations    int     `env:"FORGE_MAX_ITERATIONS" envDefault:"3"`
	QualityThreshold float64 `env:"FORGE_QUALITY_THRESHOLD" envDefault:"1.0"`

	// Retrieval.
	RetrievalK       int     `env:"FORGE_RETRIEVAL_K" envDefault:"3"`
	PoolQualityFloor float64 `env:"FORGE_POOL_QUALITY_FLOOR" envDefault:"0.5"`

	// Compiler.
	ComplexityTokenLimit int `env:"FORGE_COMPLEXITY_TOKENS" envDefault:"120"`

	// Gateway.
	GatewayEndpoint string        `env:"FORGE_GATEWAY_ENDPOINT" envDefault:"http://localhost:8080/v1/generate"`
	GatewayModel    string        `env:"FORGE_GATEWAY_MODEL" envDefault:"default"`
	GatewayTimeout  time.Duration `env:"FORGE_GATEWAY_TIMEOUT" envDefault:"30s"`
	MaxRetries      int           `env:"FORGE_MAX_RETRIES" envDefault:"3"`
	RetryDelay      time.Duration `env:"FORGE_RETRY_DELAY" envDefault:"2s"`

	// Validation policy: strict surfaces constraint violations as errors,
	// permissive degrades to warnings.
	Strict bool `env:"FORGE_STRICT" envDefault:"false"`

	// GenerateResponse executes the validated program against the gateway and
	// returns the model output alongside the rendered prompt.
	GenerateResponse bool `env:"FORGE_GENERATE" envDefault:"false"`

	// CachePath selects the sqlite cache backend when non-empty; the default
	// is the in-memory store.
	CachePath string `env:"FORGE_CACHE_PATH"`

	LogLevel logging.LogLevel `env:"FORGE_LOG_LEVEL" envDefault:"WARN"`
}

// LoadConfig builds a Config from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfig returns a Config with the fixed defaults.
func NewConfig() *Config {
	return &Config{
		MaxIterations:        3,
		QualityThreshold:     1.0,
		RetrievalK:           3,
		PoolQualityFloor:     0.5,
		ComplexityTokenLimit: 120,
		GatewayEndpoint:      "http://localhost:8080/v1/generate",
		GatewayModel:         "default",
		GatewayTimeout:       30 * time.Second,
		MaxRetries:           3,
		RetryDelay:           2 * time.Second,
		LogLevel:             logging.LogLevelWarn,
	}
}

// ConfigOption mutates a Config during construction.
type ConfigOption func(*Config)

func SetMaxIterations(n int) ConfigOption {
	return func(c *Config) {
		if n < 1 {
			n = 1
		}
		c.MaxIterations = n
	}
}

func SetQualityThreshold(threshold float64) ConfigOption {
	return func(c *Config) {
		c.QualityThreshold = threshold
	}
}

func SetRetrievalK(k int) ConfigOption {
	return func(c *Config) {
		if k < 1 {
			k = 1
		}
		c.RetrievalK = k
	}
}

func SetPoolQualityFloor(floor float64) ConfigOption {
	return func(c *Config) {
		c.PoolQualityFloor = floor
	}
}

func SetComplexityTokenLimit(limit int) ConfigOption {
	return func(c *Config) {
		c.ComplexityTokenLimit = limit
	}
}

func SetGatewayEndpoint(endpoint string) ConfigOption {
	return func(c *Config) {
		c.GatewayEndpoint = endpoint
	}
}

func SetGatewayModel(model string) ConfigOption {
	return func(c *Config) {
		c.GatewayModel = model
	}
}

func SetGatewayTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.GatewayTimeout = timeout
	}
}

func SetMaxRetries(n int) ConfigOption {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

func SetRetryDelay(delay time.Duration) ConfigOption {
	return func(c *Config) {
		c.RetryDelay = delay
	}
}

func SetStrict(strict bool) ConfigOption {
	return func(c *Config) {
		c.Strict = strict
	}
}

func SetGenerateResponse(generate bool) ConfigOption {
	return func(c *Config) {
		c.GenerateResponse = generate
	}
}

func SetCachePath(path string) ConfigOption {
	return func(c *Config) {
		c.CachePath = path
	}
}

func SetLogLevel(level logging.LogLevel) ConfigOption {
	return func(c *Config) {
		c.LogLevel = level
	}
}

// ApplyOptions applies the given options to cfg in order.
func ApplyOptions(cfg *Config, options ...ConfigOption) {
	for _, option := range options {
		option(cfg)
	}
}
