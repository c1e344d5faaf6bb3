package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds configuration loaded from environment variables.
// Command line flags override these values.
type Config struct {
	RPCURL            string        `env:"AUDITOR_RPC_URL" envDefault:"http://127.0.0.1:8545"`
	ContractsFile     string        `env:"AUDITOR_CONTRACTS_FILE" envDefault:"contracts/core.json"`
	HttpClientTimeout time.Duration `env:"AUDITOR_HTTP_CLIENT_TIMEOUT" envDefault:"30s"`
	MaxBlockAge       time.Duration `env:"AUDITOR_MAX_BLOCK_AGE" envDefault:"1h"`
	VoteConcurrency   int           `env:"AUDITOR_VOTE_FETCH_CONCURRENCY" envDefault:"1"`

	// Report archive; empty disables it
	DatabaseURL   string `env:"AUDITOR_DATABASE_URL"`
	MigrationsDir string `env:"AUDITOR_MIGRATIONS_DIR" envDefault:"migrations"`

	// Logging configuration
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogHumanFriendly bool   `env:"LOG_HUMAN_FRIENDLY" envDefault:"true"`
}

// Parse reads the configuration from the environment
func Parse() (Config, error) {
	var cfg Config
	err := env.Parse(&cfg)
	return cfg, err
}

// New loads all configuration from environment variables, panicking on malformed values
func New() Config {
	return env.Must(Parse())
}
