// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimizer struct {
		// DefaultBudget is used when a request omits the budget.
		DefaultBudget int `env:"OPT_DEFAULT_BUDGET" envDefault:"100"`
		// MaxBudget caps the evaluation budget a request may ask for.
		MaxBudget int `env:"OPT_MAX_BUDGET" envDefault:"10000"`
		// SwarmSize of 0 lets the strategy derive it from the space.
		SwarmSize int `env:"OPT_SWARM_SIZE" envDefault:"0"`
		// Workers > 1 enables concurrent evaluation of a generation.
		Workers int `env:"OPT_WORKERS" envDefault:"1"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}
