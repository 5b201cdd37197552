package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL        string        `env:"DATABASE_URL" envDefault:"sqlite://./tcav-panel/db/panel.db"`
	InterpreterURL     string        `env:"INTERPRETER_URL,notEmpty" envDefault:"http://localhost:5432"`
	InterpreterTimeout time.Duration `env:"INTERPRETER_TIMEOUT" envDefault:"10m"`
	Model              string        `env:"MODEL"`
	Dataset            string        `env:"DATASET"`
	APIPort            string        `env:"API_PORT" envDefault:"8001"`
	CorsOrigins        []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if cfg.InterpreterTimeout <= 0 {
		log.Printf("Invalid INTERPRETER_TIMEOUT value '%v', using default 10m", cfg.InterpreterTimeout)
		cfg.InterpreterTimeout = 10 * time.Minute
	}

	return &cfg, nil
}
