// Package config loads process configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything tunable from the environment. Gameplay
// constants (lives, curve bounds) are deliberately not here; they are
// part of the protocol contract between peers.
type Config struct {
	PlayerName   string        `env:"DUEL_PLAYER_NAME" envDefault:"player"`
	BindAddress  string        `env:"DUEL_BIND_ADDRESS" envDefault:"0.0.0.0"`
	Port         int           `env:"DUEL_PORT" envDefault:"7777"`
	ReadyTimeout time.Duration `env:"DUEL_READY_TIMEOUT" envDefault:"60s"`
	MaxRounds    int           `env:"DUEL_MAX_ROUNDS" envDefault:"5"`
	DialTimeout  time.Duration `env:"DUEL_DIAL_TIMEOUT" envDefault:"5s"`
	StatusAddr   string        `env:"DUEL_STATUS_ADDR" envDefault:"127.0.0.1:8090"`
	HistoryPath  string        `env:"DUEL_HISTORY_PATH" envDefault:"duel-history.db"`
	LogFile      string        `env:"DUEL_LOG_FILE" envDefault:""`
	LogLevel     string        `env:"DUEL_LOG_LEVEL" envDefault:"info"`
}

// Load reads a .env file if present, then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxRounds < 1 {
		return fmt.Errorf("max rounds must be at least 1, got %d", c.MaxRounds)
	}
	if c.ReadyTimeout < 0 {
		return fmt.Errorf("ready timeout must not be negative")
	}
	return nil
}
