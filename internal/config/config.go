// Package config owns deployment configuration: the protocol logic only
// consumes these values, it never produces them.
package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Addr is the listen address for the http/ws server.
	Addr string `env:"ADDR" envDefault:":8080"`
	// DatabaseURL enables the postgres game archive when set.
	DatabaseURL string `env:"DATABASE_URL"`
	Debug       bool   `env:"DEBUG"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
