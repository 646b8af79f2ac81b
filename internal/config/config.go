// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Client configures the chat client.
type Client struct {
	ServerHost  string        `env:"CHAT_SERVER_HOST,default=localhost:8000" validate:"required"`
	SendTimeout time.Duration `env:"CHAT_SEND_TIMEOUT,default=10s" validate:"gt=0"`
	LogLevel    string        `env:"LOG_LEVEL,default=INFO" validate:"required"`
}

// Relay configures the relay server.
type Relay struct {
	Address        string `env:"CHAT_RELAY_ADDR,default=:8000" validate:"required"`
	OutgoingBuffer int    `env:"CHAT_RELAY_OUTGOING_BUFFER,default=16" validate:"gt=0"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO" validate:"required"`
}

// LoadClient reads a Client from the environment. A .env file in the
// working directory is loaded first when present; variables already set win.
// Only transport settings are read; identities are never configured here.
func LoadClient() (Client, error) {
	var cfg Client
	if err := load(&cfg); err != nil {
		return Client{}, err
	}
	return cfg, nil
}

// LoadRelay reads a Relay from the environment, like LoadClient.
func LoadRelay() (Relay, error) {
	var cfg Relay
	if err := load(&cfg); err != nil {
		return Relay{}, err
	}
	return cfg, nil
}

func load(cfg any) error {
	_ = godotenv.Load()
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
