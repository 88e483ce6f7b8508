// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables that override the server section.
const (
	EnvAPIURL    = "TYPERACE_API_URL"
	EnvWSURL     = "TYPERACE_WS_URL"
	EnvNATSURL   = "TYPERACE_NATS_URL"
	EnvTransport = "TYPERACE_TRANSPORT"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Practice PracticeConfig `toml:"practice"`
	Server   ServerConfig   `toml:"server"`
}

// PracticeConfig maps practice-related settings.
type PracticeConfig struct {
	Mode        *string `toml:"mode"`
	Duration    *int    `toml:"duration"`
	Words       *int    `toml:"words"`
	Punctuation *bool   `toml:"punctuation"`
	Numbers     *bool   `toml:"numbers"`
	Supplier    *string `toml:"supplier"`
	WordList    *string `toml:"wordlist"`
}

// ServerConfig maps remote endpoint settings.
type ServerConfig struct {
	APIURL         *string   `toml:"api-url"`
	WSURL          *string   `toml:"ws-url"`
	NATSURL        *string   `toml:"nats-url"`
	Transport      *string   `toml:"transport"`
	RequestTimeout *duration `toml:"request-timeout"`
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Timeout returns the configured request timeout, if any.
func (s ServerConfig) Timeout() *time.Duration {
	if s.RequestTimeout == nil {
		return nil
	}
	d := s.RequestTimeout.Duration
	return &d
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
// Values from the environment (and a .env file in the working directory) override
// the server section.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	var cfg FileConfig
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := loadDotEnv(".env"); err != nil {
		return FileConfig{}, err
	}
	applyEnv(&cfg.Server)
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func applyEnv(s *ServerConfig) {
	setFromEnv(EnvAPIURL, &s.APIURL)
	setFromEnv(EnvWSURL, &s.WSURL)
	setFromEnv(EnvNATSURL, &s.NATSURL)
	setFromEnv(EnvTransport, &s.Transport)
}

func setFromEnv(key string, target **string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*target = &v
	}
}
