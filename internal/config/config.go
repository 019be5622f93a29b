// Package config loads runtime settings: defaults, then an optional .env
// file, then environment variables, highest last.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTP    HTTPConfig
	Mongo   MongoConfig
	Journal JournalConfig
	Session SessionConfig
	Auth    AuthConfig
	Mail    MailConfig
	WS      WSConfig
}

// HTTPConfig carries the listener settings. There is deliberately no write
// timeout: the live display and monitor streams hold their connections open
// indefinitely.
type HTTPConfig struct {
	Host        string
	Port        int
	ReadTimeout time.Duration
}

func (c HTTPConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

type MongoConfig struct {
	URI      string
	Database string
}

type JournalConfig struct {
	Path          string
	SweepInterval time.Duration
}

type SessionConfig struct {
	RotateInterval time.Duration
	TokenWindow    time.Duration
}

type AuthConfig struct {
	Secret  string
	AuthTTL time.Duration
}

type MailConfig struct {
	SendgridKey string
	FromName    string
	FromAddress string
	BaseURL     string
}

type WSConfig struct {
	QueueSize int
}

// Load reads configuration. A .env file in the working directory is applied
// to the environment first; ROLLCALL_-prefixed variables override defaults
// (dots become underscores, e.g. ROLLCALL_HTTP_PORT).
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("rollcall")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "rollcall")
	v.SetDefault("journal.path", "./rollcall-journal.db")
	v.SetDefault("journal.sweep_interval", "1m")
	v.SetDefault("session.rotate_interval", "1s")
	v.SetDefault("session.token_window", "2m")
	v.SetDefault("auth.ttl", "24h")
	v.SetDefault("mail.from_name", "Rollcall")
	v.SetDefault("mail.from_address", "no-reply@rollcall.local")
	v.SetDefault("mail.base_url", "http://localhost:3000")
	v.SetDefault("ws.queue_size", 100)

	cfg := &Config{
		HTTP: HTTPConfig{
			Host:        v.GetString("http.host"),
			Port:        v.GetInt("http.port"),
			ReadTimeout: v.GetDuration("http.read_timeout"),
		},
		Mongo: MongoConfig{
			URI:      v.GetString("mongo.uri"),
			Database: v.GetString("mongo.database"),
		},
		Journal: JournalConfig{
			Path:          v.GetString("journal.path"),
			SweepInterval: v.GetDuration("journal.sweep_interval"),
		},
		Session: SessionConfig{
			RotateInterval: v.GetDuration("session.rotate_interval"),
			TokenWindow:    v.GetDuration("session.token_window"),
		},
		Auth: AuthConfig{
			Secret:  v.GetString("auth.secret"),
			AuthTTL: v.GetDuration("auth.ttl"),
		},
		Mail: MailConfig{
			SendgridKey: v.GetString("mail.sendgrid_key"),
			FromName:    v.GetString("mail.from_name"),
			FromAddress: v.GetString("mail.from_address"),
			BaseURL:     v.GetString("mail.base_url"),
		},
		WS: WSConfig{
			QueueSize: v.GetInt("ws.queue_size"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("http read timeout must be positive")
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo uri cannot be empty")
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("mongo database cannot be empty")
	}
	if c.Journal.Path == "" {
		return fmt.Errorf("journal path cannot be empty")
	}
	if c.Journal.SweepInterval <= 0 {
		return fmt.Errorf("journal sweep interval must be positive")
	}
	if c.Session.RotateInterval <= 0 {
		return fmt.Errorf("session rotate interval must be positive")
	}
	if c.Session.TokenWindow < c.Session.RotateInterval {
		return fmt.Errorf("session token window must cover at least one rotation")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret cannot be empty")
	}
	if c.Auth.AuthTTL <= 0 {
		return fmt.Errorf("auth ttl must be positive")
	}
	if c.WS.QueueSize <= 0 {
		return fmt.Errorf("websocket queue size must be positive")
	}
	return nil
}
