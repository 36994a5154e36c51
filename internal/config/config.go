// Package config loads ~/.roomie/config.yml.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	API           APIConfig           `yaml:"api"`
	Auth          AuthConfig          `yaml:"auth"`
	Broker        BrokerConfig        `yaml:"broker"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	Verify        VerifyConfig        `yaml:"verify"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Log           LogConfig           `yaml:"log"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	Token  string `yaml:"token"`
	UserID string `yaml:"user_id"`
}

type BrokerConfig struct {
	Kind               string        `yaml:"kind"`
	URL                string        `yaml:"url"`
	MessageDestination string        `yaml:"message_destination"`
	SwipeDestination   string        `yaml:"swipe_destination"`
	ReconnectDelay     time.Duration `yaml:"reconnect_delay"`
	Heartbeat          time.Duration `yaml:"heartbeat"`
	DialTimeout        time.Duration `yaml:"dial_timeout"`
}

type LedgerConfig struct {
	Driver string      `yaml:"driver"`
	Path   string      `yaml:"path"`
	Redis  RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type VerifyConfig struct {
	Mode    string        `yaml:"mode"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type NotificationsConfig struct {
	System bool `yaml:"system"`
}

type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

const (
	BrokerSTOMP = "stomp"
	BrokerNATS  = "nats"

	LedgerMemory = "memory"
	LedgerSQLite = "sqlite"
	LedgerRedis  = "redis"
)

// Dir returns ~/.roomie.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".roomie")
}

func DefaultPath() string {
	return filepath.Join(Dir(), "config.yml")
}

func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080/api",
			Timeout: 10 * time.Second,
		},
		Broker: BrokerConfig{
			Kind:               BrokerSTOMP,
			URL:                "ws://localhost:8080/ws",
			MessageDestination: "/user/{userId}/queue/messages",
			SwipeDestination:   "/user/{userId}/queue/swipes",
			ReconnectDelay:     5 * time.Second,
			Heartbeat:          10 * time.Second,
			DialTimeout:        10 * time.Second,
		},
		Ledger: LedgerConfig{
			Driver: LedgerSQLite,
			Path:   filepath.Join(Dir(), "roomie.db"),
			Redis:  RedisConfig{Addr: "localhost:6379", KeyPrefix: "roomie:"},
		},
		Verify: VerifyConfig{
			Mode:    "proxy",
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{
			Path:  filepath.Join(Dir(), "roomie.log"),
			Level: "info",
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "failed to parse %s", path)
		}
	case os.IsNotExist(err):
	default:
		return Config{}, errors.Wrapf(err, "failed to read %s", path)
	}

	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	for name, field := range map[string]*string{
		"ROOMIE_TOKEN":      &c.Auth.Token,
		"ROOMIE_USER_ID":    &c.Auth.UserID,
		"ROOMIE_API_URL":    &c.API.BaseURL,
		"ROOMIE_BROKER_URL": &c.Broker.URL,
	} {
		if v, ok := lookup(name); ok && v != "" {
			*field = v
		}
	}
}

// Validate checks what the services need to start.
func (c Config) Validate() error {
	if c.Auth.UserID == "" {
		return errors.Wrap(ErrInvalid, "auth.user_id is required")
	}
	if c.API.BaseURL == "" {
		return errors.Wrap(ErrInvalid, "api.base_url is required")
	}
	switch c.Broker.Kind {
	case BrokerSTOMP, BrokerNATS:
	default:
		return errors.Wrapf(ErrInvalid, "unknown broker.kind %q", c.Broker.Kind)
	}
	switch c.Ledger.Driver {
	case LedgerMemory, LedgerRedis:
	case LedgerSQLite:
		if c.Ledger.Path == "" {
			return errors.Wrap(ErrInvalid, "ledger.path is required for sqlite")
		}
	default:
		return errors.Wrapf(ErrInvalid, "unknown ledger.driver %q", c.Ledger.Driver)
	}
	switch c.Verify.Mode {
	case "proxy", "vision":
	default:
		return errors.Wrapf(ErrInvalid, "unknown verify.mode %q", c.Verify.Mode)
	}
	return nil
}
