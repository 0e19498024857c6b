package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. QUIZ_SERVER_PORT or QUIZ_REDIS_ADDR.
const EnvPrefix = "QUIZ"

type Config struct {
	Server struct {
		Port            string `yaml:"port"`
		ReadTimeout     string `yaml:"read_timeout" split_words:"true"`
		ShutdownTimeout string `yaml:"shutdown_timeout" split_words:"true"`
	} `yaml:"server"`
	WebSocket struct {
		AllowedOrigins  []string `yaml:"allowed_origins" split_words:"true"`
		SendBuffer      int      `yaml:"send_buffer" split_words:"true" validate:"gte=1"`
		MaxMessageBytes int64    `yaml:"max_message_bytes" split_words:"true" validate:"gte=512"`
		WriteWait       string   `yaml:"write_wait" split_words:"true"`
		PongWait        string   `yaml:"pong_wait" split_words:"true"`
	} `yaml:"websocket"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
		Dir string `yaml:"dir"`
	} `yaml:"quiz"`
	Auth struct {
		RequireHost bool   `yaml:"require_host" split_words:"true"`
		Secret      string `yaml:"secret"`
		Issuer      string `yaml:"issuer"`
	} `yaml:"auth"`
	Log struct {
		Level string `yaml:"level" validate:"omitempty,oneof=debug DEBUG info INFO warn WARN error ERROR"`
	} `yaml:"log"`
}

var validate = validator.New()

// Default returns the configuration used when neither the file nor the environment say otherwise.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.ReadTimeout = "15s"
	cfg.Server.ShutdownTimeout = "5s"
	cfg.WebSocket.SendBuffer = 256
	cfg.WebSocket.MaxMessageBytes = 1 << 20
	cfg.WebSocket.WriteWait = "10s"
	cfg.WebSocket.PongWait = "60s"
	cfg.Redis.TTL = "10m"
	cfg.Quiz.TTL = "10m"
	cfg.Log.Level = "info"
	return cfg
}

// Load reads YAML config from path, then applies QUIZ_* environment overrides. A .env file in the
// working directory is loaded first without replacing variables already set. An empty path skips
// the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
