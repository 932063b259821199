package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type BrokerConfig struct {
	URL        string        `yaml:"url"`
	Queue      string        `yaml:"queue"`
	MessageTTL time.Duration `yaml:"message_ttl"` // per-message TTL on the queue
	MaxLength  int           `yaml:"max_length"`  // broker-side queue bound
	Prefetch   int           `yaml:"prefetch"`    // unacked deliveries per worker
}

type MLConfig struct {
	Backend   string        `yaml:"backend"` // ollama | openai
	OllamaURL string        `yaml:"ollama_url"`
	OpenAIKey string        `yaml:"openai_key"`
	OpenAIURL string        `yaml:"openai_url"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"` // per inference call
}

type BillingConfig struct {
	RequestCost float64 `yaml:"request_cost"` // flat escrow charge per request
}

type RateLimitConfig struct {
	PerUser int           `yaml:"per_user"` // submits per window, 0 disables
	Window  time.Duration `yaml:"window"`
}

type AdminConfig struct {
	Port int `yaml:"port"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Broker    BrokerConfig    `yaml:"broker"`
	ML        MLConfig        `yaml:"ml"`
	Billing   BillingConfig   `yaml:"billing"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Admin     AdminConfig     `yaml:"admin"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Broker.Queue == "" {
		cfg.Broker.Queue = "ml_tasks"
	}
	if cfg.Broker.MessageTTL <= 0 {
		cfg.Broker.MessageTTL = time.Hour
	}
	if cfg.Broker.MaxLength <= 0 {
		cfg.Broker.MaxLength = 10000
	}
	if cfg.Broker.Prefetch <= 0 {
		cfg.Broker.Prefetch = 1
	}
	if cfg.ML.Backend == "" {
		cfg.ML.Backend = "ollama"
	}
	if cfg.ML.OllamaURL == "" {
		cfg.ML.OllamaURL = "http://localhost:11434"
	}
	if cfg.ML.Model == "" {
		cfg.ML.Model = "llama3"
	}
	if cfg.ML.Timeout <= 0 {
		cfg.ML.Timeout = 120 * time.Second
	}
	if cfg.Billing.RequestCost <= 0 {
		cfg.Billing.RequestCost = 10
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.Admin.Port <= 0 {
		cfg.Admin.Port = 9090
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Broker.URL == "" {
		return nil, errors.New("broker.url is required")
	}
	if cfg.ML.Backend == "openai" && cfg.ML.OpenAIKey == "" {
		return nil, errors.New("ml.openai_key is required for the openai backend")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
