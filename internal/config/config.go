// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"chat-stream-engine/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	JWTSecret      string        `yaml:"jwt_secret"`            // empty disables the bearer guard
	SendLimit      int           `yaml:"send_limit_per_minute"` // 0 disables; needs redis
	RequestTimeout time.Duration `yaml:"request_timeout"`       // non-streaming routes
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// AIConfig is the global base config for the completions API.
type AIConfig struct {
	APIKey            string  `yaml:"api_key"`
	APIURL            string  `yaml:"api_url"`
	Model             string  `yaml:"model"`
	Temperature       float64 `yaml:"temperature"`
	ContextMaxMessage int     `yaml:"context_max_message"`
	ContextMaxTokens  int     `yaml:"context_max_tokens"`
	ResponseMaxTokens int     `yaml:"response_max_tokens"`

	// ReloadInterval re-reads this section from disk; 0 disables.
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

type TokenizerConfig struct {
	// FallbackEncoding is used for models tiktoken does not know,
	// e.g. "cl100k_base". Empty means unknown models are rejected.
	FallbackEncoding string `yaml:"fallback_encoding"`
}

type WorkersConfig struct {
	Size int `yaml:"size"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AI        AIConfig        `yaml:"ai"`
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
	Workers   WorkersConfig   `yaml:"workers"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(configPath string, dev bool) (*Config, error) {
	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if key := os.Getenv("CHAT_API_KEY"); key != "" {
		cfg.AI.APIKey = key
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.AI.APIKey == "" {
		return nil, errors.New("ai.api_key is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 10 * time.Second
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Workers.Size <= 0 {
		cfg.Workers.Size = 8
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.AI.APIURL == "" {
		cfg.AI.APIURL = "https://api.openai.com/"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gpt-3.5-turbo"
	}
	if cfg.AI.Temperature == 0 {
		cfg.AI.Temperature = 0.7
	}
	if cfg.AI.ContextMaxMessage == 0 {
		cfg.AI.ContextMaxMessage = 1
	}
	if cfg.AI.ContextMaxTokens <= 0 {
		cfg.AI.ContextMaxTokens = 2048
	}
}

// BaseConfig projects the ai section onto the domain base config.
func (c *Config) BaseConfig() model.BaseConfig {
	return model.BaseConfig{
		APIKey:            c.AI.APIKey,
		APIURL:            c.AI.APIURL,
		Model:             c.AI.Model,
		Temperature:       c.AI.Temperature,
		ContextMaxMessage: c.AI.ContextMaxMessage,
		ContextMaxTokens:  c.AI.ContextMaxTokens,
		ResponseMaxTokens: c.AI.ResponseMaxTokens,
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 24 * time.Hour
	}
	return d
}
