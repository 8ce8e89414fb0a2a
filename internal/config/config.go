package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/markdown-notes/internal/domain"
)

// EnvPrefix is the prefix for environment overrides. Nested keys use "__",
// e.g. MDNOTES_AI__PROVIDERS__GROQ__MODEL.
const EnvPrefix = "MDNOTES_"

// DefaultPath is the config file read when no explicit path is given.
const DefaultPath = "config.yaml"

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Auth    AuthConfig    `koanf:"auth"`
	Logging LoggingConfig `koanf:"logging"`
	AI      AIConfig      `koanf:"ai"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
}

type StorageConfig struct {
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
}

type LoggingConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

type AIConfig struct {
	Priority         []string                  `koanf:"priority"`
	CandidateTimeout time.Duration             `koanf:"candidate_timeout"`
	RateLimit        RateLimitConfig           `koanf:"rate_limit"`
	Providers        map[string]ProviderConfig `koanf:"providers"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// ProviderConfig holds the connection settings for one provider. An empty
// APIKey on a provider that needs one means the provider is not registered.
type ProviderConfig struct {
	APIKey      string  `koanf:"api_key"`
	BaseURL     string  `koanf:"base_url"`
	Model       string  `koanf:"model"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
	Disabled    bool    `koanf:"disabled"`
}

var defaults = map[string]any{
	"server.port":            8000,
	"server.request_timeout": "60s",
	"server.allowed_origins": []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	},
	"storage.sqlite.path": "./data/notes.db",
	"auth.jwt_secret":     "${JWT_SECRET}",
	"auth.token_ttl":      "30m",
	"logging.level":       "info",

	"ai.priority":                       []string{"groq", "gemini", "openai", "huggingface", "ollama"},
	"ai.candidate_timeout":              "30s",
	"ai.rate_limit.requests_per_second": 2.0,
	"ai.rate_limit.burst":               5,

	"ai.providers.ollama.base_url":    "http://localhost:11434",
	"ai.providers.ollama.model":       "llama3:8b",
	"ai.providers.ollama.temperature": 0.7,

	"ai.providers.openai.api_key":     "${OPENAI_API_KEY}",
	"ai.providers.openai.base_url":    "https://api.openai.com/v1",
	"ai.providers.openai.model":       "gpt-3.5-turbo",
	"ai.providers.openai.temperature": 0.7,

	"ai.providers.groq.api_key":     "${GROQ_API_KEY}",
	"ai.providers.groq.base_url":    "https://api.groq.com/openai/v1",
	"ai.providers.groq.model":       "llama3-8b-8192",
	"ai.providers.groq.temperature": 0.7,

	"ai.providers.gemini.api_key":     "${GOOGLE_API_KEY}",
	"ai.providers.gemini.base_url":    "https://generativelanguage.googleapis.com/v1beta",
	"ai.providers.gemini.model":       "gemini-pro",
	"ai.providers.gemini.temperature": 0.7,

	"ai.providers.huggingface.api_key":     "${HUGGINGFACE_API_KEY}",
	"ai.providers.huggingface.base_url":    "https://api-inference.huggingface.co",
	"ai.providers.huggingface.model":       "microsoft/DialoGPT-large",
	"ai.providers.huggingface.temperature": 0.7,
	"ai.providers.huggingface.max_tokens":  1000,
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the YAML file at path (DefaultPath when empty), applies
// environment overrides and defaults, and expands ${VAR} references in
// secret fields. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, value); err != nil {
				return nil, fmt.Errorf("set default %s: %w", key, err)
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Auth.JWTSecret = substituteEnvVars(cfg.Auth.JWTSecret)
	for id, pc := range cfg.AI.Providers {
		pc.APIKey = substituteEnvVars(pc.APIKey)
		pc.BaseURL = substituteEnvVars(pc.BaseURL)
		cfg.AI.Providers[id] = pc
	}

	return &cfg, nil
}

// Validate reports configuration that would make the service unusable.
func (c *Config) Validate() error {
	var errs []error
	for _, name := range c.AI.Priority {
		if _, ok := domain.ParseProviderID(name); !ok {
			errs = append(errs, fmt.Errorf("ai.priority: unknown provider %q", name))
		}
	}
	for name := range c.AI.Providers {
		if _, ok := domain.ParseProviderID(name); !ok {
			errs = append(errs, fmt.Errorf("ai.providers: unknown provider %q", name))
		}
	}
	if c.AI.CandidateTimeout <= 0 {
		errs = append(errs, errors.New("ai.candidate_timeout must be positive"))
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required (set JWT_SECRET)"))
	}
	if c.Server.Port <= 0 {
		errs = append(errs, errors.New("server.port must be positive"))
	}
	return errors.Join(errs...)
}

// PriorityOrder returns the configured fallback order. Known providers the
// configuration leaves out are appended in their default order.
func (c *AIConfig) PriorityOrder() []domain.ProviderID {
	seen := make(map[domain.ProviderID]bool)
	var order []domain.ProviderID
	for _, name := range c.Priority {
		if id, ok := domain.ParseProviderID(name); ok && !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	for _, id := range domain.KnownProviders {
		if !seen[id] {
			order = append(order, id)
		}
	}
	return order
}

// Provider returns the settings for id, zero-valued if absent.
func (c *AIConfig) Provider(id domain.ProviderID) ProviderConfig {
	return c.Providers[string(id)]
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
