package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/roteiro-ai/roteiro/pkg/models"
	"gopkg.in/yaml.v3"
)

// Backend names accepted by the cache and rate_limit sections.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds all roteiro configuration.
type Config struct {
	Listen string `yaml:"listen"`
	// TrustedProxies lists the peers, as CIDRs or bare IPs, whose
	// X-Forwarded-For and X-Real-IP headers identify the client.
	// Empty means the connection address is always used.
	TrustedProxies []string           `yaml:"trusted_proxies"`
	DBPath         string             `yaml:"db_path"`
	Log            LogConfig          `yaml:"log"`
	LLM            LLMConfig          `yaml:"llm"`
	Cache          CacheConfig        `yaml:"cache"`
	RateLimit      RateLimitConfig    `yaml:"rate_limit"`
	Redis          RedisConfig        `yaml:"redis"`
	Scope          ScopeConfig        `yaml:"scope"`
	Question       QuestionConfig     `yaml:"question"`
	Audit          models.AuditConfig `yaml:"audit"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// LLMConfig defines the upstream model chain and generation settings.
// Providers are tried in order until one answers.
type LLMConfig struct {
	Providers         []ProviderConfig `yaml:"providers"`
	Timeout           time.Duration    `yaml:"timeout"`
	Temperature       float32          `yaml:"temperature"`
	MaxTokens         int              `yaml:"max_tokens"`
	SystemInstruction string           `yaml:"system_instruction"`
}

// ProviderConfig defines an upstream LLM provider.
// Type is "openai" (default, any OpenAI-compatible endpoint) or "gemini".
type ProviderConfig struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Backend    string        `yaml:"backend"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// RateLimitConfig controls per-client admission.
type RateLimitConfig struct {
	Enabled bool   `yaml:"enabled"`
	Backend string `yaml:"backend"`
	Hourly  int64  `yaml:"hourly"`
	Daily   int64  `yaml:"daily"`
}

// RedisConfig is shared by the redis cache and rate limit backends.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// ScopeConfig overrides the built-in keyword sets. Empty lists keep the defaults.
type ScopeConfig struct {
	Positive    []string `yaml:"positive"`
	Negative    []string `yaml:"negative"`
	Drugs       []string `yaml:"drugs"`
	Dosing      []string `yaml:"dosing"`
	Safety      []string `yaml:"safety"`
	Interaction []string `yaml:"interaction"`
	Procedure   []string `yaml:"procedure"`
}

// QuestionConfig bounds accepted question length, in characters.
type QuestionConfig struct {
	MinLen int `yaml:"min_len"`
	MaxLen int `yaml:"max_len"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		DBPath: "roteiro.db",
		Log: LogConfig{
			Level: "info",
		},
		LLM: LLMConfig{
			Timeout:     30 * time.Second,
			Temperature: 0.1,
			MaxTokens:   1000,
		},
		Cache: CacheConfig{
			Enabled: true,
			Backend: BackendMemory,
			TTL:     5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Backend: BackendMemory,
			Hourly:  100,
			Daily:   500,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "roteiro:",
		},
		Question: QuestionConfig{
			MinLen: 5,
			MaxLen: 1000,
		},
		Audit: models.AuditConfig{
			Enabled:       false,
			DBPath:        "roteiro-audit.db",
			RetentionDays: 90,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
// An empty path yields the defaults with environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployments inject the LLM credentials without a file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ROTEIRO_LISTEN"); v != "" {
		c.Listen = v
	}

	key := os.Getenv("ROTEIRO_LLM_API_KEY")
	url := os.Getenv("ROTEIRO_LLM_URL")
	model := os.Getenv("ROTEIRO_LLM_MODEL")
	if key == "" && url == "" && model == "" {
		return
	}

	if len(c.LLM.Providers) == 0 {
		c.LLM.Providers = append(c.LLM.Providers, ProviderConfig{Name: "default", Type: "openai"})
	}
	p := &c.LLM.Providers[0]
	if key != "" {
		p.APIKey = key
	}
	if url != "" {
		p.URL = url
	}
	if model != "" {
		p.Model = model
	}
}

// Validate reports configuration values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if !validBackend(c.Cache.Backend) {
		errs = append(errs, fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend))
	}
	if !validBackend(c.RateLimit.Backend) {
		errs = append(errs, fmt.Errorf("rate_limit.backend: unknown backend %q", c.RateLimit.Backend))
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, errors.New("cache.max_entries must not be negative"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.Hourly <= 0 || c.RateLimit.Daily <= 0) {
		errs = append(errs, errors.New("rate_limit.hourly and rate_limit.daily must be positive"))
	}
	if c.Question.MinLen < 1 || c.Question.MaxLen < c.Question.MinLen {
		errs = append(errs, fmt.Errorf("question bounds [%d, %d] are invalid", c.Question.MinLen, c.Question.MaxLen))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, errors.New("llm.timeout must be positive"))
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	for i, p := range c.LLM.Providers {
		switch p.Type {
		case "", "openai", "gemini":
		default:
			errs = append(errs, fmt.Errorf("llm.providers[%d]: unknown type %q", i, p.Type))
		}
	}

	return errors.Join(errs...)
}

// TrustedProxyPrefixes parses TrustedProxies. A bare IP becomes a single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for i, s := range c.TrustedProxies {
		if p, err := netip.ParsePrefix(s); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("trusted_proxies[%d]: invalid address %q", i, s)
		}
		out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return out, nil
}

func validBackend(b string) bool {
	switch b {
	case BackendMemory, BackendSQLite, BackendRedis:
		return true
	}
	return false
}
