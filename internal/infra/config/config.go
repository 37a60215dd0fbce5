package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Assistant AssistantConfig `yaml:"assistant"`
	LLM       LLMConfig       `yaml:"llm"`
	Memory    MemoryConfig    `yaml:"memory"`
	Tools     ToolsConfig     `yaml:"tools"`
	Prompt    PromptConfig    `yaml:"prompt"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// AssistantConfig holds orchestrator behavior settings.
type AssistantConfig struct {
	Model         string  `yaml:"model"`
	Temperature   float64 `yaml:"temperature"`
	MaxToolRounds int     `yaml:"max_tool_rounds"` // default 5
	HistoryWindow int     `yaml:"history_window"`  // most-recent-N turns, default 20
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	Providers       []ProviderConfig     `yaml:"providers"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
	Pricing         map[string]Pricing   `yaml:"pricing,omitempty"` // model name → cost per 1K tokens
}

// Pricing holds per-model token prices used for call-record cost accounting.
type Pricing struct {
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
}

// CircuitBreakerConfig holds circuit breaker settings for LLM providers.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// ProviderConfig holds settings for a single LLM provider.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"` // "openai", "anthropic", "ollama"
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"` // supports ${ENV_VAR} expansion
	Model       string        `yaml:"model"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// PoolConfig holds HTTP connection pool settings for LLM providers.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// MemoryConfig holds conversation history persistence settings.
type MemoryConfig struct {
	Path string `yaml:"path"` // SQLite database file
}

// ToolsConfig holds settings for the registered sales tools.
type ToolsConfig struct {
	PaymentsURL string          `yaml:"payments_url"`
	CRMBaseURL  string          `yaml:"crm_base_url"`
	APIKey      string          `yaml:"api_key"` // supports ${ENV_VAR} expansion
	Timeout     time.Duration   `yaml:"timeout"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig caps tool invocations per conversation loop.
type RateLimitConfig struct {
	PerMinute float64 `yaml:"per_minute"`
	Burst     int     `yaml:"burst"`
}

// PromptConfig holds system prompt template settings.
type PromptConfig struct {
	TemplatePath string `yaml:"template_path"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	Output string `yaml:"output"` // stdout, stderr, or a file path
}

// TracerConfig holds OpenTelemetry settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "noop"
}

// Load reads and parses the YAML config file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	// Expand ${ENV_VAR} references in secrets.
	for i := range cfg.LLM.Providers {
		cfg.LLM.Providers[i].APIKey = os.ExpandEnv(cfg.LLM.Providers[i].APIKey)
	}
	cfg.Tools.APIKey = os.ExpandEnv(cfg.Tools.APIKey)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Assistant.MaxToolRounds <= 0 {
		c.Assistant.MaxToolRounds = 5
	}
	if c.Assistant.HistoryWindow <= 0 {
		c.Assistant.HistoryWindow = 20
	}
	if c.Assistant.Temperature == 0 {
		c.Assistant.Temperature = 0.7
	}
	if c.Memory.Path == "" {
		c.Memory.Path = "data/conversations.db"
	}
	if c.Prompt.TemplatePath == "" {
		c.Prompt.TemplatePath = "prompts/sistema.md"
	}
	if c.Tools.Timeout == 0 {
		c.Tools.Timeout = 15 * time.Second
	}
	if c.Tools.RateLimit.PerMinute == 0 {
		c.Tools.RateLimit.PerMinute = 30
	}
	if c.Tools.RateLimit.Burst == 0 {
		c.Tools.RateLimit.Burst = 5
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "text"
	}
}

func (c *Config) validate() error {
	if len(c.LLM.Providers) == 0 {
		return fmt.Errorf("config: no llm providers defined")
	}
	if c.LLM.DefaultProvider == "" {
		c.LLM.DefaultProvider = c.LLM.Providers[0].Name
	}
	found := false
	for _, p := range c.LLM.Providers {
		if p.Name == "" {
			return fmt.Errorf("config: provider with empty name")
		}
		if p.Name == c.LLM.DefaultProvider {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("config: default provider %q not defined", c.LLM.DefaultProvider)
	}
	return nil
}
