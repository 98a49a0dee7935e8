package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingAPIKey is returned when the active model provider has no API key.
var ErrMissingAPIKey = errors.New("missing API key")

// ErrUnknownProvider is returned when llm.provider names no configured provider.
var ErrUnknownProvider = errors.New("unknown LLM provider")

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Tool      ToolConfig      `mapstructure:"tool"`
	WebSearch WebSearchConfig `mapstructure:"web_search"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// LLMConfig selects the model backend used by the orchestrator.
type LLMConfig struct {
	Provider  string                 `mapstructure:"provider"` // key into Providers
	Providers map[string]ModelConfig `mapstructure:"providers"`
}

// ModelConfig configures one model backend
type ModelConfig struct {
	Type      string `mapstructure:"type"` // "gemini", "anthropic", "openai"
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Timeout   int    `mapstructure:"timeout"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// ToolConfig configures how fetch_web_content calls are dispatched.
type ToolConfig struct {
	Mode          string        `mapstructure:"mode"` // "remote" (HTTP tool service) or "local"
	ServiceURL    string        `mapstructure:"service_url"`
	ServiceName   string        `mapstructure:"service_name"`
	CallTimeout   time.Duration `mapstructure:"call_timeout"`
	HealthTimeout time.Duration `mapstructure:"health_timeout"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BackoffUnit   time.Duration `mapstructure:"backoff_unit"`
	Breaker       BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxFailures uint32        `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// WebSearchConfig represents web search configuration
type WebSearchConfig struct {
	Enabled   bool                      `mapstructure:"enabled"`
	Default   string                    `mapstructure:"default"` // Default provider name
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig represents a generic search provider configuration
type ProviderConfig struct {
	Type       string  `mapstructure:"type"` // "duckduckgo", "mcp", "firecrawl"
	BaseURL    string  `mapstructure:"base_url"`
	APIKey     string  `mapstructure:"api_key"`
	ToolName   string  `mapstructure:"tool_name"`   // MCP: tool name to call
	QueryParam string  `mapstructure:"query_param"` // MCP: query parameter name
	Timeout    int     `mapstructure:"timeout"`
	MaxResults int     `mapstructure:"max_results"`
	RateLimit  float64 `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
}

type AgentConfig struct {
	MaxToolRounds int `mapstructure:"max_tool_rounds"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envAliases binds the variable names the bridge has always read alongside
// the SB_-prefixed names.
var envAliases = map[string][]string{
	"llm.provider":                           {"LLM_PROVIDER"},
	"llm.providers.gemini.api_key":           {"GEMINI_API_KEY"},
	"llm.providers.claude.api_key":           {"CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	"llm.providers.openai.api_key":           {"OPENAI_API_KEY"},
	"llm.providers.openai.base_url":          {"OPENAI_BASE_URL"},
	"tool.service_url":                       {"MCP_SERVER_URL"},
	"server.port":                            {"PORT"},
	"web_search.providers.firecrawl.api_key": {"FIRECRAWL_API_KEY"},
}

// Load reads configuration from .env files, the environment and an optional
// YAML file. cfgFile may be empty, in which case config.yaml is searched for
// in the usual places and its absence is not an error.
func Load(cfgFile string) (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("SB")
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// ActiveModel returns the name and settings of the selected model provider.
func (c *Config) ActiveModel() (string, ModelConfig, error) {
	name := strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	mc, ok := c.LLM.Providers[name]
	if !ok {
		return name, ModelConfig{}, fmt.Errorf("%w: %q (configured: %s)", ErrUnknownProvider, name, strings.Join(c.ModelNames(), ", "))
	}
	if mc.Type == "" {
		mc.Type = name
	}
	return name, mc, nil
}

// RequireAPIKey fails with ErrMissingAPIKey when the active provider has no key.
func (c *Config) RequireAPIKey() error {
	name, mc, err := c.ActiveModel()
	if err != nil {
		return err
	}
	if strings.TrimSpace(mc.APIKey) == "" {
		return fmt.Errorf("%w for provider %q", ErrMissingAPIKey, name)
	}
	return nil
}

// ModelNames lists configured model providers in sorted order.
func (c *Config) ModelNames() []string {
	names := make([]string, 0, len(c.LLM.Providers))
	for name := range c.LLM.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 60)

	// Model defaults
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.providers.gemini.type", "gemini")
	v.SetDefault("llm.providers.gemini.model", "gemini-1.5-pro")
	v.SetDefault("llm.providers.gemini.api_key", "")
	v.SetDefault("llm.providers.gemini.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("llm.providers.gemini.timeout", 60)
	v.SetDefault("llm.providers.claude.type", "anthropic")
	v.SetDefault("llm.providers.claude.model", "claude-3-5-sonnet-latest")
	v.SetDefault("llm.providers.claude.api_key", "")
	v.SetDefault("llm.providers.claude.base_url", "https://api.anthropic.com")
	v.SetDefault("llm.providers.claude.timeout", 60)
	v.SetDefault("llm.providers.claude.max_tokens", 1024)
	v.SetDefault("llm.providers.openai.type", "openai")
	v.SetDefault("llm.providers.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.providers.openai.api_key", "")
	v.SetDefault("llm.providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.providers.openai.timeout", 60)

	// Tool dispatch defaults
	v.SetDefault("tool.mode", "remote")
	v.SetDefault("tool.service_url", "http://localhost:5001")
	v.SetDefault("tool.service_name", "MCP server")
	v.SetDefault("tool.call_timeout", "10s")
	v.SetDefault("tool.health_timeout", "2s")
	v.SetDefault("tool.max_attempts", 3)
	v.SetDefault("tool.backoff_unit", "1s")
	v.SetDefault("tool.breaker.enabled", true)
	v.SetDefault("tool.breaker.max_failures", 5)
	v.SetDefault("tool.breaker.timeout", "30s")

	// Web Search defaults
	v.SetDefault("web_search.enabled", true)
	v.SetDefault("web_search.default", "duckduckgo")
	v.SetDefault("web_search.providers.duckduckgo.type", "duckduckgo")
	v.SetDefault("web_search.providers.duckduckgo.base_url", "https://api.duckduckgo.com")
	v.SetDefault("web_search.providers.duckduckgo.timeout", 10)
	v.SetDefault("web_search.providers.duckduckgo.rate_limit", 1.0)
	v.SetDefault("web_search.providers.firecrawl.type", "firecrawl")
	v.SetDefault("web_search.providers.firecrawl.api_key", "")
	v.SetDefault("web_search.providers.firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("web_search.providers.firecrawl.timeout", 30)
	v.SetDefault("web_search.providers.firecrawl.max_results", 5)

	v.SetDefault("agent.max_tool_rounds", 3)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}
