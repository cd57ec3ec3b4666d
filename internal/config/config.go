package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	Search    SearchConfig    `mapstructure:"search" yaml:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch" yaml:"fetch"`
	Retrieval RetrievalConfig `mapstructure:"retrieval" yaml:"retrieval"`
	Simple    ModeConfig      `mapstructure:"simple" yaml:"simple"`
	Agentic   AgenticConfig   `mapstructure:"agentic" yaml:"agentic"`
	Context   ContextConfig   `mapstructure:"context" yaml:"context"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout" yaml:"write_timeout"` // 0 disables, research runs stream for minutes
}

// LLMConfig holds fallback credentials used when a request carries none
type LLMConfig struct {
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url"`
	Model       string  `mapstructure:"model" yaml:"model"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	Timeout     int     `mapstructure:"timeout" yaml:"timeout"`
}

// EmbeddingConfig selects the embedding model and its paired tokenizer
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider" yaml:"provider"` // "openai", "hash"
	Model     string `mapstructure:"model" yaml:"model"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	Encoding  string `mapstructure:"encoding" yaml:"encoding"`   // tiktoken encoding paired with Model
	Dimension int    `mapstructure:"dimension" yaml:"dimension"` // hash provider only
	BatchSize int    `mapstructure:"batch_size" yaml:"batch_size"`
}

// SearchConfig represents web search configuration
type SearchConfig struct {
	Default    string                    `mapstructure:"default" yaml:"default"` // Default provider name
	MaxResults int                       `mapstructure:"max_results" yaml:"max_results"`
	Providers  map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
}

// ProviderConfig represents a generic search provider configuration
type ProviderConfig struct {
	Type       string `mapstructure:"type" yaml:"type"` // "duckduckgo", "firecrawl", "mcp"
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	ToolName   string `mapstructure:"tool_name" yaml:"tool_name"`     // MCP: tool name to call
	QueryParam string `mapstructure:"query_param" yaml:"query_param"` // MCP: query parameter name
	Timeout    int    `mapstructure:"timeout" yaml:"timeout"`
}

type FetchConfig struct {
	Timeout   int    `mapstructure:"timeout" yaml:"timeout"`
	MaxBytes  int64  `mapstructure:"max_bytes" yaml:"max_bytes"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
}

type RetrievalConfig struct {
	Window          int      `mapstructure:"window" yaml:"window"`
	Stride          int      `mapstructure:"stride" yaml:"stride"`
	ExcludePatterns []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns"` // doublestar globs over host/path
}

type ModeConfig struct {
	MaxURLs int `mapstructure:"max_urls" yaml:"max_urls"`
	TopK    int `mapstructure:"top_k" yaml:"top_k"`
}

type AgenticConfig struct {
	ModeConfig          `mapstructure:",squash" yaml:",inline"`
	MaxTurns            int `mapstructure:"max_turns" yaml:"max_turns"`                         // 0 = unlimited
	MaxMalformedRetries int `mapstructure:"max_malformed_retries" yaml:"max_malformed_retries"` // 0 = unlimited
}

type ContextConfig struct {
	Geolocation    bool   `mapstructure:"geolocation" yaml:"geolocation"`
	GeolocationURL string `mapstructure:"geolocation_url" yaml:"geolocation_url"`
	Timeout        int    `mapstructure:"timeout" yaml:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"` // Run log database, empty disables
}

func Load(cfgFile string) (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()
	setDefaults(v)

	// Replace . with _ for nested config keys, e.g. RESEARCHER_LLM_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("RESEARCHER")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is ok, use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 0)

	// Language model defaults
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.temperature", 0.5)
	v.SetDefault("llm.timeout", 300)

	// Embedding defaults
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.encoding", "cl100k_base")
	v.SetDefault("embedding.dimension", 384)
	v.SetDefault("embedding.batch_size", 100)

	// Search defaults
	v.SetDefault("search.default", "duckduckgo")
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.providers.duckduckgo.type", "duckduckgo")
	v.SetDefault("search.providers.duckduckgo.base_url", "https://lite.duckduckgo.com/lite/")
	v.SetDefault("search.providers.duckduckgo.timeout", 15)
	v.SetDefault("search.providers.firecrawl.type", "firecrawl")
	v.SetDefault("search.providers.firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("search.providers.firecrawl.timeout", 30)
	v.SetDefault("search.providers.firecrawl.api_key", "")

	// Fetch defaults
	v.SetDefault("fetch.timeout", 20)
	v.SetDefault("fetch.max_bytes", 5*1024*1024)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	// Retrieval defaults
	v.SetDefault("retrieval.window", 256)
	v.SetDefault("retrieval.stride", 192)
	v.SetDefault("retrieval.exclude_patterns", []string{})

	// Mode defaults
	v.SetDefault("simple.max_urls", 15)
	v.SetDefault("simple.top_k", 5)
	v.SetDefault("agentic.max_urls", 8)
	v.SetDefault("agentic.top_k", 5)
	v.SetDefault("agentic.max_turns", 20)
	v.SetDefault("agentic.max_malformed_retries", 3)

	// Contextual preamble defaults
	v.SetDefault("context.geolocation", true)
	v.SetDefault("context.geolocation_url", "https://ipinfo.io/json")
	v.SetDefault("context.timeout", 5)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Storage defaults
	v.SetDefault("storage.path", "./data/runs.db")
}
