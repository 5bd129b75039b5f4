// Package config handles loading, validation, and first-run creation of the
// Codewright configuration file (~/.codewright/config.json).
package config

// Dialect names the wire protocol a provider speaks. The core supports
// exactly two: OpenAI-compatible chat completions and the Anthropic messages
// API. Vendors like DeepSeek, Moonshot, and Ollama all speak the OpenAI
// dialect behind their own base URLs.
const (
	DialectOpenAI    = "openai"
	DialectAnthropic = "anthropic"
)

// Config is the full on-disk configuration.
type Config struct {
	DefaultProvider string              `json:"default_provider"`
	Providers       map[string]Provider `json:"providers"`
	Settings        Settings            `json:"settings"`
}

// Provider holds the connection parameters for one vendor endpoint.
// APIKey may be set inline; when empty, the key is read from the KeyEnv
// environment variable by the caller that builds the provider client. Local
// providers (Ollama) need neither.
type Provider struct {
	Dialect string `json:"dialect"`
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key,omitempty"`
	KeyEnv  string `json:"key_env,omitempty"`
	Model   string `json:"model"`
}

// Settings holds global knobs that apply to every provider.
type Settings struct {
	AutoApproveSafeTools bool    `json:"auto_approve_safe_tools"`
	MaxTokens            int     `json:"max_tokens"`
	Temperature          float64 `json:"temperature"`
}

// Default returns the configuration written on first run: the common hosted
// vendors plus a local Ollama endpoint, safe tools auto-approved.
func Default() *Config {
	return &Config{
		DefaultProvider: "openai",
		Providers: map[string]Provider{
			"openai": {
				Dialect: DialectOpenAI,
				BaseURL: "https://api.openai.com/v1",
				KeyEnv:  "OPENAI_API_KEY",
				Model:   "gpt-4o",
			},
			"anthropic": {
				Dialect: DialectAnthropic,
				BaseURL: "https://api.anthropic.com",
				KeyEnv:  "ANTHROPIC_API_KEY",
				Model:   "claude-3-5-sonnet-latest",
			},
			"deepseek": {
				Dialect: DialectOpenAI,
				BaseURL: "https://api.deepseek.com/v1",
				KeyEnv:  "DEEPSEEK_API_KEY",
				Model:   "deepseek-chat",
			},
			"kimi": {
				Dialect: DialectOpenAI,
				BaseURL: "https://api.moonshot.cn/v1",
				KeyEnv:  "MOONSHOT_API_KEY",
				Model:   "kimi-k2-0711-preview",
			},
			"ollama": {
				Dialect: DialectOpenAI,
				BaseURL: "http://localhost:11434/v1",
				Model:   "qwen3:8b",
			},
		},
		Settings: Settings{
			AutoApproveSafeTools: true,
			MaxTokens:            4096,
			Temperature:          0.7,
		},
	}
}
