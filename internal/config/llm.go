package config

// DefaultGeminiBaseURL is the Generative Language REST endpoint.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// DefaultOpenAIBaseURL is used when the openai provider has no base_url.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// LLMConfig configures the model client.
type LLMConfig struct {
	Provider string `yaml:"provider" toml:"provider"` // gemini, genai, openai
	APIKey   string `yaml:"api_key" toml:"api_key"`   // Gemini key; usually kept in the key store instead
	Model    string `yaml:"model" toml:"model"`
	BaseURL  string `yaml:"base_url" toml:"base_url"`
	Timeout  string `yaml:"timeout" toml:"timeout"`

	// OpenAI-compatible endpoint, used when Provider is "openai".
	OpenAIKey     string   `yaml:"openai_api_key" toml:"openai_api_key"`
	OpenAIBaseURL string   `yaml:"openai_base_url" toml:"openai_base_url"`
	OpenAIModels  []string `yaml:"openai_models" toml:"openai_models"`
}

// ResolvedOpenAIBaseURL returns the configured OpenAI endpoint or the default.
func (c LLMConfig) ResolvedOpenAIBaseURL() string {
	if c.OpenAIBaseURL != "" {
		return c.OpenAIBaseURL
	}
	return DefaultOpenAIBaseURL
}
