package llm

// Config represents the configuration for LLM integration
type Config struct {
	// Provider specifies which LLM provider to use (e.g., "openai")
	Provider string `yaml:"provider"`

	// APIKey is the API key for the LLM provider
	APIKey string `yaml:"api_key"`

	// Model specifies which model to use (e.g., "gpt-4")
	Model string `yaml:"model"`

	// BaseURL overrides the provider endpoint, for proxies and compatible servers
	BaseURL string `yaml:"base_url"`

	// Temperature controls the randomness of the output (0.0 to 1.0)
	Temperature float64 `yaml:"temperature"`

	// MaxTokens limits the length of the generated response
	MaxTokens int `yaml:"max_tokens"`

	// MinConfidence drops suggestions the model is less sure about
	MinConfidence float64 `yaml:"min_confidence"`
}

// NewDefaultConfig returns a default configuration
func NewDefaultConfig() *Config {
	return &Config{
		Provider:      "openai",
		Model:         "gpt-4",
		Temperature:   0.2,
		MaxTokens:     2000,
		MinConfidence: 0.5,
	}
}
