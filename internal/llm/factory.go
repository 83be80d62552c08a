package llm

import (
	"fmt"
)

// NewClient creates a new LLM client based on the provider
func NewClient(config *Config) (Completer, error) {
	switch config.Provider {
	case "openai", "":
		if config.APIKey == "" {
			return nil, fmt.Errorf("API key is required")
		}
		if config.Model == "" {
			return nil, fmt.Errorf("model is required")
		}
		return NewOpenAIClient(config), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}
}
