package config

import (
	"fmt"
	"os"
	"path/filepath"

	"api-testgen/internal/llm"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a config file
const DefaultPath = "config/config.yaml"

// Config holds the application configuration
type Config struct {
	Environment Environment     `yaml:"environment"`
	Test        TestConfig      `yaml:"test"`
	Reporting   ReportingConfig `yaml:"reporting"`
	Server      ServerConfig    `yaml:"server"`
	Store       StoreConfig     `yaml:"store"`
	LLM         llm.Config      `yaml:"llm"`
	Log         LogConfig       `yaml:"log"`
}

// Environment holds environment-specific configuration
type Environment struct {
	BaseURL string            `yaml:"base_url"`
	Auth    AuthConfig        `yaml:"auth"`
	Headers map[string]string `yaml:"headers"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Type  string `yaml:"type"`
	Token string `yaml:"token"`
}

// TestConfig holds test execution configuration
type TestConfig struct {
	MaxWorkers int         `yaml:"max_workers"`
	Timeout    int         `yaml:"timeout"`
	Retry      RetryConfig `yaml:"retry"`
	// RequestData points to a JSON file of per-endpoint request overrides
	RequestData string `yaml:"request_data"`
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	Attempts int `yaml:"attempts"`
	Delay    int `yaml:"delay"`
}

// ReportingConfig holds reporting configuration
type ReportingConfig struct {
	Format    []string `yaml:"format"`
	OutputDir string   `yaml:"output_dir"`
	Detailed  bool     `yaml:"detailed"`
}

// ServerConfig holds HTTP API configuration
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	SnapshotKey string `yaml:"snapshot_key"`
}

// StoreConfig selects where workflow snapshots are kept
type StoreConfig struct {
	Type     string `yaml:"type"` // file, postgres, mysql, sqlserver, redis
	Dir      string `yaml:"dir"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	Dir    string `yaml:"dir"`
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// fills defaults. An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	var config Config

	if path != "" {
		// Check if config file exists
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s", path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(&config)
	applyDefaults(&config)
	return &config, nil
}

func applyEnv(config *Config) {
	if token := os.Getenv("AUTH_TOKEN"); token != "" {
		config.Environment.Auth.Token = token
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if password := os.Getenv("STORE_PASSWORD"); password != "" && config.Store.Type != "redis" {
		config.Store.Password = password
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" && config.Store.Type == "redis" {
		config.Store.Password = password
	}
}

func applyDefaults(config *Config) {
	if config.Test.MaxWorkers == 0 {
		config.Test.MaxWorkers = 5
	}
	if config.Test.Timeout == 0 {
		config.Test.Timeout = 30
	}
	if config.Test.Retry.Attempts == 0 {
		config.Test.Retry.Attempts = 3
	}
	if config.Test.Retry.Delay == 0 {
		config.Test.Retry.Delay = 1
	}
	if len(config.Reporting.Format) == 0 {
		config.Reporting.Format = []string{"json"}
	}
	if config.Reporting.OutputDir == "" {
		config.Reporting.OutputDir = filepath.Join("reports")
	}
	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.SnapshotKey == "" {
		config.Server.SnapshotKey = "default"
	}
	if config.Store.Type == "" {
		config.Store.Type = "file"
	}
	if config.Store.Dir == "" {
		config.Store.Dir = ".api-testgen"
	}
	if config.Store.Port == 0 {
		config.Store.Port = defaultPort(config.Store.Type)
	}

	defaults := llm.NewDefaultConfig()
	if config.LLM.Provider == "" {
		config.LLM.Provider = defaults.Provider
	}
	if config.LLM.Model == "" {
		config.LLM.Model = defaults.Model
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = defaults.MaxTokens
	}
	if config.LLM.MinConfidence == 0 {
		config.LLM.MinConfidence = defaults.MinConfidence
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "console"
	}
	if config.Log.Output == "" {
		config.Log.Output = "stderr"
	}
	if config.Log.Dir == "" {
		config.Log.Dir = "logs"
	}
}

func defaultPort(storeType string) int {
	switch storeType {
	case "postgres":
		return 5432
	case "mysql":
		return 3306
	case "sqlserver":
		return 1433
	case "redis":
		return 6379
	default:
		return 0
	}
}
