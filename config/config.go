package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config represents the medgpt configuration
type Config struct {
	ServerURL      string `json:"server_url"`      // Base URL of the medical-assistant server
	Model          string `json:"model"`           // Default model: "gemini" or "rag"
	RequestTimeout int64  `json:"request_timeout"` // Request timeout in seconds
	Email          string `json:"email"`           // Account email for login
	LogFile        string `json:"log_file"`        // Log file path (defaults to ~/.medgpt/medgpt.log)
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:      "http://localhost:5000",
		Model:          "gemini",
		RequestTimeout: 60,
	}
}

// LoadConfig loads configuration from global and local sources, then
// applies environment overrides (a .env file is honored when present).
func LoadConfig(workDir string) (*Config, error) {
	cfg := DefaultConfig()

	globalCfg, err := loadGlobalConfig()
	if err == nil {
		mergeCfg(cfg, globalCfg)
	}

	// Local config takes precedence
	localCfg, err := loadLocalConfig(workDir)
	if err == nil {
		mergeCfg(cfg, localCfg)
	}

	godotenv.Load(filepath.Join(workDir, ".env"))
	applyEnv(cfg)

	return cfg, nil
}

// Get retrieves a configuration value by key
func (c *Config) Get(key string) (interface{}, error) {
	switch key {
	case "server_url":
		return c.ServerURL, nil
	case "model":
		return c.Model, nil
	case "request_timeout":
		return c.RequestTimeout, nil
	case "email":
		return c.Email, nil
	case "log_file":
		return c.LogFile, nil
	default:
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
}

// Set updates a configuration value by key
func (c *Config) Set(key string, value interface{}) error {
	// CLI input is always string
	str, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string value for %s", key)
	}

	switch key {
	case "server_url":
		c.ServerURL = str
		return nil
	case "model":
		if str != "gemini" && str != "rag" {
			return fmt.Errorf("expected 'gemini' or 'rag' for model, got: %s", str)
		}
		c.Model = str
		return nil
	case "request_timeout":
		val, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return fmt.Errorf("expected numeric value for request_timeout, got: %s", str)
		}
		c.RequestTimeout = val
		return nil
	case "email":
		c.Email = str
		return nil
	case "log_file":
		c.LogFile = str
		return nil
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
}

// loadGlobalConfig loads configuration from ~/.medgpt/config.json
func loadGlobalConfig() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(homeDir, ".medgpt", "config.json")
	return loadConfigFromFile(configPath)
}

// loadLocalConfig loads configuration from <workDir>/.medgpt/config.json
func loadLocalConfig(workDir string) (*Config, error) {
	configPath := filepath.Join(workDir, ".medgpt", "config.json")
	return loadConfigFromFile(configPath)
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	err = json.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SaveGlobalConfig saves configuration to ~/.medgpt/config.json
func SaveGlobalConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(homeDir, ".medgpt")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(configDir, "config.json"), data, 0644)
}

// applyEnv overrides config fields from the environment
func applyEnv(cfg *Config) {
	if v := os.Getenv("MEDGPT_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("MEDGPT_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("MEDGPT_EMAIL"); v != "" {
		cfg.Email = v
	}
}

// mergeCfg merges source config into destination config
func mergeCfg(dst, src *Config) {
	if src.ServerURL != "" {
		dst.ServerURL = src.ServerURL
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.RequestTimeout != 0 {
		dst.RequestTimeout = src.RequestTimeout
	}
	if src.Email != "" {
		dst.Email = src.Email
	}
	if src.LogFile != "" {
		dst.LogFile = src.LogFile
	}
}
