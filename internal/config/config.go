package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Client   ClientConfig `mapstructure:"client"`
	Server   ServerConfig `mapstructure:"server"`
	LLM      LLMConfig    `mapstructure:"llm"`
	LogLevel string       `mapstructure:"log_level"`
}

// ClientConfig holds the sync client configuration
type ClientConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	HistoryTimeout  time.Duration `mapstructure:"history_timeout"`
	StorePath       string        `mapstructure:"store_path"`
	Session         string        `mapstructure:"session"`
	PersistFailures bool          `mapstructure:"persist_failures"`
}

// ServerConfig holds the reference server configuration
type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   string `mapstructure:"port"`
	DBPath string `mapstructure:"db_path"`
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	Provider     string `mapstructure:"provider"`
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// Load loads the configuration from config.yaml (or $CONFIG_PATH), a .env
// file if one exists, and CHATSYNC_* environment variables.
// A missing config file is not an error; defaults apply.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CHATSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.history_timeout", 5*time.Second)
	v.SetDefault("client.store_path", "chatsync.db")
	v.SetDefault("client.session", "default")
	v.SetDefault("client.persist_failures", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.db_path", "chatsync-server.db")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.system_prompt", "")
	v.SetDefault("log_level", "info")
}

// Validate checks that the fields the client depends on are usable.
func (c *Config) Validate() error {
	if c.Client.BaseURL == "" {
		return errors.New("client.base_url cannot be empty")
	}
	if c.Client.HistoryTimeout <= 0 {
		return errors.New("client.history_timeout must be > 0")
	}
	if c.Client.Session == "" {
		return errors.New("client.session cannot be empty")
	}
	return nil
}
