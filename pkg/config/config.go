package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Social    SocialConfig    `mapstructure:"social"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type AssistantConfig struct {
	DefaultProvider string  `mapstructure:"default_provider"`
	ContextWindow   int     `mapstructure:"context_window"`
	ContextTokens   int     `mapstructure:"context_tokens"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
	PostLimit       int     `mapstructure:"post_limit"`
}

type SocialConfig struct {
	InstagramBaseURL string `mapstructure:"instagram_base_url"`
	FacebookBaseURL  string `mapstructure:"facebook_base_url"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("assistant.default_provider", "openai")
	v.SetDefault("assistant.context_window", 25)
	v.SetDefault("assistant.context_tokens", 6000)
	v.SetDefault("assistant.max_tokens", 1500)
	v.SetDefault("assistant.temperature", 0.7)
	v.SetDefault("assistant.post_limit", 5)
	v.SetDefault("social.instagram_base_url", "https://graph.instagram.com/v21.0")
	v.SetDefault("social.facebook_base_url", "https://graph.facebook.com/v21.0")
	v.SetDefault("social.timeout_seconds", 10)

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	if apiKey := v.GetString("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}

	return &config, nil
}
