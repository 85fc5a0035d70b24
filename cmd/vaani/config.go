package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bdobrica/vaani/common/environment"
	"github.com/bdobrica/vaani/internal/vaani/store"
)

// Config is the fully resolved application configuration.
type Config struct {
	DatabasePath     string
	UserID           string
	BackendURL       string
	OpenAIKey        string
	OpenAIBaseURL    string
	Model            string
	MaxRecordSeconds int
	LogLevel         string
	LogFormat        string
	Store            store.Config
}

// fileConfig mirrors the optional vaani.yaml file.  Environment variables
// always win over file values.
type fileConfig struct {
	DatabasePath     string `yaml:"database_path"`
	UserID           string `yaml:"user_id"`
	BackendURL       string `yaml:"backend_url"`
	OpenAIBaseURL    string `yaml:"openai_base_url"`
	Model            string `yaml:"model"`
	MaxRecordSeconds int    `yaml:"max_record_seconds"`
	LogLevel         string `yaml:"log_level"`
	LogFormat        string `yaml:"log_format"`
	DefaultLanguage  string `yaml:"default_language"`
	DefaultTone      string `yaml:"default_tone"`
	ContextWindow    int    `yaml:"context_window"`
}

// loadConfig resolves configuration from the optional YAML file (path from
// VAANI_CONFIG, default ./vaani.yaml) overlaid with environment variables.
// API keys are environment-only so they never end up in config files.
func loadConfig() (*Config, error) {
	file, err := loadConfigFile(environment.StringOr("VAANI_CONFIG", "vaani.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabasePath:     environment.StringOr("VAANI_DATABASE_PATH", orDefault(file.DatabasePath, "./vaani.db")),
		UserID:           environment.StringOr("VAANI_USER_ID", file.UserID),
		BackendURL:       environment.StringOr("VAANI_BACKEND_URL", file.BackendURL),
		OpenAIKey:        environment.StringOr("VAANI_OPENAI_API_KEY", os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:    environment.StringOr("VAANI_OPENAI_BASE_URL", file.OpenAIBaseURL),
		Model:            environment.StringOr("VAANI_MODEL", file.Model),
		MaxRecordSeconds: environment.IntOr("VAANI_MAX_RECORD_SECONDS", orDefaultInt(file.MaxRecordSeconds, 20)),
		LogLevel:         environment.StringOr("VAANI_LOG_LEVEL", orDefault(file.LogLevel, "info")),
		LogFormat:        environment.StringOr("VAANI_LOG_FORMAT", orDefault(file.LogFormat, "text")),
		Store: store.Config{
			DefaultLanguage:    environment.StringOr("VAANI_DEFAULT_LANGUAGE", file.DefaultLanguage),
			DefaultTone:        environment.StringOr("VAANI_DEFAULT_TONE", file.DefaultTone),
			ContextWindowLimit: environment.IntOr("VAANI_CONTEXT_WINDOW", file.ContextWindow),
		},
	}
	return cfg, nil
}

// loadConfigFile reads the YAML config when it exists.  A missing file is
// not an error; a malformed one is.
func loadConfigFile(path string) (fileConfig, error) {
	var file fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return file, nil
		}
		return file, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return file, nil
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func orDefaultInt(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}
