package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`

	TelegramBotToken string `yaml:"telegramBotToken"`
	WebhookURL       string `yaml:"webhookURL"`

	LLMEngine    string `yaml:"llmEngine"`
	GeminiAPIKey string `yaml:"geminiAPIKey"`
	GeminiModel  string `yaml:"geminiModel"`
	OpenAIAPIKey string `yaml:"openAIAPIKey"`
	OpenAIModel  string `yaml:"openAIModel"`

	// OpenAIBaseURL points the gpt engine at an OpenAI-compatible endpoint.
	OpenAIBaseURL string `yaml:"openAIBaseURL"`

	WorkflowDomain string `yaml:"workflowDomain"`
	LogLevel       string `yaml:"logLevel"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes"`
}

func defaults() *Config {
	return &Config{
		Port:           "8080",
		LLMEngine:      "gemini",
		GeminiModel:    "gemini-2.5-flash",
		OpenAIModel:    "gpt-4o-mini",
		LogLevel:       "info",
		MaxUploadBytes: 10 << 20,
	}
}

// Load builds the config: defaults, then the YAML file named by CONFIG_FILE
// (if set), then environment variables.
func Load() (*Config, error) {
	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", c.TelegramBotToken)
	c.WebhookURL = getEnv("WEBHOOK_URL", c.WebhookURL)
	c.LLMEngine = strings.ToLower(getEnv("LLM_ENGINE", c.LLMEngine))
	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiModel = getEnv("GEMINI_MODEL", c.GeminiModel)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIModel = getEnv("OPENAI_MODEL", c.OpenAIModel)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.WorkflowDomain = getEnv("WORKFLOW_DOMAIN", c.WorkflowDomain)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	if v := getEnv("MAX_UPLOAD_BYTES", ""); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("MAX_UPLOAD_BYTES must be a positive integer, got %q", v)
		}
		c.MaxUploadBytes = n
	}
	return nil
}

// Validate checks that the default engine can actually be used.
func (c *Config) Validate() error {
	switch c.LLMEngine {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when LLM_ENGINE=gemini")
		}
	case "gpt", "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_ENGINE=%s", c.LLMEngine)
		}
	default:
		return fmt.Errorf("unknown LLM_ENGINE %q; use gemini | gpt", c.LLMEngine)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("maxUploadBytes must be > 0")
	}
	return nil
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
