package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string
	SummaryModel  string
	ResearchModel string

	SlackToken         string
	SlackChannel       string
	SlackSigningSecret string

	TelegramToken  string
	TelegramChatID int64

	CronSecret  string
	StateFile   string
	SourcesFile string

	EnableResearch bool
	EnableImages   bool

	ArticleDelay time.Duration
	FetchTimeout time.Duration

	ServerPort string
	LogLevel   string
}

// Load reads .env when present, then the process environment. Missing
// required credentials fail here, before any collaborator is constructed.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		SummaryModel:       getEnv("OPENAI_MODEL", "gpt-4o"),
		ResearchModel:      getEnv("RESEARCH_MODEL", "gpt-4o-mini"),
		SlackToken:         os.Getenv("SLACK_BOT_TOKEN"),
		SlackChannel:       os.Getenv("SLACK_CHANNEL_ID"),
		SlackSigningSecret: os.Getenv("SLACK_SIGNING_SECRET"),
		TelegramToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:     getEnvAsInt64("TELEGRAM_CHAT_ID", 0),
		CronSecret:         os.Getenv("CRON_SECRET"),
		StateFile:          getEnv("STATE_FILE", "state.json"),
		SourcesFile:        os.Getenv("SOURCES_FILE"),
		EnableResearch:     getEnvAsBool("ENABLE_RESEARCH", true),
		EnableImages:       getEnvAsBool("ENABLE_IMAGES", false),
		ArticleDelay:       getEnvAsDuration("ARTICLE_DELAY", 5*time.Second),
		FetchTimeout:       getEnvAsDuration("FETCH_TIMEOUT", 30*time.Second),
		ServerPort:         getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for name, value := range map[string]string{
		"OPENAI_API_KEY":   c.OpenAIAPIKey,
		"SLACK_BOT_TOKEN":  c.SlackToken,
		"SLACK_CHANNEL_ID": c.SlackChannel,
	} {
		if value == "" {
			return fmt.Errorf("missing required environment variable %s", name)
		}
	}
	return nil
}

// TelegramEnabled reports whether the optional ops mirror is configured.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
