package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("SLACK_CHANNEL_ID", "C123")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SummaryModel != "gpt-4o" {
		t.Errorf("SummaryModel = %q, want gpt-4o", cfg.SummaryModel)
	}
	if cfg.ResearchModel != "gpt-4o-mini" {
		t.Errorf("ResearchModel = %q, want gpt-4o-mini", cfg.ResearchModel)
	}
	if cfg.StateFile != "state.json" {
		t.Errorf("StateFile = %q, want state.json", cfg.StateFile)
	}
	if !cfg.EnableResearch {
		t.Error("EnableResearch should default to true")
	}
	if cfg.EnableImages {
		t.Error("EnableImages should default to false")
	}
	if cfg.ArticleDelay != 5*time.Second {
		t.Errorf("ArticleDelay = %v, want 5s", cfg.ArticleDelay)
	}
	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("FetchTimeout = %v, want 30s", cfg.FetchTimeout)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.TelegramEnabled() {
		t.Error("TelegramEnabled should be false without token and chat id")
	}
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("SLACK_BOT_TOKEN", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing SLACK_BOT_TOKEN")
	}
	if !strings.Contains(err.Error(), "SLACK_BOT_TOKEN") {
		t.Errorf("error %q should name the missing variable", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("OPENAI_MODEL", "gpt-4.1")
	t.Setenv("ENABLE_RESEARCH", "false")
	t.Setenv("ENABLE_IMAGES", "true")
	t.Setenv("ARTICLE_DELAY", "100ms")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200300")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SummaryModel != "gpt-4.1" {
		t.Errorf("SummaryModel = %q", cfg.SummaryModel)
	}
	if cfg.EnableResearch {
		t.Error("EnableResearch should be off")
	}
	if !cfg.EnableImages {
		t.Error("EnableImages should be on")
	}
	if cfg.ArticleDelay != 100*time.Millisecond {
		t.Errorf("ArticleDelay = %v", cfg.ArticleDelay)
	}
	if cfg.TelegramChatID != -100200300 {
		t.Errorf("TelegramChatID = %d", cfg.TelegramChatID)
	}
	if !cfg.TelegramEnabled() {
		t.Error("TelegramEnabled should be true")
	}
}

func TestLoadBadDurationFallsBack(t *testing.T) {
	setRequired(t)
	t.Setenv("FETCH_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("FetchTimeout = %v, want default 30s", cfg.FetchTimeout)
	}
}
