package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.OllamaURL != "http://localhost:11434/api/chat" {
		t.Fatalf("OllamaURL = %q, want default endpoint", cfg.OllamaURL)
	}
	if cfg.Model != "llama3" {
		t.Fatalf("Model = %q, want %q", cfg.Model, "llama3")
	}
	if cfg.OllamaMode != "http" {
		t.Fatalf("OllamaMode = %q, want %q", cfg.OllamaMode, "http")
	}
	if cfg.TurnDeadline != 40*time.Second {
		t.Fatalf("TurnDeadline = %v, want 40s", cfg.TurnDeadline)
	}
	if cfg.GenerateTimeout != 45*time.Second {
		t.Fatalf("GenerateTimeout = %v, want 45s", cfg.GenerateTimeout)
	}
	if cfg.SummarizeTimeout != 10*time.Second {
		t.Fatalf("SummarizeTimeout = %v, want 10s", cfg.SummarizeTimeout)
	}
	if cfg.HistoryLimit != 10 || cfg.SummaryLimit != 2000 || cfg.PromptTurns != 3 {
		t.Fatalf("limits = %d/%d/%d, want 10/2000/3", cfg.HistoryLimit, cfg.SummaryLimit, cfg.PromptTurns)
	}
	if cfg.Temperature != 0.65 || cfg.TopP != 0.7 || cfg.MaxTokens != 900 || cfg.RepeatPenalty != 1.2 {
		t.Fatalf("sampling options = %+v, want 0.65/0.7/900/1.2", cfg)
	}
	if len(cfg.ExitKeywords) != 5 {
		t.Fatalf("ExitKeywords = %v, want 5 defaults", cfg.ExitKeywords)
	}
}

func TestLoadParsesAdminIDs(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("ADMIN_IDS", "42, 777,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.AdminIDs) != 2 || cfg.AdminIDs[0] != 42 || cfg.AdminIDs[1] != 777 {
		t.Fatalf("AdminIDs = %v, want [42 777]", cfg.AdminIDs)
	}
	if !cfg.IsAdmin(42) || cfg.IsAdmin(1) {
		t.Fatalf("IsAdmin misclassified")
	}
}

func TestLoadRejectsBadAdminIDs(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("ADMIN_IDS", "42,abc")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for malformed ADMIN_IDS")
	}
}

func TestLoadOverridesExitKeywords(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("CHAT_EXIT_KEYWORDS", "quit, done")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.ExitKeywords) != 2 || cfg.ExitKeywords[0] != "quit" || cfg.ExitKeywords[1] != "done" {
		t.Fatalf("ExitKeywords = %v, want [quit done]", cfg.ExitKeywords)
	}
}

func TestLoadRejectsNonPositiveDeadline(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("CHAT_TURN_DEADLINE", "-1s")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for negative CHAT_TURN_DEADLINE")
	}
}

func TestLoadRejectsUnknownOllamaMode(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("OLLAMA_MODE", "grpc")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for unsupported OLLAMA_MODE")
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("OLLAMA_SUMMARIZE_TIMEOUT", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for malformed OLLAMA_SUMMARIZE_TIMEOUT")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"TELEGRAM_BOT_TOKEN",
		"TELEGRAM_API_BASE",
		"TELEGRAM_POLL_TIMEOUT",
		"ADMIN_IDS",
		"OLLAMA_MODE",
		"OLLAMA_API_URL",
		"OLLAMA_MODEL",
		"OLLAMA_GENERATE_TIMEOUT",
		"OLLAMA_SUMMARIZE_TIMEOUT",
		"OLLAMA_TEMPERATURE",
		"OLLAMA_TOP_P",
		"OLLAMA_MAX_TOKENS",
		"OLLAMA_REPEAT_PENALTY",
		"OLLAMA_SUMMARY_MAX_TOKENS",
		"CHAT_TURN_DEADLINE",
		"CHAT_HISTORY_LIMIT",
		"CHAT_SUMMARY_LIMIT",
		"CHAT_PROMPT_TURNS",
		"CHAT_EXIT_KEYWORDS",
		"DATABASE_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
