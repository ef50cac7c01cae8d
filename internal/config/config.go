package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the support chat service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	TelegramToken   string
	TelegramAPIBase string
	PollTimeout     int
	AdminIDs        []int64

	OllamaMode       string
	OllamaURL        string
	Model            string
	GenerateTimeout  time.Duration
	TurnDeadline     time.Duration
	SummarizeTimeout time.Duration

	Temperature   float64
	TopP          float64
	MaxTokens     int
	RepeatPenalty float64

	SummaryTemperature float64
	SummaryMaxTokens   int

	HistoryLimit int
	SummaryLimit int
	PromptTurns  int
	ExitKeywords []string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "teplo"),
		AllowAnyOrigin:   false,
		TelegramToken:    envTrimmed("TELEGRAM_BOT_TOKEN"),
		TelegramAPIBase:  envOrDefault("TELEGRAM_API_BASE", "https://api.telegram.org"),
		PollTimeout:      30,
		OllamaMode:       envOrDefault("OLLAMA_MODE", "http"),
		OllamaURL:        envOrDefault("OLLAMA_API_URL", "http://localhost:11434/api/chat"),
		Model:            envOrDefault("OLLAMA_MODEL", "llama3"),
		// The engine-side turn deadline is intentionally shorter than the
		// HTTP client timeout; the deadline is the one that governs a turn.
		GenerateTimeout:    45 * time.Second,
		TurnDeadline:       40 * time.Second,
		SummarizeTimeout:   10 * time.Second,
		Temperature:        0.65,
		TopP:               0.7,
		MaxTokens:          900,
		RepeatPenalty:      1.2,
		SummaryTemperature: 0.1,
		SummaryMaxTokens:   250,
		HistoryLimit:       10,
		SummaryLimit:       2000,
		PromptTurns:        3,
		ExitKeywords:       []string{"стоп", "/стоп", "выйти", "stop", "exit"},
		DatabaseURL:        envTrimmed("DATABASE_URL"),
		ShutdownTimeout:    15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerateTimeout, err = durationFromEnv("OLLAMA_GENERATE_TIMEOUT", cfg.GenerateTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TurnDeadline, err = durationFromEnv("CHAT_TURN_DEADLINE", cfg.TurnDeadline)
	if err != nil {
		return Config{}, err
	}
	cfg.SummarizeTimeout, err = durationFromEnv("OLLAMA_SUMMARIZE_TIMEOUT", cfg.SummarizeTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.Temperature, err = floatFromEnv("OLLAMA_TEMPERATURE", cfg.Temperature)
	if err != nil {
		return Config{}, err
	}
	cfg.TopP, err = floatFromEnv("OLLAMA_TOP_P", cfg.TopP)
	if err != nil {
		return Config{}, err
	}
	cfg.RepeatPenalty, err = floatFromEnv("OLLAMA_REPEAT_PENALTY", cfg.RepeatPenalty)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxTokens, err = intFromEnv("OLLAMA_MAX_TOKENS", cfg.MaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.SummaryMaxTokens, err = intFromEnv("OLLAMA_SUMMARY_MAX_TOKENS", cfg.SummaryMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryLimit, err = intFromEnv("CHAT_HISTORY_LIMIT", cfg.HistoryLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.SummaryLimit, err = intFromEnv("CHAT_SUMMARY_LIMIT", cfg.SummaryLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.PromptTurns, err = intFromEnv("CHAT_PROMPT_TURNS", cfg.PromptTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.PollTimeout, err = intFromEnv("TELEGRAM_POLL_TIMEOUT", cfg.PollTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.AdminIDs, err = idListFromEnv("ADMIN_IDS")
	if err != nil {
		return Config{}, err
	}
	if kw := stringListFromEnv("CHAT_EXIT_KEYWORDS"); len(kw) > 0 {
		cfg.ExitKeywords = kw
	}

	if cfg.TurnDeadline <= 0 {
		return Config{}, fmt.Errorf("CHAT_TURN_DEADLINE must be positive")
	}
	if cfg.GenerateTimeout <= 0 {
		return Config{}, fmt.Errorf("OLLAMA_GENERATE_TIMEOUT must be positive")
	}
	if cfg.SummarizeTimeout <= 0 {
		return Config{}, fmt.Errorf("OLLAMA_SUMMARIZE_TIMEOUT must be positive")
	}
	if cfg.HistoryLimit <= 0 {
		return Config{}, fmt.Errorf("CHAT_HISTORY_LIMIT must be positive")
	}
	if cfg.SummaryLimit <= 0 {
		return Config{}, fmt.Errorf("CHAT_SUMMARY_LIMIT must be positive")
	}
	if cfg.PromptTurns <= 0 {
		return Config{}, fmt.Errorf("CHAT_PROMPT_TURNS must be positive")
	}
	if cfg.PollTimeout <= 0 {
		return Config{}, fmt.Errorf("TELEGRAM_POLL_TIMEOUT must be positive")
	}
	if strings.TrimSpace(cfg.OllamaURL) == "" {
		return Config{}, fmt.Errorf("OLLAMA_API_URL must not be empty")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.OllamaMode)) {
	case "http", "mock":
		cfg.OllamaMode = strings.ToLower(strings.TrimSpace(cfg.OllamaMode))
	default:
		return Config{}, fmt.Errorf("OLLAMA_MODE must be http or mock, got %q", cfg.OllamaMode)
	}

	return cfg, nil
}

// IsAdmin reports whether the user is in the admin allow-list.
func (c Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}

func idListFromEnv(key string) ([]int64, error) {
	v := envTrimmed(key)
	if v == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s parse error: %w", key, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func stringListFromEnv(key string) []string {
	v := envTrimmed(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
