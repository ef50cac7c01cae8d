package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/psytechlab/teplo/internal/archive"
	"github.com/psytechlab/teplo/internal/config"
	"github.com/psytechlab/teplo/internal/engine"
	"github.com/psytechlab/teplo/internal/httpapi"
	"github.com/psytechlab/teplo/internal/memory"
	"github.com/psytechlab/teplo/internal/observability"
	"github.com/psytechlab/teplo/internal/ollama"
	"github.com/psytechlab/teplo/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	transcripts, err := archive.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("archive init failed: %v", err)
	}
	defer transcripts.Close()
	if transcripts.Enabled() {
		log.Printf("transcript archive: postgres")
	}

	store := memory.NewStore(cfg.HistoryLimit, cfg.SummaryLimit)

	var model engine.ModelClient
	switch cfg.OllamaMode {
	case "mock":
		model = ollama.NewMockClient()
		log.Printf("model client: mock")
	default:
		model = ollama.NewClient(ollama.Config{
			URL:              cfg.OllamaURL,
			Model:            cfg.Model,
			GenerateTimeout:  cfg.GenerateTimeout,
			SummarizeTimeout: cfg.SummarizeTimeout,
			Generate: ollama.Options{
				Temperature:   cfg.Temperature,
				TopP:          cfg.TopP,
				MaxTokens:     cfg.MaxTokens,
				RepeatPenalty: cfg.RepeatPenalty,
			},
			Summarize: ollama.Options{
				Temperature: cfg.SummaryTemperature,
				MaxTokens:   cfg.SummaryMaxTokens,
			},
		})
	}

	core := engine.New(store, model, transcripts, metrics, engine.Config{
		TurnDeadline: cfg.TurnDeadline,
		PromptTurns:  cfg.PromptTurns,
		ExitKeywords: cfg.ExitKeywords,
	})

	api := httpapi.New(cfg, core, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	if cfg.TelegramToken != "" {
		// The poll client timeout must outlive the long poll itself.
		pollClientTimeout := time.Duration(cfg.PollTimeout+15) * time.Second
		client := telegram.NewClient(cfg.TelegramAPIBase, cfg.TelegramToken, pollClientTimeout)
		bot := telegram.NewBot(client, core, telegram.Config{
			PollTimeout: cfg.PollTimeout,
			AdminIDs:    cfg.AdminIDs,
		})
		go bot.Run(runCtx)
		log.Printf("telegram polling started")
	} else {
		log.Printf("TELEGRAM_BOT_TOKEN not set, running http-only")
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
