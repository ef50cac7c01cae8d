package engine

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/psytechlab/teplo/internal/archive"
	"github.com/psytechlab/teplo/internal/memory"
	"github.com/psytechlab/teplo/internal/observability"
	"github.com/psytechlab/teplo/internal/ollama"
)

// Fixed replies produced by the engine itself, outside the model client.
const (
	ReplyTimedOut  = "⏳ Время ответа истекло"
	ReplyUseMenu   = "Пожалуйста, выберите действие с клавиатуры."
	ReplyChatEnded = "🚪 Вы завершили режим общения. Возвращаю главное меню."
)

const (
	// naiveSummaryRunes bounds each side of the fallback summary fragment.
	naiveSummaryRunes = 50
	// archiveSaveTimeout bounds the best-effort transcript write.
	archiveSaveTimeout = 2 * time.Second
)

// ModelClient is the inference backend surface the engine depends on.
type ModelClient interface {
	Generate(ctx context.Context, req ollama.GenerateRequest) (string, ollama.Outcome)
	Summarize(ctx context.Context, userText, botText string) (string, error)
}

// Config controls engine construction.
type Config struct {
	TurnDeadline time.Duration
	PromptTurns  int
	ExitKeywords []string
}

// Engine orchestrates one chat turn: read context, generate under the turn
// deadline, fold the exchange into the rolling summary, mutate the store.
// Turns are serialized per user; users never block each other.
type Engine struct {
	store   *memory.Store
	model   ModelClient
	archive archive.Store
	metrics *observability.Metrics

	turnDeadline time.Duration
	promptTurns  int
	exitKeywords map[string]struct{}

	mu    sync.Mutex
	users map[int64]*sync.Mutex
}

func New(store *memory.Store, model ModelClient, arch archive.Store, metrics *observability.Metrics, cfg Config) *Engine {
	if cfg.TurnDeadline <= 0 {
		cfg.TurnDeadline = 40 * time.Second
	}
	if cfg.PromptTurns <= 0 {
		cfg.PromptTurns = 3
	}
	if arch == nil {
		arch = archive.NopStore{}
	}
	keywords := make(map[string]struct{}, len(cfg.ExitKeywords))
	for _, kw := range cfg.ExitKeywords {
		keywords[strings.ToLower(strings.TrimSpace(kw))] = struct{}{}
	}
	return &Engine{
		store:        store,
		model:        model,
		archive:      arch,
		metrics:      metrics,
		turnDeadline: cfg.TurnDeadline,
		promptTurns:  cfg.PromptTurns,
		exitKeywords: keywords,
		users:        make(map[int64]*sync.Mutex),
	}
}

// HandleTurn processes one free-text message from a user and returns the
// reply plus the user's mode after the turn. It never returns an error: all
// backend failures degrade to sentinel replies.
func (e *Engine) HandleTurn(ctx context.Context, userID int64, text string) (string, memory.Mode) {
	mu := e.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	trimmed := strings.TrimSpace(text)

	// Exit keywords end chat mode before any model call.
	if _, ok := e.exitKeywords[strings.ToLower(trimmed)]; ok {
		e.store.SetMode(userID, memory.ModeIdle)
		e.metrics.ActiveChats.Set(float64(e.store.ChattingCount()))
		return ReplyChatEnded, memory.ModeIdle
	}

	if e.store.Mode(userID) != memory.ModeChatting {
		return ReplyUseMenu, memory.ModeIdle
	}

	summary := e.store.Summary(userID)
	recent := e.store.RecentTurns(userID, e.promptTurns)

	history := make([]ollama.Exchange, 0, len(recent))
	for _, t := range recent {
		history = append(history, ollama.Exchange{UserText: t.UserText, BotText: t.BotText})
	}

	genCtx, cancel := context.WithTimeout(ctx, e.turnDeadline)
	defer cancel()

	started := time.Now()
	reply, outcome := e.model.Generate(genCtx, ollama.GenerateRequest{
		Summary:  summary,
		History:  history,
		UserText: trimmed,
	})
	e.metrics.ObserveGenerateLatency(time.Since(started))

	// On deadline expiry the turn is abandoned: sentinel reply, no store
	// mutation, no summarization. Cancellation propagates into the
	// outbound request, so the backend call does not stay in flight.
	if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
		e.metrics.Turns.WithLabelValues("timeout").Inc()
		return ReplyTimedOut, memory.ModeChatting
	}

	e.metrics.Turns.WithLabelValues(string(outcome)).Inc()
	if outcome == ollama.OutcomeBackendError {
		e.metrics.BackendErrors.WithLabelValues("generate").Inc()
	}

	fragment, err := e.model.Summarize(ctx, trimmed, reply)
	if err != nil || fragment == "" {
		if err != nil {
			log.Printf("summarize failed for user %d: %v", userID, err)
			e.metrics.BackendErrors.WithLabelValues("summarize").Inc()
		}
		fragment = naiveSummary(trimmed, reply)
		e.metrics.SummaryFallbacks.Inc()
	}

	turn := e.store.AppendTurn(userID, memory.Turn{UserText: trimmed, BotText: reply})
	e.store.AppendToSummary(userID, fragment)

	e.archiveTurn(turn, userID, fragment)

	return reply, memory.ModeChatting
}

// EnterChat switches the user into chat mode.
func (e *Engine) EnterChat(userID int64) {
	e.store.SetMode(userID, memory.ModeChatting)
	e.metrics.ActiveChats.Set(float64(e.store.ChattingCount()))
}

// ExitChat switches the user back to the idle/menu mode.
func (e *Engine) ExitChat(userID int64) {
	e.store.SetMode(userID, memory.ModeIdle)
	e.metrics.ActiveChats.Set(float64(e.store.ChattingCount()))
}

// HistorySnapshot returns the last three turns plus the rolling summary.
func (e *Engine) HistorySnapshot(userID int64) memory.Snapshot {
	return e.store.Snapshot(userID, 3)
}

// ArchivedTurns reads recent turns from the transcript archive.
func (e *Engine) ArchivedTurns(ctx context.Context, userID int64, limit int) ([]archive.TurnRecord, error) {
	return e.archive.RecentTurns(ctx, userID, limit)
}

// ArchiveEnabled reports whether a durable transcript archive is configured.
func (e *Engine) ArchiveEnabled() bool {
	return e.archive.Enabled()
}

func (e *Engine) archiveTurn(turn memory.Turn, userID int64, fragment string) {
	if !e.archive.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveSaveTimeout)
	defer cancel()
	err := e.archive.SaveTurn(ctx, archive.TurnRecord{
		ID:        turn.ID,
		UserID:    userID,
		UserText:  turn.UserText,
		BotText:   turn.BotText,
		Summary:   fragment,
		CreatedAt: turn.CreatedAt,
	})
	if err != nil {
		log.Printf("archive write failed for user %d: %v", userID, err)
	}
}

func (e *Engine) userLock(userID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	mu, ok := e.users[userID]
	if !ok {
		mu = &sync.Mutex{}
		e.users[userID] = mu
	}
	return mu
}

// naiveSummary is the degraded summary fragment used when summarization
// fails: the head of each side of the exchange joined by an arrow, so
// long-range context is never entirely lost.
func naiveSummary(userText, botText string) string {
	return head(userText, naiveSummaryRunes) + "... → " + head(botText, naiveSummaryRunes) + "..."
}

func head(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
