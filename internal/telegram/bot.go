package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/psytechlab/teplo/internal/memory"
	"github.com/psytechlab/teplo/internal/reliability"
)

// Engine is the conversation core the bot dispatches free text into.
type Engine interface {
	HandleTurn(ctx context.Context, userID int64, text string) (string, memory.Mode)
	EnterChat(userID int64)
	ExitChat(userID int64)
	HistorySnapshot(userID int64) memory.Snapshot
}

// Config controls bot construction.
type Config struct {
	PollTimeout int
	AdminIDs    []int64
}

// Bot runs the Telegram long-poll loop and routes messages: menu buttons
// are handled locally, free text goes through the engine. Each update is
// dispatched on its own goroutine so one user's backend call never delays
// another user's message.
type Bot struct {
	client      *Client
	engine      Engine
	pollTimeout int
	admins      map[int64]struct{}
}

func NewBot(client *Client, engine Engine, cfg Config) *Bot {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30
	}
	admins := make(map[int64]struct{}, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		admins[id] = struct{}{}
	}
	return &Bot{
		client:      client,
		engine:      engine,
		pollTimeout: cfg.PollTimeout,
		admins:      admins,
	}
}

// Run polls for updates until the context is canceled. Poll failures back
// off exponentially and reset on the first success.
func (b *Bot) Run(ctx context.Context) {
	var offset int64
	failures := 0

	for {
		if ctx.Err() != nil {
			return
		}

		updates, err := b.client.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay := reliability.Backoff(failures, time.Second, 30*time.Second)
			failures++
			log.Printf("getUpdates failed (retry in %s): %v", delay, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		failures = 0

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			if upd.Message == nil || upd.Message.From == nil {
				continue
			}
			msg := *upd.Message
			go b.handleMessage(ctx, msg)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch text {
	case "/start":
		greeting := textGreeting
		if _, ok := b.admins[userID]; ok {
			greeting += textAdminTag
		}
		b.send(ctx, chatID, greeting, mainKeyboard())
	case buttonChat:
		b.engine.EnterChat(userID)
		b.send(ctx, chatID, textChatStarted, chatKeyboard())
	case buttonExitChat:
		b.engine.ExitChat(userID)
		b.send(ctx, chatID, textChatExited, mainKeyboard())
	case buttonAdvice:
		b.send(ctx, chatID, textAdviceMenu, adviceKeyboard())
	case buttonBreathing:
		b.send(ctx, chatID, textBreathing, adviceKeyboard())
	case buttonGrounding:
		b.send(ctx, chatID, textGrounding, adviceKeyboard())
	case buttonEmergency:
		b.send(ctx, chatID, textEmergency, adviceKeyboard())
	case buttonBack:
		b.send(ctx, chatID, textBackToMenu, mainKeyboard())
	case buttonHelp:
		b.send(ctx, chatID, textHelp, mainKeyboard())
	case buttonHistory:
		b.send(ctx, chatID, formatHistory(b.engine.HistorySnapshot(userID)), mainKeyboard())
	default:
		b.handleFreeText(ctx, userID, chatID, text)
	}
}

func (b *Bot) handleFreeText(ctx context.Context, userID, chatID int64, text string) {
	if err := b.client.SendChatAction(ctx, chatID, "typing"); err != nil {
		log.Printf("chat action failed: %v", err)
	}

	reply, mode := b.engine.HandleTurn(ctx, userID, text)

	keyboard := mainKeyboard()
	if mode == memory.ModeChatting {
		keyboard = chatKeyboard()
	}
	b.send(ctx, chatID, reply, keyboard)
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, keyboard *ReplyKeyboardMarkup) {
	if err := b.client.SendMessage(ctx, chatID, text, keyboard); err != nil {
		log.Printf("sendMessage to %d failed: %v", chatID, err)
	}
}

func formatHistory(snap memory.Snapshot) string {
	parts := []string{textHistoryHeader}
	for _, turn := range snap.Turns {
		parts = append(parts, fmt.Sprintf("➤ Вы: %s\n◉ Бот: %s", turn.UserText, turn.BotText))
	}
	summary := strings.TrimSpace(snap.Summary)
	if summary == "" {
		summary = textHistoryEmpty
	}
	parts = append(parts, "\n"+textHistoryContext+"\n"+summary)
	return strings.Join(parts, "\n\n")
}
