package ollama

import (
	"context"
	"fmt"
	"strings"
)

// MockClient provides deterministic local replies when no inference backend
// is reachable. Useful for wiring checks and transport development.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Generate(ctx context.Context, req GenerateRequest) (string, Outcome) {
	select {
	case <-ctx.Done():
		return ReplyBackendError, OutcomeBackendError
	default:
	}

	base := strings.TrimSpace(req.UserText)
	if base == "" {
		return ReplyNoAnswer, OutcomeEmpty
	}
	return fmt.Sprintf("Я услышал вас: %s 🤗", base), OutcomeOK
}

func (c *MockClient) Summarize(_ context.Context, userText, botText string) (string, error) {
	return fmt.Sprintf("пользователь: %s / ассистент: %s", strings.TrimSpace(userText), strings.TrimSpace(botText)), nil
}
