package archive

import (
	"context"
	"time"
)

// TurnRecord is one completed exchange written to the transcript archive.
type TurnRecord struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	UserText  string    `json:"user_text"`
	BotText   string    `json:"bot_text"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// Store writes completed turns to durable storage. The live conversation
// state never depends on it; a failed write only costs the transcript row.
type Store interface {
	SaveTurn(ctx context.Context, record TurnRecord) error
	RecentTurns(ctx context.Context, userID int64, limit int) ([]TurnRecord, error)
	Enabled() bool
	Close() error
}
