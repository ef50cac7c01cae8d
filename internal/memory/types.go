package memory

import "time"

// Turn is one user-message/assistant-reply exchange. Immutable once stored.
type Turn struct {
	ID        string    `json:"id"`
	UserText  string    `json:"user_text"`
	BotText   string    `json:"bot_text"`
	CreatedAt time.Time `json:"created_at"`
}

// Mode says whether free text from a user is routed to the chat engine.
type Mode string

const (
	ModeIdle     Mode = "idle"
	ModeChatting Mode = "chatting"
)

// Snapshot is a read-only view of one user's conversation state.
type Snapshot struct {
	Turns   []Turn `json:"turns"`
	Summary string `json:"summary"`
	Mode    Mode   `json:"mode"`
}
