package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store keeps per-user conversation state in process memory: a bounded turn
// history, a bounded rolling summary and the interaction mode. Sessions are
// created lazily on first touch and live for the process lifetime.
type Store struct {
	mu           sync.RWMutex
	sessions     map[int64]*userSession
	historyLimit int
	summaryLimit int
}

type userSession struct {
	history []Turn
	summary string
	mode    Mode
}

func NewStore(historyLimit, summaryLimit int) *Store {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	if summaryLimit <= 0 {
		summaryLimit = 2000
	}
	return &Store{
		sessions:     make(map[int64]*userSession),
		historyLimit: historyLimit,
		summaryLimit: summaryLimit,
	}
}

// AppendTurn pushes a completed turn onto the user's history, evicting the
// oldest turns beyond the history limit. The stored turn is returned with
// ID and timestamp filled in.
func (s *Store) AppendTurn(userID int64, turn Turn) Turn {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(userID)
	sess.history = append(sess.history, turn)
	if n := len(sess.history); n > s.historyLimit {
		sess.history = sess.history[n-s.historyLimit:]
	}
	return turn
}

// RecentTurns returns the last n turns in chronological order.
func (s *Store) RecentTurns(userID int64, n int) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok || len(sess.history) == 0 {
		return nil
	}
	if n <= 0 || n > len(sess.history) {
		n = len(sess.history)
	}
	out := make([]Turn, n)
	copy(out, sess.history[len(sess.history)-n:])
	return out
}

// Summary returns the current rolling summary, "" when the user is unknown.
func (s *Store) Summary(userID int64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[userID]; ok {
		return sess.summary
	}
	return ""
}

// AppendToSummary folds a fragment into the rolling summary, keeping only
// the trailing summaryLimit runes. Truncation is a sliding window over the
// string: the oldest content is dropped from the front.
func (s *Store) AppendToSummary(userID int64, fragment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(userID)
	combined := sess.summary + "\n" + fragment
	if runes := []rune(combined); len(runes) > s.summaryLimit {
		combined = string(runes[len(runes)-s.summaryLimit:])
	}
	sess.summary = combined
}

// Mode returns the user's interaction mode, ModeIdle when unknown.
func (s *Store) Mode(userID int64) Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[userID]; ok {
		return sess.mode
	}
	return ModeIdle
}

func (s *Store) SetMode(userID int64, mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session(userID).mode = mode
}

// ChattingCount reports how many users are currently in chat mode.
func (s *Store) ChattingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, sess := range s.sessions {
		if sess.mode == ModeChatting {
			count++
		}
	}
	return count
}

// Snapshot returns the last n turns plus the rolling summary and mode.
func (s *Store) Snapshot(userID int64, n int) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return Snapshot{Mode: ModeIdle}
	}
	turns := sess.history
	if n > 0 && n < len(turns) {
		turns = turns[len(turns)-n:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return Snapshot{Turns: out, Summary: sess.summary, Mode: sess.mode}
}

// session returns the user's session, creating it when absent.
// Callers must hold the write lock.
func (s *Store) session(userID int64) *userSession {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &userSession{mode: ModeIdle}
		s.sessions[userID] = sess
	}
	return sess
}
