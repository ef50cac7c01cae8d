package archive

import (
	"context"
	"strings"
)

// NewStore creates a postgres-backed archive when configured, otherwise a
// disabled no-op store.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NopStore{}, nil
	}
	return NewPostgresStore(ctx, databaseURL)
}

// NopStore discards every write. Used when no DATABASE_URL is configured.
type NopStore struct{}

func (NopStore) SaveTurn(context.Context, TurnRecord) error { return nil }

func (NopStore) RecentTurns(context.Context, int64, int) ([]TurnRecord, error) {
	return nil, nil
}

func (NopStore) Enabled() bool { return false }

func (NopStore) Close() error { return nil }
