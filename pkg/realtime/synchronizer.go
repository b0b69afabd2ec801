package realtime

import (
	"context"
	"log/slog"
)

// CountSource returns the server-held unread count.
type CountSource interface {
	UnreadCount(ctx context.Context) (int, error)
}

// Synchronizer reconciles the store's unread counter with the server.
type Synchronizer struct {
	source CountSource
	store  *Store
	logger *slog.Logger
}

func NewSynchronizer(source CountSource, store *Store, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{source: source, store: store, logger: logger}
}

// Refresh issues one count request. On failure the current count is kept and
// nothing is retried here; the supervisor's next Open triggers another
// refresh.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	count, err := s.Fetch(ctx)
	if err != nil {
		return err
	}
	s.store.SetUnreadCount(count)
	return nil
}

// Fetch asks the server for the count without touching the store, for
// callers that decide afterwards whether the answer still applies.
func (s *Synchronizer) Fetch(ctx context.Context) (int, error) {
	count, err := s.source.UnreadCount(ctx)
	if err != nil {
		s.logger.Warn("Failed to refresh unread count", "error", err)
		return 0, err
	}
	return count, nil
}
