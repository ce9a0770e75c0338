package ports

import (
	"context"

	"github.com/ghalamif/uabridge/internal/domain"
)

// Source reads live and archived values from the data source.
type Source interface {
	// ReadValues reads all nodes in one round trip. A bad status on one node is
	// reported in its TagValue and never fails the batch.
	ReadValues(ctx context.Context, nodeIDs []string) ([]domain.TagValue, error)
	// ReadHistory returns the whole window in timestamp order or an error; it
	// never returns a partial window.
	ReadHistory(ctx context.Context, req domain.HistoryRequest) ([]domain.HistoryPoint, error)
}

// SessionProvider owns the connection that Source implementations read through.
type SessionProvider interface {
	// Run establishes the session and keeps it healthy until ctx is done.
	Run(ctx context.Context) error
	Connected() bool
}
