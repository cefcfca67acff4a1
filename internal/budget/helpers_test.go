package budget_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"budget-tracker/internal/budget"
	"budget-tracker/internal/events"
	"budget-tracker/internal/storage"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err, "failed to create test database")
	t.Cleanup(func() { db.Close() })
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

func newService(t *testing.T, opts budget.Options) (*budget.Service, *storage.DB, *recordingPublisher) {
	t.Helper()
	db := newDB(t)
	pub := &recordingPublisher{}
	return budget.NewService(db, pub, discardLogger(), opts), db, pub
}
