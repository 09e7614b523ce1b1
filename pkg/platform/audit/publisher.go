package audit

import (
	"context"
	"time"
)

// Store is the persistence boundary of the audit trail.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByDocument(ctx context.Context, documentID string) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit appends the event, stamping the time when the caller left it zero.
// Emission runs inside the caller's transaction when one is in context, so
// a committed transition always has its audit row.
func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
	return p.store.Append(ctx, base)
}

// List returns the audit trail of one document, oldest first.
func (p *Publisher) List(ctx context.Context, documentID string) ([]Event, error) {
	return p.store.ListByDocument(ctx, documentID)
}
