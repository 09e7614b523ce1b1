package lease

import (
	"context"
	"sync"
	"time"

	id "github.com/okatech-org/digitalium-archive/pkg/domain"
)

// InMemory is a single-process Locker. Expired leases are reclaimed lazily
// on the next Acquire for the same document.
type InMemory struct {
	mu     sync.Mutex
	leases map[id.DocumentID]time.Time
	clock  func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{leases: make(map[id.DocumentID]time.Time), clock: time.Now}
}

func (l *InMemory) Acquire(_ context.Context, docID id.DocumentID, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if expiry, held := l.leases[docID]; held && expiry.After(now) {
		return false, nil
	}
	l.leases[docID] = now.Add(ttl)
	return true, nil
}

func (l *InMemory) Release(_ context.Context, docID id.DocumentID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.leases, docID)
	return nil
}
