// Package lease serializes work on a single document across processes. The
// store's Execute already makes each mutation atomic; the lease additionally
// keeps the retention sweep and a concurrent manual transition from ever
// processing the same document at the same time when several engine
// instances run.
package lease

import (
	"context"
	"time"

	id "github.com/okatech-org/digitalium-archive/pkg/domain"
)

// Locker grants short-lived exclusive leases on documents.
//
// Acquire returns false when another holder has the lease; that is a normal
// outcome for the sweep (skip and retry next run), not an error. Release is
// best-effort: an unreleased lease expires with its TTL.
type Locker interface {
	Acquire(ctx context.Context, docID id.DocumentID, ttl time.Duration) (bool, error)
	Release(ctx context.Context, docID id.DocumentID) error
}
