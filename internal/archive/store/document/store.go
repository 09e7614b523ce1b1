// Package document persists the document aggregate. Two implementations
// exist: an in-memory store for tests and single-node runs, and a Postgres
// store for durable deployments. Both provide the same atomic Execute unit
// the engine and ledger rely on.
package document

import (
	"context"
	"time"

	"github.com/okatech-org/digitalium-archive/internal/archive/models"
	id "github.com/okatech-org/digitalium-archive/pkg/domain"
)

// Store is the persistence boundary of the archival engine.
//
// Execute is the atomic unit: the store holds the per-document lock (mutex
// in memory, FOR UPDATE in Postgres) across validate and mutate, so no
// observer ever sees a half-updated document. validate runs first and a
// non-nil error aborts with no change; mutate then applies the whole
// mutation. The committed snapshot is returned.
type Store interface {
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error)
	Execute(ctx context.Context, docID id.DocumentID,
		validate func(*models.Document) error,
		mutate func(*models.Document)) (*models.Document, error)
	// ListRetentionDue returns the IDs of documents whose retention end date
	// has lapsed at now. The sweep re-validates each document under Execute,
	// so this listing may be stale without harm.
	ListRetentionDue(ctx context.Context, now time.Time) ([]id.DocumentID, error)
}
