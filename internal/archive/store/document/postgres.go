package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okatech-org/digitalium-archive/internal/archive/models"
	id "github.com/okatech-org/digitalium-archive/pkg/domain"
	"github.com/okatech-org/digitalium-archive/pkg/platform/sentinel"
	txcontext "github.com/okatech-org/digitalium-archive/pkg/platform/tx"
)

// PostgresStore persists documents in a single table with the version chain
// as JSONB. Execute locks the row with FOR UPDATE and guards the write with
// a revision check, so a manual transition and the sweep can never
// interleave on the same document.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema creates the documents table. Invoked at startup and by integration
// tests; production migrations can replace this with their own tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	id UUID PRIMARY KEY,
	classification TEXT NOT NULL,
	status TEXT NOT NULL,
	status_changed_at TIMESTAMPTZ NOT NULL,
	status_changed_by TEXT NOT NULL,
	retention_end_date TIMESTAMPTZ,
	final_disposition TEXT NOT NULL DEFAULT '',
	versions JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	revision BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_retention_due
	ON documents (retention_end_date) WHERE retention_end_date IS NOT NULL;
`

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	if err != nil {
		return fmt.Errorf("migrate documents schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) error {
	versions, err := json.Marshal(doc.Versions)
	if err != nil {
		return fmt.Errorf("marshal versions: %w", err)
	}

	query := `
		INSERT INTO documents (id, classification, status, status_changed_at, status_changed_by,
			retention_end_date, final_disposition, versions, created_at, updated_at, revision)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(doc.ID), string(doc.Classification), string(doc.Status),
		doc.StatusChangedAt, doc.StatusChangedBy, doc.RetentionEndDate,
		string(doc.FinalDisposition), versions, doc.CreatedAt, doc.UpdatedAt, doc.Revision,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	return s.findByID(ctx, s.execer(ctx), docID, false)
}

const documentColumns = `id, classification, status, status_changed_at, status_changed_by,
	retention_end_date, final_disposition, versions, created_at, updated_at, revision`

func (s *PostgresStore) findByID(ctx context.Context, q dbExecutor, docID id.DocumentID, forUpdate bool) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		doc         models.Document
		rawID       uuid.UUID
		versions    []byte
		retention   sql.NullTime
		disposition string
	)
	err := q.QueryRowContext(ctx, query, uuid.UUID(docID)).Scan(
		&rawID, &doc.Classification, &doc.Status, &doc.StatusChangedAt,
		&doc.StatusChangedBy, &retention, &disposition, &versions,
		&doc.CreatedAt, &doc.UpdatedAt, &doc.Revision,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}

	doc.ID = id.DocumentID(rawID)
	doc.FinalDisposition = models.FinalDisposition(disposition)
	if retention.Valid {
		end := retention.Time
		doc.RetentionEndDate = &end
	}
	if err := json.Unmarshal(versions, &doc.Versions); err != nil {
		return nil, fmt.Errorf("unmarshal versions: %w", err)
	}
	return &doc, nil
}

func (s *PostgresStore) Execute(ctx context.Context, docID id.DocumentID,
	validate func(*models.Document) error,
	mutate func(*models.Document)) (*models.Document, error) {

	run := func(ctx context.Context, q dbExecutor) (*models.Document, error) {
		doc, err := s.findByID(ctx, q, docID, true)
		if err != nil {
			return nil, err
		}

		if err := validate(doc); err != nil {
			return nil, err
		}
		previousRevision := doc.Revision
		mutate(doc)
		doc.Revision = previousRevision + 1

		versions, err := json.Marshal(doc.Versions)
		if err != nil {
			return nil, fmt.Errorf("marshal versions: %w", err)
		}
		res, err := q.ExecContext(ctx, `
			UPDATE documents
			SET classification = $2, status = $3, status_changed_at = $4, status_changed_by = $5,
				retention_end_date = $6, final_disposition = $7, versions = $8, updated_at = $9,
				revision = $10
			WHERE id = $1 AND revision = $11
		`,
			uuid.UUID(doc.ID), string(doc.Classification), string(doc.Status),
			doc.StatusChangedAt, doc.StatusChangedBy, doc.RetentionEndDate,
			string(doc.FinalDisposition), versions, doc.UpdatedAt,
			doc.Revision, previousRevision,
		)
		if err != nil {
			return nil, fmt.Errorf("update document: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("update document: %w", err)
		}
		if affected == 0 {
			// The row moved under us despite FOR UPDATE; only possible when a
			// caller bypassed Execute.
			return nil, sentinel.ErrRevisionMismatch
		}
		return doc, nil
	}

	// Join an ambient transaction when the engine opened one (so the audit
	// outbox entry commits with the document), otherwise own the transaction.
	if tx, ok := txcontext.From(ctx); ok {
		return run(ctx, tx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	doc, err := run(ctx, tx)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListRetentionDue(ctx context.Context, now time.Time) ([]id.DocumentID, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id FROM documents
		WHERE retention_end_date IS NOT NULL
		  AND retention_end_date <= $1
		  AND status <> $2
		ORDER BY retention_end_date
	`, now, string(models.StatusDestruction))
	if err != nil {
		return nil, fmt.Errorf("list retention due: %w", err)
	}
	defer rows.Close()

	var due []id.DocumentID
	for rows.Next() {
		var raw uuid.UUID
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		due = append(due, id.DocumentID(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate retention due: %w", err)
	}
	return due, nil
}
