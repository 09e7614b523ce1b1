// Package ledger maintains the append-only, hash-verified version chain of a
// document. All mutations run inside the store's Execute unit so the current
// pointer flip, the snapshot and the hash land atomically.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/okatech-org/digitalium-archive/internal/archive/metrics"
	"github.com/okatech-org/digitalium-archive/internal/archive/models"
	"github.com/okatech-org/digitalium-archive/internal/archive/policy"
	"github.com/okatech-org/digitalium-archive/internal/archive/store/document"
	id "github.com/okatech-org/digitalium-archive/pkg/domain"
	dErrors "github.com/okatech-org/digitalium-archive/pkg/domain-errors"
	audit "github.com/okatech-org/digitalium-archive/pkg/platform/audit"
	"github.com/okatech-org/digitalium-archive/pkg/platform/sentinel"
	"github.com/okatech-org/digitalium-archive/pkg/requestcontext"
)

// AuditPublisher is the sink for ledger events. Emission is part of the
// operation: a mutation that cannot be recorded is not acknowledged.
type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// StoreTx runs fn inside one storage transaction so the version chain update
// and the audit outbox row commit together. The in-memory fallback just
// calls fn.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type noopTx struct{}

func (noopTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Service is the Version Ledger.
type Service struct {
	documents      document.Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tx             StoreTx
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) { s.tx = tx }
}

func New(documents document.Store, opts ...Option) (*Service, error) {
	if documents == nil {
		return nil, fmt.Errorf("document store is required")
	}
	s := &Service{documents: documents}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tx == nil {
		s.tx = noopTx{}
	}
	return s, nil
}

// AppendVersion adds a new current version to the document's chain.
//
// The next version number is 1 + the highest existing one, the attachment
// set is snapshotted by value, and the content hash is computed over the
// version metadata plus that snapshot. attachments nil carries the current
// snapshot forward; non-nil replaces it (that is what makes an edit warrant
// a new version). The new version starts unlocked even when the previous
// current one was locked.
//
// Errors: CodePermissionDenied when add-version is not allowed in the
// document's status, CodeValidation on bad input, CodeNotFound when the
// document does not exist.
func (s *Service) AppendVersion(ctx context.Context, docID id.DocumentID, changeType models.ChangeType, changeDescription, author string, attachments []models.Attachment) (*models.Version, error) {
	if strings.TrimSpace(changeDescription) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "change description is required")
	}
	if strings.TrimSpace(author) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "author is required")
	}
	if _, err := models.ParseChangeType(string(changeType)); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "change type must be major, minor or patch")
	}

	now := requestcontext.Now(ctx)
	var appended models.Version

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		_, err := s.documents.Execute(txCtx, docID,
			func(d *models.Document) error {
				if !policy.IsActionAllowed(d.Status, policy.ActionAddVersion) {
					return dErrors.New(dErrors.CodePermissionDenied,
						fmt.Sprintf("add-version is not permitted in status %s", d.Status))
				}
				return nil
			},
			func(d *models.Document) {
				// Snapshot by value: the caller keeps its slice, the chain
				// keeps its own copy.
				snapshot := models.CloneAttachments(attachments)
				if snapshot == nil {
					snapshot = d.Attachments()
				}
				number := d.NextVersionNumber()
				v := models.Version{
					VersionNumber:      number,
					Label:              fmt.Sprintf("v%d", number),
					ChangeDescription:  changeDescription,
					ChangeType:         changeType,
					Author:             author,
					CreatedAt:          now,
					AttachmentSnapshot: snapshot,
				}
				v.ContentHash = models.ComputeContentHash(v.VersionNumber, v.ChangeDescription, v.ChangeType, v.AttachmentSnapshot)
				d.ApplyVersion(v, now)
				appended = v
			},
		)
		if err != nil {
			return s.translate(err)
		}
		return s.emit(txCtx, audit.Event{
			Timestamp:  now,
			DocumentID: docID.String(),
			Action:     string(audit.EventVersionAdded),
			Actor:      author,
			Reason:     changeDescription,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncVersionAppended()
	appended.IsCurrent = true
	out := appended.Clone()
	return &out, nil
}

// RelabelVersion edits the label and change description of an unlocked
// version and recomputes its hash (the description participates in it).
//
// Errors: CodeVersionLocked when the version is frozen, CodePermissionDenied
// when edit is not allowed in the document's status, CodeNotFound for an
// unknown document or version.
func (s *Service) RelabelVersion(ctx context.Context, docID id.DocumentID, versionNumber int, label, changeDescription string) error {
	if strings.TrimSpace(label) == "" && strings.TrimSpace(changeDescription) == "" {
		return dErrors.New(dErrors.CodeValidation, "nothing to update")
	}

	now := requestcontext.Now(ctx)
	_, err := s.documents.Execute(ctx, docID,
		func(d *models.Document) error {
			if !policy.IsActionAllowed(d.Status, policy.ActionEdit) {
				return dErrors.New(dErrors.CodePermissionDenied,
					fmt.Sprintf("edit is not permitted in status %s", d.Status))
			}
			v := d.VersionByNumber(versionNumber)
			if v == nil {
				return dErrors.New(dErrors.CodeNotFound, "version not found")
			}
			if v.IsLocked {
				return dErrors.New(dErrors.CodeVersionLocked, "version is locked and cannot be edited")
			}
			return nil
		},
		func(d *models.Document) {
			v := d.VersionByNumber(versionNumber)
			if label != "" {
				v.Label = label
			}
			if changeDescription != "" {
				v.ChangeDescription = changeDescription
			}
			v.ContentHash = models.ComputeContentHash(v.VersionNumber, v.ChangeDescription, v.ChangeType, v.AttachmentSnapshot)
			d.UpdatedAt = now
		},
	)
	if err != nil {
		return s.translate(err)
	}
	return nil
}

// LockCurrentVersion freezes the document's current version. The Transition
// Engine invokes this inside its own Execute unit when entering archived or
// destruction; this standalone entry point exists for administrative locking
// ahead of a transition.
func (s *Service) LockCurrentVersion(ctx context.Context, docID id.DocumentID, actor string) error {
	now := requestcontext.Now(ctx)
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		_, err := s.documents.Execute(txCtx, docID,
			func(d *models.Document) error {
				return d.CanMutate()
			},
			func(d *models.Document) {
				d.LockCurrentVersion()
				d.UpdatedAt = now
			},
		)
		if err != nil {
			return s.translate(err)
		}
		return s.emit(txCtx, audit.Event{
			Timestamp:  now,
			DocumentID: docID.String(),
			Action:     string(audit.EventVersionLocked),
			Actor:      actor,
		})
	})
}

// VerifyIntegrity recomputes the stored hash of a version and compares it.
//
// Exposed only when verify-integrity is allowed for the document's current
// status; a mismatch is reported to the audit sink because a corrupted
// locked version is a compliance incident, not a user error.
func (s *Service) VerifyIntegrity(ctx context.Context, docID id.DocumentID, versionNumber int) (bool, error) {
	doc, err := s.documents.FindByID(ctx, docID)
	if err != nil {
		return false, s.translate(err)
	}
	if !policy.IsActionAllowed(doc.Status, policy.ActionVerifyIntegrity) {
		return false, dErrors.New(dErrors.CodePermissionDenied,
			fmt.Sprintf("verify-integrity is not permitted in status %s", doc.Status))
	}
	v := doc.VersionByNumber(versionNumber)
	if v == nil {
		return false, dErrors.New(dErrors.CodeNotFound, "version not found")
	}

	ok := v.VerifyIntegrity()
	now := requestcontext.Now(ctx)
	if ok {
		if err := s.emit(ctx, audit.Event{
			Timestamp:  now,
			DocumentID: docID.String(),
			Action:     string(audit.EventIntegrityVerified),
			Actor:      requestcontext.Actor(ctx),
		}); err != nil {
			return false, err
		}
		return true, nil
	}

	s.metrics.IncIntegrityFailure()
	s.logger.WarnContext(ctx, "integrity verification failed",
		"document_id", docID.String(),
		"version_number", versionNumber,
		"log_type", "audit",
	)
	if err := s.emit(ctx, audit.Event{
		Timestamp:  now,
		DocumentID: docID.String(),
		Action:     string(audit.EventIntegrityCheckFailed),
		Actor:      requestcontext.Actor(ctx),
		Reason:     fmt.Sprintf("content hash mismatch on version %d", versionNumber),
	}); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.auditPublisher == nil {
		return nil
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (s *Service) translate(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "document not found")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "document store failure")
}
