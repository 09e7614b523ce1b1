// Package engine orchestrates status transitions through the custody
// lifecycle. It is the only writer of document status: it consults the
// permission table and the transition graph, recomputes retention, locks
// versions on entry into durable phases, and emits the audit trail.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/okatech-org/digitalium-archive/internal/archive/conversion"
	"github.com/okatech-org/digitalium-archive/internal/archive/lease"
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

// SystemActor stamps automatic sweep transitions.
const SystemActor = "system"

const sweepJustification = "retention period elapsed"

// AuditPublisher is the sink for transition events. Emission is part of the
// operation: a transition that cannot be recorded is not acknowledged.
type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// StoreTx runs fn inside one storage transaction. The Postgres runner in
// cmd/server carries the transaction through context so the document store
// and the audit outbox commit together; the in-memory fallback just calls fn.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type noopTx struct{}

func (noopTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Result is the outcome of a committed transition.
type Result struct {
	Document  *models.Document       `json:"document"`
	Rule      policy.TransitionRule  `json:"rule"`
	Retention policy.RetentionStatus `json:"retention"`
	// ConversionSummary is attached when the target status requires
	// durable-format compliance (semi_active, archived). Advisory only: the
	// external conversion service does the transcoding.
	ConversionSummary *conversion.Summary `json:"conversion_summary,omitempty"`
}

// Service is the Transition Engine.
type Service struct {
	documents      document.Store
	locker         lease.Locker
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tx             StoreTx
	tracer         trace.Tracer

	sweepParallelism int
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

func WithLocker(l lease.Locker) Option {
	return func(s *Service) { s.locker = l }
}

func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) { s.tx = tx }
}

// WithSweepParallelism bounds how many documents one sweep run processes
// concurrently. Documents are independent; each one is still serialized by
// its lease and the store lock.
func WithSweepParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sweepParallelism = n
		}
	}
}

func New(documents document.Store, opts ...Option) (*Service, error) {
	if documents == nil {
		return nil, fmt.Errorf("document store is required")
	}
	s := &Service{
		documents:        documents,
		sweepParallelism: 4,
		tracer:           otel.Tracer("archive/engine"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.locker == nil {
		s.locker = lease.NewInMemory()
	}
	if s.tx == nil {
		s.tx = noopTx{}
	}
	return s, nil
}

// CreateDocument registers a new document in status active with version 1.
// The retention countdown starts immediately from the active-phase rule.
func (s *Service) CreateDocument(ctx context.Context, classification models.Classification, author string, attachments []models.Attachment) (*models.Document, error) {
	now := requestcontext.Now(ctx)

	doc, err := models.NewDocument(id.NewDocumentID(), classification, author, attachments, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	rule, fellBack := policy.ResolveRule(classification, models.StatusActive)
	if fellBack {
		s.warnUnknownClassification(ctx, doc.ID, classification)
	}
	doc.RetentionEndDate = policy.RetentionEndDate(rule, now)

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.documents.Create(txCtx, doc); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "document already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create document")
		}
		return s.emit(txCtx, audit.Event{
			Timestamp:  now,
			DocumentID: doc.ID.String(),
			Action:     string(audit.EventDocumentCreated),
			Actor:      author,
		})
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument returns a snapshot of the aggregate.
func (s *Service) GetDocument(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	doc, err := s.documents.FindByID(ctx, docID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document")
	}
	return doc, nil
}

// RequestTransition moves a document to targetStatus on behalf of actor.
//
// The checks run in a fixed order inside the store's atomic unit: terminal
// state, legal edge, approval justification, change-status permission. Any
// rejection leaves the document untouched. On success the retention end
// date is recomputed from the target status rule, the current version is
// locked when entering archived or destruction, and the transition event is
// recorded before the result is acknowledged.
//
// The actor's role is not verified here: the caller authorizes the actor
// against the rule's ApproverRole before calling. The engine enforces the
// justification requirement only.
func (s *Service) RequestTransition(ctx context.Context, docID id.DocumentID, targetStatus models.ArchivalStatus, actor, justification string) (*Result, error) {
	return s.transition(ctx, docID, targetStatus, actor, justification, transitionOptions{})
}

type transitionOptions struct {
	// bypassApproval is set by the sweep: automatic transitions are
	// pre-approved by the retention policy configuration.
	bypassApproval bool
	auditAction    audit.AuditEvent
	// requireDueAt makes the transition a no-op guard for the sweep: the
	// document must still be retention-due at that instant.
	requireDue bool
}

func (s *Service) transition(ctx context.Context, docID id.DocumentID, targetStatus models.ArchivalStatus, actor, justification string, opts transitionOptions) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "engine.RequestTransition",
		trace.WithAttributes(
			attribute.String("document.id", docID.String()),
			attribute.String("transition.target", targetStatus.String()),
		))
	defer span.End()

	if strings.TrimSpace(actor) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "actor is required")
	}
	if !targetStatus.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown archival status")
	}

	now := requestcontext.Now(ctx)
	auditAction := opts.auditAction
	if auditAction == "" {
		auditAction = audit.EventStatusChanged
	}

	var (
		result Result
		rule   policy.TransitionRule
	)

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var fromStatus models.ArchivalStatus

		doc, err := s.documents.Execute(txCtx, docID,
			func(d *models.Document) error {
				fromStatus = d.Status

				if err := d.CanMutate(); err != nil {
					return err
				}
				var ok bool
				rule, ok = policy.LookupTransition(d.Status, targetStatus)
				if !ok {
					return dErrors.New(dErrors.CodeTransitionNotAllowed,
						fmt.Sprintf("no legal transition from %s to %s", d.Status, targetStatus))
				}
				if rule.RequiresApproval && !opts.bypassApproval && strings.TrimSpace(justification) == "" {
					return dErrors.New(dErrors.CodeApprovalRequired,
						"transition requires approval: a justification must be provided")
				}
				if !policy.IsActionAllowed(d.Status, policy.ActionChangeStatus) {
					return dErrors.New(dErrors.CodePermissionDenied,
						fmt.Sprintf("change-status is not permitted in status %s", d.Status))
				}
				if opts.requireDue {
					if d.RetentionEndDate == nil || d.RetentionEndDate.After(now) {
						// Already handled by an earlier sweep run or a manual
						// transition; skipping keeps the sweep idempotent.
						return errSweepNotDue
					}
				}
				return d.CanTransitionTo(targetStatus)
			},
			func(d *models.Document) {
				retentionRule, fellBack := policy.ResolveRule(d.Classification, targetStatus)
				if fellBack {
					s.warnUnknownClassification(txCtx, d.ID, d.Classification)
				}
				end := policy.RetentionEndDate(retentionRule, now)
				d.ApplyTransition(targetStatus, actor, now, end, retentionRule.Disposition)
			},
		)
		if err != nil {
			return err
		}

		result.Document = doc
		result.Rule = rule
		result.Retention = policy.EvaluateRetention(doc.Classification, doc.Status, doc.RetentionEndDate, now)
		if targetStatus == models.StatusSemiActive || targetStatus == models.StatusArchived {
			summary := conversion.Summarize(doc)
			result.ConversionSummary = &summary
		}

		return s.emit(txCtx, audit.Event{
			Timestamp:     now,
			DocumentID:    docID.String(),
			Action:        string(auditAction),
			Actor:         actor,
			FromStatus:    fromStatus.String(),
			ToStatus:      targetStatus.String(),
			Justification: justification,
		})
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			err = dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		var de *dErrors.Error
		if errors.As(err, &de) {
			s.metrics.IncRejection(string(de.Code))
		}
		return nil, err
	}

	s.metrics.IncTransition(targetStatus.String())
	s.logger.InfoContext(ctx, "document status changed",
		"document_id", docID.String(),
		"from", result.Rule.From.String(),
		"to", targetStatus.String(),
		"actor", actor,
		"log_type", "audit",
	)
	return &result, nil
}

// AvailableTransitions lists the configured outgoing edges of a status. It
// presents options only; RequestTransition re-validates everything.
func (s *Service) AvailableTransitions(status models.ArchivalStatus) []policy.TransitionRule {
	return policy.AvailableTransitions(status)
}

// RetentionStatus evaluates the retention countdown of a document.
func (s *Service) RetentionStatus(ctx context.Context, docID id.DocumentID) (policy.RetentionStatus, error) {
	doc, err := s.GetDocument(ctx, docID)
	if err != nil {
		return policy.RetentionStatus{}, err
	}
	status := policy.EvaluateRetention(doc.Classification, doc.Status, doc.RetentionEndDate, requestcontext.Now(ctx))
	if status.FellBack {
		s.warnUnknownClassification(ctx, doc.ID, doc.Classification)
	}
	return status, nil
}

// ConversionSummary reports the PDF/A conversion needs of the current
// version's attachments.
func (s *Service) ConversionSummary(ctx context.Context, docID id.DocumentID) (conversion.Summary, error) {
	doc, err := s.GetDocument(ctx, docID)
	if err != nil {
		return conversion.Summary{}, err
	}
	return conversion.Summarize(doc), nil
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

// warnUnknownClassification logs the documented retention fallback. It is a
// warning, never a failure: the default rules applied.
func (s *Service) warnUnknownClassification(ctx context.Context, docID id.DocumentID, classification models.Classification) {
	s.logger.WarnContext(ctx, "unknown classification, default retention rules applied",
		"document_id", docID.String(),
		"classification", string(classification),
	)
}
