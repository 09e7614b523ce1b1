package engine

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/okatech-org/digitalium-archive/internal/archive/policy"
	id "github.com/okatech-org/digitalium-archive/pkg/domain"
	dErrors "github.com/okatech-org/digitalium-archive/pkg/domain-errors"
	audit "github.com/okatech-org/digitalium-archive/pkg/platform/audit"
	"github.com/okatech-org/digitalium-archive/pkg/requestcontext"
)

// errSweepNotDue aborts an Execute whose document is no longer retention-due
// at commit time. It never leaves the engine.
var errSweepNotDue = errors.New("document no longer retention-due")

// sweepLeaseTTL caps how long a document stays leased if a sweep worker dies
// mid-transition. Comfortably above any single Execute round-trip.
const sweepLeaseTTL = 30 * time.Second

// SweepReport summarizes one sweep run.
type SweepReport struct {
	Scanned      int `json:"scanned"`
	Transitioned int `json:"transitioned"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

// Sweep scans for documents whose retention period has elapsed and applies
// the auto-transition their retention rule configures, as actor "system"
// with the approval requirement pre-satisfied by policy.
//
// Each document is handled independently under a lease, so concurrent sweep
// runs and manual transitions interleave safely: whoever loses the race
// finds the document no longer due and skips it. A failing document is
// logged and counted; it never aborts the run.
func (s *Service) Sweep(ctx context.Context, now time.Time) (SweepReport, error) {
	ctx, span := s.tracer.Start(ctx, "engine.Sweep")
	defer span.End()

	s.metrics.IncSweepRun()
	ctx = requestcontext.WithTime(ctx, now)

	due, err := s.documents.ListRetentionDue(ctx, now)
	if err != nil {
		return SweepReport{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list retention-due documents")
	}
	span.SetAttributes(attribute.Int("sweep.due", len(due)))

	var report SweepReport
	report.Scanned = len(due)

	results := make([]sweepOutcome, len(due))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.sweepParallelism)
	for i, docID := range due {
		g.Go(func() error {
			results[i] = s.sweepOne(gctx, docID)
			return nil
		})
	}
	// Workers report through results; the group never carries an error.
	_ = g.Wait()

	for _, outcome := range results {
		switch outcome {
		case sweepTransitioned:
			report.Transitioned++
			s.metrics.IncSweepTransition()
		case sweepSkipped:
			report.Skipped++
		case sweepFailed:
			report.Failed++
		}
	}

	s.logger.InfoContext(ctx, "retention sweep completed",
		"scanned", report.Scanned,
		"transitioned", report.Transitioned,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

type sweepOutcome int

const (
	sweepSkipped sweepOutcome = iota
	sweepTransitioned
	sweepFailed
)

func (s *Service) sweepOne(ctx context.Context, docID id.DocumentID) sweepOutcome {
	acquired, err := s.locker.Acquire(ctx, docID, sweepLeaseTTL)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep lease acquisition failed",
			"document_id", docID.String(), "error", err)
		return sweepFailed
	}
	if !acquired {
		// Another sweep run or a manual operation holds the document.
		return sweepSkipped
	}
	defer func() {
		if err := s.locker.Release(ctx, docID); err != nil {
			s.logger.WarnContext(ctx, "sweep lease release failed",
				"document_id", docID.String(), "error", err)
		}
	}()

	doc, err := s.documents.FindByID(ctx, docID)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep could not load document",
			"document_id", docID.String(), "error", err)
		return sweepFailed
	}

	rule, fellBack := policy.ResolveRule(doc.Classification, doc.Status)
	if fellBack {
		s.warnUnknownClassification(ctx, doc.ID, doc.Classification)
	}
	if rule.AutoTransitionTo == nil {
		// Retention elapsed but the phase has no automatic successor;
		// disposition is a human decision.
		return sweepSkipped
	}

	_, err = s.transition(ctx, docID, *rule.AutoTransitionTo, SystemActor, sweepJustification,
		transitionOptions{
			bypassApproval: true,
			auditAction:    audit.EventSweepTransition,
			requireDue:     true,
		})
	switch {
	case err == nil:
		return sweepTransitioned
	case errors.Is(err, errSweepNotDue):
		return sweepSkipped
	case dErrors.HasCode(err, dErrors.CodeTerminalState),
		dErrors.HasCode(err, dErrors.CodeTransitionNotAllowed),
		dErrors.HasCode(err, dErrors.CodeNotFound):
		// The document moved on between the scan and the lease.
		return sweepSkipped
	default:
		s.logger.ErrorContext(ctx, "sweep transition failed",
			"document_id", docID.String(), "error", err)
		return sweepFailed
	}
}
