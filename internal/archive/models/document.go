package models

import (
	"time"

	id "github.com/okatech-org/digitalium-archive/pkg/domain"
	dErrors "github.com/okatech-org/digitalium-archive/pkg/domain-errors"
)

// Classification is the document type used to select retention rules
// (contrat, facture, dossier_rh, ...). Unknown classifications fall back to
// the default rule set at resolve time; they are not rejected here.
type Classification string

// Document is the aggregate root for an archived record.
//
// Invariants:
//   - Status only ever moves to a strictly higher custody order; no status
//     is revisited and destruction is terminal
//   - exactly one version has IsCurrent=true and it carries the highest
//     VersionNumber; version numbers are gapless from 1
//   - a locked version is never mutated again; entering archived or
//     destruction locks the current version in the same atomic unit
//   - RetentionEndDate is recomputed on every status change; nil means
//     permanent retention or not yet computed
//
// The aggregate is owned by the engine: callers mutate it only through the
// Transition Engine and the Version Ledger, never by field assignment. The
// CanX/ApplyX pairs below exist for the store Execute callbacks, which hold
// the per-document lock across validation and mutation.
type Document struct {
	ID               id.DocumentID    `json:"id"`
	Classification   Classification   `json:"classification"`
	Status           ArchivalStatus   `json:"status"`
	StatusChangedAt  time.Time        `json:"status_changed_at"`
	StatusChangedBy  string           `json:"status_changed_by"`
	RetentionEndDate *time.Time       `json:"retention_end_date,omitempty"`
	FinalDisposition FinalDisposition `json:"final_disposition,omitempty"`
	Versions         []Version        `json:"versions"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`

	// Revision is the optimistic concurrency counter bumped by the store on
	// every committed mutation. It never decreases.
	Revision int64 `json:"revision"`
}

// NewDocument creates a document in status active with version 1 (current,
// unlocked) snapshotting the given initial attachments.
func NewDocument(docID id.DocumentID, classification Classification, author string, attachments []Attachment, now time.Time) (*Document, error) {
	if docID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "document id is required")
	}
	if classification == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "document classification is required")
	}
	if author == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "document author is required")
	}

	snapshot := CloneAttachments(attachments)
	first := Version{
		VersionNumber:      1,
		Label:              "1.0",
		ChangeDescription:  "initial version",
		ChangeType:         ChangeMajor,
		Author:             author,
		CreatedAt:          now,
		IsCurrent:          true,
		AttachmentSnapshot: snapshot,
	}
	first.ContentHash = ComputeContentHash(first.VersionNumber, first.ChangeDescription, first.ChangeType, first.AttachmentSnapshot)

	return &Document{
		ID:              docID,
		Classification:  classification,
		Status:          StatusActive,
		StatusChangedAt: now,
		StatusChangedBy: author,
		Versions:        []Version{first},
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// CurrentVersion returns a pointer to the version with IsCurrent=true.
// Returns nil only on a corrupted aggregate.
func (d *Document) CurrentVersion() *Version {
	for i := range d.Versions {
		if d.Versions[i].IsCurrent {
			return &d.Versions[i]
		}
	}
	return nil
}

// VersionByNumber returns the version with the given number, or nil.
func (d *Document) VersionByNumber(n int) *Version {
	for i := range d.Versions {
		if d.Versions[i].VersionNumber == n {
			return &d.Versions[i]
		}
	}
	return nil
}

// Attachments returns the live attachment list: the snapshot of the current
// version, copied so callers cannot reach into history.
func (d *Document) Attachments() []Attachment {
	cur := d.CurrentVersion()
	if cur == nil {
		return nil
	}
	return CloneAttachments(cur.AttachmentSnapshot)
}

// NextVersionNumber is 1 + the highest existing version number.
func (d *Document) NextVersionNumber() int {
	max := 0
	for i := range d.Versions {
		if d.Versions[i].VersionNumber > max {
			max = d.Versions[i].VersionNumber
		}
	}
	return max + 1
}

// CanMutate rejects any mutation once the document reached its terminal
// state. After destruction the engine no longer accepts anything.
func (d *Document) CanMutate() error {
	if d.Status.IsTerminal() {
		return dErrors.New(dErrors.CodeTerminalState, "document has been destroyed")
	}
	return nil
}

// CanTransitionTo checks the document-level transition invariants: not
// terminal, and strictly forward in custody order. Whether the edge exists
// in the configured graph is the engine's concern, not the aggregate's.
func (d *Document) CanTransitionTo(target ArchivalStatus) error {
	if err := d.CanMutate(); err != nil {
		return err
	}
	if !target.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown archival status")
	}
	if !d.Status.Precedes(target) {
		return dErrors.New(dErrors.CodeTransitionNotAllowed, "status can only move forward in custody order")
	}
	return nil
}

// ApplyTransition moves the document to target and records who did it when.
// The caller supplies the recomputed retention end date; entering archived
// or destruction locks the current version and fixes the final disposition,
// all within the same Execute unit.
func (d *Document) ApplyTransition(target ArchivalStatus, actor string, now time.Time, retentionEnd *time.Time, disposition FinalDisposition) {
	d.Status = target
	d.StatusChangedAt = now
	d.StatusChangedBy = actor
	d.RetentionEndDate = retentionEnd
	d.UpdatedAt = now

	if target == StatusArchived || target == StatusDestruction {
		d.LockCurrentVersion()
		if disposition.IsValid() && d.FinalDisposition == "" {
			d.FinalDisposition = disposition
		}
	}
}

// ApplyVersion appends v as the new current version and clears the current
// flag on the previous one. The ledger computes v's number, hash and
// snapshot; this method only commits the pointer flip.
func (d *Document) ApplyVersion(v Version, now time.Time) {
	for i := range d.Versions {
		d.Versions[i].IsCurrent = false
	}
	v.IsCurrent = true
	d.Versions = append(d.Versions, v)
	d.UpdatedAt = now
}

// LockCurrentVersion freezes the current version. Appending later versions
// stays possible; the locked version itself is read-only from here on.
func (d *Document) LockCurrentVersion() {
	if cur := d.CurrentVersion(); cur != nil {
		cur.IsLocked = true
	}
}

// Clone deep-copies the aggregate so stores can hand out snapshots without
// sharing version or attachment slices.
func (d *Document) Clone() *Document {
	out := *d
	if d.RetentionEndDate != nil {
		end := *d.RetentionEndDate
		out.RetentionEndDate = &end
	}
	out.Versions = make([]Version, len(d.Versions))
	for i := range d.Versions {
		out.Versions[i] = d.Versions[i].Clone()
	}
	return &out
}
