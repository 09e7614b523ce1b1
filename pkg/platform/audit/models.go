// Package audit captures the engine's transition and integrity events. The
// Event type is transport-agnostic so stores and sinks can fan out: tests use
// the in-memory store, deployments write an outbox row in the document's
// transaction and let the worker publish it to Kafka.
package audit

import "time"

// EventCategory classifies audit events by their primary purpose. It drives
// retention of the audit trail itself and downstream routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance: custody
	// transitions, version locking, destruction. Long retention, tamper-proof
	// storage.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine visibility events that can be
	// sampled: version appends, integrity checks that pass.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic on every committed state change.
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	DocumentID    string    `json:"document_id"`
	Action        string    `json:"action"`
	Actor         string    `json:"actor"`
	FromStatus    string    `json:"from_status,omitempty"`
	ToStatus      string    `json:"to_status,omitempty"`
	Justification string    `json:"justification,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
}

// AuditEvent names the actions the engine emits.
type AuditEvent string

const (
	EventDocumentCreated      AuditEvent = "document_created"
	EventStatusChanged        AuditEvent = "document_status_changed"
	EventSweepTransition      AuditEvent = "retention_sweep_transition"
	EventVersionAdded         AuditEvent = "document_version_added"
	EventVersionLocked        AuditEvent = "document_version_locked"
	EventIntegrityVerified    AuditEvent = "document_integrity_verified"
	EventIntegrityCheckFailed AuditEvent = "document_integrity_check_failed"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventDocumentCreated:      CategoryCompliance,
	EventStatusChanged:        CategoryCompliance,
	EventSweepTransition:      CategoryCompliance,
	EventVersionLocked:        CategoryCompliance,
	EventIntegrityCheckFailed: CategoryCompliance,

	EventVersionAdded:      CategoryOperations,
	EventIntegrityVerified: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
