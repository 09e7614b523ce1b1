package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and the lease layer return
// these (optionally wrapped) so services can translate them into domain
// errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: document does not exist in the store
// - ErrConflict: a document with the same ID already exists
// - ErrRevisionMismatch: optimistic concurrency check failed during Execute
// - ErrLeaseHeld: another worker holds the per-document sweep lease
// - ErrUnavailable: backing service temporarily unreachable
//
// For domain rejections (transition not allowed, approval required), use
// pkg/domain-errors directly.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrRevisionMismatch = errors.New("revision mismatch")
	ErrLeaseHeld        = errors.New("lease held")
	ErrUnavailable      = errors.New("unavailable")
)
