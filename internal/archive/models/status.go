package models

import (
	dErrors "github.com/okatech-org/digitalium-archive/pkg/domain-errors"
)

// ArchivalStatus is the custody phase of a document in its legal lifecycle.
//
// Statuses are totally ordered by custody progression and a document only
// ever moves to a strictly higher order value. The order values are part of
// the contract: transition validity is defined in terms of them, not just
// the configured graph.
type ArchivalStatus string

const (
	StatusActive      ArchivalStatus = "active"
	StatusSemiActive  ArchivalStatus = "semi_active"
	StatusInactive    ArchivalStatus = "inactive"
	StatusArchived    ArchivalStatus = "archived"
	StatusDestruction ArchivalStatus = "destruction"
)

// statusOrder is the single source of truth for custody progression.
var statusOrder = map[ArchivalStatus]int{
	StatusActive:      0,
	StatusSemiActive:  1,
	StatusInactive:    2,
	StatusArchived:    3,
	StatusDestruction: 4,
}

// AllStatuses lists every status in custody order. Used by policy tables to
// stay exhaustive when a status is added.
var AllStatuses = []ArchivalStatus{
	StatusActive,
	StatusSemiActive,
	StatusInactive,
	StatusArchived,
	StatusDestruction,
}

// ParseArchivalStatus validates external input into an ArchivalStatus.
//
// Errors: returns CodeInvalidInput when the value is empty or unknown.
func ParseArchivalStatus(s string) (ArchivalStatus, error) {
	st := ArchivalStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown archival status")
	}
	return st, nil
}

// IsValid checks membership in the closed status set.
func (s ArchivalStatus) IsValid() bool {
	_, ok := statusOrder[s]
	return ok
}

// Order returns the custody progression rank (0 for active through 4 for
// destruction). Unknown statuses rank below every valid one.
func (s ArchivalStatus) Order() int {
	if o, ok := statusOrder[s]; ok {
		return o
	}
	return -1
}

// IsTerminal reports whether no further transition can leave this status.
func (s ArchivalStatus) IsTerminal() bool {
	return s == StatusDestruction
}

// Precedes reports whether s sits strictly earlier than other in custody
// order. Every executed transition must satisfy from.Precedes(to).
func (s ArchivalStatus) Precedes(other ArchivalStatus) bool {
	return s.IsValid() && other.IsValid() && s.Order() < other.Order()
}

func (s ArchivalStatus) String() string { return string(s) }

// FinalDisposition is the fate of a record once retention lapses. It is set
// when the document enters archived or destruction and never changes after.
type FinalDisposition string

const (
	DispositionRetainPermanently FinalDisposition = "retain-permanently"
	DispositionDestroy           FinalDisposition = "destroy"
	DispositionSelectiveReview   FinalDisposition = "selective-review"
)

// IsValid checks membership in the closed disposition set.
func (d FinalDisposition) IsValid() bool {
	switch d {
	case DispositionRetainPermanently, DispositionDestroy, DispositionSelectiveReview:
		return true
	}
	return false
}
