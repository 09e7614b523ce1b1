// Package policy holds the static configuration tables of the archival
// engine: which actions each custody phase permits, which status transitions
// are legal, and what retention applies per classification and status. The
// tables are compile-time data; the engine treats them as the single source
// of truth and never derives extra edges from status ordering alone.
package policy

import (
	"github.com/okatech-org/digitalium-archive/internal/archive/models"
)

// Action is something a caller may attempt on a document.
type Action string

const (
	ActionEdit            Action = "edit"
	ActionDelete          Action = "delete"
	ActionShare           Action = "share"
	ActionPrint           Action = "print"
	ActionView            Action = "view"
	ActionDownload        Action = "download"
	ActionCertifiedCopy   Action = "certified-copy"
	ActionVerifyIntegrity Action = "verify-integrity"
	ActionTransfer        Action = "transfer"
	ActionDestroy         Action = "destroy"
	ActionChangeStatus    Action = "change-status"
	ActionAddVersion      Action = "add-version"
	ActionAnnotate        Action = "annotate"
)

// allowedActions maps each custody phase to its permitted action set. Later
// phases progressively drop the mutating actions (edit, delete, add-version)
// and gain the compliance ones (certified-copy, verify-integrity) while view
// and download stay broadly available.
var allowedActions = map[models.ArchivalStatus]map[Action]bool{
	models.StatusActive: actionSet(
		ActionEdit, ActionDelete, ActionShare, ActionPrint, ActionView,
		ActionDownload, ActionChangeStatus, ActionAddVersion, ActionAnnotate,
	),
	models.StatusSemiActive: actionSet(
		ActionEdit, ActionShare, ActionPrint, ActionView, ActionDownload,
		ActionCertifiedCopy, ActionTransfer, ActionChangeStatus,
		ActionAddVersion, ActionAnnotate,
	),
	models.StatusInactive: actionSet(
		ActionShare, ActionPrint, ActionView, ActionDownload,
		ActionCertifiedCopy, ActionVerifyIntegrity, ActionTransfer,
		ActionChangeStatus, ActionAddVersion,
	),
	models.StatusArchived: actionSet(
		ActionPrint, ActionView, ActionDownload, ActionCertifiedCopy,
		ActionVerifyIntegrity, ActionTransfer, ActionChangeStatus,
		ActionDestroy,
	),
	models.StatusDestruction: actionSet(
		ActionView, ActionCertifiedCopy, ActionVerifyIntegrity,
	),
}

func actionSet(actions ...Action) map[Action]bool {
	set := make(map[Action]bool, len(actions))
	for _, a := range actions {
		set[a] = true
	}
	return set
}

// IsActionAllowed is a pure lookup: unknown (status, action) pairs are
// denied, never an error.
func IsActionAllowed(status models.ArchivalStatus, action Action) bool {
	return allowedActions[status][action]
}

// AllowedActions returns the permitted action set of a status, for callers
// that present options. Order is stable.
func AllowedActions(status models.ArchivalStatus) []Action {
	all := []Action{
		ActionEdit, ActionDelete, ActionShare, ActionPrint, ActionView,
		ActionDownload, ActionCertifiedCopy, ActionVerifyIntegrity,
		ActionTransfer, ActionDestroy, ActionChangeStatus, ActionAddVersion,
		ActionAnnotate,
	}
	var out []Action
	for _, a := range all {
		if allowedActions[status][a] {
			out = append(out, a)
		}
	}
	return out
}
