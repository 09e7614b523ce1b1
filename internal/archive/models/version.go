package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	dErrors "github.com/okatech-org/digitalium-archive/pkg/domain-errors"
)

// ChangeType classifies the weight of a new version.
type ChangeType string

const (
	ChangeMajor ChangeType = "major"
	ChangeMinor ChangeType = "minor"
	ChangePatch ChangeType = "patch"
)

// ParseChangeType validates external input into a ChangeType.
func ParseChangeType(s string) (ChangeType, error) {
	ct := ChangeType(s)
	switch ct {
	case ChangeMajor, ChangeMinor, ChangePatch:
		return ct, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "change type must be major, minor or patch")
}

// Version is one entry in a document's append-only version chain.
//
// Invariants:
//   - VersionNumber is positive, strictly increasing and gapless per document
//   - exactly one version per document has IsCurrent=true, and it is always
//     the one with the highest VersionNumber
//   - once IsLocked=true the version is frozen: its hash, snapshot and
//     metadata never change again; it can only be read and hash-verified
type Version struct {
	VersionNumber      int          `json:"version_number"`
	Label              string       `json:"label"`
	ChangeDescription  string       `json:"change_description"`
	ChangeType         ChangeType   `json:"change_type"`
	Author             string       `json:"author"`
	CreatedAt          time.Time    `json:"created_at"`
	IsCurrent          bool         `json:"is_current"`
	IsLocked           bool         `json:"is_locked"`
	ContentHash        string       `json:"content_hash"`
	AttachmentSnapshot []Attachment `json:"attachment_snapshot"`
}

// Clone copies the version including its snapshot.
func (v Version) Clone() Version {
	out := v
	out.AttachmentSnapshot = CloneAttachments(v.AttachmentSnapshot)
	return out
}

// ComputeContentHash digests the version's metadata and attachment snapshot
// with SHA-256 over a stable field encoding. VerifyIntegrity recomputes this
// from the stored snapshot, so the encoding is part of the ledger contract:
// changing it invalidates every stored hash.
func ComputeContentHash(versionNumber int, changeDescription string, changeType ChangeType, snapshot []Attachment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "v=%d\n", versionNumber)
	fmt.Fprintf(&b, "desc=%s\n", changeDescription)
	fmt.Fprintf(&b, "type=%s\n", changeType)
	for _, a := range snapshot {
		fmt.Fprintf(&b, "att=%s|%s|%d|%s\n", a.ID.String(), a.Name, a.SizeBytes, a.Kind)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// VerifyIntegrity recomputes the content hash from the stored snapshot and
// compares it to the recorded one.
func (v Version) VerifyIntegrity() bool {
	return v.ContentHash == ComputeContentHash(v.VersionNumber, v.ChangeDescription, v.ChangeType, v.AttachmentSnapshot)
}
