// Package domain holds the typed identifiers shared across the archival
// engine. IDs are distinct uuid-backed types so a document ID can never be
// passed where an attachment ID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "github.com/okatech-org/digitalium-archive/pkg/domain-errors"
)

// DocumentID identifies a document aggregate.
type DocumentID uuid.UUID

// AttachmentID identifies an attachment inside a version snapshot.
type AttachmentID uuid.UUID

// NewDocumentID returns a fresh random DocumentID.
func NewDocumentID() DocumentID {
	return DocumentID(uuid.New())
}

// NewAttachmentID returns a fresh random AttachmentID.
func NewAttachmentID() AttachmentID {
	return AttachmentID(uuid.New())
}

// ParseDocumentID validates external input into a DocumentID.
//
// Errors: returns CodeInvalidInput for empty, malformed or nil UUIDs.
func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return DocumentID{}, err
	}
	return DocumentID(u), nil
}

// ParseAttachmentID validates external input into an AttachmentID.
func ParseAttachmentID(s string) (AttachmentID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return AttachmentID{}, err
	}
	return AttachmentID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid uuid")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil uuid")
	}
	return u, nil
}

func (id DocumentID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the ID is the zero value.
func (id DocumentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText keeps the canonical uuid form in JSON and storage encodings.
func (id DocumentID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *DocumentID) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = DocumentID(u)
	return nil
}

func (id AttachmentID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the ID is the zero value.
func (id AttachmentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText keeps the canonical uuid form in JSON and storage encodings.
func (id AttachmentID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *AttachmentID) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = AttachmentID(u)
	return nil
}
