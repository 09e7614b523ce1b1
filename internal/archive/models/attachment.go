package models

import (
	"time"

	id "github.com/okatech-org/digitalium-archive/pkg/domain"
)

// AttachmentKind is the media family of an attachment. The conversion
// advisor uses it to decide whether PDF/A transcoding is needed before a
// long-term custody phase.
type AttachmentKind string

const (
	KindPDF           AttachmentKind = "pdf"
	KindWordProcessor AttachmentKind = "word-processor"
	KindImage         AttachmentKind = "image"
	KindSpreadsheet   AttachmentKind = "spreadsheet"
	KindOther         AttachmentKind = "other"
)

// IsValid checks membership in the closed kind set.
func (k AttachmentKind) IsValid() bool {
	switch k {
	case KindPDF, KindWordProcessor, KindImage, KindSpreadsheet, KindOther:
		return true
	}
	return false
}

// Attachment is a file reference owned by whichever version snapshot holds
// it. The live attachment list of a document is the snapshot of its current
// version.
type Attachment struct {
	ID        id.AttachmentID `json:"id"`
	Name      string          `json:"name"`
	SizeBytes int64           `json:"size_bytes"`
	Kind      AttachmentKind  `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
}

// CloneAttachments copies an attachment list by value so later edits on the
// caller's slice or the live document never reach a historical snapshot.
// Services snapshotting caller-supplied attachments must go through this.
func CloneAttachments(in []Attachment) []Attachment {
	if in == nil {
		return nil
	}
	out := make([]Attachment, len(in))
	copy(out, in)
	return out
}
