package handler

import (
	"context"
	"strings"

	"github.com/okatech-org/digitalium-archive/internal/archive/models"
	id "github.com/okatech-org/digitalium-archive/pkg/domain"
	dErrors "github.com/okatech-org/digitalium-archive/pkg/domain-errors"
	"github.com/okatech-org/digitalium-archive/pkg/requestcontext"
)

type attachmentRequest struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	Kind      string `json:"kind"`
}

type createDocumentRequest struct {
	Classification string              `json:"classification"`
	Attachments    []attachmentRequest `json:"attachments"`
}

func (r createDocumentRequest) validate() error {
	if strings.TrimSpace(r.Classification) == "" {
		return dErrors.New(dErrors.CodeValidation, "classification is required")
	}
	return validateAttachments(r.Attachments)
}

type transitionRequest struct {
	TargetStatus  string `json:"target_status"`
	Justification string `json:"justification"`
}

type appendVersionRequest struct {
	ChangeType        string `json:"change_type"`
	ChangeDescription string `json:"change_description"`
	// Attachments nil carries the current snapshot forward; non-nil replaces
	// it, empty slice included.
	Attachments []attachmentRequest `json:"attachments"`
}

type relabelVersionRequest struct {
	Label             string `json:"label"`
	ChangeDescription string `json:"change_description"`
}

func validateAttachments(in []attachmentRequest) error {
	for _, a := range in {
		if strings.TrimSpace(a.Name) == "" {
			return dErrors.New(dErrors.CodeValidation, "attachment name is required")
		}
		if a.SizeBytes < 0 {
			return dErrors.New(dErrors.CodeValidation, "attachment size cannot be negative")
		}
		if !models.AttachmentKind(a.Kind).IsValid() {
			return dErrors.New(dErrors.CodeValidation, "unknown attachment kind")
		}
	}
	return nil
}

// toAttachments materializes request attachments with fresh identifiers,
// preserving the nil / non-nil distinction for snapshot semantics.
func toAttachments(ctx context.Context, in []attachmentRequest) []models.Attachment {
	if in == nil {
		return nil
	}
	now := requestcontext.Now(ctx)
	out := make([]models.Attachment, 0, len(in))
	for _, a := range in {
		out = append(out, models.Attachment{
			ID:        id.NewAttachmentID(),
			Name:      a.Name,
			SizeBytes: a.SizeBytes,
			Kind:      models.AttachmentKind(a.Kind),
			CreatedAt: now,
		})
	}
	return out
}
