package handler

import (
	"time"

	"github.com/okatech-org/digitalium-archive/internal/archive/conversion"
	"github.com/okatech-org/digitalium-archive/internal/archive/engine"
	"github.com/okatech-org/digitalium-archive/internal/archive/models"
	"github.com/okatech-org/digitalium-archive/internal/archive/policy"
)

type documentResponse struct {
	ID               string            `json:"id"`
	Classification   string            `json:"classification"`
	Status           string            `json:"status"`
	StatusChangedAt  time.Time         `json:"status_changed_at"`
	StatusChangedBy  string            `json:"status_changed_by"`
	RetentionEndDate *time.Time        `json:"retention_end_date,omitempty"`
	FinalDisposition string            `json:"final_disposition,omitempty"`
	Versions         []versionResponse `json:"versions"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type versionResponse struct {
	VersionNumber     int                 `json:"version_number"`
	Label             string              `json:"label"`
	ChangeDescription string              `json:"change_description"`
	ChangeType        string              `json:"change_type"`
	Author            string              `json:"author"`
	CreatedAt         time.Time           `json:"created_at"`
	IsCurrent         bool                `json:"is_current"`
	IsLocked          bool                `json:"is_locked"`
	ContentHash       string              `json:"content_hash"`
	Attachments       []models.Attachment `json:"attachments"`
}

func toDocumentResponse(doc *models.Document) documentResponse {
	versions := make([]versionResponse, 0, len(doc.Versions))
	for _, v := range doc.Versions {
		versions = append(versions, toVersionResponse(v))
	}
	return documentResponse{
		ID:               doc.ID.String(),
		Classification:   string(doc.Classification),
		Status:           doc.Status.String(),
		StatusChangedAt:  doc.StatusChangedAt,
		StatusChangedBy:  doc.StatusChangedBy,
		RetentionEndDate: doc.RetentionEndDate,
		FinalDisposition: string(doc.FinalDisposition),
		Versions:         versions,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
}

func toVersionResponse(v models.Version) versionResponse {
	return versionResponse{
		VersionNumber:     v.VersionNumber,
		Label:             v.Label,
		ChangeDescription: v.ChangeDescription,
		ChangeType:        string(v.ChangeType),
		Author:            v.Author,
		CreatedAt:         v.CreatedAt,
		IsCurrent:         v.IsCurrent,
		IsLocked:          v.IsLocked,
		ContentHash:       v.ContentHash,
		Attachments:       v.AttachmentSnapshot,
	}
}

type transitionResponse struct {
	Document          documentResponse       `json:"document"`
	Rule              policy.TransitionRule  `json:"rule"`
	Retention         policy.RetentionStatus `json:"retention"`
	ConversionSummary *conversion.Summary    `json:"conversion_summary,omitempty"`
}

func toTransitionResponse(result *engine.Result) transitionResponse {
	return transitionResponse{
		Document:          toDocumentResponse(result.Document),
		Rule:              result.Rule,
		Retention:         result.Retention,
		ConversionSummary: result.ConversionSummary,
	}
}

type verifyIntegrityResponse struct {
	VersionNumber int  `json:"version_number"`
	Intact        bool `json:"intact"`
}

type allowedActionsResponse struct {
	Status  string          `json:"status"`
	Actions []policy.Action `json:"actions"`
}
