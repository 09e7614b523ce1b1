// Package handler exposes the archival engine over HTTP. It owns the
// transport-side responsibilities the engine deliberately refuses: decoding
// and validating payloads, extracting the authenticated actor from the
// request context, and checking the actor's role against the approver role
// of approval-gated transitions.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okatech-org/digitalium-archive/internal/archive/conversion"
	"github.com/okatech-org/digitalium-archive/internal/archive/engine"
	"github.com/okatech-org/digitalium-archive/internal/archive/models"
	"github.com/okatech-org/digitalium-archive/internal/archive/policy"
	"github.com/okatech-org/digitalium-archive/internal/platform/middleware"
	id "github.com/okatech-org/digitalium-archive/pkg/domain"
	dErrors "github.com/okatech-org/digitalium-archive/pkg/domain-errors"
	audit "github.com/okatech-org/digitalium-archive/pkg/platform/audit"
	"github.com/okatech-org/digitalium-archive/pkg/platform/httputil"
	"github.com/okatech-org/digitalium-archive/pkg/requestcontext"
)

// Engine is the transition-engine surface the transport needs.
type Engine interface {
	CreateDocument(ctx context.Context, classification models.Classification, author string, attachments []models.Attachment) (*models.Document, error)
	GetDocument(ctx context.Context, docID id.DocumentID) (*models.Document, error)
	RequestTransition(ctx context.Context, docID id.DocumentID, targetStatus models.ArchivalStatus, actor, justification string) (*engine.Result, error)
	AvailableTransitions(status models.ArchivalStatus) []policy.TransitionRule
	RetentionStatus(ctx context.Context, docID id.DocumentID) (policy.RetentionStatus, error)
	ConversionSummary(ctx context.Context, docID id.DocumentID) (conversion.Summary, error)
}

// Ledger is the version-ledger surface the transport needs.
type Ledger interface {
	AppendVersion(ctx context.Context, docID id.DocumentID, changeType models.ChangeType, changeDescription, author string, attachments []models.Attachment) (*models.Version, error)
	RelabelVersion(ctx context.Context, docID id.DocumentID, versionNumber int, label, changeDescription string) error
	LockCurrentVersion(ctx context.Context, docID id.DocumentID, actor string) error
	VerifyIntegrity(ctx context.Context, docID id.DocumentID, versionNumber int) (bool, error)
}

// AuditTrail reads back the audit events of one document.
type AuditTrail interface {
	List(ctx context.Context, documentID string) ([]audit.Event, error)
}

// Handler serves the archival document endpoints.
type Handler struct {
	engine       Engine
	ledger       Ledger
	trail        AuditTrail
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

func New(eng Engine, ledger Ledger, trail AuditTrail, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		engine:       eng,
		ledger:       ledger,
		trail:        trail,
		logger:       logger,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the document routes with the full middleware chain.
func (h *Handler) Register(r chi.Router) {
	docs := chi.NewRouter()
	docs.Use(middleware.Recovery(h.logger))
	docs.Use(middleware.RequestID)
	docs.Use(middleware.RequestTime)
	docs.Use(middleware.Logger(h.logger))
	docs.Use(middleware.Timeout(30 * time.Second))
	docs.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	docs.Post("/", h.handleCreateDocument)
	docs.Route("/{documentID}", func(d chi.Router) {
		d.Get("/", h.handleGetDocument)
		d.Get("/transitions", h.handleAvailableTransitions)
		d.Post("/transition", h.handleRequestTransition)
		d.Get("/retention", h.handleRetentionStatus)
		d.Get("/conversion-summary", h.handleConversionSummary)
		d.Get("/actions", h.handleAllowedActions)
		d.Get("/audit", h.handleAuditTrail)
		d.Post("/lock", h.handleLockCurrentVersion)
		d.Post("/versions", h.handleAppendVersion)
		d.Patch("/versions/{versionNumber}", h.handleRelabelVersion)
		d.Get("/versions/{versionNumber}/verify", h.handleVerifyIntegrity)
	})

	r.Mount("/documents", docs)
}

func (h *Handler) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := h.actor(w, ctx)
	if !ok {
		return
	}

	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	doc, err := h.engine.CreateDocument(ctx, models.Classification(req.Classification), actor, toAttachments(ctx, req.Attachments))
	if err != nil {
		h.writeServiceError(w, r, "failed to create document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}

	doc, err := h.engine.GetDocument(r.Context(), docID)
	if err != nil {
		h.writeServiceError(w, r, "failed to load document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *Handler) handleAvailableTransitions(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}

	doc, err := h.engine.GetDocument(r.Context(), docID)
	if err != nil {
		h.writeServiceError(w, r, "failed to load document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.engine.AvailableTransitions(doc.Status))
}

func (h *Handler) handleRequestTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, ctx)
	if !ok {
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	target, err := models.ParseArchivalStatus(req.TargetStatus)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// Role gating happens here, not in the engine: when the requested edge
	// needs approval, the actor must hold the configured approver role. The
	// engine re-validates the edge itself under the document lock.
	doc, err := h.engine.GetDocument(ctx, docID)
	if err != nil {
		h.writeServiceError(w, r, "failed to load document", err)
		return
	}
	if rule, legal := policy.LookupTransition(doc.Status, target); legal && rule.RequiresApproval {
		if role := requestcontext.ActorRole(ctx); role != rule.ApproverRole {
			httputil.WriteError(w, dErrors.New(dErrors.CodePermissionDenied,
				"transition requires the "+rule.ApproverRole+" role"))
			return
		}
	}

	result, err := h.engine.RequestTransition(ctx, docID, target, actor, req.Justification)
	if err != nil {
		h.writeServiceError(w, r, "transition rejected", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTransitionResponse(result))
}

func (h *Handler) handleRetentionStatus(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}

	status, err := h.engine.RetentionStatus(r.Context(), docID)
	if err != nil {
		h.writeServiceError(w, r, "failed to evaluate retention", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) handleConversionSummary(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}

	summary, err := h.engine.ConversionSummary(r.Context(), docID)
	if err != nil {
		h.writeServiceError(w, r, "failed to summarize conversion needs", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleAllowedActions(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}

	doc, err := h.engine.GetDocument(r.Context(), docID)
	if err != nil {
		h.writeServiceError(w, r, "failed to load document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, allowedActionsResponse{
		Status:  doc.Status.String(),
		Actions: policy.AllowedActions(doc.Status),
	})
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}

	// 404 for unknown documents rather than an empty trail.
	if _, err := h.engine.GetDocument(r.Context(), docID); err != nil {
		h.writeServiceError(w, r, "failed to load document", err)
		return
	}

	events, err := h.trail.List(r.Context(), docID.String())
	if err != nil {
		h.writeServiceError(w, r, "failed to list audit trail", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) handleAppendVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, ctx)
	if !ok {
		return
	}

	var req appendVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := validateAttachments(req.Attachments); err != nil {
		httputil.WriteError(w, err)
		return
	}

	version, err := h.ledger.AppendVersion(ctx, docID, models.ChangeType(req.ChangeType), req.ChangeDescription, actor, toAttachments(ctx, req.Attachments))
	if err != nil {
		h.writeServiceError(w, r, "failed to append version", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toVersionResponse(*version))
}

func (h *Handler) handleRelabelVersion(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}
	versionNumber, ok := h.versionNumber(w, r)
	if !ok {
		return
	}

	var req relabelVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.ledger.RelabelVersion(r.Context(), docID, versionNumber, req.Label, req.ChangeDescription); err != nil {
		h.writeServiceError(w, r, "failed to update version", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleVerifyIntegrity(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}
	versionNumber, ok := h.versionNumber(w, r)
	if !ok {
		return
	}

	intact, err := h.ledger.VerifyIntegrity(r.Context(), docID, versionNumber)
	if err != nil {
		h.writeServiceError(w, r, "failed to verify integrity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verifyIntegrityResponse{
		VersionNumber: versionNumber,
		Intact:        intact,
	})
}

func (h *Handler) handleLockCurrentVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, ctx)
	if !ok {
		return
	}

	if err := h.ledger.LockCurrentVersion(ctx, docID, actor); err != nil {
		h.writeServiceError(w, r, "failed to lock version", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) documentID(w http.ResponseWriter, r *http.Request) (id.DocumentID, bool) {
	docID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.DocumentID{}, false
	}
	return docID, true
}

func (h *Handler) versionNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "versionNumber"))
	if err != nil || n < 1 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "version number must be a positive integer"))
		return 0, false
	}
	return n, true
}

// actor reads the authenticated actor the auth middleware placed in context.
// An empty actor past RequireAuth is a wiring bug, reported as internal.
func (h *Handler) actor(w http.ResponseWriter, ctx context.Context) (string, bool) {
	actor := requestcontext.Actor(ctx)
	if actor == "" {
		h.logger.ErrorContext(ctx, "actor missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return "", false
	}
	return actor, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	if dErrors.Is(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, msg,
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}
