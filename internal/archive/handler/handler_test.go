package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"github.com/okatech-org/digitalium-archive/internal/archive/engine"
	"github.com/okatech-org/digitalium-archive/internal/archive/ledger"
	"github.com/okatech-org/digitalium-archive/internal/archive/policy"
	"github.com/okatech-org/digitalium-archive/internal/archive/store/document"
	jwttoken "github.com/okatech-org/digitalium-archive/internal/jwt_token"
	audit "github.com/okatech-org/digitalium-archive/pkg/platform/audit"
	auditMemory "github.com/okatech-org/digitalium-archive/pkg/platform/audit/store/memory"
)

// =============================================================================
// Document Handler Test Suite
// =============================================================================
// Full-stack transport tests: chi router, middleware chain, JWT actor
// extraction and the role gate in front of approval-required transitions.

type HandlerSuite struct {
	suite.Suite
	router http.Handler
	jwt    *jwttoken.Service
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	store := document.NewInMemory()
	publisher := audit.NewPublisher(auditMemory.NewInMemoryStore())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	eng, err := engine.New(store,
		engine.WithAuditPublisher(publisher),
		engine.WithLogger(logger),
	)
	s.Require().NoError(err)

	led, err := ledger.New(store,
		ledger.WithAuditPublisher(publisher),
		ledger.WithLogger(logger),
	)
	s.Require().NoError(err)

	s.jwt = jwttoken.NewService("test-signing-key", "archive", "archive-api")

	h := New(eng, led, publisher, logger, jwttoken.NewAdapter(s.jwt))
	r := chi.NewRouter()
	h.Register(r)
	s.router = r
}

func (s *HandlerSuite) token(actor, role string) string {
	token, err := s.jwt.GenerateAccessToken(actor, role, time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *HandlerSuite) do(method, path, token string, payload any) *httptest.ResponseRecorder {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		s.Require().NoError(err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(v))
}

func (s *HandlerSuite) createDocument() string {
	rec := s.do(http.MethodPost, "/documents", s.token("marie.okome", "agent"), map[string]any{
		"classification": "contrat",
		"attachments": []map[string]any{
			{"name": "contrat.docx", "size_bytes": 2048, "kind": "word-processor"},
		},
	})
	s.Require().Equal(http.StatusCreated, rec.Code)

	var resp documentResponse
	s.decode(rec, &resp)
	return resp.ID
}

// =============================================================================
// Authentication Tests
// =============================================================================

func (s *HandlerSuite) TestAuthentication() {
	s.Run("missing token is rejected", func() {
		rec := s.do(http.MethodPost, "/documents", "", map[string]any{"classification": "contrat"})
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("garbage token is rejected", func() {
		rec := s.do(http.MethodPost, "/documents", "not-a-jwt", map[string]any{"classification": "contrat"})
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("expired token is rejected", func() {
		expired, err := s.jwt.GenerateAccessToken("marie.okome", "agent", -time.Minute)
		s.Require().NoError(err)
		rec := s.do(http.MethodPost, "/documents", expired, map[string]any{"classification": "contrat"})
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

// =============================================================================
// Document Endpoint Tests
// =============================================================================

func (s *HandlerSuite) TestCreateAndGetDocument() {
	s.Run("create returns the initial snapshot", func() {
		rec := s.do(http.MethodPost, "/documents", s.token("marie.okome", "agent"), map[string]any{
			"classification": "contrat",
			"attachments": []map[string]any{
				{"name": "contrat.docx", "size_bytes": 2048, "kind": "word-processor"},
			},
		})
		s.Require().Equal(http.StatusCreated, rec.Code)

		var resp documentResponse
		s.decode(rec, &resp)
		s.Equal("active", resp.Status)
		s.Equal("marie.okome", resp.StatusChangedBy)
		s.NotNil(resp.RetentionEndDate)
		s.Require().Len(resp.Versions, 1)
		s.True(resp.Versions[0].IsCurrent)
	})

	s.Run("create rejects unknown attachment kinds", func() {
		rec := s.do(http.MethodPost, "/documents", s.token("marie.okome", "agent"), map[string]any{
			"classification": "contrat",
			"attachments":    []map[string]any{{"name": "x", "kind": "hologram"}},
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("get returns the stored document", func() {
		docID := s.createDocument()

		rec := s.do(http.MethodGet, "/documents/"+docID, s.token("marie.okome", "agent"), nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp documentResponse
		s.decode(rec, &resp)
		s.Equal(docID, resp.ID)
	})

	s.Run("malformed id is a bad request", func() {
		rec := s.do(http.MethodGet, "/documents/not-a-uuid", s.token("marie.okome", "agent"), nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown id is not found", func() {
		rec := s.do(http.MethodGet, "/documents/0e9cf1a8-98f1-4c64-9a3a-111111111111", s.token("marie.okome", "agent"), nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

// =============================================================================
// Transition Endpoint Tests
// =============================================================================

func (s *HandlerSuite) TestRequestTransition() {
	s.Run("forward transition without approval", func() {
		docID := s.createDocument()

		rec := s.do(http.MethodPost, "/documents/"+docID+"/transition", s.token("marie.okome", "agent"), map[string]any{
			"target_status": "semi_active",
		})
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp transitionResponse
		s.decode(rec, &resp)
		s.Equal("semi_active", resp.Document.Status)
		s.Require().NotNil(resp.ConversionSummary)
		s.Equal(1, resp.ConversionSummary.NeedsConversion)
	})

	s.Run("approval-gated transition needs the approver role", func() {
		docID := s.createDocument()

		rec := s.do(http.MethodPost, "/documents/"+docID+"/transition", s.token("marie.okome", "agent"), map[string]any{
			"target_status": "archived",
			"justification": "versement anticipé",
		})
		s.Equal(http.StatusForbidden, rec.Code)

		rec = s.do(http.MethodPost, "/documents/"+docID+"/transition", s.token("p.ndong", "archiviste"), map[string]any{
			"target_status": "archived",
			"justification": "versement anticipé",
		})
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp transitionResponse
		s.decode(rec, &resp)
		s.Equal("archived", resp.Document.Status)
		s.True(resp.Document.Versions[0].IsLocked)
	})

	s.Run("approver role without justification is unprocessable", func() {
		docID := s.createDocument()

		rec := s.do(http.MethodPost, "/documents/"+docID+"/transition", s.token("p.ndong", "archiviste"), map[string]any{
			"target_status": "archived",
		})
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
	})

	s.Run("illegal backward move conflicts", func() {
		docID := s.createDocument()

		rec := s.do(http.MethodPost, "/documents/"+docID+"/transition", s.token("marie.okome", "agent"), map[string]any{
			"target_status": "semi_active",
		})
		s.Require().Equal(http.StatusOK, rec.Code)

		rec = s.do(http.MethodPost, "/documents/"+docID+"/transition", s.token("marie.okome", "agent"), map[string]any{
			"target_status": "active",
		})
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("unknown target status is a bad request", func() {
		docID := s.createDocument()

		rec := s.do(http.MethodPost, "/documents/"+docID+"/transition", s.token("marie.okome", "agent"), map[string]any{
			"target_status": "purgatoire",
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("available transitions follow the document's status", func() {
		docID := s.createDocument()

		rec := s.do(http.MethodGet, "/documents/"+docID+"/transitions", s.token("marie.okome", "agent"), nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var rules []map[string]any
		s.decode(rec, &rules)
		s.Len(rules, 3)
	})
}

// =============================================================================
// Retention / Conversion / Actions Tests
// =============================================================================

func (s *HandlerSuite) TestReadEndpoints() {
	s.Run("retention status reports the countdown", func() {
		docID := s.createDocument()

		rec := s.do(http.MethodGet, "/documents/"+docID+"/retention", s.token("marie.okome", "agent"), nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp struct {
			DaysRemaining *int   `json:"days_remaining"`
			Urgency       string `json:"urgency"`
		}
		s.decode(rec, &resp)
		s.Require().NotNil(resp.DaysRemaining)
		s.Equal("normal", resp.Urgency)
	})

	s.Run("conversion summary counts non-pdf attachments", func() {
		docID := s.createDocument()

		rec := s.do(http.MethodGet, "/documents/"+docID+"/conversion-summary", s.token("marie.okome", "agent"), nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp struct {
			NeedsConversion int `json:"needs_conversion"`
			Total           int `json:"total"`
		}
		s.decode(rec, &resp)
		s.Equal(1, resp.NeedsConversion)
		s.Equal(1, resp.Total)
	})

	s.Run("allowed actions reflect the custody phase", func() {
		docID := s.createDocument()

		rec := s.do(http.MethodGet, "/documents/"+docID+"/actions", s.token("marie.okome", "agent"), nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp allowedActionsResponse
		s.decode(rec, &resp)
		s.Equal("active", resp.Status)
		s.Contains(resp.Actions, policy.ActionEdit)
		s.NotContains(resp.Actions, policy.ActionCertifiedCopy)
	})

	s.Run("audit trail lists the document's events", func() {
		docID := s.createDocument()

		rec := s.do(http.MethodGet, "/documents/"+docID+"/audit", s.token("marie.okome", "agent"), nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var events []map[string]any
		s.decode(rec, &events)
		s.Require().Len(events, 1)
		s.Equal("document_created", events[0]["action"])
	})
}

// =============================================================================
// Version Endpoint Tests
// =============================================================================

func (s *HandlerSuite) TestVersionEndpoints() {
	s.Run("append version", func() {
		docID := s.createDocument()

		rec := s.do(http.MethodPost, "/documents/"+docID+"/versions", s.token("marie.okome", "agent"), map[string]any{
			"change_type":        "minor",
			"change_description": "clause de révision ajoutée",
		})
		s.Require().Equal(http.StatusCreated, rec.Code)

		var resp versionResponse
		s.decode(rec, &resp)
		s.Equal(2, resp.VersionNumber)
		s.True(resp.IsCurrent)
		s.NotEmpty(resp.ContentHash)
	})

	s.Run("append with a replacement snapshot", func() {
		docID := s.createDocument()

		rec := s.do(http.MethodPost, "/documents/"+docID+"/versions", s.token("marie.okome", "agent"), map[string]any{
			"change_type":        "major",
			"change_description": "avenant signé",
			"attachments": []map[string]any{
				{"name": "avenant.pdf", "size_bytes": 4096, "kind": "pdf"},
			},
		})
		s.Require().Equal(http.StatusCreated, rec.Code)

		var resp versionResponse
		s.decode(rec, &resp)
		s.Require().Len(resp.Attachments, 1)
		s.Equal("avenant.pdf", resp.Attachments[0].Name)
	})

	s.Run("relabel an unlocked version", func() {
		docID := s.createDocument()

		rec := s.do(http.MethodPatch, "/documents/"+docID+"/versions/1", s.token("marie.okome", "agent"), map[string]any{
			"label": "1.0-signée",
		})
		s.Equal(http.StatusNoContent, rec.Code)
	})

	s.Run("relabel a locked version returns locked", func() {
		docID := s.createDocument()

		rec := s.do(http.MethodPost, "/documents/"+docID+"/lock", s.token("p.ndong", "archiviste"), nil)
		s.Require().Equal(http.StatusNoContent, rec.Code)

		rec = s.do(http.MethodPatch, "/documents/"+docID+"/versions/1", s.token("marie.okome", "agent"), map[string]any{
			"label": "1.1",
		})
		s.Equal(http.StatusLocked, rec.Code)
	})

	s.Run("verify integrity of an archived document", func() {
		docID := s.createDocument()

		rec := s.do(http.MethodPost, "/documents/"+docID+"/transition", s.token("p.ndong", "archiviste"), map[string]any{
			"target_status": "archived",
			"justification": "versement",
		})
		s.Require().Equal(http.StatusOK, rec.Code)

		rec = s.do(http.MethodGet, "/documents/"+docID+"/versions/1/verify", s.token("marie.okome", "agent"), nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp verifyIntegrityResponse
		s.decode(rec, &resp)
		s.True(resp.Intact)
		s.Equal(1, resp.VersionNumber)
	})

	s.Run("append to an archived document is forbidden", func() {
		docID := s.createDocument()

		rec := s.do(http.MethodPost, "/documents/"+docID+"/transition", s.token("p.ndong", "archiviste"), map[string]any{
			"target_status": "archived",
			"justification": "versement",
		})
		s.Require().Equal(http.StatusOK, rec.Code)

		rec = s.do(http.MethodPost, "/documents/"+docID+"/versions", s.token("marie.okome", "agent"), map[string]any{
			"change_type":        "minor",
			"change_description": "tentative",
		})
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("bad version number is rejected", func() {
		docID := s.createDocument()

		rec := s.do(http.MethodGet, "/documents/"+docID+"/versions/zero/verify", s.token("marie.okome", "agent"), nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}
