// Package httputil maps coded domain errors onto HTTP responses so handlers
// never switch on error strings.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "github.com/okatech-org/digitalium-archive/pkg/domain-errors"
)

// statusByCode maps each domain error code to an HTTP status. Unknown codes
// fall through to 500.
var statusByCode = map[dErrors.Code]int{
	dErrors.CodeInvalidInput:         http.StatusBadRequest,
	dErrors.CodeBadRequest:           http.StatusBadRequest,
	dErrors.CodeValidation:           http.StatusBadRequest,
	dErrors.CodeUnauthorized:         http.StatusUnauthorized,
	dErrors.CodeNotFound:             http.StatusNotFound,
	dErrors.CodeConflict:             http.StatusConflict,
	dErrors.CodeInvariantViolation:   http.StatusConflict,
	dErrors.CodeTransitionNotAllowed: http.StatusConflict,
	dErrors.CodeTerminalState:        http.StatusConflict,
	dErrors.CodeApprovalRequired:     http.StatusUnprocessableEntity,
	dErrors.CodePermissionDenied:     http.StatusForbidden,
	dErrors.CodeVersionLocked:        http.StatusLocked,
	dErrors.CodeInternal:             http.StatusInternalServerError,
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError renders err as a JSON error response. Internal errors omit the
// description so store failures never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	body := errorBody{Error: string(code)}
	if status != http.StatusInternalServerError {
		var de *dErrors.Error
		if errors.As(err, &de) {
			body.ErrorDescription = de.Message
		}
	}

	WriteJSON(w, status, body)
}

// WriteJSON renders v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
