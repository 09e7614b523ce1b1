package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "github.com/okatech-org/digitalium-archive/pkg/domain-errors"
	"github.com/okatech-org/digitalium-archive/pkg/platform/httputil"
	"github.com/okatech-org/digitalium-archive/pkg/requestcontext"
)

// TokenClaims is what the transport needs from a validated access token: who
// the actor is and which archival role they hold. Role verification against
// an approver role happens here at the transport boundary; the engine itself
// only enforces the justification requirement.
type TokenClaims struct {
	Actor string
	Role  string
}

// JWTValidator validates a bearer token and extracts the archival claims.
type JWTValidator interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
}

// RequireAuth validates the Authorization bearer token and injects the actor
// and role into the request context for services to consume.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access, missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access, invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			ctx = requestcontext.WithActor(ctx, claims.Actor, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
