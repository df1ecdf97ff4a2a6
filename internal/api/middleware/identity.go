package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eventdeck/server/internal/api/envelope"
	"github.com/eventdeck/server/internal/auth"
	"github.com/eventdeck/server/internal/domain/events"
)

const actorKey contextKey = "actor"

// Identity resolves the acting user from an optional bearer token. Requests
// without a token act as the anonymous owner; a token that fails validation
// is rejected with 401. A nil manager disables token handling entirely.
func Identity(manager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if manager == nil || header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, err := auth.TokenFromHeader(header)
			if err != nil {
				envelope.Fail(w, r, http.StatusUnauthorized, "Invalid authorization format", nil, err)
				return
			}
			claims, err := manager.Validate(token)
			if err != nil {
				envelope.Fail(w, r, http.StatusUnauthorized, "Invalid or expired token", nil, err)
				return
			}

			ctx := context.WithValue(r.Context(), actorKey, claims.Subject)
			logger := zerolog.Ctx(ctx).With().Str("actor", claims.Subject).Logger()
			ctx = logger.WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Actor returns the acting user id, or events.AnonymousOwner.
func Actor(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey).(string); ok && actor != "" {
		return actor
	}
	return events.AnonymousOwner
}
