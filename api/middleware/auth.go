package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/siva27neelam/story-telling/api/responses"
	pkgAuth "github.com/siva27neelam/story-telling/pkg/auth"
	"github.com/siva27neelam/story-telling/pkg/config"
	pkgerrors "github.com/siva27neelam/story-telling/pkg/errors"
	"github.com/siva27neelam/story-telling/pkg/logger"
)

// Auth validates an operator bearer token and seeds the request context with
// the operator and role.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseOperatorToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxOperator, claims.Subject)
			ctx = context.WithValue(ctx, ctxRole, claims.Role)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"operator":   claims.Subject,
					"actor_role": claims.Role.String(),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
