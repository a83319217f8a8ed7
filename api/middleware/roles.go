package middleware

import (
	"net/http"
	"slices"

	"github.com/siva27neelam/story-telling/api/responses"
	"github.com/siva27neelam/story-telling/pkg/enums"
	pkgerrors "github.com/siva27neelam/story-telling/pkg/errors"
	"github.com/siva27neelam/story-telling/pkg/logger"
)

// RequireRole admits requests whose operator holds one of roles.
func RequireRole(logg *logger.Logger, roles ...enums.OperatorRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(roles, RoleFromContext(r.Context())) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
