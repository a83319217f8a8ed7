package controllers

import (
	"net/http"

	"github.com/siva27neelam/story-telling/api/middleware"
	"github.com/siva27neelam/story-telling/api/responses"
)

func AdminPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{
			"scope":    "admin",
			"status":   "ok",
			"operator": middleware.OperatorFromContext(r.Context()),
			"role":     middleware.RoleFromContext(r.Context()).String(),
		})
	}
}
