package middleware

import (
	"context"

	"github.com/siva27neelam/story-telling/pkg/enums"
)

type contextKey string

const (
	ctxOperator contextKey = "operator"
	ctxRole     contextKey = "actor_role"
)

func OperatorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxOperator).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.OperatorRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.OperatorRole); ok {
		return v
	}
	return ""
}

// WithOperator injects an authenticated operator into the context. Used by
// tests and internal callers that bypass Auth.
func WithOperator(ctx context.Context, operator string, role enums.OperatorRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxOperator, operator)
	return context.WithValue(ctx, ctxRole, role)
}
