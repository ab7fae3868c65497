package middleware

import (
	"context"

	"github.com/angelmondragon/promoredeem/pkg/enums"
)

type contextKey uint8

const (
	ctxUserID contextKey = iota + 1
	ctxRole
	ctxRequestID
)

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ctxUserID, userID)
}

// UserIDFromContext yields 0 for anonymous requests.
func UserIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(ctxUserID).(int64)
	return id
}

func WithRole(ctx context.Context, role enums.MemberRole) context.Context {
	return context.WithValue(ctx, ctxRole, role)
}

func RoleFromContext(ctx context.Context) enums.MemberRole {
	role, _ := ctx.Value(ctxRole).(enums.MemberRole)
	return role
}
