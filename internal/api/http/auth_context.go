package httpapi

import (
	"context"

	"github.com/google/uuid"

	"github.com/lancehub/lancehub/internal/domain/bid"
)

type contextKey string

const authUserKey contextKey = "authUser"

// AuthUser is the authenticated principal attached to a request context.
type AuthUser struct {
	UserID    uuid.UUID
	Username  string
	Role      bid.Role
	SessionID uuid.UUID
}

func withAuthUser(ctx context.Context, u *AuthUser) context.Context {
	return context.WithValue(ctx, authUserKey, u)
}

func authUserFrom(ctx context.Context) *AuthUser {
	u, _ := ctx.Value(authUserKey).(*AuthUser)
	return u
}
