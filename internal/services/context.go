package services

import (
	"context"

	"github.com/civictrack/backend/internal/models"
)

type contextKey int

const (
	userKey contextKey = iota
	adminClaimKey
)

// WithIdentity stores the resolved user and the token's admin claim on the
// request context. Set by the auth middleware.
func WithIdentity(ctx context.Context, user *models.User, adminClaim bool) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, adminClaimKey, adminClaim)
}

// CurrentUser returns the live user record resolved for this request.
func CurrentUser(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok
}

// AdminClaim returns the admin flag as encoded in the presented token. It
// can be stale relative to the live record; privilege checks use the live
// user instead.
func AdminClaim(ctx context.Context) bool {
	claim, _ := ctx.Value(adminClaimKey).(bool)
	return claim
}
