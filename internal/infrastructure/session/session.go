// Package session holds the ambient per-request state: the current user,
// the current tenant, and the soft-delete filter gate. The state lives in
// a Session value attached to the request context, so two concurrent
// requests never observe each other's ambient state, while child tasks
// spawned with the same context share it deliberately.
package session

import (
	"context"
	"errors"
)

// ErrClaimsAlreadySet is returned when SetClaims is called twice on the
// same session. The ambient user is derived once per request.
var ErrClaimsAlreadySet = errors.New("session: claims already set")

type ctxKey struct{}

// Session is the mutable per-request ambient state container.
// It is not safe for use across unrelated goroutines; callers share it
// only through the context it was attached to.
type Session struct {
	user    User
	userSet bool
	tenant  Tenant

	// softDeleteDisabled counts active bypass scopes. Zero means the
	// soft-delete standing filter is in force.
	softDeleteDisabled int
}

// NewContext returns a context carrying a fresh Session.
// Call once per logical operation, typically in middleware.
func NewContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, &Session{})
}

// FromContext returns the Session attached to ctx, or nil when absent.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
