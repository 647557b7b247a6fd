package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/saaskit/scaffold/internal/infrastructure/auth"
)

// User is the ambient authenticated principal, derived once per request
// from token claims and immutable for the request's duration.
type User struct {
	Authenticated bool
	ID            uuid.UUID
	Username      string
	GivenName     string
	FamilyName    string
	Phone         string
	PhoneVerified bool
	Email         string
	EmailVerified bool
	TenantID      *uuid.UUID
	Roles         []string
}

// SetClaims populates the ambient user from validated token claims.
// A nil claims value marks the session as unauthenticated with all
// fields at their defaults. The ambient tenant is initialized from the
// tenant claim. Calling SetClaims twice on the same session is an error.
func SetClaims(ctx context.Context, claims *auth.Claims) error {
	s := FromContext(ctx)
	if s == nil {
		return nil
	}
	if s.userSet {
		return ErrClaimsAlreadySet
	}
	s.userSet = true

	if claims == nil {
		return nil
	}

	user := User{
		Authenticated: true,
		Username:      claims.Username,
		GivenName:     claims.GivenName,
		FamilyName:    claims.FamilyName,
		Phone:         claims.Phone,
		PhoneVerified: claims.PhoneVerified,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Roles:         claims.Roles,
	}
	if id, err := uuid.Parse(claims.UserID); err == nil {
		user.ID = id
	}
	if claims.TenantID != "" {
		if tid, err := uuid.Parse(claims.TenantID); err == nil {
			user.TenantID = &tid
		}
	}

	s.user = user
	s.tenant = Tenant{ID: user.TenantID}
	return nil
}

// CurrentUser returns the ambient user, or the zero (unauthenticated)
// User when no session is attached.
func CurrentUser(ctx context.Context) User {
	if s := FromContext(ctx); s != nil {
		return s.user
	}
	return User{}
}

// ActorID returns the ambient user's id when authenticated, nil otherwise.
// Audit stamping uses this so a missing actor is never stamped.
func ActorID(ctx context.Context) *uuid.UUID {
	u := CurrentUser(ctx)
	if !u.Authenticated || u.ID == uuid.Nil {
		return nil
	}
	id := u.ID
	return &id
}
