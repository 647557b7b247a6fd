package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Tenant is the ambient tenant. A nil ID means no tenant is active and
// tenant-scoped filtering is suspended.
type Tenant struct {
	ID   *uuid.UUID
	Name string
}

// CurrentTenant returns the ambient tenant, or the zero Tenant when no
// session is attached.
func CurrentTenant(ctx context.Context) Tenant {
	if s := FromContext(ctx); s != nil {
		return s.tenant
	}
	return Tenant{}
}

// CurrentTenantID returns the ambient tenant id, nil when none is active.
func CurrentTenantID(ctx context.Context) *uuid.UUID {
	return CurrentTenant(ctx).ID
}

// ChangeTenant swaps the ambient tenant and returns a restore function
// reinstating the exact previous (id, name) pair. Nested changes unwind
// LIFO when restores run in defer order; each restore puts back the pair
// it captured regardless of changes made in between, and is safe to call
// more than once.
func ChangeTenant(ctx context.Context, id *uuid.UUID, name string) (restore func()) {
	s := FromContext(ctx)
	if s == nil {
		return func() {}
	}

	prev := s.tenant
	s.tenant = Tenant{ID: id, Name: name}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.tenant = prev
		})
	}
}
