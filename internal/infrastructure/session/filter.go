package session

import (
	"context"
	"sync"
)

// The soft-delete filter gate is a reference-counted toggle scoped to one
// session. While the counter is above zero the standing "not deleted"
// predicate is suspended, letting privileged operations such as hard
// delete locate rows that are already flagged deleted.

// SoftDeleteFilterEnabled reports whether the soft-delete standing filter
// is in force for this context. Contexts without a session keep the
// filter enabled.
func SoftDeleteFilterEnabled(ctx context.Context) bool {
	s := FromContext(ctx)
	return s == nil || s.softDeleteDisabled == 0
}

// DisableSoftDeleteFilter suspends the soft-delete filter for the scope
// of the returned restore function. Scopes nest; the filter re-engages
// only when every restore has run. Restores are safe to call more than
// once.
func DisableSoftDeleteFilter(ctx context.Context) (restore func()) {
	s := FromContext(ctx)
	if s == nil {
		return func() {}
	}

	s.softDeleteDisabled++

	var once sync.Once
	return func() {
		once.Do(func() {
			if s.softDeleteDisabled > 0 {
				s.softDeleteDisabled--
			}
		})
	}
}

// EnableSoftDeleteFilter re-engages the filter one level early, floored
// at zero. Disposing the returned restore reverses exactly this call's
// effect: it re-suspends the filter if this call actually decremented.
func EnableSoftDeleteFilter(ctx context.Context) (restore func()) {
	s := FromContext(ctx)
	if s == nil || s.softDeleteDisabled == 0 {
		return func() {}
	}

	s.softDeleteDisabled--

	var once sync.Once
	return func() {
		once.Do(func() {
			s.softDeleteDisabled++
		})
	}
}
