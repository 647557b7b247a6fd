package crud

import "gorm.io/gorm"

// Ack acknowledges a completed write. ConcurrencyStamp carries the stamp the
// server assigned during the write and is empty for record types without
// optimistic concurrency.
type Ack[K comparable] struct {
	ID               K      `json:"id"`
	ConcurrencyStamp string `json:"concurrency_stamp,omitempty"`
}

// PageInput bounds a list query. Zero or negative values disable the
// corresponding bound.
type PageInput struct {
	SkipCount      int `json:"skip_count" form:"skip_count"`
	MaxResultCount int `json:"max_result_count" form:"max_result_count"`
}

// PagedResult is the envelope returned by paged list operations.
// TotalCount counts every visible record of the type, FilteredCount counts
// records matching the caller's scopes before paging is applied.
type PagedResult[O any] struct {
	TotalCount    int64 `json:"total_count"`
	FilteredCount int64 `json:"filtered_count"`
	Items         []O   `json:"items"`
}

// Scope narrows a list query with caller-supplied predicates.
type Scope func(*gorm.DB) *gorm.DB
