package crud

import "context"

// Mapper converts between transport shapes and the persisted record.
// NewRecord builds a fresh record from a create input, ApplyUpdate copies an
// update input onto a loaded record, and Output projects a record into the
// read shape. ApplyUpdate must leave the record's identity untouched; the
// service restores the server-controlled concurrency stamp after it runs, so
// mappers that copy a submitted stamp do no harm.
type Mapper[T any, C any, U any, O any] interface {
	NewRecord(ctx context.Context, in C) (*T, error)
	ApplyUpdate(ctx context.Context, rec *T, in U) error
	Output(rec *T) O
}

// ConcurrencyStampCarrier is implemented by update inputs that echo back the
// stamp the client read. Inputs without it skip the staleness check and rely
// on the write-time guard alone.
type ConcurrencyStampCarrier interface {
	GetConcurrencyStamp() string
}

// Keyed exposes a record's identity key. Record types used with the service
// must implement it for their key type; the base model hierarchy already does
// for UUID keys.
type Keyed[K comparable] interface {
	GetID() K
}
