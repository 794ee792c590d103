// Package docstore abstracts the document database used for concert, photo,
// comment and like records. Two implementations exist: MongoStore for
// production and MemoryStore for tests and local development.
package docstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get/Update/Delete when no document with the
	// given id exists in the collection.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrExists is returned by Create when a document with the given id is
	// already present. This is the store-enforced uniqueness the like guard
	// relies on.
	ErrExists = errors.New("docstore: document already exists")
)

// Filter is an equality predicate on a document field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents from a collection. OrderBy orders by a single
// field; Desc reverses. Limit <= 0 means no limit.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
}

// Document is a stored record plus its id.
type Document struct {
	ID   string
	Data map[string]any
}

// MutationOp enumerates the operations allowed inside a Batch.
type MutationOp int

const (
	OpSet MutationOp = iota
	OpUpdate
	OpDelete
	OpIncrement
)

// Mutation is one entry of a Batch. For OpIncrement, Field and Delta are
// used; for OpSet and OpUpdate, Data is used.
type Mutation struct {
	Op         MutationOp
	Collection string
	ID         string
	Data       map[string]any
	Field      string
	Delta      int64
}

// Store is the document database client consumed by the services. Increment
// must be atomic at the store (no read-modify-write) and clamps the result
// at zero. Batch applies all mutations or none where the backing store
// supports multi-document atomicity.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	// Create inserts a new document, failing with ErrExists if the id is
	// already taken.
	Create(ctx context.Context, collection, id string, data map[string]any) error
	// Set inserts or fully replaces a document.
	Set(ctx context.Context, collection, id string, data map[string]any) error
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	Batch(ctx context.Context, muts []Mutation) error
	Increment(ctx context.Context, collection, id, field string, delta int64) error
}
