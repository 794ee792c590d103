// Package storage provides the blob store the photo pipeline writes originals
// and thumbnails to.
package storage

import "context"

// BlobStore is the binary object store collaborator. Put returns the public
// URL of the stored object. Delete of a missing key is not an error; delete
// endpoints are idempotent.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
	MakePublic(ctx context.Context, key string) error
}
