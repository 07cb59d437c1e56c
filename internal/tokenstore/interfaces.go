package tokenstore

import "context"

// Store reads and writes an opaque blob to persistent storage. The blob's
// format is owned by the caller (e.g. the identity library's serialized token
// cache); stores never inspect it.
//
// Delegated OAuth authentication requires writable storage.
type Store interface {
	// Read returns the stored blob. Returns ErrNotFound if nothing has been
	// stored yet, so callers can distinguish "first run" from real failures.
	Read(ctx context.Context) ([]byte, error)

	// Write persists the blob to storage, replacing any previous content.
	// Returns an error if the storage backend is read-only (e.g. environment
	// variables) or if the write fails.
	Write(ctx context.Context, data []byte) error
}
