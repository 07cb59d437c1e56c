package auth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"

	"github.com/flowctl/flowctl/internal/tokenstore"
)

// CacheAccessor bridges the identity library's token cache to a
// tokenstore.Store. The cache blob is opaque; the accessor only moves it
// between the library's in-memory cache and persistent storage.
//
// The library invokes Export after every acquisition, changed or not, so the
// accessor keeps the last blob it saw and skips the write when the serialized
// cache is byte-identical. That preserves the persist-only-when-dirty contract
// without trusting a library-side flag.
type CacheAccessor struct {
	store tokenstore.Store

	mu   sync.Mutex
	last []byte
}

// Compile-time check to ensure CacheAccessor implements cache.ExportReplace
var _ cache.ExportReplace = (*CacheAccessor)(nil)

// NewCacheAccessor creates a CacheAccessor backed by the given store.
func NewCacheAccessor(store tokenstore.Store) *CacheAccessor {
	return &CacheAccessor{store: store}
}

// Replace loads the persisted cache into the identity library's in-memory
// cache. A missing blob means a first run and leaves the cache empty. The
// interface has no error return; failures are logged and treated as an empty
// cache, which at worst forces an interactive login.
func (a *CacheAccessor) Replace(c cache.Unmarshaler, key string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := a.store.Read(context.Background())
	if errors.Is(err, tokenstore.ErrNotFound) {
		a.last = nil
		return
	}
	if err != nil {
		slog.Warn("failed to load token cache", "error", err)
		return
	}

	if err := c.Unmarshal(data); err != nil {
		slog.Warn("failed to deserialize token cache", "error", err)
		return
	}
	a.last = data
}

// Export persists the serialized cache, skipping the write when nothing
// changed since the last Replace or Export.
func (a *CacheAccessor) Export(c cache.Marshaler, key string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := c.Marshal()
	if err != nil {
		slog.Warn("failed to serialize token cache", "error", err)
		return
	}

	if bytes.Equal(data, a.last) {
		return
	}

	if err := a.store.Write(context.Background(), data); err != nil {
		// Data loss for refresh material: the current token still works, but
		// the next invocation will have to run the interactive flow again.
		slog.Error("failed to persist token cache", "error", err)
		return
	}
	a.last = data
}
