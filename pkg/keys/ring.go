package keys

import (
	"context"
	"log"
	"sync/atomic"
)

// Ring holds the current Store and replaces it wholesale on Reload. Readers
// always see either the previous or the next complete store.
type Ring struct {
	basePath string
	current  atomic.Pointer[Store]
}

// NewRing loads basePath synchronously before returning.
func NewRing(basePath string) *Ring {
	ring := &Ring{basePath: basePath}
	ring.current.Store(Load(basePath))
	return ring
}

func (r *Ring) Current() *Store {
	return r.current.Load()
}

func (r *Ring) Lookup(keyID string) (*Entry, bool) {
	return r.current.Load().Lookup(keyID)
}

// Reload builds a fresh store from the base path and swaps it in.
func (r *Ring) Reload() {
	next := Load(r.basePath)
	previous := r.current.Swap(next)
	log.Printf("keys: reloaded %s (%d -> %d keys)\n", r.basePath, previous.Len(), next.Len())
}

// Watch reloads the ring whenever files under the base path change. It
// returns once the watcher is running; the watcher stops when ctx is done.
func (r *Ring) Watch(ctx context.Context) error {
	return watchDir(ctx, r.basePath, r.Reload)
}
