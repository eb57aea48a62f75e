// Package trust maintains the set of issuer identifiers the verifying party
// accepts as valid credential sources.
package trust

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Store is the durable set of trusted DID strings. Implementations must be
// safe for concurrent use and must uphold set semantics: re-adding an
// existing entry and removing an absent one are both no-ops.
type Store interface {
	Add(ctx context.Context, did string) error
	Remove(ctx context.Context, did string) error
	List(ctx context.Context) ([]string, error)
}

// Registry exposes the trusted-authority set over a Store. External
// authorities may use any DID method, so entries are only required to be
// non-empty.
type Registry struct {
	store Store
}

// NewRegistry creates a Registry over the given store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Add inserts did into the set. Re-adding an existing entry is a no-op.
func (r *Registry) Add(ctx context.Context, did string) error {
	if did == "" {
		return fmt.Errorf("trusted authority id must not be empty")
	}
	return r.store.Add(ctx, did)
}

// Remove deletes did from the set if present; removing an absent entry is a
// no-op, not an error.
func (r *Registry) Remove(ctx context.Context, did string) error {
	return r.store.Remove(ctx, did)
}

// List returns a snapshot of the current membership.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	return r.store.List(ctx)
}

// IsTrusted reports whether did is a member of the set.
func (r *Registry) IsTrusted(ctx context.Context, did string) (bool, error) {
	members, err := r.store.List(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m == did {
			return true, nil
		}
	}
	return false, nil
}

type memory struct {
	mu   sync.RWMutex
	dids map[string]struct{}
}

// NewMemory returns a concurrency-safe in-memory Store. Useful for tests and
// as a default ephemeral backend.
func NewMemory() Store {
	return &memory{dids: make(map[string]struct{})}
}

func (m *memory) Add(ctx context.Context, did string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dids[did] = struct{}{}
	return nil
}

func (m *memory) Remove(ctx context.Context, did string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.dids, did)
	return nil
}

func (m *memory) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.dids))
	for did := range m.dids {
		out = append(out, did)
	}
	sort.Strings(out)
	return out, nil
}
