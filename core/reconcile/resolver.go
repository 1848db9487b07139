package reconcile

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// LookupFunc resolves one natural key to an internal identifier.
// found=false with a nil error means the key is not persisted.
type LookupFunc func(ctx context.Context, key string) (id uint64, found bool, err error)

// KeyResolver memoizes natural key → internal identifier lookups for the duration of a
// run. Concurrent write units asking for the same key share one lookup.
// Misses are cached too: the run never sees its own writes.
type KeyResolver struct {
	lookup LookupFunc

	mu    sync.RWMutex
	cache map[string]resolved
	sf    singleflight.Group
}

type resolved struct {
	id    uint64
	found bool
}

// NewKeyResolver creates a resolver backed by the given lookup.
func NewKeyResolver(lookup LookupFunc) *KeyResolver {
	return &KeyResolver{
		lookup: lookup,
		cache:  make(map[string]resolved),
	}
}

// Preload seeds the resolver with known identifiers, e.g. from a bulk query.
func (r *KeyResolver) Preload(ids map[string]uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, id := range ids {
		r.cache[key] = resolved{id: id, found: true}
	}
}

// Resolve returns the internal identifier for key.
func (r *KeyResolver) Resolve(ctx context.Context, key string) (uint64, bool, error) {
	// Fast path: already resolved
	r.mu.RLock()
	hit, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return hit.id, hit.found, nil
	}

	// Slow path: one lookup per key even under concurrent callers
	v, err, _ := r.sf.Do(key, func() (interface{}, error) {
		r.mu.RLock()
		hit, ok := r.cache[key]
		r.mu.RUnlock()
		if ok {
			return hit, nil
		}

		id, found, err := r.lookup(ctx, key)
		if err != nil {
			return nil, err
		}

		res := resolved{id: id, found: found}
		r.mu.Lock()
		r.cache[key] = res
		r.mu.Unlock()
		return res, nil
	})
	if err != nil {
		return 0, false, err
	}

	res := v.(resolved)
	return res.id, res.found, nil
}
