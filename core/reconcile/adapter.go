package reconcile

import "context"

// Adapter defines the entity-specific logic the engine drives.
//
// U is the normalized upstream record, P the persisted projection used for comparison
// and W the write-ready value produced by reference resolution.
type Adapter[U, P, W any] interface {
	// Name returns the entity type name (e.g. "teams", "events", "matches").
	Name() string

	// FetchSnapshot returns the complete, page-flattened upstream collection for the scope.
	// Timestamps must already be normalized and geo fields stripped.
	// Any error aborts the run; partially fetched pages must not be returned.
	FetchSnapshot(ctx context.Context, scope Scope) ([]U, error)

	// LoadIndex loads the persisted collection for the scope, projected to the natural key,
	// the tracked fields and the internal identifier, keyed by natural key.
	// Empty persisted state yields an empty map, not an error.
	LoadIndex(ctx context.Context, scope Scope) (map[string]P, error)

	// UpstreamKey returns the natural key of an upstream record.
	UpstreamKey(record U) string

	// PersistedID returns the internal identifier of a persisted projection.
	PersistedID(item P) uint64

	// CompareFields compares the tracked fields and returns one description per
	// differing field. An empty result means the entity is unchanged.
	CompareFields(item P, record U) []string

	// Resolve converts an upstream record into a write-ready value, resolving foreign
	// natural keys to internal identifiers. An error wrapping ErrReferenceUnresolved
	// skips the entity; omissions report dependent rows dropped without skipping it.
	Resolve(ctx context.Context, record U) (W, []Omission, error)

	// Create inserts one entity together with its child collection.
	Create(ctx context.Context, value W) error

	// Update rewrites the entity with the given internal identifier and replaces its
	// child collection, atomically.
	Update(ctx context.Context, id uint64, value W) error
}

// BatchCreator is implemented by adapters whose entities have no child collection and
// can therefore be inserted in a single bulk statement.
type BatchCreator[W any] interface {
	CreateBatch(ctx context.Context, values []W) error
}
