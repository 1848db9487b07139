package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAdapter is an in-memory adapter over testRecord values.
type mockAdapter struct {
	mu     sync.Mutex
	nextID uint64
	store  map[string]testPersisted

	upstream []testRecord
	fetchErr error
	indexErr error

	// unresolved keys are skipped by Resolve
	unresolved map[string]bool
	// failing keys fail on Create/Update
	failing map[string]bool
	// block makes writes wait for their context to end
	block bool
	// onResolve runs before each Resolve; a non-nil error is returned from it
	onResolve func(key string) error

	creates int
	updates int
}

func newMockAdapter(upstream ...testRecord) *mockAdapter {
	return &mockAdapter{store: map[string]testPersisted{}, upstream: upstream}
}

func (m *mockAdapter) Name() string { return "mock" }

func (m *mockAdapter) FetchSnapshot(ctx context.Context, scope Scope) ([]testRecord, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.upstream, nil
}

func (m *mockAdapter) LoadIndex(ctx context.Context, scope Scope) (map[string]testPersisted, error) {
	if m.indexErr != nil {
		return nil, m.indexErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	index := make(map[string]testPersisted, len(m.store))
	for k, v := range m.store {
		index[k] = v
	}
	return index, nil
}

func (m *mockAdapter) UpstreamKey(r testRecord) string    { return r.Key }
func (m *mockAdapter) PersistedID(p testPersisted) uint64 { return p.ID }
func (m *mockAdapter) CompareFields(p testPersisted, r testRecord) []string {
	return compareTest(p, r)
}

func (m *mockAdapter) Resolve(ctx context.Context, r testRecord) (testRecord, []Omission, error) {
	if m.onResolve != nil {
		if err := m.onResolve(r.Key); err != nil {
			return testRecord{}, nil, err
		}
	}
	if m.unresolved[r.Key] {
		return testRecord{}, nil, Unresolved("parent not found")
	}
	return r, nil, nil
}

func (m *mockAdapter) write(ctx context.Context, r testRecord) error {
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if m.failing[r.Key] {
		return fmt.Errorf("constraint violation on %s", r.Key)
	}
	return nil
}

func (m *mockAdapter) Create(ctx context.Context, r testRecord) error {
	if err := m.write(ctx, r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.store[r.Key] = testPersisted{ID: m.nextID, Key: r.Key, City: r.City, Score: r.Score, When: r.When}
	m.creates++
	return nil
}

func (m *mockAdapter) Update(ctx context.Context, id uint64, r testRecord) error {
	if err := m.write(ctx, r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[r.Key] = testPersisted{ID: id, Key: r.Key, City: r.City, Score: r.Score, When: r.When}
	m.updates++
	return nil
}

// batchAdapter adds bulk inserts to mockAdapter.
type batchAdapter struct {
	*mockAdapter
	batchErr   error
	batchCalls int
}

func (b *batchAdapter) CreateBatch(ctx context.Context, values []testRecord) error {
	b.batchCalls++
	if b.batchErr != nil {
		return b.batchErr
	}
	for _, v := range values {
		if err := b.Create(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

func runMock(ctx context.Context, adapter Adapter[testRecord, testPersisted, testRecord], opts Options) (*Summary, error) {
	return Run(ctx, adapter, Scope{Season: 2025}, opts)
}

func TestRun_Idempotent(t *testing.T) {
	adapter := newMockAdapter(
		testRecord{Key: "1", City: strPtr("Fremont")},
		testRecord{Key: "2", Score: 40},
	)
	opts := Options{Workers: 4}

	first, err := runMock(context.Background(), adapter, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)
	assert.Equal(t, 2, first.Fetched)
	assert.NotEmpty(t, first.RunID)

	second, err := runMock(context.Background(), adapter, opts)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Zero(t, second.Updated)
	assert.Equal(t, 2, second.Unchanged)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRun_UpdateAppliesNewValues(t *testing.T) {
	adapter := newMockAdapter(testRecord{Key: "19458", City: strPtr("San Jose")})
	adapter.store["19458"] = testPersisted{ID: 3, Key: "19458", City: strPtr("Fremont")}

	summary, err := runMock(context.Background(), adapter, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, "San Jose", *adapter.store["19458"].City)
	assert.Equal(t, uint64(3), adapter.store["19458"].ID)
}

func TestRun_StageFailuresAbortWithoutWrites(t *testing.T) {
	tests := []struct {
		name     string
		fetchErr error
		indexErr error
		sentinel error
		stage    string
	}{
		{"fetch", errors.New("503 from upstream"), nil, ErrUpstreamUnavailable, StageFetch},
		{"index", nil, errors.New("connection refused"), ErrIndexUnavailable, StageIndex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newMockAdapter(testRecord{Key: "1"})
			adapter.fetchErr = tt.fetchErr
			adapter.indexErr = tt.indexErr

			summary, err := runMock(context.Background(), adapter, Options{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var stageErr *StageError
			require.True(t, errors.As(err, &stageErr))
			assert.Equal(t, tt.stage, stageErr.Stage)
			assert.Equal(t, "mock", stageErr.Entity)

			assert.Zero(t, adapter.creates)
			assert.Zero(t, summary.Created)
		})
	}
}

func TestRun_UnresolvedReferenceIsSkipped(t *testing.T) {
	adapter := newMockAdapter(testRecord{Key: "1"}, testRecord{Key: "2"}, testRecord{Key: "3"})
	adapter.unresolved = map[string]bool{"2": true, "3": true}

	summary, err := runMock(context.Background(), adapter, Options{Workers: 2})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 2, summary.Skipped)
	require.Len(t, summary.Skips, 2)
	assert.Equal(t, "2", summary.Skips[0].Key)
	assert.Equal(t, "parent not found", summary.Skips[0].Reason)
	assert.NotContains(t, adapter.store, "2")
}

func TestRun_WriteFailureDoesNotAbortBatch(t *testing.T) {
	adapter := newMockAdapter(testRecord{Key: "1"}, testRecord{Key: "2"}, testRecord{Key: "3"})
	adapter.failing = map[string]bool{"2": true}

	summary, err := runMock(context.Background(), adapter, Options{Workers: 3})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "2", summary.Failures[0].Key)
	assert.Contains(t, summary.Failures[0].Reason, "constraint violation")
}

func TestRun_BatchCreate(t *testing.T) {
	adapter := &batchAdapter{mockAdapter: newMockAdapter(testRecord{Key: "1"}, testRecord{Key: "2"})}

	summary, err := runMock(context.Background(), adapter, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, adapter.batchCalls)
	assert.Equal(t, 2, summary.Created)
}

func TestRun_BatchFailureFallsBackToRows(t *testing.T) {
	adapter := &batchAdapter{mockAdapter: newMockAdapter(testRecord{Key: "1"}, testRecord{Key: "2"})}
	adapter.batchErr = errors.New("duplicate entry")
	adapter.failing = map[string]bool{"2": true}

	summary, err := runMock(context.Background(), adapter, Options{Workers: 2})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, adapter.store, "1")
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	adapter := newMockAdapter(testRecord{Key: "1"}, testRecord{Key: "2", City: strPtr("x")})
	adapter.store["2"] = testPersisted{ID: 1, Key: "2"}

	summary, err := runMock(context.Background(), adapter, Options{DryRun: true})
	require.NoError(t, err)

	assert.True(t, summary.DryRun)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Updated)
	assert.Zero(t, adapter.creates)
	assert.Zero(t, adapter.updates)
}

func TestRun_WriteTimeoutFailsOnlyThatEntity(t *testing.T) {
	adapter := newMockAdapter(testRecord{Key: "1"})
	adapter.block = true

	summary, err := runMock(context.Background(), adapter, Options{WriteTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, summary.Failures[0].Reason, "deadline exceeded")
}

func TestRun_CancelledRunStartsNoNewUnits(t *testing.T) {
	adapter := newMockAdapter(testRecord{Key: "1"}, testRecord{Key: "2"})
	ctx, cancel := context.WithCancel(context.Background())

	hooked := false
	opts := Options{
		OnSnapshot: func(ctx context.Context, s *Summary, records any) error {
			hooked = true
			cancel()
			return nil
		},
	}

	summary, err := runMock(ctx, adapter, opts)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, hooked)
	assert.Equal(t, 2, summary.Skipped)
	assert.Zero(t, adapter.creates)
}

func TestRun_CancelledDuringResolveIsSkipped(t *testing.T) {
	adapter := newMockAdapter(testRecord{Key: "1"})
	ctx, cancel := context.WithCancel(context.Background())
	adapter.onResolve = func(string) error {
		cancel()
		return fmt.Errorf("lookup parent: %w", context.Canceled)
	}

	summary, err := runMock(ctx, adapter, Options{Workers: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Failed)
	require.Len(t, summary.Skips, 1)
	assert.Equal(t, "run cancelled", summary.Skips[0].Reason)
	assert.Zero(t, adapter.creates)
}

func TestRun_DuplicatesCounted(t *testing.T) {
	adapter := newMockAdapter(testRecord{Key: "1", Score: 1}, testRecord{Key: "1", Score: 2})

	summary, err := runMock(context.Background(), adapter, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 2, adapter.store["1"].Score)
}
