package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyResolver_MemoizesHitsAndMisses(t *testing.T) {
	var calls atomic.Int32
	r := NewKeyResolver(func(ctx context.Context, key string) (uint64, bool, error) {
		calls.Add(1)
		if key == "CASJ" {
			return 42, true, nil
		}
		return 0, false, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, found, err := r.Resolve(context.Background(), "CASJ")
			assert.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, uint64(42), id)
		}()
	}
	wg.Wait()

	_, found, err := r.Resolve(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.False(t, found)
	_, _, _ = r.Resolve(context.Background(), "NOPE")

	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestKeyResolver_PreloadAndErrors(t *testing.T) {
	r := NewKeyResolver(func(ctx context.Context, key string) (uint64, bool, error) {
		return 0, false, errors.New("db down")
	})
	r.Preload(map[string]uint64{"19458": 9})

	id, found, err := r.Resolve(context.Background(), "19458")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(9), id)

	_, _, err = r.Resolve(context.Background(), "1")
	assert.EqualError(t, err, "db down")
}
