package async

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPreservesOrder(t *testing.T) {
	inputs := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	results := Map(context.Background(), inputs, 3, func(ctx context.Context, in int) (string, error) {
		// finish out of submission order
		time.Sleep(time.Duration(10-in) * time.Millisecond)
		return strconv.Itoa(in), nil
	})

	require.Len(t, results, len(inputs))
	for i, res := range results {
		v, err := res.Value()
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(i), v)
	}
}

func TestMapBoundsConcurrency(t *testing.T) {
	var current, peak atomic.Int64
	var mu sync.Mutex

	observe := func() {
		n := current.Add(1)
		mu.Lock()
		if n > peak.Load() {
			peak.Store(n)
		}
		mu.Unlock()
	}

	inputs := make([]int, 20)
	Map(context.Background(), inputs, 3, func(ctx context.Context, in int) (int, error) {
		observe()
		defer current.Add(-1)
		time.Sleep(5 * time.Millisecond)
		return in, nil
	})

	assert.LessOrEqual(t, peak.Load(), int64(3))
	assert.Greater(t, peak.Load(), int64(1))
}

func TestMapIsolatesFailures(t *testing.T) {
	wantErr := errors.New("bad input")
	inputs := []int{1, 2, 3}

	results := Map(context.Background(), inputs, 2, func(ctx context.Context, in int) (int, error) {
		if in == 2 {
			return 0, wantErr
		}
		return in * 10, nil
	})

	v, err := results[0].Value()
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	_, err = results[1].Value()
	assert.ErrorIs(t, err, wantErr)

	v, err = results[2].Value()
	require.NoError(t, err)
	assert.Equal(t, 30, v)
}

func TestMapEmptyInput(t *testing.T) {
	results := Map(context.Background(), []int(nil), 4, func(ctx context.Context, in int) (int, error) {
		return in, nil
	})
	assert.Empty(t, results)
}

func TestMapDefaultLimit(t *testing.T) {
	results := Map(context.Background(), []int{1, 2}, 0, func(ctx context.Context, in int) (int, error) {
		return in, nil
	})
	require.Len(t, results, 2)
	assert.True(t, results[0].Ok())
	assert.True(t, results[1].Ok())
}

func TestMapCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := Map(ctx, []int{1, 2, 3}, 2, func(ctx context.Context, in int) (int, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return in, nil
	})

	for _, res := range results {
		assert.Error(t, res.Error())
	}
}
