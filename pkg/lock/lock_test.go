package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_SerializesSameKey(t *testing.T) {
	l := NewLocal()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "order-item:1", 0)
			require.NoError(t, err)
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.False(t, l.Held("order-item:1"), "slot should be cleaned up")
}

func TestLocal_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocal()

	r1, err := l.Acquire(context.Background(), "a", 0)
	require.NoError(t, err)
	defer r1()

	r2, err := l.Acquire(context.Background(), "b", 10*time.Millisecond)
	require.NoError(t, err)
	r2()
}

func TestLocal_WaitTimeout(t *testing.T) {
	l := NewLocal()

	release, err := l.Acquire(context.Background(), "k", 0)
	require.NoError(t, err)
	defer release()

	_, err = l.Acquire(context.Background(), "k", 20*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConcurrentModified))
}

func TestLocal_ContextCancelled(t *testing.T) {
	l := NewLocal()

	release, err := l.Acquire(context.Background(), "k", 0)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, "k", 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocal_ReleaseIsIdempotent(t *testing.T) {
	l := NewLocal()

	release, err := l.Acquire(context.Background(), "k", 0)
	require.NoError(t, err)
	release()
	release()

	again, err := l.Acquire(context.Background(), "k", 10*time.Millisecond)
	require.NoError(t, err)
	again()
	assert.False(t, l.Held("k"))
}
