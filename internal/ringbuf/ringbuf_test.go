package ringbuf

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	r := New[int](3)
	require.Equal(t, 4, r.Cap())
	r2 := New[int](5)
	require.Equal(t, 8, r2.Cap())
}

func TestPushPopOrderPreserved(t *testing.T) {
	r := New[int](4)
	for i := 0; i < 3; i++ {
		require.True(t, r.TryPush(i))
	}
	for i := 0; i < 3; i++ {
		v, ok := r.TryPop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}

func TestFullRingRejectsPush(t *testing.T) {
	r := New[int](2)
	require.True(t, r.TryPush(1))
	require.True(t, r.TryPush(2))
	require.False(t, r.TryPush(3), "ring at capacity must reject further pushes")
}

func TestEmptyRingPopFails(t *testing.T) {
	r := New[int](4)
	_, ok := r.TryPop()
	require.False(t, ok)
}

func TestWrapAround(t *testing.T) {
	r := New[int](2)
	require.True(t, r.TryPush(1))
	v, _ := r.TryPop()
	require.Equal(t, 1, v)
	require.True(t, r.TryPush(2))
	require.True(t, r.TryPush(3))
	v, _ = r.TryPop()
	require.Equal(t, 2, v)
	v, _ = r.TryPop()
	require.Equal(t, 3, v)
}

func TestConcurrentSingleProducerSingleConsumer(t *testing.T) {
	r := New[int](64)
	const n = 10000
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !r.TryPush(i) {
			}
		}
	}()

	received := make([]int, 0, n)
	go func() {
		defer wg.Done()
		for len(received) < n {
			if v, ok := r.TryPop(); ok {
				received = append(received, v)
			}
		}
	}()

	wg.Wait()
	for i, v := range received {
		require.Equal(t, i, v, "SPSC ring must preserve FIFO order under concurrency")
	}
}
