package executor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJobQueueFIFOWithinRingCapacity(t *testing.T) {
	q := newJobQueue(4)
	var order []int
	for i := 0; i < 4; i++ {
		i := i
		q.push(func() { order = append(order, i) })
	}
	require.Equal(t, 4, q.Len())
	for i := 0; i < 4; i++ {
		j, ok := q.pop()
		require.True(t, ok)
		j()
	}
	require.Equal(t, []int{0, 1, 2, 3}, order)
	require.Equal(t, 0, q.Len())
}

func TestJobQueueOverflowsPastRingCapacity(t *testing.T) {
	q := newJobQueue(2) // rounds up to ring size 2
	const n = 10
	var count int
	for i := 0; i < n; i++ {
		q.push(func() { count++ })
	}
	require.Equal(t, n, q.Len())
	drained := 0
	for {
		j, ok := q.pop()
		if !ok {
			break
		}
		j()
		drained++
	}
	require.Equal(t, n, drained)
	require.Equal(t, n, count)
}

func TestJobQueueConcurrentProducers(t *testing.T) {
	q := newJobQueue(8)
	const producers = 8
	const perProducer = 200
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.push(func() {})
			}
		}()
	}
	wg.Wait()
	require.Equal(t, producers*perProducer, q.Len())
	n := 0
	for {
		_, ok := q.pop()
		if !ok {
			break
		}
		n++
	}
	require.Equal(t, producers*perProducer, n)
}
