package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerQueueOrdersByDeadline(t *testing.T) {
	tq := newTimerQueue()
	base := time.Now()
	var order []int
	tq.schedule(base.Add(30*time.Millisecond), func() { order = append(order, 2) })
	tq.schedule(base.Add(10*time.Millisecond), func() { order = append(order, 0) })
	tq.schedule(base.Add(20*time.Millisecond), func() { order = append(order, 1) })

	due := tq.drainExpired(base.Add(100 * time.Millisecond))
	require.Len(t, due, 3)
	for _, fn := range due {
		fn()
	}
	require.Equal(t, []int{0, 1, 2}, order)
}

func TestTimerQueueCancelSkipsEntry(t *testing.T) {
	tq := newTimerQueue()
	base := time.Now()
	fired := false
	e := tq.schedule(base.Add(10*time.Millisecond), func() { fired = true })
	tq.cancel(e)

	due := tq.drainExpired(base.Add(100 * time.Millisecond))
	for _, fn := range due {
		fn()
	}
	require.False(t, fired)
}

func TestTimerQueueNextDeadline(t *testing.T) {
	tq := newTimerQueue()
	_, ok := tq.nextDeadline()
	require.False(t, ok)

	base := time.Now()
	tq.schedule(base.Add(50*time.Millisecond), func() {})
	d, ok := tq.nextDeadline()
	require.True(t, ok)
	require.WithinDuration(t, base.Add(50*time.Millisecond), d, time.Millisecond)
}
