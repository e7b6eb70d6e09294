// File: executor/queue.go
//
// jobQueue is the multiplexing executor's single MPSC job channel: many
// caller goroutines push jobs (Handle attach/detach, Perform callbacks,
// cancellation requests), and only the executor's own worker goroutine
// drains it. It is a hybrid design: a bounded Vyukov-style lock-free ring
// absorbs the common case without blocking producers, and a mutex-guarded
// overflow list (backed by github.com/eapache/queue, a ring-backed FIFO)
// keeps the queue unbounded so a burst of attaches never returns an error
// to the caller.
package executor

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

type job func()

const cacheLinePad = 64

type ringCell struct {
	sequence atomic.Uint64
	data     job
	_        [cacheLinePad]byte
}

// jobQueue is an unbounded MPSC queue of jobs.
type jobQueue struct {
	head uint64
	_    [cacheLinePad]byte
	tail uint64
	_    [cacheLinePad]byte
	mask uint64
	ring []ringCell

	overflowMu sync.Mutex
	overflow   *queue.Queue

	// overflowLen counts the jobs in overflow; push reads it without
	// taking overflowMu.
	overflowLen atomic.Int64

	pending atomic.Int64
	wake    chan struct{}
}

func newJobQueue(ringCapacity int) *jobQueue {
	if ringCapacity < 2 {
		ringCapacity = 2
	}
	size := 1
	for size < ringCapacity {
		size <<= 1
	}
	q := &jobQueue{
		mask:     uint64(size - 1),
		ring:     make([]ringCell, size),
		overflow: queue.New(),
		wake:     make(chan struct{}, 1),
	}
	for i := range q.ring {
		q.ring[i].sequence.Store(uint64(i))
	}
	return q
}

// push enqueues j. Never blocks and never fails: the ring is tried first,
// and any ring-full burst spills into the mutex-guarded overflow queue.
// While the overflow queue holds jobs, new jobs go there as well, so a job
// never overtakes an older one that spilled.
func (q *jobQueue) push(j job) {
	if q.overflowLen.Load() == 0 && q.tryPushRing(j) {
		q.pending.Add(1)
		q.notify()
		return
	}
	q.overflowMu.Lock()
	q.overflow.Add(j)
	q.overflowLen.Add(1)
	q.overflowMu.Unlock()
	q.pending.Add(1)
	q.notify()
}

func (q *jobQueue) tryPushRing(j job) bool {
	for {
		tail := atomic.LoadUint64(&q.tail)
		idx := tail & q.mask
		c := &q.ring[idx]
		seq := c.sequence.Load()
		dif := int64(seq) - int64(tail)
		switch {
		case dif == 0:
			if atomic.CompareAndSwapUint64(&q.tail, tail, tail+1) {
				c.data = j
				c.sequence.Store(tail + 1)
				return true
			}
		case dif < 0:
			return false
		default:
			// tail moved underneath us, retry
		}
	}
}

func (q *jobQueue) tryPopRing() (job, bool) {
	for {
		head := atomic.LoadUint64(&q.head)
		idx := head & q.mask
		c := &q.ring[idx]
		seq := c.sequence.Load()
		dif := int64(seq) - int64(head+1)
		switch {
		case dif == 0:
			if atomic.CompareAndSwapUint64(&q.head, head, head+1) {
				j := c.data
				c.data = nil
				c.sequence.Store(head + q.mask + 1)
				return j, true
			}
		case dif < 0:
			return nil, false
		default:
			// head moved underneath us, retry
		}
	}
}

// pop drains the ring first, falling back to the overflow queue. It is only
// ever called by the executor's single worker goroutine.
func (q *jobQueue) pop() (job, bool) {
	if j, ok := q.tryPopRing(); ok {
		q.pending.Add(-1)
		return j, true
	}
	q.overflowMu.Lock()
	var j job
	if q.overflow.Length() > 0 {
		j = q.overflow.Remove().(job)
		q.overflowLen.Add(-1)
	}
	q.overflowMu.Unlock()
	if j != nil {
		q.pending.Add(-1)
		return j, true
	}
	return nil, false
}

// Len returns an approximate count of queued jobs.
func (q *jobQueue) Len() int {
	n := q.pending.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

func (q *jobQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
