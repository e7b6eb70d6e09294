// File: pool/objpool.go
//
// Generic sync.Pool wrapper, grounded on the teacher's pool/objpool.go;
// wired into httpclient as the transport.Handle recycling pool (spec.md
// §4.B's Reset() contract: a Handle returns to freshly-constructed state
// and is ready for reuse rather than discarding).
package pool

import "sync"

// ObjectPool is a generic object pool.
type ObjectPool[T any] interface {
	Get() T
	Put(T)
}

// SyncPool wraps sync.Pool for generic usage.
type SyncPool[T any] struct {
	pool *sync.Pool
}

// NewSyncPool creates a new SyncPool with a creator function.
func NewSyncPool[T any](creator func() T) *SyncPool[T] {
	return &SyncPool[T]{
		pool: &sync.Pool{New: func() any { return creator() }},
	}
}

func (sp *SyncPool[T]) Get() T {
	return sp.pool.Get().(T)
}

func (sp *SyncPool[T]) Put(obj T) {
	sp.pool.Put(obj)
}

var _ ObjectPool[int] = (*SyncPool[int])(nil)

// Resettable is implemented by pooled values that must return to a
// freshly-constructed state before reuse rather than carry a prior
// caller's state forward — transport.Handle's Reset() contract
// (spec.md §4.B) is the motivating case.
type Resettable interface {
	Reset()
}

// ResettablePool wraps SyncPool so every Put resets the value first,
// folding spec.md §4.B's "Reset() clears the Handle, ready for reuse"
// invariant into the pool itself instead of leaving every call site
// responsible for remembering to reset before returning a value.
type ResettablePool[T Resettable] struct {
	inner *SyncPool[T]
}

// NewResettablePool creates a ResettablePool whose zero value is built
// by creator.
func NewResettablePool[T Resettable](creator func() T) *ResettablePool[T] {
	return &ResettablePool[T]{inner: NewSyncPool(creator)}
}

func (rp *ResettablePool[T]) Get() T { return rp.inner.Get() }

func (rp *ResettablePool[T]) Put(obj T) {
	obj.Reset()
	rp.inner.Put(obj)
}

var _ ObjectPool[*resettableInt] = (*ResettablePool[*resettableInt])(nil)

// resettableInt exists solely so the ResettablePool compile-time
// assertion above can instantiate the generic type with a concrete
// Resettable without reaching into another package.
type resettableInt struct{ v int }

func (r *resettableInt) Reset() { r.v = 0 }
