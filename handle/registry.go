package handle

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// entry is one registry slot: the live value plus bookkeeping a kind's
// operations need (refs for stores, a borrow mutex for scans).
type entry[T any] struct {
	value T
	refs  int
	busy  sync.Mutex
}

// registryWeight is the asyncRWMutex's total semaphore weight: a reader
// acquires 1, a writer acquires the whole budget. It only bounds the number
// of concurrent readers the implementation can distinguish, not any real
// resource, so it is sized comfortably above any realistic reader count.
const registryWeight = 1 << 20

// asyncRWMutex is a reader/writer mutex backed by golang.org/x/sync/semaphore
// instead of sync.RWMutex. Spec §4.5/§5 calls for the registries to be
// "guarded by an asynchronous mutex (one that suspends rather than blocking
// the scheduler)" — a weighted semaphore's Acquire parks the calling
// goroutine on a channel rather than spinning, which is the Go-idiomatic
// reading of that requirement (see SPEC_FULL.md domain stack table).
type asyncRWMutex struct {
	sem *semaphore.Weighted
}

func newAsyncRWMutex() *asyncRWMutex {
	return &asyncRWMutex{sem: semaphore.NewWeighted(registryWeight)}
}

func (m *asyncRWMutex) Lock() {
	_ = m.sem.Acquire(context.Background(), registryWeight)
}

func (m *asyncRWMutex) Unlock() {
	m.sem.Release(registryWeight)
}

func (m *asyncRWMutex) RLock() {
	_ = m.sem.Acquire(context.Background(), 1)
}

func (m *asyncRWMutex) RUnlock() {
	m.sem.Release(1)
}

// registry is a handle-keyed, concurrency-safe map shared by the store,
// session, and scan families. Grounded on the teacher's session.Manager
// (map + sync.RWMutex, double-checked insert, Close-all sweep on
// shutdown) generalized from a string session-id key to a minted Handle
// and from one concrete value type to any T via generics; the mutex itself
// is asyncRWMutex rather than sync.RWMutex per the registry discipline
// above.
type registry[T any] struct {
	mu      *asyncRWMutex
	items   map[Handle]*entry[T]
	counter counter
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{mu: newAsyncRWMutex(), items: make(map[Handle]*entry[T])}
}

func (r *registry[T]) insert(v T) Handle {
	h := r.counter.mint()
	r.mu.Lock()
	r.items[h] = &entry[T]{value: v}
	r.mu.Unlock()
	return h
}

func (r *registry[T]) get(h Handle) (*entry[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.items[h]
	return e, ok
}

func (r *registry[T]) remove(h Handle) (*entry[T], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[h]
	if ok {
		delete(r.items, h)
	}
	return e, ok
}

// removeIfIdle removes and returns the entry at h, but only if its refs are
// zero, performing the check and the removal under the same write-lock
// critical section. This is what gives store_rekey/store_close's "reference
// count must be one" invariant (spec.md §4.5) teeth: without a single
// atomic check-and-remove, a concurrent retainStore could bump refs in the
// gap between an ordinary refs-check and a later remove(), racing the
// rekey. The returned entry is non-nil and ok is false when h is known but
// busy (refs > 0); both e and ok are zero/false when h is unknown — callers
// distinguish the two by checking e == nil.
func (r *registry[T]) removeIfIdle(h Handle) (*entry[T], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[h]
	if !ok || e.refs > 0 {
		return e, false
	}
	delete(r.items, h)
	return e, true
}

// reinsertAt reinstalls v at the same handle h — used by store_rekey to put
// the (rekeyed, or on failure the original) store back under the handle it
// was removed from by removeIfIdle, so the handle value a caller already
// holds keeps referring to the same logical store. Panics if h is already
// occupied, which would mean a handle was reused while still live — a bug
// in the caller, not a condition to recover from.
func (r *registry[T]) reinsertAt(h Handle, v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[h]; exists {
		panic("handle: reinsertAt on occupied handle")
	}
	r.items[h] = &entry[T]{value: v}
}

func (r *registry[T]) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// all returns every live handle.
func (r *registry[T]) all() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handle, 0, len(r.items))
	for h := range r.items {
		out = append(out, h)
	}
	return out
}
