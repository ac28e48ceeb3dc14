package handle

import (
	"context"

	"github.com/sage-x-project/sage-vault/crypto/aead"
	"github.com/sage-x-project/sage-vault/crypto/random"
	"github.com/sage-x-project/sage-vault/internal/metrics"
	"github.com/sage-x-project/sage-vault/storage"
)

// Manager is the single owner of every open store, session, and scan
// cursor in a process. Every exported method corresponds to one async
// operation in the handle-manager surface (store_provision, session_fetch,
// scan_next, ...); none of them block on anything but the in-process
// mutexes the registries and session/scan entries carry, so callers that
// want cancellation wrap the call in their own context-bound goroutine —
// the storage.* collaborator interfaces already thread ctx through to the
// backend for that purpose.
type Manager struct {
	opener   storage.Opener
	stores   *registry[*storeEntry]
	sessions *registry[*sessionEntry]
	scans    *registry[*scanEntry]
}

type storeEntry struct {
	store storage.Store
}

type sessionEntry struct {
	session storage.Session
	store   StoreHandle
}

type scanEntry struct {
	scan    storage.Scan
	session storage.Session
	store   StoreHandle
}

// NewManager builds a Manager dispatching to opener for every
// store_provision/store_open/store_remove call.
func NewManager(opener storage.Opener) *Manager {
	return &Manager{
		opener:   opener,
		stores:   newRegistry[*storeEntry](),
		sessions: newRegistry[*sessionEntry](),
		scans:    newRegistry[*scanEntry](),
	}
}

// GenerateRawKey derives a 32-byte raw key, seeded deterministically when
// seed is non-nil and from the OS CSPRNG otherwise. This is the
// generate_raw_key operation: a building block for callers constructing a
// store's protection passKey without touching crypto/aead directly.
func GenerateRawKey(seed []byte) ([]byte, error) {
	out := make([]byte, 32)
	if seed == nil {
		if err := random.FillRandom(out); err != nil {
			return nil, err
		}
		return out, nil
	}
	if err := random.FillRandomDeterministic(seed, out); err != nil {
		return nil, err
	}
	return out, nil
}

// StoreProvision provisions a new store and returns a handle to it.
func (m *Manager) StoreProvision(ctx context.Context, uri, keyMethod string, passKey []byte, profile string, recreate bool) (StoreHandle, error) {
	st, err := m.opener.Provision(ctx, uri, keyMethod, passKey, profile, recreate)
	metrics.StoresOpened.WithLabelValues("provision", statusOf(err)).Inc()
	if err != nil {
		return 0, err
	}
	return StoreHandle(m.stores.insert(&storeEntry{store: st})), nil
}

// StoreOpen opens an existing store and returns a handle to it.
func (m *Manager) StoreOpen(ctx context.Context, uri, keyMethod string, passKey []byte, profile string) (StoreHandle, error) {
	st, err := m.opener.Open(ctx, uri, keyMethod, passKey, profile)
	metrics.StoresOpened.WithLabelValues("open", statusOf(err)).Inc()
	if err != nil {
		return 0, err
	}
	return StoreHandle(m.stores.insert(&storeEntry{store: st})), nil
}

// statusOf maps an error to the "success"/"failure" label metrics use
// throughout this package.
func statusOf(err error) string {
	if err == nil {
		return "success"
	}
	return "failure"
}

// StoreRemove deletes the store at uri outright (no handle involved: the
// store must not currently be open under this Manager).
func (m *Manager) StoreRemove(ctx context.Context, uri string) (bool, error) {
	return m.opener.Remove(ctx, uri)
}

func (m *Manager) storeOf(h StoreHandle) (*entry[*storeEntry], error) {
	e, ok := m.stores.get(Handle(h))
	if !ok {
		return nil, &aead.Error{Kind: aead.KindUsage, Message: "unknown store handle"}
	}
	return e, nil
}

// StoreCreateProfile creates a profile under the store h refers to.
func (m *Manager) StoreCreateProfile(ctx context.Context, h StoreHandle, profile string) (string, error) {
	e, err := m.storeOf(h)
	if err != nil {
		return "", err
	}
	return e.value.store.CreateProfile(ctx, profile)
}

// StoreGetProfileName returns the store's current default profile.
func (m *Manager) StoreGetProfileName(ctx context.Context, h StoreHandle) (string, error) {
	e, err := m.storeOf(h)
	if err != nil {
		return "", err
	}
	return e.value.store.GetProfileName(ctx)
}

// StoreRemoveProfile removes a profile from the store h refers to.
func (m *Manager) StoreRemoveProfile(ctx context.Context, h StoreHandle, profile string) (bool, error) {
	e, err := m.storeOf(h)
	if err != nil {
		return false, err
	}
	return e.value.store.RemoveProfile(ctx, profile)
}

// StoreRekey re-encrypts the store under a new protection key. Per
// spec.md §4.5's rekey discipline, it removes the store from the registry,
// requiring the reference count to be one (no open session or scan), rekeys
// the backend, then reinstalls the store — rekeyed on success, or
// unchanged if the backend call failed — at the same handle. The
// removal and the refs check happen atomically under the registry's write
// lock (registry.removeIfIdle), so a concurrent SessionStart/ScanStart
// cannot retainStore and race the rekey in the window between checking
// refs and removing the entry.
func (m *Manager) StoreRekey(ctx context.Context, h StoreHandle, keyMethod string, passKey []byte) error {
	e, ok := m.stores.removeIfIdle(Handle(h))
	if e == nil {
		return &aead.Error{Kind: aead.KindUsage, Message: "unknown store handle"}
	}
	if !ok {
		metrics.StoresClosed.WithLabelValues("rekey", "failure").Inc()
		return &aead.Error{Kind: aead.KindUsage, Message: "store has open sessions, cannot rekey"}
	}

	err := e.value.store.Rekey(ctx, keyMethod, passKey)
	m.stores.reinsertAt(Handle(h), e.value)
	metrics.StoresClosed.WithLabelValues("rekey", statusOf(err)).Inc()
	return err
}

// StoreClose releases the handle and the underlying store. It fails with
// KindUsage if any session or scan still references it. Uses the same
// atomic check-and-remove as StoreRekey (registry.removeIfIdle) so a
// concurrent SessionStart cannot retainStore in the gap between the
// refs check and the removal.
func (m *Manager) StoreClose(ctx context.Context, h StoreHandle) error {
	e, ok := m.stores.removeIfIdle(Handle(h))
	if e == nil {
		return &aead.Error{Kind: aead.KindUsage, Message: "unknown store handle"}
	}
	if !ok {
		metrics.StoresClosed.WithLabelValues("close", "failure").Inc()
		return &aead.Error{Kind: aead.KindUsage, Message: "store has open sessions, cannot close"}
	}
	err := e.value.store.Close(ctx)
	metrics.StoresClosed.WithLabelValues("close", statusOf(err)).Inc()
	return err
}

func (m *Manager) retainStore(h StoreHandle) (*entry[*storeEntry], error) {
	m.stores.mu.Lock()
	defer m.stores.mu.Unlock()
	e, ok := m.stores.items[Handle(h)]
	if !ok {
		return nil, &aead.Error{Kind: aead.KindUsage, Message: "unknown store handle"}
	}
	e.refs++
	return e, nil
}

func (m *Manager) releaseStore(h StoreHandle) {
	e, ok := m.stores.get(Handle(h))
	if !ok {
		return
	}
	m.stores.mu.Lock()
	if e.refs > 0 {
		e.refs--
	}
	m.stores.mu.Unlock()
}
