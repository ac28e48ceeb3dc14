package handle

import (
	"context"

	"github.com/sage-x-project/sage-vault/crypto/aead"
	"github.com/sage-x-project/sage-vault/crypto/jwk"
	"github.com/sage-x-project/sage-vault/storage"
)

// void is the result type for async operations that only carry an error.
type void = struct{}

// spawn runs fn on its own goroutine and resolves cb with its result
// exactly once, satisfying the exported-operations contract: the call
// that starts fn returns immediately, and the eventual success or
// failure is delivered later through cb. If fn panics, Finalize's defer
// still fires and the caller sees Unexpected rather than a silently
// dropped task.
func spawn[T any](cb *Callback[T], fn func() (T, error)) {
	go func() {
		defer cb.Finalize()
		v, err := fn()
		if err != nil {
			cb.Reject(err)
			return
		}
		cb.Resolve(v)
	}()
}

// spawnVoid is spawn specialized to operations with no result value.
func spawnVoid(cb *Callback[void], fn func() error) {
	spawn(cb, func() (void, error) { return void{}, fn() })
}

// StoreProvisionAsync is the asynchronous form of StoreProvision: it
// accepts the request and returns immediately, delivering the resulting
// handle or error to cb exactly once.
func (m *Manager) StoreProvisionAsync(ctx context.Context, uri, keyMethod string, passKey []byte, profile string, recreate bool, cb *Callback[StoreHandle]) {
	spawn(cb, func() (StoreHandle, error) {
		return m.StoreProvision(ctx, uri, keyMethod, passKey, profile, recreate)
	})
}

func (m *Manager) StoreOpenAsync(ctx context.Context, uri, keyMethod string, passKey []byte, profile string, cb *Callback[StoreHandle]) {
	spawn(cb, func() (StoreHandle, error) {
		return m.StoreOpen(ctx, uri, keyMethod, passKey, profile)
	})
}

func (m *Manager) StoreRemoveAsync(ctx context.Context, uri string, cb *Callback[bool]) {
	spawn(cb, func() (bool, error) { return m.StoreRemove(ctx, uri) })
}

func (m *Manager) StoreCreateProfileAsync(ctx context.Context, h StoreHandle, profile string, cb *Callback[string]) {
	spawn(cb, func() (string, error) { return m.StoreCreateProfile(ctx, h, profile) })
}

func (m *Manager) StoreGetProfileNameAsync(ctx context.Context, h StoreHandle, cb *Callback[string]) {
	spawn(cb, func() (string, error) { return m.StoreGetProfileName(ctx, h) })
}

func (m *Manager) StoreRemoveProfileAsync(ctx context.Context, h StoreHandle, profile string, cb *Callback[bool]) {
	spawn(cb, func() (bool, error) { return m.StoreRemoveProfile(ctx, h, profile) })
}

func (m *Manager) StoreRekeyAsync(ctx context.Context, h StoreHandle, keyMethod string, passKey []byte, cb *Callback[void]) {
	spawnVoid(cb, func() error { return m.StoreRekey(ctx, h, keyMethod, passKey) })
}

func (m *Manager) StoreCloseAsync(ctx context.Context, h StoreHandle, cb *Callback[void]) {
	spawnVoid(cb, func() error { return m.StoreClose(ctx, h) })
}

func (m *Manager) SessionStartAsync(ctx context.Context, sh StoreHandle, profile string, asTransaction bool, cb *Callback[SessionHandle]) {
	spawn(cb, func() (SessionHandle, error) {
		return m.SessionStart(ctx, sh, profile, asTransaction)
	})
}

func (m *Manager) SessionCountAsync(ctx context.Context, h SessionHandle, category string, filter storage.TagFilter, cb *Callback[int64]) {
	spawn(cb, func() (int64, error) { return m.SessionCount(ctx, h, category, filter) })
}

func (m *Manager) SessionFetchAsync(ctx context.Context, h SessionHandle, category, name string, forUpdate bool, cb *Callback[*storage.Entry]) {
	spawn(cb, func() (*storage.Entry, error) { return m.SessionFetch(ctx, h, category, name, forUpdate) })
}

func (m *Manager) SessionFetchAllAsync(ctx context.Context, h SessionHandle, category string, filter storage.TagFilter, limit int, cb *Callback[[]*storage.Entry]) {
	spawn(cb, func() ([]*storage.Entry, error) { return m.SessionFetchAll(ctx, h, category, filter, limit) })
}

func (m *Manager) SessionRemoveAllAsync(ctx context.Context, h SessionHandle, category string, filter storage.TagFilter, cb *Callback[int64]) {
	spawn(cb, func() (int64, error) { return m.SessionRemoveAll(ctx, h, category, filter) })
}

func (m *Manager) SessionUpdateAsync(ctx context.Context, h SessionHandle, op storage.EntryOp, entry *storage.Entry, cb *Callback[void]) {
	spawnVoid(cb, func() error { return m.SessionUpdate(ctx, h, op, entry) })
}

func (m *Manager) SessionInsertKeyAsync(ctx context.Context, h SessionHandle, name string, key *aead.Key, metadata string, tags map[string]string, cb *Callback[void]) {
	spawnVoid(cb, func() error { return m.SessionInsertKey(ctx, h, name, key, metadata, tags) })
}

func (m *Manager) SessionFetchKeyAsync(ctx context.Context, h SessionHandle, name string, cb *Callback[*aead.Key]) {
	spawn(cb, func() (*aead.Key, error) { return m.SessionFetchKey(ctx, h, name) })
}

func (m *Manager) SessionFetchAllKeysAsync(ctx context.Context, h SessionHandle, filter storage.TagFilter, cb *Callback[[]*aead.Key]) {
	spawn(cb, func() ([]*aead.Key, error) { return m.SessionFetchAllKeys(ctx, h, filter) })
}

func (m *Manager) SessionExportKeyAsync(ctx context.Context, h SessionHandle, name string, public bool, cb *Callback[*jwk.OctJWK]) {
	spawn(cb, func() (*jwk.OctJWK, error) { return m.SessionExportKey(ctx, h, name, public) })
}

func (m *Manager) SessionUpdateKeyAsync(ctx context.Context, h SessionHandle, name string, tags map[string]string, cb *Callback[void]) {
	spawnVoid(cb, func() error { return m.SessionUpdateKey(ctx, h, name, tags) })
}

func (m *Manager) SessionRemoveKeyAsync(ctx context.Context, h SessionHandle, name string, cb *Callback[void]) {
	spawnVoid(cb, func() error { return m.SessionRemoveKey(ctx, h, name) })
}

func (m *Manager) SessionCloseAsync(ctx context.Context, h SessionHandle, commit bool, cb *Callback[void]) {
	spawnVoid(cb, func() error { return m.SessionClose(ctx, h, commit) })
}

func (m *Manager) ScanStartAsync(ctx context.Context, sh StoreHandle, profile, category string, filter storage.TagFilter, offset, limit int64, cb *Callback[ScanHandle]) {
	spawn(cb, func() (ScanHandle, error) {
		return m.ScanStart(ctx, sh, profile, category, filter, offset, limit)
	})
}

func (m *Manager) ScanNextAsync(ctx context.Context, h ScanHandle, cb *Callback[[]*storage.Entry]) {
	spawn(cb, func() ([]*storage.Entry, error) { return m.ScanNext(ctx, h) })
}

func (m *Manager) ScanFreeAsync(ctx context.Context, h ScanHandle, cb *Callback[void]) {
	spawnVoid(cb, func() error { return m.ScanFree(ctx, h) })
}
