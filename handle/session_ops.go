package handle

import (
	"context"

	"github.com/sage-x-project/sage-vault/crypto/aead"
	"github.com/sage-x-project/sage-vault/crypto/jwk"
	"github.com/sage-x-project/sage-vault/internal/metrics"
	"github.com/sage-x-project/sage-vault/storage"
)

// SessionStart opens a session against the store sh refers to and returns
// a handle to it. The store is retained (its ref count bumped) for as
// long as the session stays open, so StoreRekey/StoreClose reject a store
// with live sessions instead of racing them.
func (m *Manager) SessionStart(ctx context.Context, sh StoreHandle, profile string, asTransaction bool) (SessionHandle, error) {
	storeEnt, err := m.retainStore(sh)
	if err != nil {
		metrics.SessionsStarted.WithLabelValues("failure").Inc()
		return 0, err
	}
	sess, err := storeEnt.value.store.NewSession(ctx, profile, asTransaction)
	if err != nil {
		m.releaseStore(sh)
		metrics.SessionsStarted.WithLabelValues("failure").Inc()
		return 0, err
	}
	h := m.sessions.insert(&sessionEntry{session: sess, store: sh})
	metrics.SessionsStarted.WithLabelValues("success").Inc()
	metrics.SessionsActive.Inc()
	return SessionHandle(h), nil
}

// sessionOf locks the session's inner mutex for the duration of one
// operation and returns a release function the caller must defer. This
// gives sessions exclusive, serialized access rather than the scan
// family's immediate-Busy semantics: a session is expected to be driven
// by one logical caller issuing operations one at a time.
func (m *Manager) sessionOf(h SessionHandle) (*storage.Session, func(), error) {
	e, ok := m.sessions.get(Handle(h))
	if !ok {
		return nil, nil, &aead.Error{Kind: aead.KindUsage, Message: "unknown session handle"}
	}
	e.busy.Lock()
	return &e.value.session, e.busy.Unlock, nil
}

func (m *Manager) SessionCount(ctx context.Context, h SessionHandle, category string, filter storage.TagFilter) (int64, error) {
	sess, release, err := m.sessionOf(h)
	if err != nil {
		return 0, err
	}
	defer release()
	return (*sess).Count(ctx, category, filter)
}

func (m *Manager) SessionFetch(ctx context.Context, h SessionHandle, category, name string, forUpdate bool) (*storage.Entry, error) {
	sess, release, err := m.sessionOf(h)
	if err != nil {
		return nil, err
	}
	defer release()
	return (*sess).Fetch(ctx, category, name, forUpdate)
}

func (m *Manager) SessionFetchAll(ctx context.Context, h SessionHandle, category string, filter storage.TagFilter, limit int) ([]*storage.Entry, error) {
	sess, release, err := m.sessionOf(h)
	if err != nil {
		return nil, err
	}
	defer release()
	return (*sess).FetchAll(ctx, category, filter, limit)
}

func (m *Manager) SessionRemoveAll(ctx context.Context, h SessionHandle, category string, filter storage.TagFilter) (int64, error) {
	sess, release, err := m.sessionOf(h)
	if err != nil {
		return 0, err
	}
	defer release()
	return (*sess).RemoveAll(ctx, category, filter)
}

func (m *Manager) SessionUpdate(ctx context.Context, h SessionHandle, op storage.EntryOp, entry *storage.Entry) error {
	sess, release, err := m.sessionOf(h)
	if err != nil {
		return err
	}
	defer release()
	return (*sess).Update(ctx, op, entry)
}

func (m *Manager) SessionInsertKey(ctx context.Context, h SessionHandle, name string, key *aead.Key, metadata string, tags map[string]string) error {
	sess, release, err := m.sessionOf(h)
	if err != nil {
		return err
	}
	defer release()
	return (*sess).InsertKey(ctx, name, key, metadata, tags)
}

func (m *Manager) SessionFetchKey(ctx context.Context, h SessionHandle, name string) (*aead.Key, error) {
	sess, release, err := m.sessionOf(h)
	if err != nil {
		return nil, err
	}
	defer release()
	return (*sess).FetchKey(ctx, name)
}

func (m *Manager) SessionFetchAllKeys(ctx context.Context, h SessionHandle, filter storage.TagFilter) ([]*aead.Key, error) {
	sess, release, err := m.sessionOf(h)
	if err != nil {
		return nil, err
	}
	defer release()
	return (*sess).FetchAllKeys(ctx, filter)
}

// SessionExportKey fetches the key named name and renders it as an oct
// JWK. public distinguishes a private (secret-bearing) export from a
// public one; symmetric keys have no public component, so public=true
// always fails with KindUnsupported (spec.md §6) rather than silently
// handing back the secret bytes.
func (m *Manager) SessionExportKey(ctx context.Context, h SessionHandle, name string, public bool) (*jwk.OctJWK, error) {
	sess, release, err := m.sessionOf(h)
	if err != nil {
		return nil, err
	}
	defer release()
	key, err := (*sess).FetchKey(ctx, name)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, &aead.Error{Kind: aead.KindUsage, Message: "no such key: " + name}
	}
	return jwk.Export(key, public)
}

func (m *Manager) SessionUpdateKey(ctx context.Context, h SessionHandle, name string, tags map[string]string) error {
	sess, release, err := m.sessionOf(h)
	if err != nil {
		return err
	}
	defer release()
	return (*sess).UpdateKey(ctx, name, tags)
}

func (m *Manager) SessionRemoveKey(ctx context.Context, h SessionHandle, name string) error {
	sess, release, err := m.sessionOf(h)
	if err != nil {
		return err
	}
	defer release()
	return (*sess).RemoveKey(ctx, name)
}

// SessionClose ends the session, releasing its reference on the parent
// store, and removes the handle from the registry. Per §4.5's commit
// discipline, this only succeeds when no other operation currently holds
// the session's inner mutex ("outer reference count is one, no borrowed
// guard outstanding") — it does not wait for one to finish, it fails
// immediately with KindUsage so a caller racing a close against an
// in-flight fetch/update gets a clear signal instead of silently
// serializing behind it.
func (m *Manager) SessionClose(ctx context.Context, h SessionHandle, commit bool) error {
	e, ok := m.sessions.get(Handle(h))
	if !ok {
		return &aead.Error{Kind: aead.KindUsage, Message: "unknown session handle"}
	}
	if !e.busy.TryLock() {
		metrics.SessionsClosed.WithLabelValues("outstanding").Inc()
		return &aead.Error{Kind: aead.KindUsage, Message: "session has outstanding references"}
	}
	m.sessions.remove(Handle(h))
	err := e.value.session.Close(ctx, commit)
	e.busy.Unlock()
	m.releaseStore(e.value.store)
	metrics.SessionsActive.Dec()
	metrics.SessionsClosed.WithLabelValues(commitLabel(commit)).Inc()
	return err
}

func commitLabel(commit bool) string {
	if commit {
		return "true"
	}
	return "false"
}
