package handle

import (
	"context"

	"github.com/sage-x-project/sage-vault/crypto/aead"
	"github.com/sage-x-project/sage-vault/internal/metrics"
	"github.com/sage-x-project/sage-vault/storage"
)

// ScanStart opens a cursor over the store sh refers to. It drives the scan
// through a dedicated, non-transaction session kept open for the cursor's
// lifetime and released on ScanFree.
func (m *Manager) ScanStart(ctx context.Context, sh StoreHandle, profile, category string, filter storage.TagFilter, offset, limit int64) (ScanHandle, error) {
	storeEnt, err := m.retainStore(sh)
	if err != nil {
		return 0, err
	}
	sess, err := storeEnt.value.store.NewSession(ctx, profile, false)
	if err != nil {
		m.releaseStore(sh)
		return 0, err
	}
	cursor, err := sess.Scan(ctx, profile, category, filter, offset, limit)
	if err != nil {
		_ = sess.Close(ctx, false)
		m.releaseStore(sh)
		return 0, err
	}
	h := m.scans.insert(&scanEntry{scan: cursor, session: sess, store: sh})
	return ScanHandle(h), nil
}

// ScanNext returns the cursor's next page. A scan cursor is single-owner:
// a second ScanNext call racing an in-flight one fails immediately with
// KindBusy rather than blocking, since two concurrent callers advancing
// the same cursor would silently interleave or duplicate pages.
func (m *Manager) ScanNext(ctx context.Context, h ScanHandle) ([]*storage.Entry, error) {
	e, ok := m.scans.get(Handle(h))
	if !ok {
		return nil, &aead.Error{Kind: aead.KindUsage, Message: "unknown scan handle"}
	}
	if !e.busy.TryLock() {
		metrics.ScansBorrowed.WithLabelValues("busy").Inc()
		return nil, aead.Err(aead.KindBusy)
	}
	defer e.busy.Unlock()
	metrics.ScansBorrowed.WithLabelValues("success").Inc()
	return e.value.scan.Next(ctx)
}

// ScanFree releases the cursor and its backing session.
func (m *Manager) ScanFree(ctx context.Context, h ScanHandle) error {
	e, ok := m.scans.get(Handle(h))
	if !ok {
		return &aead.Error{Kind: aead.KindUsage, Message: "unknown scan handle"}
	}
	if !e.busy.TryLock() {
		return aead.Err(aead.KindBusy)
	}
	defer e.busy.Unlock()
	if _, ok := m.scans.remove(Handle(h)); !ok {
		return &aead.Error{Kind: aead.KindUsage, Message: "unknown scan handle"}
	}
	err := e.value.session.Close(ctx, false)
	m.releaseStore(e.value.store)
	return err
}
