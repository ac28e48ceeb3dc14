package handle

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/sage-vault/crypto/aead"
	"github.com/sage-x-project/sage-vault/storage"
	"github.com/sage-x-project/sage-vault/storage/memory"
)

func TestGenerateRawKeyDeterministicVector(t *testing.T) {
	seed := []byte("testseed000000000000000000000001")
	want, err := hex.DecodeString("b1923a011cd1adbe89552db9862470c29512a8f51d184dfd778bfe7f845390d1")
	require.NoError(t, err)

	raw, err := GenerateRawKey(seed)
	require.NoError(t, err)
	assert.Equal(t, want, raw)
	assert.Equal(t, []byte("testseed000000000000000000000001"), seed, "seed must not be mutated")
}

func TestGenerateRawKeyRandomWhenNoSeed(t *testing.T) {
	a, err := GenerateRawKey(nil)
	require.NoError(t, err)
	b, err := GenerateRawKey(nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 32)
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(memory.NewOpener())
}

func TestStoreProvisionAndClose(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)

	sh, err := mgr.StoreProvision(ctx, "mem://handle-one", "raw", []byte("pass"), "", false)
	require.NoError(t, err)
	assert.True(t, Handle(sh).Valid())

	name, err := mgr.StoreGetProfileName(ctx, sh)
	require.NoError(t, err)
	assert.Equal(t, "default", name)

	require.NoError(t, mgr.StoreClose(ctx, sh))

	_, err = mgr.StoreGetProfileName(ctx, sh)
	assert.Error(t, err)
}

func TestStoreRekeyRejectsOutstandingSession(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)

	sh, err := mgr.StoreProvision(ctx, "mem://handle-rekey", "raw", []byte("pass"), "", false)
	require.NoError(t, err)

	sessH, err := mgr.SessionStart(ctx, sh, "", false)
	require.NoError(t, err)

	err = mgr.StoreRekey(ctx, sh, "raw", []byte("new-pass"))
	assert.Error(t, err)
	aeadErr, ok := err.(*aead.Error)
	require.True(t, ok)
	assert.Equal(t, aead.KindUsage, aeadErr.Kind)

	require.NoError(t, mgr.SessionClose(ctx, sessH, false))
	assert.NoError(t, mgr.StoreRekey(ctx, sh, "raw", []byte("new-pass")))
	require.NoError(t, mgr.StoreClose(ctx, sh))
}

// TestStoreRekeyRemovesHandleDuringBackendCall drives the removeIfIdle /
// reinsertAt pair StoreRekey wraps its backend call in: after removeIfIdle
// the handle is genuinely absent from the registry (not merely
// refs-checked-then-left-in-place), so a SessionStart cannot retainStore
// it. It then confirms reinsertAt makes the same handle value resolve again.
func TestStoreRekeyRemovesHandleDuringBackendCall(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)

	sh, err := mgr.StoreProvision(ctx, "mem://handle-rekey-atomic", "raw", []byte("pass"), "", false)
	require.NoError(t, err)

	e, ok := mgr.stores.removeIfIdle(Handle(sh))
	require.True(t, ok)
	require.NotNil(t, e)

	_, stillThere := mgr.stores.get(Handle(sh))
	assert.False(t, stillThere, "handle must be absent from the registry mid-rekey")

	_, err = mgr.SessionStart(ctx, sh, "", false)
	assert.Error(t, err, "a concurrent SessionStart must not be able to retain a mid-rekey store")

	mgr.stores.reinsertAt(Handle(sh), e.value)
	_, err = mgr.StoreGetProfileName(ctx, sh)
	require.NoError(t, err, "handle must resolve to the same store again after reinsertAt")

	require.NoError(t, mgr.StoreClose(ctx, sh))
}

// TestStoreCloseRejectsOutstandingSession mirrors the rekey case: close
// must fail atomically, leaving the store open and reachable, rather than
// racing a concurrent SessionStart in a check-then-remove window.
func TestStoreCloseRejectsOutstandingSession(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)

	sh, err := mgr.StoreProvision(ctx, "mem://handle-close-rejects", "raw", []byte("pass"), "", false)
	require.NoError(t, err)

	sessH, err := mgr.SessionStart(ctx, sh, "", false)
	require.NoError(t, err)

	err = mgr.StoreClose(ctx, sh)
	assert.Error(t, err)
	aeadErr, ok := err.(*aead.Error)
	require.True(t, ok)
	assert.Equal(t, aead.KindUsage, aeadErr.Kind)

	_, err = mgr.StoreGetProfileName(ctx, sh)
	assert.NoError(t, err, "store must still be open and usable after a rejected close")

	require.NoError(t, mgr.SessionClose(ctx, sessH, false))
	require.NoError(t, mgr.StoreClose(ctx, sh))
}

func TestSessionCloseRejectsOutstandingReference(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)

	sh, err := mgr.StoreProvision(ctx, "mem://handle-close-busy", "raw", []byte("pass"), "", false)
	require.NoError(t, err)
	defer mgr.StoreClose(ctx, sh)

	sessH, err := mgr.SessionStart(ctx, sh, "", false)
	require.NoError(t, err)

	entry, ok := mgr.sessions.get(Handle(sessH))
	require.True(t, ok)
	require.True(t, entry.busy.TryLock())

	err = mgr.SessionClose(ctx, sessH, false)
	assert.Error(t, err)
	aeadErr, ok := err.(*aead.Error)
	require.True(t, ok)
	assert.Equal(t, aead.KindUsage, aeadErr.Kind)

	entry.busy.Unlock()
	require.NoError(t, mgr.SessionClose(ctx, sessH, false))
}

func TestSessionTransactionCommitAndRollback(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)

	sh, err := mgr.StoreProvision(ctx, "mem://handle-txn", "raw", []byte("pass"), "", false)
	require.NoError(t, err)
	defer mgr.StoreClose(ctx, sh)

	txn, err := mgr.SessionStart(ctx, sh, "", true)
	require.NoError(t, err)
	require.NoError(t, mgr.SessionUpdate(ctx, txn, storage.EntryInsert, &storage.Entry{
		Category: "secret", Name: "a", Value: []byte("v1"),
	}))
	require.NoError(t, mgr.SessionClose(ctx, txn, false))

	plain, err := mgr.SessionStart(ctx, sh, "", false)
	require.NoError(t, err)
	e, err := mgr.SessionFetch(ctx, plain, "secret", "a", false)
	require.NoError(t, err)
	assert.Nil(t, e)
	require.NoError(t, mgr.SessionClose(ctx, plain, false))

	txn2, err := mgr.SessionStart(ctx, sh, "", true)
	require.NoError(t, err)
	require.NoError(t, mgr.SessionUpdate(ctx, txn2, storage.EntryInsert, &storage.Entry{
		Category: "secret", Name: "a", Value: []byte("v1"),
	}))
	require.NoError(t, mgr.SessionClose(ctx, txn2, true))

	plain2, err := mgr.SessionStart(ctx, sh, "", false)
	require.NoError(t, err)
	e2, err := mgr.SessionFetch(ctx, plain2, "secret", "a", false)
	require.NoError(t, err)
	require.NotNil(t, e2)
	assert.Equal(t, []byte("v1"), e2.Value)
	require.NoError(t, mgr.SessionClose(ctx, plain2, false))
}

func TestSessionKeyLifecycle(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)

	sh, err := mgr.StoreProvision(ctx, "mem://handle-keys", "raw", []byte("pass"), "", false)
	require.NoError(t, err)
	defer mgr.StoreClose(ctx, sh)

	sessH, err := mgr.SessionStart(ctx, sh, "", false)
	require.NoError(t, err)
	defer mgr.SessionClose(ctx, sessH, false)

	key, err := aead.GenerateKey(aead.A256GCM)
	require.NoError(t, err)
	require.NoError(t, mgr.SessionInsertKey(ctx, sessH, "k1", key, "meta", map[string]string{"purpose": "encrypt"}))

	fetched, err := mgr.SessionFetchKey(ctx, sessH, "k1")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.True(t, key.Equal(fetched))

	require.NoError(t, mgr.SessionRemoveKey(ctx, sessH, "k1"))
	afterRemove, err := mgr.SessionFetchKey(ctx, sessH, "k1")
	require.NoError(t, err)
	assert.Nil(t, afterRemove)
}

func TestSessionExportKey(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)

	sh, err := mgr.StoreProvision(ctx, "mem://handle-export-key", "raw", []byte("pass"), "", false)
	require.NoError(t, err)
	defer mgr.StoreClose(ctx, sh)

	sessH, err := mgr.SessionStart(ctx, sh, "", false)
	require.NoError(t, err)
	defer mgr.SessionClose(ctx, sessH, false)

	key, err := aead.GenerateKey(aead.A256GCM)
	require.NoError(t, err)
	require.NoError(t, mgr.SessionInsertKey(ctx, sessH, "k1", key, "", nil))

	view, err := mgr.SessionExportKey(ctx, sessH, "k1", false)
	require.NoError(t, err)
	assert.Equal(t, "oct", view.Kty)
	assert.Equal(t, "A256GCM", view.Alg)

	_, err = mgr.SessionExportKey(ctx, sessH, "k1", true)
	assert.Error(t, err)
	aeadErr, ok := err.(*aead.Error)
	require.True(t, ok)
	assert.Equal(t, aead.KindUnsupported, aeadErr.Kind)
}

func TestScanNextConcurrentBorrowIsBusy(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)

	sh, err := mgr.StoreProvision(ctx, "mem://handle-scan", "raw", []byte("pass"), "", false)
	require.NoError(t, err)
	defer mgr.StoreClose(ctx, sh)

	sessH, err := mgr.SessionStart(ctx, sh, "", false)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, mgr.SessionUpdate(ctx, sessH, storage.EntryInsert, &storage.Entry{
			Category: "secret", Name: string(rune('a' + i)), Value: []byte("v"),
		}))
	}
	require.NoError(t, mgr.SessionClose(ctx, sessH, false))

	scanH, err := mgr.ScanStart(ctx, sh, "", "secret", nil, 0, -1)
	require.NoError(t, err)
	defer mgr.ScanFree(ctx, scanH)

	entry, ok := mgr.scans.get(Handle(scanH))
	require.True(t, ok)
	require.True(t, entry.busy.TryLock())
	_, err = mgr.ScanNext(ctx, scanH)
	assert.Error(t, err)
	aeadErr, ok := err.(*aead.Error)
	require.True(t, ok)
	assert.Equal(t, aead.KindBusy, aeadErr.Kind)
	entry.busy.Unlock()

	page, err := mgr.ScanNext(ctx, scanH)
	require.NoError(t, err)
	assert.Len(t, page, 5)
}

func TestCallbackResolvesExactlyOnce(t *testing.T) {
	var results []error
	cb := NewCallback[int](func(v int, err error) {
		results = append(results, err)
	})
	cb.Resolve(1)
	cb.Resolve(2)
	cb.Finalize()
	require.Len(t, results, 1)
	assert.NoError(t, results[0])
}

func TestCallbackFinalizeWithoutResolveYieldsUnexpected(t *testing.T) {
	var gotErr error
	var resolved bool
	cb := NewCallback[int](func(v int, err error) {
		resolved = true
		gotErr = err
	})
	cb.Finalize()
	require.True(t, resolved)
	aeadErr, ok := gotErr.(*aead.Error)
	require.True(t, ok)
	assert.Equal(t, aead.KindUnexpected, aeadErr.Kind)
}

func TestStoreProvisionAsyncDeliversHandle(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)

	done := make(chan struct{})
	var gotHandle StoreHandle
	var gotErr error
	cb := NewCallback[StoreHandle](func(h StoreHandle, err error) {
		gotHandle, gotErr = h, err
		close(done)
	})
	mgr.StoreProvisionAsync(ctx, "mem://handle-async", "raw", []byte("pass"), "", false, cb)
	<-done

	require.NoError(t, gotErr)
	assert.True(t, Handle(gotHandle).Valid())
	require.NoError(t, mgr.StoreClose(ctx, gotHandle))
}
