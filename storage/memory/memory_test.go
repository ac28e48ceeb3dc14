package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/sage-vault/crypto/aead"
	"github.com/sage-x-project/sage-vault/storage"
)

func TestProvisionOpenRemove(t *testing.T) {
	ctx := context.Background()
	o := NewOpener()

	st, err := o.Provision(ctx, "mem://one", "raw", []byte("pass"), "", false)
	require.NoError(t, err)
	require.NotNil(t, st)

	_, err = o.Provision(ctx, "mem://one", "raw", []byte("pass"), "", false)
	assert.Error(t, err)

	reopened, err := o.Open(ctx, "mem://one", "", []byte("pass"), "")
	require.NoError(t, err)
	require.NotNil(t, reopened)

	_, err = o.Open(ctx, "mem://one", "", []byte("wrong"), "")
	assert.Error(t, err)

	removed, err := o.Remove(ctx, "mem://one")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = o.Remove(ctx, "mem://one")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestTransactionRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	o := NewOpener()
	st, err := o.Provision(ctx, "mem://txn", "raw", []byte("pass"), "", false)
	require.NoError(t, err)

	txn, err := st.NewSession(ctx, "", true)
	require.NoError(t, err)
	require.NoError(t, txn.Update(ctx, storage.EntryInsert, &storage.Entry{
		Category: "secret", Name: "a", Value: []byte("v1"),
	}))
	require.NoError(t, txn.Close(ctx, false))

	plain, err := st.NewSession(ctx, "", false)
	require.NoError(t, err)
	e, err := plain.Fetch(ctx, "secret", "a", false)
	require.NoError(t, err)
	assert.Nil(t, e)
	require.NoError(t, plain.Close(ctx, false))
}

func TestTransactionCommitPersistsWrites(t *testing.T) {
	ctx := context.Background()
	o := NewOpener()
	st, err := o.Provision(ctx, "mem://txn2", "raw", []byte("pass"), "", false)
	require.NoError(t, err)

	txn, err := st.NewSession(ctx, "", true)
	require.NoError(t, err)
	require.NoError(t, txn.Update(ctx, storage.EntryInsert, &storage.Entry{
		Category: "secret", Name: "a", Value: []byte("v1"),
	}))
	require.NoError(t, txn.Close(ctx, true))

	plain, err := st.NewSession(ctx, "", false)
	require.NoError(t, err)
	e, err := plain.Fetch(ctx, "secret", "a", false)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, []byte("v1"), e.Value)
	require.NoError(t, plain.Close(ctx, false))
}

func TestPlainSessionAutoCommits(t *testing.T) {
	ctx := context.Background()
	o := NewOpener()
	st, err := o.Provision(ctx, "mem://plain", "raw", []byte("pass"), "", false)
	require.NoError(t, err)

	s1, err := st.NewSession(ctx, "", false)
	require.NoError(t, err)
	require.NoError(t, s1.Update(ctx, storage.EntryInsert, &storage.Entry{
		Category: "secret", Name: "a", Value: []byte("v1"), Tags: map[string]string{"kind": "x"},
	}))
	require.NoError(t, s1.Close(ctx, false))

	s2, err := st.NewSession(ctx, "", false)
	require.NoError(t, err)
	e, err := s2.Fetch(ctx, "secret", "a", false)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "x", e.Tags["kind"])
	require.NoError(t, s2.Close(ctx, false))
}

func TestScanPaging(t *testing.T) {
	ctx := context.Background()
	o := NewOpener()
	st, err := o.Provision(ctx, "mem://scan", "raw", []byte("pass"), "", false)
	require.NoError(t, err)

	s, err := st.NewSession(ctx, "", false)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		name := string(rune('a' + i))
		require.NoError(t, s.Update(ctx, storage.EntryInsert, &storage.Entry{
			Category: "secret", Name: name, Value: []byte(name),
		}))
	}

	cursor, err := s.Scan(ctx, "", "secret", nil, 0, -1)
	require.NoError(t, err)
	var got []*storage.Entry
	for {
		page, err := cursor.Next(ctx)
		require.NoError(t, err)
		if page == nil {
			break
		}
		got = append(got, page...)
	}
	assert.Len(t, got, 5)
	require.NoError(t, s.Close(ctx, false))
}

func TestKeyLifecycle(t *testing.T) {
	ctx := context.Background()
	o := NewOpener()
	st, err := o.Provision(ctx, "mem://keys", "raw", []byte("pass"), "", false)
	require.NoError(t, err)

	s, err := st.NewSession(ctx, "", false)
	require.NoError(t, err)

	require.NoError(t, s.InsertKey(ctx, "k1", nil, "meta", map[string]string{"purpose": "sign"}))
	_, err = s.FetchKey(ctx, "k1")
	require.NoError(t, err)

	require.NoError(t, s.UpdateKey(ctx, "k1", map[string]string{"purpose": "verify"}))
	keys, err := s.FetchAllKeys(ctx, storage.TagFilter{"purpose": "verify"})
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	require.NoError(t, s.RemoveKey(ctx, "k1"))
	_, err = s.FetchKey(ctx, "k1")
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx, false))
}

func TestKeyLifecycleWithPBKDF2Protection(t *testing.T) {
	ctx := context.Background()
	o := NewOpener()
	st, err := o.Provision(ctx, "mem://kdf-keys", "kdf:pbkdf2", []byte("correct horse battery staple"), "", false)
	require.NoError(t, err)

	key, err := aead.GenerateKey(aead.A256GCM)
	require.NoError(t, err)

	s, err := st.NewSession(ctx, "", false)
	require.NoError(t, err)
	require.NoError(t, s.InsertKey(ctx, "k1", key, "meta", map[string]string{"purpose": "encrypt"}))

	fetched, err := s.FetchKey(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.True(t, key.Equal(fetched))
	require.NoError(t, s.Close(ctx, false))
}

func TestRekeyReWrapsProtectedKeys(t *testing.T) {
	ctx := context.Background()
	o := NewOpener()
	st, err := o.Provision(ctx, "mem://rekey", "kdf:pbkdf2", []byte("old-passphrase"), "", false)
	require.NoError(t, err)

	key, err := aead.GenerateKey(aead.A256GCM)
	require.NoError(t, err)

	s, err := st.NewSession(ctx, "", false)
	require.NoError(t, err)
	require.NoError(t, s.InsertKey(ctx, "k1", key, "", nil))
	require.NoError(t, s.Close(ctx, false))

	require.NoError(t, st.Rekey(ctx, "kdf:pbkdf2", []byte("new-passphrase")))

	s2, err := st.NewSession(ctx, "", false)
	require.NoError(t, err)
	fetched, err := s2.FetchKey(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.True(t, key.Equal(fetched))
	require.NoError(t, s2.Close(ctx, false))
}

func TestProfileLifecycle(t *testing.T) {
	ctx := context.Background()
	o := NewOpener()
	st, err := o.Provision(ctx, "mem://profiles", "raw", []byte("pass"), "default", false)
	require.NoError(t, err)

	name, err := st.CreateProfile(ctx, "extra")
	require.NoError(t, err)
	assert.Equal(t, "extra", name)

	_, err = st.CreateProfile(ctx, "extra")
	assert.Error(t, err)

	removed, err := st.RemoveProfile(ctx, "extra")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = st.RemoveProfile(ctx, "default")
	assert.Error(t, err)
}
