package storage

import (
	"context"

	"github.com/sage-x-project/sage-vault/crypto/aead"
)

// Opener provisions, opens, and removes stores addressed by URI, before any
// handle exists. The handle registry's StoreHandle wraps the Store returned
// by Provision/Open.
type Opener interface {
	// Provision creates a new store at uri, protected by a key derived from
	// passKey using keyMethod, optionally seeding the named profile as
	// default. If recreate is true, any existing store at uri is replaced.
	Provision(ctx context.Context, uri, keyMethod string, passKey []byte, profile string, recreate bool) (Store, error)
	// Open opens an existing store at uri. keyMethod/passKey/profile may be
	// empty to use the store's recorded defaults.
	Open(ctx context.Context, uri, keyMethod string, passKey []byte, profile string) (Store, error)
	// Remove deletes the store at uri entirely. Reports whether a store was
	// found to remove.
	Remove(ctx context.Context, uri string) (bool, error)
}

// Store is an open backend store: the resource a StoreHandle refers to.
type Store interface {
	// NewSession opens a session scoped to profile (empty means the
	// store's default profile). asTransaction marks the session as a
	// transaction whose writes commit atomically only on an explicit
	// commit at close.
	NewSession(ctx context.Context, profile string, asTransaction bool) (Session, error)
	// CreateProfile creates a new named profile, or an auto-generated name
	// when profile is empty. Returns the profile's name.
	CreateProfile(ctx context.Context, profile string) (string, error)
	// GetProfileName returns the store's current default profile name.
	GetProfileName(ctx context.Context) (string, error)
	// RemoveProfile deletes a profile. Reports whether it existed.
	RemoveProfile(ctx context.Context, profile string) (bool, error)
	// Rekey re-encrypts the store under a new protection key. Callers must
	// ensure no session holds this store open; the handle registry enforces
	// that via its reference count before calling Rekey.
	Rekey(ctx context.Context, keyMethod string, passKey []byte) error
	// Close releases the store's resources (connection pool, file handle).
	Close(ctx context.Context) error
}

// Session is a bounded scope of operations against one open store. A
// transaction session's writes are only durable if Close is called with
// commit=true; otherwise they roll back.
type Session interface {
	// Count returns the number of entries in category matching filter.
	Count(ctx context.Context, category string, filter TagFilter) (int64, error)
	// Fetch retrieves a single named entry, or nil if absent.
	Fetch(ctx context.Context, category, name string, forUpdate bool) (*Entry, error)
	// FetchAll retrieves up to limit entries (limit < 0 means no limit)
	// matching category and filter.
	FetchAll(ctx context.Context, category string, filter TagFilter, limit int) ([]*Entry, error)
	// RemoveAll deletes every entry matching category and filter, returning
	// the count removed.
	RemoveAll(ctx context.Context, category string, filter TagFilter) (int64, error)
	// Update applies a single insert/replace/remove against one entry.
	Update(ctx context.Context, op EntryOp, entry *Entry) error

	// InsertKey stores a key under name with the given tags and opaque
	// caller metadata.
	InsertKey(ctx context.Context, name string, key *aead.Key, metadata string, tags map[string]string) error
	// FetchKey retrieves a previously inserted key by name.
	FetchKey(ctx context.Context, name string) (*aead.Key, error)
	// FetchAllKeys retrieves every key matching filter.
	FetchAllKeys(ctx context.Context, filter TagFilter) ([]*aead.Key, error)
	// UpdateKey replaces the tags associated with an existing key.
	UpdateKey(ctx context.Context, name string, tags map[string]string) error
	// RemoveKey deletes a key by name.
	RemoveKey(ctx context.Context, name string) error

	// Scan opens a cursor over category filtered by filter, starting at
	// offset and yielding at most limit entries (limit < 0 means no
	// limit).
	Scan(ctx context.Context, profile, category string, filter TagFilter, offset int64, limit int64) (Scan, error)

	// Close ends the session. For a transaction, commit controls whether
	// its writes are made durable; for a plain session commit is ignored
	// (writes already auto-committed).
	Close(ctx context.Context, commit bool) error
}

// Scan is a single-owner cursor over a finite query result stream. Next
// returns a page of entries and nil, nil when exhausted.
type Scan interface {
	Next(ctx context.Context) ([]*Entry, error)
}
