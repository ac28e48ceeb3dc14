// Package memory is the in-memory reference storage.Opener: a map-guarded
// store used by tests, the CLI's default configuration, and the handle
// lifecycle property in spec.md §8 ("open store; start transaction
// session; insert entry; close commit=false; reopen; fetch → empty").
package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/sage-x-project/sage-vault/crypto/aead"
	"github.com/sage-x-project/sage-vault/crypto/buffer"
	"github.com/sage-x-project/sage-vault/crypto/random"
	"github.com/sage-x-project/sage-vault/storage"
)

// defaultKDFIterations is the PBKDF2 iteration count this reference backend
// uses for the "kdf:pbkdf2" key method. config.VaultConfig.KDFIterations is
// not read here; storage/postgres likewise uses its own fixed 100,000.
const defaultKDFIterations = 100_000

const keyWrapNonceLen = 12

// deriveProtectionKey returns the key used to wrap key material at rest, or
// nil for "raw"/unset, which keeps the existing plaintext-in-memory
// behavior appropriate for a disposable reference backend.
func deriveProtectionKey(keyMethod string, passKey, salt []byte) (*aead.Key, error) {
	if keyMethod != "kdf:pbkdf2" {
		return nil, nil
	}
	return aead.KeyFromPassphrase(aead.A256GCM, passKey, salt, defaultKDFIterations)
}

// wrapKey seals key under protectionKey, returning nonce||ciphertext||tag.
func wrapKey(protectionKey *aead.Key, key *aead.Key) ([]byte, aead.Algorithm, error) {
	nonce := make([]byte, keyWrapNonceLen)
	if err := random.FillRandom(nonce); err != nil {
		return nil, 0, &aead.Error{Kind: aead.KindUnexpected, Message: "generate key-wrap nonce: " + err.Error()}
	}
	buf := buffer.New(append([]byte(nil), key.Bytes()...))
	if _, err := aead.Encrypt(aead.A256GCM, protectionKey, buf, nonce, nil); err != nil {
		return nil, 0, err
	}
	out := make([]byte, 0, len(nonce)+buf.Len())
	out = append(out, nonce...)
	out = append(out, buf.Bytes()...)
	return out, key.Algorithm(), nil
}

// unwrapKey reverses wrapKey.
func unwrapKey(protectionKey *aead.Key, rec *keyRecord) (*aead.Key, error) {
	if len(rec.wrapped) < keyWrapNonceLen {
		return nil, &aead.Error{Kind: aead.KindEncryption, Message: "wrapped key material too short"}
	}
	nonce := rec.wrapped[:keyWrapNonceLen]
	buf := buffer.New(append([]byte(nil), rec.wrapped[keyWrapNonceLen:]...))
	if err := aead.Decrypt(aead.A256GCM, protectionKey, buf, nonce, nil); err != nil {
		return nil, err
	}
	return aead.ImportKey(rec.keyAlg, buf.Bytes())
}

// Opener holds every provisioned store, keyed by URI. A process normally
// creates one Opener and registers it as the storage.Opener the handle
// registry dispatches store_provision/store_open/store_remove to.
type Opener struct {
	mu     sync.RWMutex
	stores map[string]*Store
}

// NewOpener returns an empty Opener.
func NewOpener() *Opener {
	return &Opener{stores: make(map[string]*Store)}
}

func hashPassKey(passKey []byte) []byte {
	sum := sha256.Sum256(passKey)
	return sum[:]
}

// Provision creates a new store at uri. If recreate is false and a store
// already exists at uri, Provision fails with KindUsage.
func (o *Opener) Provision(_ context.Context, uri, keyMethod string, passKey []byte, profile string, recreate bool) (storage.Store, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.stores[uri]; exists && !recreate {
		return nil, &aead.Error{Kind: aead.KindUsage, Message: "store already provisioned at " + uri}
	}
	if profile == "" {
		profile = "default"
	}

	var salt []byte
	if keyMethod == "kdf:pbkdf2" {
		salt = make([]byte, 16)
		if err := random.FillRandom(salt); err != nil {
			return nil, &aead.Error{Kind: aead.KindUnexpected, Message: "generate salt: " + err.Error()}
		}
	}
	protectionKey, err := deriveProtectionKey(keyMethod, passKey, salt)
	if err != nil {
		return nil, err
	}

	st := &Store{
		uri:            uri,
		keyMethod:      keyMethod,
		passKeyHash:    hashPassKey(passKey),
		salt:           salt,
		protectionKey:  protectionKey,
		defaultProfile: profile,
		profiles:       map[string]*profileData{profile: newProfileData()},
	}
	o.stores[uri] = st
	return st, nil
}

// Open returns the store at uri if passKey matches its provisioned
// protection key.
func (o *Opener) Open(_ context.Context, uri, _ string, passKey []byte, profile string) (storage.Store, error) {
	o.mu.RLock()
	st, ok := o.stores[uri]
	o.mu.RUnlock()
	if !ok {
		return nil, &aead.Error{Kind: aead.KindUsage, Message: "no store at " + uri}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if !bytes.Equal(st.passKeyHash, hashPassKey(passKey)) {
		return nil, &aead.Error{Kind: aead.KindUsage, Message: "pass key does not match"}
	}
	if profile != "" {
		if _, ok := st.profiles[profile]; !ok {
			return nil, &aead.Error{Kind: aead.KindUsage, Message: "unknown profile " + profile}
		}
		st.defaultProfile = profile
	}
	return st, nil
}

// Remove deletes the store at uri. Reports whether one existed.
func (o *Opener) Remove(_ context.Context, uri string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.stores[uri]; !ok {
		return false, nil
	}
	delete(o.stores, uri)
	return true, nil
}

// Store is the in-memory storage.Store implementation.
type Store struct {
	mu             sync.RWMutex
	uri            string
	keyMethod      string
	passKeyHash    []byte
	salt           []byte
	protectionKey  *aead.Key
	defaultProfile string
	profiles       map[string]*profileData
}

func newProfileData() *profileData {
	return &profileData{
		entries: make(map[string]map[string]*storage.Entry),
		keys:    make(map[string]*keyRecord),
	}
}

// keyRecord holds either a plain key (store has no protection key) or a
// wrapped one (store uses "kdf:pbkdf2"), never both.
type keyRecord struct {
	key      *aead.Key
	keyAlg   aead.Algorithm
	wrapped  []byte
	metadata string
	tags     map[string]string
}

// profileData holds one profile's live entries and keys. clone performs a
// deep copy so a transaction session can mutate its own working copy
// without affecting the store until commit.
type profileData struct {
	entries map[string]map[string]*storage.Entry
	keys    map[string]*keyRecord
}

func (p *profileData) clone() *profileData {
	out := newProfileData()
	for cat, byName := range p.entries {
		cp := make(map[string]*storage.Entry, len(byName))
		for name, e := range byName {
			cp[name] = cloneEntry(e)
		}
		out.entries[cat] = cp
	}
	for name, k := range p.keys {
		out.keys[name] = &keyRecord{
			key:      k.key,
			keyAlg:   k.keyAlg,
			wrapped:  append([]byte(nil), k.wrapped...),
			metadata: k.metadata,
			tags:     cloneTags(k.tags),
		}
	}
	return out
}

func cloneEntry(e *storage.Entry) *storage.Entry {
	value := make([]byte, len(e.Value))
	copy(value, e.Value)
	return &storage.Entry{
		Category: e.Category,
		Name:     e.Name,
		Value:    value,
		Tags:     cloneTags(e.Tags),
	}
}

func cloneTags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

func (s *Store) NewSession(_ context.Context, profile string, asTransaction bool) (storage.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if profile == "" {
		profile = s.defaultProfile
	}
	pd, ok := s.profiles[profile]
	if !ok {
		return nil, &aead.Error{Kind: aead.KindUsage, Message: "unknown profile " + profile}
	}
	return &Session{
		store:         s,
		profile:       profile,
		asTransaction: asTransaction,
		working:       pd.clone(),
	}, nil
}

func (s *Store) CreateProfile(_ context.Context, profile string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if profile == "" {
		profile = uuid.NewString()
	}
	if _, exists := s.profiles[profile]; exists {
		return "", &aead.Error{Kind: aead.KindUsage, Message: "profile already exists: " + profile}
	}
	s.profiles[profile] = newProfileData()
	return profile, nil
}

func (s *Store) GetProfileName(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultProfile, nil
}

func (s *Store) RemoveProfile(_ context.Context, profile string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if profile == s.defaultProfile {
		return false, &aead.Error{Kind: aead.KindUsage, Message: "cannot remove the default profile"}
	}
	if _, ok := s.profiles[profile]; !ok {
		return false, nil
	}
	delete(s.profiles, profile)
	return true, nil
}

// Rekey derives a new protection key and, if the store wraps key material at
// rest, unwraps every stored key under the old key and re-wraps it under the
// new one before swapping the store over — a rekey never leaves a key
// unrecoverable under the key method the store ends up in.
func (s *Store) Rekey(_ context.Context, keyMethod string, passKey []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newSalt []byte
	if keyMethod == "kdf:pbkdf2" {
		newSalt = make([]byte, 16)
		if err := random.FillRandom(newSalt); err != nil {
			return &aead.Error{Kind: aead.KindUnexpected, Message: "generate salt: " + err.Error()}
		}
	}
	newProtectionKey, err := deriveProtectionKey(keyMethod, passKey, newSalt)
	if err != nil {
		return err
	}

	for _, pd := range s.profiles {
		for _, rec := range pd.keys {
			var key *aead.Key
			if rec.wrapped != nil {
				var err error
				key, err = unwrapKey(s.protectionKey, rec)
				if err != nil {
					return err
				}
			} else {
				key = rec.key
			}
			if key == nil {
				continue
			}
			if newProtectionKey != nil {
				wrapped, alg, err := wrapKey(newProtectionKey, key)
				if err != nil {
					return err
				}
				rec.key, rec.wrapped, rec.keyAlg = nil, wrapped, alg
			} else {
				rec.key, rec.wrapped, rec.keyAlg = key, nil, 0
			}
		}
	}

	s.keyMethod = keyMethod
	s.passKeyHash = hashPassKey(passKey)
	s.salt = newSalt
	s.protectionKey = newProtectionKey
	return nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}

// matching returns a deterministically ordered snapshot of entries in
// category satisfying filter, from pd.
func matching(pd *profileData, category string, filter storage.TagFilter) []*storage.Entry {
	byName := pd.entries[category]
	out := make([]*storage.Entry, 0, len(byName))
	for _, e := range byName {
		if filter.Matches(e.Tags) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
