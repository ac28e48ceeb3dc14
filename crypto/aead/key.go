package aead

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/sage-x-project/sage-vault/crypto/buffer"
	"github.com/sage-x-project/sage-vault/crypto/random"
)

// maxKeyLen is the capacity of Key's backing array — the largest key size
// among the supported algorithms (A256CBC-HS512's 64-byte key). Carrying
// the length in the variant and sizing the array to the largest supported
// key avoids a generic/length-in-type key representation that Go has no
// direct equivalent for.
const maxKeyLen = 64

// Key is an algorithm-parameterized symmetric key. Contents never appear in
// %v/%s output; equality and the key-wrap integrity check use constant-time
// comparison; Destroy zeroes the backing array.
type Key struct {
	alg  Algorithm
	data [maxKeyLen]byte
	n    int
}

// GenerateKey draws a fresh key for alg from the OS CSPRNG.
func GenerateKey(alg Algorithm) (*Key, error) {
	k := &Key{alg: alg, n: alg.Params().KeyLen}
	if err := random.FillRandom(k.data[:k.n]); err != nil {
		return nil, newErr(KindUsage, "generate key: %v", err)
	}
	return k, nil
}

// KeyFromSeed deterministically expands a ≥32-byte seed into a key for alg,
// reproducible across calls with the same seed.
func KeyFromSeed(alg Algorithm, seed []byte) (*Key, error) {
	if len(seed) < random.DeterministicSeedLen {
		return nil, newErr(KindUsage, "seed must be at least %d bytes", random.DeterministicSeedLen)
	}
	k := &Key{alg: alg, n: alg.Params().KeyLen}
	if err := random.FillRandomDeterministic(seed[:random.DeterministicSeedLen], k.data[:k.n]); err != nil {
		return nil, newErr(KindUsage, "expand seed: %v", err)
	}
	return k, nil
}

// ImportKey validates and copies caller-supplied key bytes. The length must
// equal the algorithm's key size; otherwise InvalidKeyData.
func ImportKey(alg Algorithm, raw []byte) (*Key, error) {
	want := alg.Params().KeyLen
	if len(raw) != want {
		return nil, newErr(KindInvalidKeyData, "%s requires a %d-byte key, got %d", alg, want, len(raw))
	}
	k := &Key{alg: alg, n: want}
	copy(k.data[:want], raw)
	return k, nil
}

// KeyFromPassphrase derives a key for alg from a caller-supplied passphrase
// and salt via PBKDF2-HMAC-SHA256, following the same construction as the
// teacher's file-vault passphrase wrapping. The derived bytes are truncated
// or expanded by pbkdf2.Key to exactly the algorithm's key length, so two
// calls with the same (passphrase, salt, iterations) always yield the same
// key — this is what lets a store re-derive its protection key from a
// passphrase on every open rather than persisting the key itself.
func KeyFromPassphrase(alg Algorithm, passphrase, salt []byte, iterations int) (*Key, error) {
	if iterations <= 0 {
		return nil, newErr(KindUsage, "iterations must be positive, got %d", iterations)
	}
	want := alg.Params().KeyLen
	derived := pbkdf2.Key(passphrase, salt, iterations, want, sha256.New)
	return ImportKey(alg, derived)
}

// KeyFromSecret imports key material held in a buffer.Secret, leaving the
// secret's own contents untouched (the key holds its own copy).
func KeyFromSecret(alg Algorithm, s *buffer.Secret) (*Key, error) {
	return ImportKey(alg, s.Bytes())
}

// Algorithm returns the key's algorithm tag.
func (k *Key) Algorithm() Algorithm { return k.alg }

// Bytes returns the key material. The returned slice aliases the Key's
// backing array; callers must not retain it past Destroy.
func (k *Key) Bytes() []byte { return k.data[:k.n] }

// Len returns the key length in bytes.
func (k *Key) Len() int { return k.n }

// Equal performs a constant-time comparison. Keys of differing algorithm or
// length are unequal.
func (k *Key) Equal(other *Key) bool {
	if other == nil || k.alg != other.alg || k.n != other.n {
		return false
	}
	return subtle.ConstantTimeCompare(k.data[:k.n], other.data[:other.n]) == 1
}

// Destroy overwrites the key bytes with zero. Safe to call more than once.
func (k *Key) Destroy() {
	buffer.Zero(k.data[:])
	k.n = 0
}

func (k *Key) String() string {
	return fmt.Sprintf("Key(%s, %d bytes)", k.alg, k.n)
}

func (k *Key) GoString() string {
	return k.String()
}
