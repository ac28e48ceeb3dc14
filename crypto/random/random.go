// Package random implements the two CSPRNG entry points the key-generation
// path needs: true randomness from the OS, and a deterministic expansion of
// a fixed seed used to make key generation reproducible in tests and
// recovery tooling.
package random

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/chacha20"
)

// DeterministicSeedLen is the required length of the seed passed to
// FillRandomDeterministic — the ChaCha20 key size.
const DeterministicSeedLen = 32

// deterministicPersonalization is the fixed 12-byte nonce used to turn
// ChaCha20 into a reproducible keystream generator, matching libsodium's
// randombytes_deterministic.
var deterministicPersonalization = []byte("LibsodiumDRG")

// ErrInvalidSeedLen is returned when FillRandomDeterministic is given a seed
// whose length is not DeterministicSeedLen.
var ErrInvalidSeedLen = errors.New("random: seed must be 32 bytes")

// FillRandom fills out with bytes drawn from the OS CSPRNG.
func FillRandom(out []byte) error {
	_, err := rand.Read(out)
	return err
}

// FillRandomDeterministic fills out with the ChaCha20 keystream produced by
// keying the cipher with seed and the fixed "LibsodiumDRG" nonce, then
// encrypting zeros. The result is a pure function of seed and len(out).
func FillRandomDeterministic(seed, out []byte) error {
	if len(seed) != DeterministicSeedLen {
		return ErrInvalidSeedLen
	}
	c, err := chacha20.NewUnauthenticatedCipher(seed, deterministicPersonalization)
	if err != nil {
		return err
	}
	for i := range out {
		out[i] = 0
	}
	c.XORKeyStream(out, out)
	return nil
}
