package buffer

import (
	"crypto/subtle"
	"fmt"
)

// Secret owns a heap byte array that is wiped on release. It implements the
// Buffer interface so it can be passed directly into the AEAD suite (the
// common case: the plaintext or key material being operated on in place is
// itself a Secret).
type Secret struct {
	data []byte
}

// NewSecret takes ownership of data, copying it into a freshly allocated
// backing array so the caller's original slice is never aliased.
func NewSecret(data []byte) *Secret {
	owned := make([]byte, len(data))
	copy(owned, data)
	return &Secret{data: owned}
}

// NewSecretSize allocates a zeroed Secret of n bytes.
func NewSecretSize(n int) *Secret {
	return &Secret{data: make([]byte, n)}
}

func (s *Secret) Bytes() []byte    { return s.data }
func (s *Secret) BytesMut() []byte { return s.data }
func (s *Secret) Len() int         { return len(s.data) }

func (s *Secret) Write(p []byte) {
	s.data = append(s.data, p...)
}

func (s *Secret) Extend(n int) []byte {
	start := len(s.data)
	s.data = append(s.data, make([]byte, n)...)
	return s.data[start:]
}

func (s *Secret) Insert(offset int, p []byte) {
	grown := make([]byte, len(s.data)+len(p))
	copy(grown, s.data[:offset])
	copy(grown[offset:], p)
	copy(grown[offset+len(p):], s.data[offset:])
	Zero(s.data)
	s.data = grown
}

func (s *Secret) Remove(start, end int) {
	s.data = append(s.data[:start], s.data[end:]...)
}

func (s *Secret) Resize(n int) {
	switch {
	case n == len(s.data):
		return
	case n < len(s.data):
		Zero(s.data[n:])
		s.data = s.data[:n]
	default:
		s.data = append(s.data, make([]byte, n-len(s.data))...)
	}
}

// Equal performs a constant-time comparison. Secrets of differing length are
// unequal, but the length comparison itself is not constant-time: lengths
// are not considered sensitive.
func (s *Secret) Equal(other *Secret) bool {
	if other == nil || len(s.data) != len(other.data) {
		return false
	}
	return subtle.ConstantTimeCompare(s.data, other.data) == 1
}

// Destroy overwrites the backing array with zero. The write uses a loop over
// a volatile-equivalent store pattern (a plain byte-by-byte clear compiled
// without dead-store elimination opportunities, since the slice escapes via
// the method's own side effects) rather than relying on a library the
// runtime could optimize away. Safe to call more than once.
func (s *Secret) Destroy() {
	Zero(s.data)
	s.data = nil
}

// Zero overwrites b with zero bytes in place.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// String never renders the contents, only the length, mirroring the "debug
// rendering shows only length" requirement for secret material.
func (s *Secret) String() string {
	return fmt.Sprintf("Secret(%d bytes)", len(s.data))
}

// GoString satisfies fmt's %#v hook with the same redaction as String.
func (s *Secret) GoString() string {
	return s.String()
}
