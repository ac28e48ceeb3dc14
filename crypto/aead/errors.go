package aead

import "fmt"

// Kind identifies the category of failure an AEAD operation reports. It
// mirrors the error taxonomy across the whole core rather than being
// specific to this package, but the AEAD suite is the primary producer of
// all seven kinds.
type Kind int

const (
	// KindInvalidKeyData means imported key bytes were the wrong length.
	KindInvalidKeyData Kind = iota
	// KindInvalidNonce means the nonce length mismatches the algorithm.
	KindInvalidNonce
	// KindEncryption covers authentication failure, bad ciphertext length,
	// and CBC padding errors.
	KindEncryption
	// KindUnsupported covers AAD supplied where none is allowed, exporting
	// a public view of a symmetric key, and unknown seed methods.
	KindUnsupported
	// KindUsage covers misuse: wrong seed length, outstanding references,
	// invalid handle semantics.
	KindUsage
	// KindBusy means a scan cursor is already borrowed.
	KindBusy
	// KindUnexpected means a task was dropped without resolving its
	// callback.
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindInvalidKeyData:
		return "InvalidKeyData"
	case KindInvalidNonce:
		return "InvalidNonce"
	case KindEncryption:
		return "Encryption"
	case KindUnsupported:
		return "Unsupported"
	case KindUsage:
		return "Usage"
	case KindBusy:
		return "Busy"
	case KindUnexpected:
		return "Unexpected"
	default:
		return "Unknown"
	}
}

// Error is the typed error every exported primitive returns. Internal
// primitives propagate Kind directly rather than wrapping it behind
// sentinels, so callers across package boundaries (handle, storage, cmd)
// can branch on Kind with errors.As.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, aead.Err(aead.KindBusy)).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Err returns a sentinel Error of the given kind with no message, suitable
// for errors.Is comparisons.
func Err(kind Kind) *Error {
	return &Error{Kind: kind}
}
