// Package handle is the opaque, async handle-manager layer: it mints
// 64-bit tokens for open stores, sessions, and scan cursors, and exposes
// every store/session/scan operation as a function taking and returning
// plain values rather than long-lived object references. Callers across
// a process or FFI boundary hold only a Handle; the Manager owns the real
// storage.Store/Session/Scan underneath.
package handle

import "sync/atomic"

// Kind distinguishes the three handle families. Counters are independent
// per kind, so a StoreHandle and a SessionHandle can carry the same
// numeric value without colliding — callers are expected to keep the
// Kind alongside the Handle, which every exported Manager method already
// does by taking/returning the concrete StoreHandle/SessionHandle/
// ScanHandle types rather than a bare integer.
type Kind int

const (
	KindStore Kind = iota
	KindSession
	KindScan
)

// Handle is an opaque token. The zero value is never issued and always
// means "invalid handle".
type Handle uint64

// Valid reports whether h was actually issued by a counter.
func (h Handle) Valid() bool { return h != 0 }

// counter mints monotonically increasing handles starting at 1, so the
// zero value stays reserved for "invalid".
type counter struct{ next atomic.Uint64 }

func (c *counter) mint() Handle {
	return Handle(c.next.Add(1))
}

// StoreHandle, SessionHandle, and ScanHandle are Handle wrapped in a
// distinct type per kind, so a caller cannot pass a SessionHandle where a
// StoreHandle is expected without the compiler objecting.
type (
	StoreHandle   Handle
	SessionHandle Handle
	ScanHandle    Handle
)
