// Package storage defines the external backend collaborator that the
// handle registry dispatches to. Persistence format, SQL schema, and
// key-derivation are all out of scope for this package (see spec
// Non-goals); it only fixes the shape a backend driver must present.
package storage

// EntryOp names the three mutations a session Update call may perform.
type EntryOp int

const (
	EntryInsert EntryOp = iota
	EntryReplace
	EntryRemove
)

func (op EntryOp) String() string {
	switch op {
	case EntryInsert:
		return "insert"
	case EntryReplace:
		return "replace"
	case EntryRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Entry is a single named, categorized, tagged record. Value holds opaque
// bytes — typically ciphertext produced by crypto/aead, but the backend
// never interprets it.
type Entry struct {
	Category string
	Name     string
	Value    []byte
	Tags     map[string]string
}

// TagFilter restricts a query to entries whose tags match every key/value
// pair. A nil or empty TagFilter matches everything. This is a deliberately
// small equality-only filter rather than a full query expression language,
// since spec.md scopes query semantics as an external-backend concern and
// only the category/tag-filter/offset/limit shape of scan_start is part of
// the exported surface.
type TagFilter map[string]string

// Matches reports whether tags satisfies every constraint in f.
func (f TagFilter) Matches(tags map[string]string) bool {
	for k, v := range f {
		if tags[k] != v {
			return false
		}
	}
	return true
}
