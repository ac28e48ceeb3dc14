package memory

import (
	"context"

	"github.com/sage-x-project/sage-vault/crypto/aead"
	"github.com/sage-x-project/sage-vault/storage"
)

// Session is the in-memory storage.Session. Plain sessions write straight
// through to the parent Store on every mutation; transaction sessions
// mutate only their own working copy and publish it to the store on
// Close(ctx, commit=true) — or discard it otherwise.
type Session struct {
	store         *Store
	profile       string
	asTransaction bool
	working       *profileData
	closed        bool
}

var errClosed = &aead.Error{Kind: aead.KindUsage, Message: "session is closed"}

func (s *Session) publish() {
	s.store.mu.Lock()
	s.store.profiles[s.profile] = s.working.clone()
	s.store.mu.Unlock()
}

func (s *Session) Count(_ context.Context, category string, filter storage.TagFilter) (int64, error) {
	if s.closed {
		return 0, errClosed
	}
	return int64(len(matching(s.working, category, filter))), nil
}

func (s *Session) Fetch(_ context.Context, category, name string, _ bool) (*storage.Entry, error) {
	if s.closed {
		return nil, errClosed
	}
	byName, ok := s.working.entries[category]
	if !ok {
		return nil, nil
	}
	e, ok := byName[name]
	if !ok {
		return nil, nil
	}
	return cloneEntry(e), nil
}

func (s *Session) FetchAll(_ context.Context, category string, filter storage.TagFilter, limit int) ([]*storage.Entry, error) {
	if s.closed {
		return nil, errClosed
	}
	all := matching(s.working, category, filter)
	if limit >= 0 && limit < len(all) {
		all = all[:limit]
	}
	out := make([]*storage.Entry, len(all))
	for i, e := range all {
		out[i] = cloneEntry(e)
	}
	return out, nil
}

func (s *Session) RemoveAll(_ context.Context, category string, filter storage.TagFilter) (int64, error) {
	if s.closed {
		return 0, errClosed
	}
	byName, ok := s.working.entries[category]
	if !ok {
		return 0, nil
	}
	var removed int64
	for name, e := range byName {
		if filter.Matches(e.Tags) {
			delete(byName, name)
			removed++
		}
	}
	if !s.asTransaction {
		s.publish()
	}
	return removed, nil
}

func (s *Session) Update(_ context.Context, op storage.EntryOp, entry *storage.Entry) error {
	if s.closed {
		return errClosed
	}
	byName, ok := s.working.entries[entry.Category]
	if !ok {
		byName = make(map[string]*storage.Entry)
		s.working.entries[entry.Category] = byName
	}

	switch op {
	case storage.EntryInsert:
		if _, exists := byName[entry.Name]; exists {
			return &aead.Error{Kind: aead.KindUsage, Message: "duplicate entry: " + entry.Category + "/" + entry.Name}
		}
		byName[entry.Name] = cloneEntry(entry)
	case storage.EntryReplace:
		byName[entry.Name] = cloneEntry(entry)
	case storage.EntryRemove:
		if _, exists := byName[entry.Name]; !exists {
			return &aead.Error{Kind: aead.KindUsage, Message: "no such entry: " + entry.Category + "/" + entry.Name}
		}
		delete(byName, entry.Name)
	default:
		return &aead.Error{Kind: aead.KindUsage, Message: "unknown entry op"}
	}

	if !s.asTransaction {
		s.publish()
	}
	return nil
}

func (s *Session) InsertKey(_ context.Context, name string, key *aead.Key, metadata string, tags map[string]string) error {
	if s.closed {
		return errClosed
	}
	if _, exists := s.working.keys[name]; exists {
		return &aead.Error{Kind: aead.KindUsage, Message: "duplicate key: " + name}
	}

	rec := &keyRecord{metadata: metadata, tags: cloneTags(tags)}
	if s.store.protectionKey != nil && key != nil {
		wrapped, alg, err := wrapKey(s.store.protectionKey, key)
		if err != nil {
			return err
		}
		rec.wrapped, rec.keyAlg = wrapped, alg
	} else {
		rec.key = key
	}

	s.working.keys[name] = rec
	if !s.asTransaction {
		s.publish()
	}
	return nil
}

func (s *Session) FetchKey(_ context.Context, name string) (*aead.Key, error) {
	if s.closed {
		return nil, errClosed
	}
	rec, ok := s.working.keys[name]
	if !ok {
		return nil, nil
	}
	if rec.wrapped != nil {
		return unwrapKey(s.store.protectionKey, rec)
	}
	return rec.key, nil
}

func (s *Session) FetchAllKeys(_ context.Context, filter storage.TagFilter) ([]*aead.Key, error) {
	if s.closed {
		return nil, errClosed
	}
	out := make([]*aead.Key, 0, len(s.working.keys))
	for _, rec := range s.working.keys {
		if !filter.Matches(rec.tags) {
			continue
		}
		if rec.wrapped != nil {
			key, err := unwrapKey(s.store.protectionKey, rec)
			if err != nil {
				return nil, err
			}
			out = append(out, key)
			continue
		}
		out = append(out, rec.key)
	}
	return out, nil
}

func (s *Session) UpdateKey(_ context.Context, name string, tags map[string]string) error {
	if s.closed {
		return errClosed
	}
	rec, ok := s.working.keys[name]
	if !ok {
		return &aead.Error{Kind: aead.KindUsage, Message: "no such key: " + name}
	}
	rec.tags = cloneTags(tags)
	if !s.asTransaction {
		s.publish()
	}
	return nil
}

func (s *Session) RemoveKey(_ context.Context, name string) error {
	if s.closed {
		return errClosed
	}
	if _, ok := s.working.keys[name]; !ok {
		return &aead.Error{Kind: aead.KindUsage, Message: "no such key: " + name}
	}
	delete(s.working.keys, name)
	if !s.asTransaction {
		s.publish()
	}
	return nil
}

func (s *Session) Scan(_ context.Context, _, category string, filter storage.TagFilter, offset int64, limit int64) (storage.Scan, error) {
	if s.closed {
		return nil, errClosed
	}
	all := matching(s.working, category, filter)
	if offset > int64(len(all)) {
		offset = int64(len(all))
	}
	all = all[offset:]
	return &Scan{entries: all, limit: limit}, nil
}

func (s *Session) Close(_ context.Context, commit bool) error {
	if s.closed {
		return errClosed
	}
	s.closed = true
	if s.asTransaction && commit {
		s.publish()
	}
	return nil
}

// Scan is the in-memory storage.Scan cursor. It pages through a static,
// already-filtered snapshot taken at Session.Scan time.
type Scan struct {
	entries []*storage.Entry
	limit   int64
	sent    int64
	pos     int
}

const scanPageSize = 64

func (c *Scan) Next(_ context.Context) ([]*storage.Entry, error) {
	if c.pos >= len(c.entries) {
		return nil, nil
	}
	if c.limit >= 0 && c.sent >= c.limit {
		return nil, nil
	}

	end := c.pos + scanPageSize
	if end > len(c.entries) {
		end = len(c.entries)
	}
	if c.limit >= 0 {
		remaining := c.limit - c.sent
		if int64(end-c.pos) > remaining {
			end = c.pos + int(remaining)
		}
	}

	page := make([]*storage.Entry, end-c.pos)
	for i, e := range c.entries[c.pos:end] {
		page[i] = cloneEntry(e)
	}
	c.pos = end
	c.sent += int64(len(page))
	return page, nil
}
