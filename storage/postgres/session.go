package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sage-x-project/sage-vault/crypto/aead"
	"github.com/sage-x-project/sage-vault/storage"
)

// Session implements storage.Session. q is either the store's pool
// (auto-commit) or tx (scoped to one transaction); Close commits or
// rolls back tx when this session is transactional.
type Session struct {
	store   *Store
	q       querier
	tx      pgx.Tx
	profile string
}

func marshalTags(tags map[string]string) ([]byte, error) {
	if tags == nil {
		tags = map[string]string{}
	}
	return json.Marshal(tags)
}

func unmarshalTags(data []byte) (map[string]string, error) {
	tags := map[string]string{}
	if len(data) == 0 {
		return tags, nil
	}
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return tags, nil
}

// Count returns the number of entries in category matching filter.
// Tag filtering happens client-side after a category-scoped fetch since
// the filter shape is a small equality map, not a query the server needs
// to push down.
func (s *Session) Count(ctx context.Context, category string, filter storage.TagFilter) (int64, error) {
	entries, err := s.FetchAll(ctx, category, filter, -1)
	if err != nil {
		return 0, err
	}
	return int64(len(entries)), nil
}

// Fetch retrieves a single named entry, or nil if absent.
func (s *Session) Fetch(ctx context.Context, category, name string, forUpdate bool) (*storage.Entry, error) {
	query := `SELECT value, tags FROM vault_entries WHERE profile = $1 AND category = $2 AND name = $3`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var value, tagsJSON []byte
	err := s.q.QueryRow(ctx, query, s.profile, category, name).Scan(&value, &tagsJSON)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch entry: %w", err)
	}
	tags, err := unmarshalTags(tagsJSON)
	if err != nil {
		return nil, err
	}
	return &storage.Entry{Category: category, Name: name, Value: value, Tags: tags}, nil
}

// FetchAll retrieves up to limit entries (limit < 0 means no limit)
// matching category and filter.
func (s *Session) FetchAll(ctx context.Context, category string, filter storage.TagFilter, limit int) ([]*storage.Entry, error) {
	rows, err := s.q.Query(ctx, `SELECT name, value, tags FROM vault_entries WHERE profile = $1 AND category = $2`, s.profile, category)
	if err != nil {
		return nil, fmt.Errorf("fetch all entries: %w", err)
	}
	defer rows.Close()

	var out []*storage.Entry
	for rows.Next() {
		var name string
		var value, tagsJSON []byte
		if err := rows.Scan(&name, &value, &tagsJSON); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		tags, err := unmarshalTags(tagsJSON)
		if err != nil {
			return nil, err
		}
		if !filter.Matches(tags) {
			continue
		}
		out = append(out, &storage.Entry{Category: category, Name: name, Value: value, Tags: tags})
		if limit >= 0 && len(out) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

// RemoveAll deletes every entry matching category and filter.
func (s *Session) RemoveAll(ctx context.Context, category string, filter storage.TagFilter) (int64, error) {
	matches, err := s.FetchAll(ctx, category, filter, -1)
	if err != nil {
		return 0, err
	}
	var removed int64
	for _, e := range matches {
		tag, err := s.q.Exec(ctx, `DELETE FROM vault_entries WHERE profile = $1 AND category = $2 AND name = $3`, s.profile, category, e.Name)
		if err != nil {
			return removed, fmt.Errorf("remove entry %s: %w", e.Name, err)
		}
		removed += tag.RowsAffected()
	}
	return removed, nil
}

// Update applies a single insert/replace/remove against one entry.
func (s *Session) Update(ctx context.Context, op storage.EntryOp, entry *storage.Entry) error {
	switch op {
	case storage.EntryInsert, storage.EntryReplace:
		tagsJSON, err := marshalTags(entry.Tags)
		if err != nil {
			return err
		}
		_, err = s.q.Exec(ctx, `
			INSERT INTO vault_entries (profile, category, name, value, tags)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (profile, category, name) DO UPDATE SET value = EXCLUDED.value, tags = EXCLUDED.tags`,
			s.profile, entry.Category, entry.Name, entry.Value, tagsJSON)
		if err != nil {
			return fmt.Errorf("upsert entry: %w", err)
		}
		return nil
	case storage.EntryRemove:
		_, err := s.q.Exec(ctx, `DELETE FROM vault_entries WHERE profile = $1 AND category = $2 AND name = $3`,
			s.profile, entry.Category, entry.Name)
		if err != nil {
			return fmt.Errorf("remove entry: %w", err)
		}
		return nil
	default:
		return &aead.Error{Kind: aead.KindUsage, Message: "unknown entry op"}
	}
}

// InsertKey stores key under name, wrapping its raw bytes first when the
// store's key method calls for it.
func (s *Session) InsertKey(ctx context.Context, name string, key *aead.Key, metadata string, tags map[string]string) error {
	tagsJSON, err := marshalTags(tags)
	if err != nil {
		return err
	}

	var wrapped, plain []byte
	alg := key.Algorithm()
	if s.store.protectionKey != nil {
		wrapped, alg, err = wrapKey(s.store.protectionKey, key)
		if err != nil {
			return err
		}
	} else {
		plain = append([]byte(nil), key.Bytes()...)
	}

	_, err = s.q.Exec(ctx, `
		INSERT INTO vault_keys (profile, name, metadata, tags, key_alg, wrapped, plain)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (profile, name) DO UPDATE SET
			metadata = EXCLUDED.metadata, tags = EXCLUDED.tags,
			key_alg = EXCLUDED.key_alg, wrapped = EXCLUDED.wrapped, plain = EXCLUDED.plain`,
		s.profile, name, metadata, tagsJSON, int16(alg), wrapped, plain)
	if err != nil {
		return fmt.Errorf("insert key: %w", err)
	}
	return nil
}

// FetchKey retrieves a previously inserted key by name, unwrapping it
// when the store protects keys at rest.
func (s *Session) FetchKey(ctx context.Context, name string) (*aead.Key, error) {
	var alg int16
	var wrapped, plain []byte
	err := s.q.QueryRow(ctx, `SELECT key_alg, wrapped, plain FROM vault_keys WHERE profile = $1 AND name = $2`, s.profile, name).
		Scan(&alg, &wrapped, &plain)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch key: %w", err)
	}
	if wrapped != nil {
		return unwrapKey(s.store.protectionKey, aead.Algorithm(alg), wrapped)
	}
	return aead.ImportKey(aead.Algorithm(alg), plain)
}

// FetchAllKeys retrieves every key matching filter.
func (s *Session) FetchAllKeys(ctx context.Context, filter storage.TagFilter) ([]*aead.Key, error) {
	rows, err := s.q.Query(ctx, `SELECT name, tags, key_alg, wrapped, plain FROM vault_keys WHERE profile = $1`, s.profile)
	if err != nil {
		return nil, fmt.Errorf("fetch all keys: %w", err)
	}
	defer rows.Close()

	var out []*aead.Key
	for rows.Next() {
		var name string
		var tagsJSON, wrapped, plain []byte
		var alg int16
		if err := rows.Scan(&name, &tagsJSON, &alg, &wrapped, &plain); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		tags, err := unmarshalTags(tagsJSON)
		if err != nil {
			return nil, err
		}
		if !filter.Matches(tags) {
			continue
		}
		var key *aead.Key
		if wrapped != nil {
			key, err = unwrapKey(s.store.protectionKey, aead.Algorithm(alg), wrapped)
		} else {
			key, err = aead.ImportKey(aead.Algorithm(alg), plain)
		}
		if err != nil {
			return nil, fmt.Errorf("decode key %s: %w", name, err)
		}
		out = append(out, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return out, nil
}

// UpdateKey replaces the tags associated with an existing key.
func (s *Session) UpdateKey(ctx context.Context, name string, tags map[string]string) error {
	tagsJSON, err := marshalTags(tags)
	if err != nil {
		return err
	}
	tag, err := s.q.Exec(ctx, `UPDATE vault_keys SET tags = $1 WHERE profile = $2 AND name = $3`, tagsJSON, s.profile, name)
	if err != nil {
		return fmt.Errorf("update key tags: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &aead.Error{Kind: aead.KindUsage, Message: "key not found"}
	}
	return nil
}

// RemoveKey deletes a key by name.
func (s *Session) RemoveKey(ctx context.Context, name string) error {
	_, err := s.q.Exec(ctx, `DELETE FROM vault_keys WHERE profile = $1 AND name = $2`, s.profile, name)
	if err != nil {
		return fmt.Errorf("remove key: %w", err)
	}
	return nil
}

// Scan opens a cursor over category filtered by filter. The result set
// is materialized eagerly into pages rather than held open as a live
// pgx.Rows, since a Scan handle may outlive the request that started it
// and a borrowed connection cannot sit idle across that gap.
func (s *Session) Scan(ctx context.Context, profile, category string, filter storage.TagFilter, offset int64, limit int64) (storage.Scan, error) {
	if profile == "" {
		profile = s.profile
	}
	entries, err := s.FetchAll(ctx, category, filter, -1)
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		if offset >= int64(len(entries)) {
			entries = nil
		} else {
			entries = entries[offset:]
		}
	}
	if limit >= 0 && int64(len(entries)) > limit {
		entries = entries[:limit]
	}
	return newPagedScan(entries), nil
}

// Close ends the session: a transaction commits or rolls back, a plain
// session does nothing further since every statement already
// auto-committed.
func (s *Session) Close(ctx context.Context, commit bool) error {
	if s.tx == nil {
		return nil
	}
	if commit {
		return s.tx.Commit(ctx)
	}
	return s.tx.Rollback(ctx)
}
