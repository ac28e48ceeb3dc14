package postgres

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sage-x-project/sage-vault/crypto/aead"
	"github.com/sage-x-project/sage-vault/crypto/random"
	"github.com/sage-x-project/sage-vault/storage"
)

// querier is the subset of *pgxpool.Pool and pgx.Tx this package needs,
// letting Session run identical SQL whether it is auto-committing
// straight against the pool or scoped to a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store is an open PostgreSQL-backed storage.Store.
type Store struct {
	pool          *pgxpool.Pool
	keyMethod     string
	salt          []byte
	protectionKey *aead.Key
	defaultProfile string
}

// newStore loads or records a store's meta row and returns it. fresh
// controls whether this is a Provision (writes initial meta) or an Open
// (reads the recorded key method and salt and derives the protection key
// from passKey; a missing meta row fails with KindUsage).
func newStore(ctx context.Context, pool *pgxpool.Pool, keyMethod string, passKey []byte, profile string, fresh bool) (*Store, error) {
	st := &Store{pool: pool, defaultProfile: profile}
	if st.defaultProfile == "" {
		st.defaultProfile = "default"
	}

	if fresh {
		if keyMethod == "" {
			keyMethod = "raw"
		}
		var salt []byte
		if keyMethod == "kdf:pbkdf2" {
			salt = make([]byte, 16)
			if err := random.FillRandom(salt); err != nil {
				return nil, fmt.Errorf("generate salt: %w", err)
			}
		}
		protectionKey, err := deriveProtectionKey(keyMethod, passKey, salt)
		if err != nil {
			return nil, err
		}
		st.keyMethod = keyMethod
		st.salt = salt
		st.protectionKey = protectionKey

		if err := st.writeMeta(ctx); err != nil {
			return nil, err
		}
		if _, err := st.CreateProfile(ctx, st.defaultProfile); err != nil {
			return nil, err
		}
		return st, nil
	}

	row := pool.QueryRow(ctx, `SELECT value FROM vault_meta WHERE key = 'key_method'`)
	var storedMethod string
	if err := row.Scan(&storedMethod); err != nil {
		if err == pgx.ErrNoRows {
			return nil, &aead.Error{Kind: aead.KindUsage, Message: "store not provisioned: no vault_meta row"}
		}
		return nil, fmt.Errorf("read key method: %w", err)
	}
	st.keyMethod = storedMethod

	if storedMethod == "kdf:pbkdf2" {
		var saltB64 string
		if err := pool.QueryRow(ctx, `SELECT value FROM vault_meta WHERE key = 'salt'`).Scan(&saltB64); err != nil {
			return nil, fmt.Errorf("read salt: %w", err)
		}
		salt, err := base64.StdEncoding.DecodeString(saltB64)
		if err != nil {
			return nil, fmt.Errorf("decode salt: %w", err)
		}
		st.salt = salt
		protectionKey, err := deriveProtectionKey(storedMethod, passKey, salt)
		if err != nil {
			return nil, err
		}
		st.protectionKey = protectionKey
	}

	if profile == "" {
		if err := pool.QueryRow(ctx, `SELECT value FROM vault_meta WHERE key = 'default_profile'`).Scan(&st.defaultProfile); err != nil && err != pgx.ErrNoRows {
			return nil, fmt.Errorf("read default profile: %w", err)
		}
	}
	return st, nil
}

func (s *Store) writeMeta(ctx context.Context) error {
	upsert := `INSERT INTO vault_meta (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := s.pool.Exec(ctx, upsert, "key_method", s.keyMethod); err != nil {
		return fmt.Errorf("write key_method: %w", err)
	}
	if _, err := s.pool.Exec(ctx, upsert, "default_profile", s.defaultProfile); err != nil {
		return fmt.Errorf("write default_profile: %w", err)
	}
	if s.salt != nil {
		if _, err := s.pool.Exec(ctx, upsert, "salt", base64.StdEncoding.EncodeToString(s.salt)); err != nil {
			return fmt.Errorf("write salt: %w", err)
		}
	}
	return nil
}

// NewSession opens a session scoped to profile. Transaction sessions run
// against a pgx.Tx that commits or rolls back on Close; plain sessions
// run directly against the pool, auto-committing each statement.
func (s *Store) NewSession(ctx context.Context, profile string, asTransaction bool) (storage.Session, error) {
	if profile == "" {
		profile = s.defaultProfile
	}
	if asTransaction {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("begin transaction: %w", err)
		}
		return &Session{store: s, q: tx, tx: tx, profile: profile}, nil
	}
	return &Session{store: s, q: s.pool, profile: profile}, nil
}

// CreateProfile inserts profile, or a generated name when empty.
func (s *Store) CreateProfile(ctx context.Context, profile string) (string, error) {
	if profile == "" {
		profile = fmt.Sprintf("profile-%d", randomSuffix())
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO vault_profiles (name) VALUES ($1) ON CONFLICT DO NOTHING`, profile)
	if err != nil {
		return "", fmt.Errorf("create profile: %w", err)
	}
	return profile, nil
}

func randomSuffix() uint32 {
	var b [4]byte
	_ = random.FillRandom(b[:])
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// GetProfileName returns the store's configured default profile.
func (s *Store) GetProfileName(ctx context.Context) (string, error) {
	return s.defaultProfile, nil
}

// RemoveProfile deletes a profile row and everything filed under it.
func (s *Store) RemoveProfile(ctx context.Context, profile string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM vault_profiles WHERE name = $1`, profile)
	if err != nil {
		return false, fmt.Errorf("remove profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM vault_entries WHERE profile = $1`, profile); err != nil {
		return false, fmt.Errorf("remove profile entries: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM vault_keys WHERE profile = $1`, profile); err != nil {
		return false, fmt.Errorf("remove profile keys: %w", err)
	}
	return true, nil
}

// Rekey derives a new protection key for keyMethod/passKey, re-wrapping
// (or un-wrapping, or wrapping for the first time) every stored key's
// raw bytes before swapping the store over to the new key method.
func (s *Store) Rekey(ctx context.Context, keyMethod string, passKey []byte) error {
	var newSalt []byte
	if keyMethod == "kdf:pbkdf2" {
		newSalt = make([]byte, 16)
		if err := random.FillRandom(newSalt); err != nil {
			return fmt.Errorf("generate salt: %w", err)
		}
	}
	newProtectionKey, err := deriveProtectionKey(keyMethod, passKey, newSalt)
	if err != nil {
		return err
	}

	rows, err := s.pool.Query(ctx, `SELECT profile, name, key_alg, wrapped, plain FROM vault_keys`)
	if err != nil {
		return fmt.Errorf("list keys for rekey: %w", err)
	}
	type rec struct {
		profile, name string
		alg           aead.Algorithm
		wrapped       []byte
		plain         []byte
	}
	var recs []rec
	for rows.Next() {
		var r rec
		var alg int16
		if err := rows.Scan(&r.profile, &r.name, &alg, &r.wrapped, &r.plain); err != nil {
			rows.Close()
			return fmt.Errorf("scan key for rekey: %w", err)
		}
		r.alg = aead.Algorithm(alg)
		recs = append(recs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate keys for rekey: %w", err)
	}

	for _, r := range recs {
		var raw *aead.Key
		var err error
		if r.wrapped != nil {
			raw, err = unwrapKey(s.protectionKey, r.alg, r.wrapped)
		} else {
			raw, err = aead.ImportKey(r.alg, r.plain)
		}
		if err != nil {
			return fmt.Errorf("unwrap key %s/%s: %w", r.profile, r.name, err)
		}

		if newProtectionKey != nil {
			wrapped, alg, err := wrapKey(newProtectionKey, raw)
			if err != nil {
				return fmt.Errorf("wrap key %s/%s: %w", r.profile, r.name, err)
			}
			_, err = s.pool.Exec(ctx, `UPDATE vault_keys SET wrapped = $1, plain = NULL, key_alg = $2 WHERE profile = $3 AND name = $4`,
				wrapped, int16(alg), r.profile, r.name)
			if err != nil {
				return fmt.Errorf("store rewrapped key %s/%s: %w", r.profile, r.name, err)
			}
		} else {
			_, err = s.pool.Exec(ctx, `UPDATE vault_keys SET wrapped = NULL, plain = $1, key_alg = $2 WHERE profile = $3 AND name = $4`,
				raw.Bytes(), int16(raw.Algorithm()), r.profile, r.name)
			if err != nil {
				return fmt.Errorf("store plain key %s/%s: %w", r.profile, r.name, err)
			}
		}
	}

	s.keyMethod = keyMethod
	s.salt = newSalt
	s.protectionKey = newProtectionKey
	return s.writeMeta(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}
