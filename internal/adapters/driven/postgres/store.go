package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-relay/internal/core/domain"
	"github.com/custodia-labs/sercha-relay/internal/core/ports/driven"
)

// Ensure Store implements the interfaces.
var (
	_ driven.KVStore    = (*Store)(nil)
	_ driven.GetDeleter = (*Store)(nil)
	_ driven.Sweepable  = (*Store)(nil)
)

// sweepLockID is the advisory lock that serializes Cleanup across replicas.
const sweepLockID int64 = 0x5e4c_4a79_0001

// Store implements driven.KVStore on the relay_kv table.
// Expiry is evaluated against the database clock; expired rows are invisible
// to reads and removed by Cleanup.
type Store struct {
	db        *DB
	encryptor *SecretEncryptor
}

// NewStore creates a PostgreSQL-backed store. Values are encrypted at rest
// when encryptor is non-nil.
func NewStore(db *DB, encryptor *SecretEncryptor) *Store {
	return &Store{db: db, encryptor: encryptor}
}

// Set upserts value under key, resetting its expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: ttl must be positive", domain.ErrInvalidInput)
	}

	stored, err := s.seal(key, value)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO relay_kv (key, value, created_at, expires_at)
		VALUES ($1, $2, NOW(), NOW() + make_interval(secs => $3))
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`

	if _, err := s.db.ExecContext(ctx, query, key, stored, ttl.Seconds()); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Get returns the live value under key or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT value FROM relay_kv WHERE key = $1 AND expires_at > NOW()`

	var stored []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return s.open(key, stored)
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM relay_kv WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// GetDel atomically retrieves and deletes the value.
// Uses DELETE ... RETURNING for single-use semantics.
func (s *Store) GetDel(ctx context.Context, key string) ([]byte, error) {
	query := `
		DELETE FROM relay_kv
		WHERE key = $1 AND expires_at > NOW()
		RETURNING value
	`

	var stored []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("take %s: %w", key, err)
	}
	return s.open(key, stored)
}

// Cleanup removes expired rows and returns how many were deleted.
// Only one replica sweeps at a time; the others return 0.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin cleanup: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var acquired bool
	if err := tx.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock($1)`, sweepLockID).Scan(&acquired); err != nil {
		return 0, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !acquired {
		return 0, nil
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM relay_kv WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("cleanup relay_kv: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup relay_kv: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit cleanup: %w", err)
	}
	return n, nil
}

// Ping checks if the PostgreSQL backend is healthy.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) seal(key string, value []byte) ([]byte, error) {
	if s.encryptor == nil {
		return value, nil
	}
	blob, err := s.encryptor.Seal(key, value)
	if err != nil {
		return nil, fmt.Errorf("encrypt %s: %w", key, err)
	}
	return blob, nil
}

func (s *Store) open(key string, stored []byte) ([]byte, error) {
	if s.encryptor == nil {
		return stored, nil
	}
	value, err := s.encryptor.Open(key, stored)
	if err != nil {
		return nil, fmt.Errorf("decrypt %s: %w", key, err)
	}
	return value, nil
}
