package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InternalsRepo stores private key/value server state in Postgres.
type InternalsRepo struct {
	DB *sql.DB
}

// NewInternalsRepo creates a new InternalsRepo.
func NewInternalsRepo(db *sql.DB) *InternalsRepo {
	return &InternalsRepo{DB: db}
}

// Get returns the value for key; ok is false when unset.
func (r *InternalsRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := r.DB.QueryRowContext(ctx, `SELECT value FROM internals WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get internal %q: %w", key, err)
	}
	return v, true, nil
}

// SetIfAbsent stores value unless key exists and returns the stored value.
// Concurrent callers agree on a single winner.
func (r *InternalsRepo) SetIfAbsent(ctx context.Context, key, value string) (string, error) {
	if _, err := r.DB.ExecContext(ctx,
		`INSERT INTO internals (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
		key, value); err != nil {
		return "", fmt.Errorf("insert internal %q: %w", key, err)
	}
	v, ok, err := r.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("internal %q vanished after insert", key)
	}
	return v, nil
}
