package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/target/oidc-gate/internal/data/pgxutil"
	domainauth "github.com/target/oidc-gate/internal/domain/auth"
	apperrors "github.com/target/oidc-gate/internal/errors"
)

// NativeUserRepo provides database operations for native site accounts.
type NativeUserRepo struct {
	DB *sql.DB
}

// NewNativeUserRepo creates a new NativeUserRepo.
func NewNativeUserRepo(db *sql.DB) *NativeUserRepo {
	return &NativeUserRepo{DB: db}
}

// GetByLogin looks up an account by its exact login.
func (r *NativeUserRepo) GetByLogin(ctx context.Context, login string) (*domainauth.NativeUser, error) {
	var out domainauth.NativeUser
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT id, login, display_name, email, super_admin, created_at
			FROM native_users WHERE login = $1`, login)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.NativeUser])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNativeUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get native user %q: %w", login, err)
	}
	return &out, nil
}

// Create inserts an account. A duplicate login yields ErrLoginExists.
func (r *NativeUserRepo) Create(ctx context.Context, u *domainauth.NativeUser) (*domainauth.NativeUser, error) {
	if u == nil || strings.TrimSpace(u.Login) == "" {
		return nil, apperrors.ValidationField("login", "login is required")
	}
	var out domainauth.NativeUser
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO native_users (login, display_name, email, super_admin)
			VALUES ($1, $2, $3, $4)
			RETURNING id, login, display_name, email, super_admin, created_at`,
			strings.TrimSpace(u.Login), u.DisplayName, u.Email, u.SuperAdmin)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.NativeUser])
		return err
	})
	if err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsConflict(mapped) {
			return nil, ErrLoginExists
		}
		return nil, fmt.Errorf("create native user: %w", mapped)
	}
	return &out, nil
}
