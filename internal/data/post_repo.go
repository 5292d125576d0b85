package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/target/oidc-gate/internal/data/pgxutil"
	"github.com/target/oidc-gate/internal/domain/model"
	apperrors "github.com/target/oidc-gate/internal/errors"
)

const postColumns = `id, post_type, parent_id, slug, title, content, excerpt, created_at, updated_at`

// PostRepo provides database operations for posts and their access lists.
type PostRepo struct {
	DB *sql.DB
	// Now stamps created_at and updated_at. Tests pin it.
	Now func() time.Time
}

// NewPostRepo creates a PostRepo stamping rows with the wall clock.
func NewPostRepo(db *sql.DB) *PostRepo {
	return &PostRepo{DB: db, Now: time.Now}
}

// Create inserts a new post.
func (r *PostRepo) Create(ctx context.Context, req *model.CreatePostRequest) (*model.Post, error) {
	if req == nil {
		return nil, errors.New("create post request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	now := r.Now().UTC()
	var out model.Post
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO posts (post_type, parent_id, slug, title, content, excerpt, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			RETURNING `+postColumns,
			req.Type, req.ParentID, req.Slug, strings.TrimSpace(req.Title), req.Content, req.Excerpt, now,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Post])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create post: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}

// GetByID retrieves a post (of any type) by ID.
func (r *PostRepo) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	var out model.Post
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Post])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return &out, nil
}

// listFilter renders the WHERE clause shared by List and Count.
func listFilter(opts model.PostListOptions) (string, []any) {
	var (
		where []string
		args  []any
	)
	if opts.Type != "" {
		args = append(args, opts.Type)
		where = append(where, fmt.Sprintf("post_type = $%d", len(args)))
	} else {
		where = append(where, "post_type IN ('post', 'page')")
	}
	if opts.Q != "" {
		args = append(args, "%"+escapeLike(opts.Q)+"%")
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR content ILIKE $%d)", len(args), len(args)))
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// List returns posts newest first.
func (r *PostRepo) List(ctx context.Context, opts model.PostListOptions) ([]*model.Post, error) {
	opts.Normalize()
	where, args := listFilter(opts)
	args = append(args, opts.Limit, opts.Offset)
	query := `SELECT ` + postColumns + ` FROM posts` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var rowsOut []model.Post
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Post])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	out := make([]*model.Post, len(rowsOut))
	for i := range rowsOut {
		out[i] = &rowsOut[i]
	}
	return out, nil
}

// Count returns the number of posts matching opts, ignoring paging.
func (r *PostRepo) Count(ctx context.Context, opts model.PostListOptions) (int, error) {
	opts.Normalize()
	where, args := listFilter(opts)
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM posts`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// GetAccessGroups returns the stored access list of a post. Posts without
// a row are public and yield an empty list.
func (r *PostRepo) GetAccessGroups(ctx context.Context, postID int64) ([]string, error) {
	var groups []string
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `SELECT groups FROM post_access WHERE post_id = $1`, postID).Scan(&groups)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get access groups for post %d: %w", postID, err)
	}
	return groups, nil
}

// SetAccessGroups replaces the access list of a post. An empty list removes
// the row, making the post public.
func (r *PostRepo) SetAccessGroups(ctx context.Context, postID int64, groups []string) error {
	now := r.Now().UTC()
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{Fn: func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, postID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrPostNotFound
		}
		if len(groups) == 0 {
			_, err := tx.Exec(ctx, `DELETE FROM post_access WHERE post_id = $1`, postID)
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO post_access (post_id, groups, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (post_id) DO UPDATE SET groups = EXCLUDED.groups, updated_at = EXCLUDED.updated_at`,
			postID, groups, now)
		return err
	}})
	if errors.Is(err, ErrPostNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("set access groups for post %d: %w", postID, apperrors.MapDBError(err))
	}
	return nil
}
