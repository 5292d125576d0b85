package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/target/oidc-gate/internal/data/pgxutil"
	"github.com/target/oidc-gate/internal/domain/model"
	apperrors "github.com/target/oidc-gate/internal/errors"
)

// CommentRepo provides database operations for comments.
type CommentRepo struct {
	DB *sql.DB
}

// NewCommentRepo creates a new CommentRepo.
func NewCommentRepo(db *sql.DB) *CommentRepo {
	return &CommentRepo{DB: db}
}

// Create inserts a comment on an existing post.
func (r *CommentRepo) Create(ctx context.Context, c *model.Comment) (*model.Comment, error) {
	if c == nil || c.PostID <= 0 {
		return nil, apperrors.ValidationField("post_id", "post_id is required")
	}
	var out model.Comment
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO comments (post_id, author, content) VALUES ($1, $2, $3)
			RETURNING id, post_id, author, content, created_at`,
			c.PostID, c.Author, c.Content)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Comment])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}

// GetByID retrieves a comment by ID.
func (r *CommentRepo) GetByID(ctx context.Context, id int64) (*model.Comment, error) {
	var out model.Comment
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT id, post_id, author, content, created_at FROM comments WHERE id = $1`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Comment])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment %d: %w", id, err)
	}
	return &out, nil
}

// ListByPost returns the oldest comments of a post first. A postID of 0
// lists comments across every post. limit is clamped to model.MaxListSize.
func (r *CommentRepo) ListByPost(ctx context.Context, postID int64, limit int) ([]*model.Comment, error) {
	if limit <= 0 {
		limit = 50
	}
	limit = min(limit, model.MaxListSize)
	var rowsOut []model.Comment
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT id, post_id, author, content, created_at FROM comments
			WHERE ($1::bigint = 0 OR post_id = $1) ORDER BY created_at, id LIMIT $2`, postID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Comment])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list comments for post %d: %w", postID, err)
	}
	out := make([]*model.Comment, len(rowsOut))
	for i := range rowsOut {
		out[i] = &rowsOut[i]
	}
	return out, nil
}
