package ports

import (
	"context"

	domainauth "github.com/target/oidc-gate/internal/domain/auth"
	"github.com/target/oidc-gate/internal/domain/model"
)

// AccessGroupStore reads and writes the per-resource access list.
type AccessGroupStore interface {
	// GetAccessGroups returns the stored list for a post; an unknown post or
	// one without metadata yields an empty list.
	GetAccessGroups(ctx context.Context, postID int64) ([]string, error)
	SetAccessGroups(ctx context.Context, postID int64, groups []string) error
}

// PostRepository reads site content.
type PostRepository interface {
	Create(ctx context.Context, req *model.CreatePostRequest) (*model.Post, error)
	GetByID(ctx context.Context, id int64) (*model.Post, error)
	List(ctx context.Context, opts model.PostListOptions) ([]*model.Post, error)
	Count(ctx context.Context, opts model.PostListOptions) (int, error)
}

// CommentRepository reads comments.
type CommentRepository interface {
	Create(ctx context.Context, c *model.Comment) (*model.Comment, error)
	GetByID(ctx context.Context, id int64) (*model.Comment, error)
	ListByPost(ctx context.Context, postID int64, limit int) ([]*model.Comment, error)
}

// NativeUserRepository looks up native site accounts.
type NativeUserRepository interface {
	GetByLogin(ctx context.Context, login string) (*domainauth.NativeUser, error)
	Create(ctx context.Context, u *domainauth.NativeUser) (*domainauth.NativeUser, error)
}

// InternalsStore keeps small pieces of private server state, such as the
// redirect verifier secret.
type InternalsStore interface {
	// Get returns the value for key; ok is false when unset.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// SetIfAbsent stores value unless key already exists, and returns the
	// value that ended up stored.
	SetIfAbsent(ctx context.Context, key, value string) (string, error)
}
