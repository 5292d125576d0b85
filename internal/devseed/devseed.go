package devseed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/oidc-gate/internal/data"
	"github.com/target/oidc-gate/internal/domain/access"
	domainauth "github.com/target/oidc-gate/internal/domain/auth"
	"github.com/target/oidc-gate/internal/domain/model"
)

// PostStore is the subset of the post repository the seeder writes through.
type PostStore interface {
	Create(ctx context.Context, req *model.CreatePostRequest) (*model.Post, error)
	Count(ctx context.Context, opts model.PostListOptions) (int, error)
	SetAccessGroups(ctx context.Context, postID int64, groups []string) error
}

// CommentStore creates comments.
type CommentStore interface {
	Create(ctx context.Context, c *model.Comment) (*model.Comment, error)
}

// UserStore creates native accounts.
type UserStore interface {
	Create(ctx context.Context, u *domainauth.NativeUser) (*domainauth.NativeUser, error)
}

// Services bundles the stores needed for development seeding.
type Services struct {
	Posts    PostStore
	Comments CommentStore
	Users    UserStore
}

// NewServices constructs the Postgres-backed stores for seeding using the provided DB.
func NewServices(db *sql.DB) Services {
	return Services{
		Posts:    data.NewPostRepo(db),
		Comments: data.NewCommentRepo(db),
		Users:    data.NewNativeUserRepo(db),
	}
}

type seedPost struct {
	req      model.CreatePostRequest
	groups   []string
	comments []model.Comment
}

func defaultPosts() []seedPost {
	return []seedPost{
		{
			req: model.CreatePostRequest{
				Title:   "Welcome",
				Content: "This post is visible to everyone.",
				Excerpt: "A public welcome post.",
			},
			comments: []model.Comment{
				{Author: "alice", Content: "First!"},
				{Author: "bob", Content: "Hello from the public side."},
			},
		},
		{
			req: model.CreatePostRequest{
				Title:   "Members update",
				Content: "Anyone who signed in can read this.",
				Excerpt: "Only for signed-in readers.",
			},
			groups: []string{access.SentinelLoggedIn},
			comments: []model.Comment{
				{Author: "carol", Content: "Thanks for the update."},
			},
		},
		{
			req: model.CreatePostRequest{
				Title:   "Staff handbook",
				Content: "Internal procedures for staff.",
				Excerpt: "Staff only.",
			},
			groups: []string{"staff"},
			comments: []model.Comment{
				{Author: "dave", Content: "Page 3 needs an update."},
			},
		},
		{
			req: model.CreatePostRequest{
				Type:    model.PostTypePage,
				Title:   "Faculty resources",
				Content: "Links for faculty and staff.",
				Excerpt: "Faculty and staff.",
			},
			groups: []string{"faculty", "staff"},
		},
	}
}

func defaultUsers() []domainauth.NativeUser {
	return []domainauth.NativeUser{
		{Login: "admin", DisplayName: "Site Admin", Email: "admin@example.com", SuperAdmin: true},
		{Login: "dev-user", DisplayName: "Dev User", Email: "dev@example.com"},
	}
}

// Run executes the full development seeding workflow. Posts are only seeded
// into an empty table so repeated runs do not duplicate content.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	if svcs.Posts == nil || svcs.Comments == nil || svcs.Users == nil {
		return errors.New("devseed: posts, comments and users stores are required")
	}
	failures := seedUsers(ctx, svcs.Users, logger)

	n, err := svcs.Posts.Count(ctx, model.PostListOptions{})
	if err != nil {
		return fmt.Errorf("count posts: %w", err)
	}
	if n > 0 {
		if logger != nil {
			logger.InfoContext(ctx, "posts already present; skipping content seed", "count", n)
		}
	} else {
		failures += seedPosts(ctx, svcs, logger)
	}

	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func seedUsers(ctx context.Context, users UserStore, logger *slog.Logger) int {
	failures := 0
	for _, u := range defaultUsers() {
		_, err := users.Create(ctx, &u)
		switch {
		case errors.Is(err, data.ErrLoginExists):
			if logger != nil {
				logger.InfoContext(ctx, "native user already exists", "login", u.Login)
			}
		case err != nil:
			if logger != nil {
				logger.ErrorContext(ctx, "failed to create native user", "login", u.Login, "error", err)
			}
			failures++
		default:
			if logger != nil {
				logger.InfoContext(ctx, "created native user", "login", u.Login, "super_admin", u.SuperAdmin)
			}
		}
	}
	return failures
}

func seedPosts(ctx context.Context, svcs Services, logger *slog.Logger) int {
	failures := 0
	for _, sp := range defaultPosts() {
		if err := seedOne(ctx, svcs, sp, logger); err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed post", "title", sp.req.Title, "error", err)
			}
			failures++
		}
	}
	return failures
}

func seedOne(ctx context.Context, svcs Services, sp seedPost, logger *slog.Logger) error {
	req := sp.req
	post, err := svcs.Posts.Create(ctx, &req)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	if groups := access.Sanitize(sp.groups); len(groups) > 0 {
		if err := svcs.Posts.SetAccessGroups(ctx, post.ID, groups); err != nil {
			return fmt.Errorf("set access groups: %w", err)
		}
	}
	for _, c := range sp.comments {
		c.PostID = post.ID
		if _, err := svcs.Comments.Create(ctx, &c); err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
	}
	if logger != nil {
		logger.InfoContext(ctx, "created post", "id", post.ID, "title", post.Title, "access", access.FromList(sp.groups).String())
	}
	return nil
}
