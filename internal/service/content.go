package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/target/oidc-gate/internal/domain/access"
	"github.com/target/oidc-gate/internal/domain/model"
	apperrors "github.com/target/oidc-gate/internal/errors"
	"github.com/target/oidc-gate/internal/ports"
)

// Redaction texts shown in place of restricted content.
const (
	NoAccessText        = "You do not have access to this content."
	ContentNoAccessText = "(You don't have access to this content.)"
	LoginRequiredText   = "You need to log in to view this content."
)

// ContentServiceOptions groups dependencies for ContentService.
type ContentServiceOptions struct {
	Repos  ContentRepos
	Access *AccessService  // Required
	Policy *RedirectPolicy // Required
	Logger *slog.Logger    // Optional
}

// ContentRepos are the content stores behind ContentService.
type ContentRepos struct {
	Posts    ports.PostRepository
	Comments ports.CommentRepository
	Groups   ports.AccessGroupStore
}

// ContentService serves posts and comments with access filtering applied.
type ContentService struct {
	repos  ContentRepos
	access *AccessService
	policy *RedirectPolicy
	logger *slog.Logger
}

// NewContentService constructs a ContentService.
func NewContentService(opts ContentServiceOptions) *ContentService {
	if opts.Repos.Posts == nil || opts.Repos.Comments == nil || opts.Repos.Groups == nil {
		panic("NewContentService: Posts, Comments and Groups are required")
	}
	if opts.Access == nil || opts.Policy == nil {
		panic("NewContentService: Access and Policy are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentService{repos: opts.Repos, access: opts.Access, policy: opts.Policy, logger: logger}
}

// Excerpt is the excerpt of a post as the visitor may see it.
type Excerpt struct {
	Text string
	// LoginURL is set when logging in might reveal the excerpt.
	LoginURL string
}

// List returns the visible posts of a page of results. allNotLoggedIn
// reports that results existed but every one needs a login.
func (s *ContentService) List(ctx context.Context, rc *RequestContext, surface string, opts model.PostListOptions) ([]*model.Post, bool, error) {
	posts, err := s.repos.Posts.List(ctx, opts)
	if err != nil {
		return nil, false, fmt.Errorf("list posts: %w", err)
	}
	kept, allNotLoggedIn := s.access.FilterPosts(ctx, rc, surface, posts)
	return kept, allNotLoggedIn, nil
}

// Latest returns a page of posts without access filtering. Callers redact
// each post themselves.
func (s *ContentService) Latest(ctx context.Context, opts model.PostListOptions) ([]*model.Post, error) {
	return s.repos.Posts.List(ctx, opts)
}

// Count returns how many posts match opts before access filtering.
func (s *ContentService) Count(ctx context.Context, opts model.PostListOptions) (int, error) {
	return s.repos.Posts.Count(ctx, opts)
}

// Post loads a post without applying access rules.
func (s *ContentService) Post(ctx context.Context, id int64) (*model.Post, error) {
	return s.repos.Posts.GetByID(ctx, id)
}

// Comment loads a comment without applying access rules.
func (s *ContentService) Comment(ctx context.Context, id int64) (*model.Comment, error) {
	return s.repos.Comments.GetByID(ctx, id)
}

// Comments lists the comments of a post, or of every post when postID is 0.
func (s *ContentService) Comments(ctx context.Context, postID int64, limit int) ([]*model.Comment, error) {
	return s.repos.Comments.ListByPost(ctx, postID, limit)
}

// ExcerptFor redacts the excerpt of p for the visitor.
func (s *ContentService) ExcerptFor(ctx context.Context, rc *RequestContext, p *model.Post) Excerpt {
	switch s.access.CheckContent(ctx, rc, SurfaceContent, p) {
	case access.DeniedNotLoggedIn:
		return Excerpt{Text: LoginRequiredText, LoginURL: s.policy.OIDCURL(ctx, rc, KindLogin, "")}
	case access.DeniedNotInGroups:
		return Excerpt{Text: NoAccessText}
	default:
		return Excerpt{Text: p.Excerpt}
	}
}

// ContentFor redacts the body of p for the visitor.
func (s *ContentService) ContentFor(ctx context.Context, rc *RequestContext, p *model.Post) string {
	if s.access.CheckContent(ctx, rc, SurfaceContent, p) != access.Allowed {
		return ContentNoAccessText
	}
	return p.Content
}

// SearchIDs runs a search and returns the visible ids and adjusted total.
func (s *ContentService) SearchIDs(ctx context.Context, rc *RequestContext, opts model.PostListOptions) ([]int64, int, error) {
	posts, err := s.repos.Posts.List(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("search posts: %w", err)
	}
	found, err := s.repos.Posts.Count(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}
	ids, total := s.access.FilterSearch(ctx, rc, posts, found)
	return ids, total, nil
}

// AccessGroups returns the stored access list of a post.
func (s *ContentService) AccessGroups(ctx context.Context, postID int64) ([]string, error) {
	if _, err := s.repos.Posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.repos.Groups.GetAccessGroups(ctx, postID)
}

// SetAccessGroups stores a post's access list. Only super admins may change
// it. Sentinels mixed with groups are dropped, and unknown groups are rejected.
func (s *ContentService) SetAccessGroups(ctx context.Context, rc *RequestContext, postID int64, groups []string) ([]string, error) {
	if nu := rc.NativeUser(ctx); nu == nil || !nu.SuperAdmin {
		return nil, apperrors.Forbidden("only administrators may change access")
	}
	clean := access.Sanitize(groups)
	for _, g := range clean {
		if !slices.Contains(rc.Gate.AvailableGroups, g) {
			return nil, apperrors.ValidationField("groups", "unknown group: "+g)
		}
	}
	if err := s.repos.Groups.SetAccessGroups(ctx, postID, clean); err != nil {
		return nil, fmt.Errorf("set access groups: %w", err)
	}
	s.logger.InfoContext(ctx, "post access updated",
		"post_id", postID,
		"groups", access.FromList(clean).String(),
		"by", rc.NativeUser(ctx).Login)
	return clean, nil
}
