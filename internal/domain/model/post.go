//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxPostTitleLen = 255
	defaultListSize = 20
	// MaxListSize caps one page of posts or comments.
	MaxListSize = 100
)

// ErrNotFound is wrapped by every repository error for a missing post or comment.
var ErrNotFound = errors.New("not found")

// PostType distinguishes content kinds.
type PostType string

const (
	PostTypePost     PostType = "post"
	PostTypePage     PostType = "page"
	PostTypeRevision PostType = "revision"
)

// Valid reports whether the post type is supported.
func (t PostType) Valid() bool {
	switch t {
	case PostTypePost, PostTypePage, PostTypeRevision:
		return true
	default:
		return false
	}
}

// Post is a piece of site content. Revisions are posts whose ParentID
// points at the post they revise; access is always decided on the parent.
type Post struct {
	ID        int64     `json:"id"                  db:"id"`
	Type      PostType  `json:"type"                db:"post_type"`
	ParentID  *int64    `json:"parent_id,omitempty" db:"parent_id"`
	Slug      string    `json:"slug"                db:"slug"`
	Title     string    `json:"title"               db:"title"`
	Content   string    `json:"content"             db:"content"`
	Excerpt   string    `json:"excerpt"             db:"excerpt"`
	CreatedAt time.Time `json:"created_at"          db:"created_at"`
	UpdatedAt time.Time `json:"updated_at"          db:"updated_at"`
}

// AccessTarget returns the id whose ACL governs this post.
func (p Post) AccessTarget() int64 {
	if p.Type == PostTypeRevision && p.ParentID != nil {
		return *p.ParentID
	}
	return p.ID
}

// PostListOptions controls paging and filtering for listing posts.
// Q matches title and content via ILIKE substring.
type PostListOptions struct {
	Limit  int
	Offset int
	Q      string
	Type   PostType // empty matches posts and pages
}

// Normalize clamps paging values.
func (o *PostListOptions) Normalize() {
	if o.Limit <= 0 {
		o.Limit = defaultListSize
	}
	if o.Limit > MaxListSize {
		o.Limit = MaxListSize
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	o.Q = strings.TrimSpace(o.Q)
}

// CreatePostRequest represents parameters to create a Post.
type CreatePostRequest struct {
	Type     PostType `json:"type"`
	ParentID *int64   `json:"parent_id,omitempty"`
	Slug     string   `json:"slug"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Excerpt  string   `json:"excerpt"`
}

// Validate validates CreatePostRequest.
func (r *CreatePostRequest) Validate() error {
	if r.Type == "" {
		r.Type = PostTypePost
	}
	if !r.Type.Valid() {
		return errors.New("invalid post type")
	}
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return errors.New("title is required and cannot be empty")
	}
	if utf8.RuneCountInString(title) > maxPostTitleLen {
		return errors.New("title cannot exceed 255 characters")
	}
	if r.Type == PostTypeRevision && r.ParentID == nil {
		return errors.New("revisions require parent_id")
	}
	if r.Slug = strings.TrimSpace(r.Slug); r.Slug == "" {
		r.Slug = slugify(title)
	}
	return nil
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Comment is a reader comment attached to a post.
type Comment struct {
	ID        int64     `json:"id"         db:"id"`
	PostID    int64     `json:"post_id"    db:"post_id"`
	Author    string    `json:"author"     db:"author"`
	Content   string    `json:"content"    db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
