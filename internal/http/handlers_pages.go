package httpx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/target/oidc-gate/internal/domain/model"
	"github.com/target/oidc-gate/internal/service"
)

// PageHandlers serves the public HTML pages.
type PageHandlers struct {
	views
	Content *service.ContentService
	Access  *service.AccessService
}

type listItem struct {
	ID      int64
	Title   string
	Excerpt service.Excerpt
}

type indexData struct {
	Posts    []listItem
	NextPage int
}

type postData struct {
	Post     *model.Post
	Content  string
	Comments []*model.Comment
}

type searchData struct {
	Posts []listItem
}

// Index lists the visible posts, newest page first.
// GET /.
func (h *PageHandlers) Index(w http.ResponseWriter, r *http.Request, rc *service.RequestContext) {
	ctx := r.Context()
	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 1 {
		page = p
	}
	opts := model.PostListOptions{Limit: DefaultPageSize, Offset: (page - 1) * DefaultPageSize}

	posts, allNotLoggedIn, err := h.Content.List(ctx, rc, service.SurfaceList, opts)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if allNotLoggedIn {
		h.deny(w, rc, true)
		return
	}
	data := indexData{Posts: h.items(rc, posts)}
	if total, err := h.Content.Count(ctx, opts); err == nil && opts.Offset+opts.Limit < total {
		data.NextPage = page + 1
	}
	h.render(w, http.StatusOK, PageIndex, h.page(ctx, rc, "Home", data))
}

// Post renders one post with its comments.
// GET /posts/{id}.
func (h *PageHandlers) Post(w http.ResponseWriter, r *http.Request, rc *service.RequestContext) {
	ctx := r.Context()
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.notFound(w, rc)
		return
	}
	p, err := h.Content.Post(ctx, id)
	if errors.Is(err, model.ErrNotFound) || (err == nil && p.Type == model.PostTypeRevision) {
		h.notFound(w, rc)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	comments, err := h.Content.Comments(ctx, id, MaxCommentsPerPost)
	if err != nil {
		h.logger().WarnContext(ctx, "load comments", "post_id", id, "error", err)
	}
	data := postData{Post: p, Content: h.Content.ContentFor(ctx, rc, p), Comments: comments}
	h.render(w, http.StatusOK, PagePost, h.page(ctx, rc, p.Title, data))
}

// Search lists the visible posts matching q. When every match needs a
// login the visitor is sent to log in rather than shown an empty page.
// GET /search?q=.
func (h *PageHandlers) Search(w http.ResponseWriter, r *http.Request, rc *service.RequestContext) {
	ctx := r.Context()
	q := r.URL.Query().Get("q")
	var data searchData
	if q != "" {
		posts, allNotLoggedIn, err := h.Content.List(ctx, rc, service.SurfaceSearch, model.PostListOptions{Q: q})
		if err != nil {
			h.serverError(w, r, err)
			return
		}
		if allNotLoggedIn {
			h.deny(w, rc, true)
			return
		}
		data.Posts = h.items(rc, posts)
	}
	h.render(w, http.StatusOK, PageSearch, h.page(ctx, rc, "Search", data))
}

// NotFound answers any page route that matched nothing.
func (h *PageHandlers) NotFound(w http.ResponseWriter, _ *http.Request, rc *service.RequestContext) {
	h.notFound(w, rc)
}

func (h *PageHandlers) items(rc *service.RequestContext, posts []*model.Post) []listItem {
	ctx := rc.Request.Context()
	out := make([]listItem, 0, len(posts))
	for _, p := range posts {
		out = append(out, listItem{ID: p.ID, Title: p.Title, Excerpt: h.Content.ExcerptFor(ctx, rc, p)})
	}
	return out
}

func (h *PageHandlers) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger().ErrorContext(r.Context(), "page failed", "path", r.URL.Path, "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
