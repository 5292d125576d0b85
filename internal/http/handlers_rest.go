package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/target/oidc-gate/internal/domain/access"
	"github.com/target/oidc-gate/internal/domain/model"
	"github.com/target/oidc-gate/internal/service"
)

// RESTHandlers serves the JSON API. Machine clients never get redirects:
// a denial is a 401 or 403 error body.
type RESTHandlers struct {
	Content *service.ContentService
	Access  *service.AccessService
	Logger  *slog.Logger
}

func (h *RESTHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil && id > 0
}

func writeBadID(w http.ResponseWriter) {
	WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "rest_post_invalid_id", Message: "Invalid post ID."})
}

// guard applies the site ACL and the post ACL of postID, writing the error
// response on denial.
func (h *RESTHandlers) guard(w http.ResponseWriter, r *http.Request, rc *service.RequestContext, postID int64) bool {
	d := h.Access.CheckSiteAndPost(r.Context(), rc, service.SurfaceREST, postID)
	if d != access.Allowed {
		writeDenied(w, d)
		return false
	}
	return true
}

// GetPost returns one post.
// GET /api/posts/{id}.
func (h *RESTHandlers) GetPost(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeBadID(w)
		return
	}
	p, err := h.Content.Post(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.guard(w, r, rc, p.AccessTarget()) {
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

// GetRevision returns one revision of a post. Access follows the parent.
// GET /api/posts/{id}/revisions/{rid}.
func (h *RESTHandlers) GetRevision(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}
	parentID, ok1 := pathID(r, "id")
	revID, ok2 := pathID(r, "rid")
	if !ok1 || !ok2 {
		writeBadID(w)
		return
	}
	rev, err := h.Content.Post(r.Context(), revID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rev.Type != model.PostTypeRevision || rev.ParentID == nil || *rev.ParentID != parentID {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "rest_post_invalid_id", Message: "Invalid revision ID."})
		return
	}
	if !h.guard(w, r, rc, parentID) {
		return
	}
	WriteJSON(w, http.StatusOK, rev)
}

// GetComment returns one comment. Access follows the comment's post.
// GET /api/comments/{id}.
func (h *RESTHandlers) GetComment(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "rest_comment_invalid_id", Message: "Invalid comment ID."})
		return
	}
	c, err := h.Content.Comment(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.guard(w, r, rc, c.PostID) {
		return
	}
	WriteJSON(w, http.StatusOK, c)
}

// maxSearchPage keeps the offset arithmetic far from overflow.
const maxSearchPage = 1 << 20

type searchHit struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

// Search returns the ids of the visible posts matching q. X-WP-Total
// carries the total after access filtering.
// GET /api/search?q=&page=&per_page=.
func (h *RESTHandlers) Search(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	perPage, err := strconv.Atoi(q.Get("per_page"))
	if err != nil || perPage <= 0 {
		perPage = DefaultPageSize
	}
	perPage = min(perPage, model.MaxListSize)
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	page = min(page, maxSearchPage)
	opts := model.PostListOptions{Q: q.Get("q"), Limit: perPage, Offset: (page - 1) * perPage}
	ids, total, err := h.Content.SearchIDs(r.Context(), rc, opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	hits := make([]searchHit, 0, len(ids))
	for _, id := range ids {
		hits = append(hits, searchHit{ID: id, URL: rc.Gate.URL("/posts/" + strconv.FormatInt(id, 10))})
	}
	w.Header().Set("X-WP-Total", strconv.Itoa(total))
	w.Header().Set("X-WP-TotalPages", strconv.Itoa((total+perPage-1)/perPage))
	WriteJSON(w, http.StatusOK, hits)
}

type groupOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Groups lists the choices for a post access list. Any native account may
// read it.
// GET /api/groups.
func (h *RESTHandlers) Groups(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}
	if rc.NativeUser(r.Context()) == nil {
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "rest_not_logged_in", Message: "You are not currently logged in."})
		return
	}
	out := make([]groupOption, 0, len(rc.Gate.AvailableGroups))
	for _, g := range rc.Gate.AvailableGroups {
		out = append(out, groupOption{Value: g, Label: access.Label(g)})
	}
	WriteJSON(w, http.StatusOK, out)
}

type accessBody struct {
	Groups []string `json:"groups"`
}

type accessResponse struct {
	PostID int64    `json:"post_id"`
	Groups []string `json:"groups"`
	Label  string   `json:"label"`
}

// GetAccess returns the stored access list of a post. Administrators only.
// GET /api/posts/{id}/access.
func (h *RESTHandlers) GetAccess(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeBadID(w)
		return
	}
	if nu := rc.NativeUser(r.Context()); nu == nil || !nu.SuperAdmin {
		WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "rest_forbidden", Message: "only administrators may view access"})
		return
	}
	groups, err := h.Content.AccessGroups(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, newAccessResponse(id, groups))
}

// SetAccess replaces the access list of a post. Administrators only.
// PUT /api/posts/{id}/access.
func (h *RESTHandlers) SetAccess(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeBadID(w)
		return
	}
	var body accessBody
	if !DecodeJSON(w, r, &body) {
		return
	}
	groups, err := h.Content.SetAccessGroups(r.Context(), rc, id, body.Groups)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, newAccessResponse(id, groups))
}

func newAccessResponse(id int64, groups []string) accessResponse {
	if groups == nil {
		groups = []string{}
	}
	return accessResponse{PostID: id, Groups: groups, Label: access.FromList(groups).String()}
}

func (h *RESTHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, model.ErrNotFound) {
		h.logger().ErrorContext(r.Context(), "api request failed", "path", r.URL.Path, "error", err)
	}
	writeAppError(w, err)
}
