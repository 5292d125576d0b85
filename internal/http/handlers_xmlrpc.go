package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/target/oidc-gate/internal/domain/access"
	"github.com/target/oidc-gate/internal/domain/model"
	"github.com/target/oidc-gate/internal/service"
)

const maxXMLRPCBody = 1 << 20

// XML-RPC faults raised by access checks.
var (
	faultNotLoggedIn = &xmlrpcFault{Code: http.StatusUnauthorized, Message: "Authentication required"}
	faultNoAccess    = &xmlrpcFault{Code: http.StatusForbidden, Message: "You do not have access to this content"}
	faultAdminsOnly  = &xmlrpcFault{Code: http.StatusForbidden, Message: "Restricted to administrators for now."}
	faultBadComment  = &xmlrpcFault{Code: http.StatusNotFound, Message: "Invalid comment ID."}
	faultBadPost     = &xmlrpcFault{Code: http.StatusNotFound, Message: "Invalid post ID."}
	faultBadPage     = &xmlrpcFault{Code: http.StatusNotFound, Message: "Sorry, no such page."}
)

// XMLRPCHandler serves the read-only subset of the XML-RPC API. Access is
// decided from the visitor's cookies; username and password arguments are
// ignored.
type XMLRPCHandler struct {
	Content *service.ContentService
	Access  *service.AccessService
	Logger  *slog.Logger
}

func (h *XMLRPCHandler) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type xmlrpcMethod func(ctx context.Context, rc *service.RequestContext, args []any) (any, error)

func (h *XMLRPCHandler) methods() map[string]xmlrpcMethod {
	return map[string]xmlrpcMethod{
		"wp.getPost":                h.postAt(3, ""),
		"wp.getPage":                h.postAt(1, model.PostTypePage),
		"blogger.getPost":           h.postAt(1, ""),
		"metaWeblog.getPost":        h.postAt(0, ""),
		"wp.getComment":             h.getComment,
		"wp.getPosts":               h.getPosts,
		"wp.getComments":            h.getComments,
		"blogger.getRecentPosts":    h.getRecentPosts,
		"metaWeblog.getRecentPosts": h.getRecentPosts,
	}
}

// ServeHTTP handles POST /xmlrpc. Faults are returned with status 200.
func (h *XMLRPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	w.Header().Set("Content-Type", "text/xml; charset=UTF-8")

	name, args, err := parseMethodCall(http.MaxBytesReader(w, r.Body, maxXMLRPCBody))
	if err != nil {
		h.logger().DebugContext(ctx, "xmlrpc parse", "error", err)
		h.fault(w, &xmlrpcFault{Code: faultParse, Message: "parse error. not well formed"})
		return
	}
	method, ok := h.methods()[name]
	if !ok {
		h.fault(w, &xmlrpcFault{Code: faultUnknownMethod, Message: "server error. requested method " + name + " does not exist."})
		return
	}
	h.logger().DebugContext(ctx, "xmlrpc call", "method", name)

	result, err := method(ctx, rc, args)
	var f *xmlrpcFault
	if errors.As(err, &f) {
		h.fault(w, f)
		return
	}
	if err != nil {
		h.logger().ErrorContext(ctx, "xmlrpc call failed", "method", name, "error", err)
		h.fault(w, &xmlrpcFault{Code: http.StatusInternalServerError, Message: "Internal server error"})
		return
	}
	w.WriteHeader(http.StatusOK)
	if err := writeMethodResponse(w, result); err != nil {
		h.logger().DebugContext(ctx, "write xmlrpc response", "error", err)
	}
}

func (h *XMLRPCHandler) fault(w http.ResponseWriter, f *xmlrpcFault) {
	w.WriteHeader(http.StatusOK)
	if err := writeFault(w, f); err != nil {
		h.logger().Debug("write xmlrpc fault", "error", err)
	}
}

// callAccess applies the site ACL and, for a non-zero id, the post ACL.
func (h *XMLRPCHandler) callAccess(ctx context.Context, rc *service.RequestContext, postID int64) error {
	switch h.Access.CheckSiteAndPost(ctx, rc, service.SurfaceXMLRPC, postID) {
	case access.DeniedNotLoggedIn:
		return faultNotLoggedIn
	case access.DeniedNotInGroups:
		return faultNoAccess
	default:
		return nil
	}
}

// postAt returns a method reading the post id from args[idx]. A non-empty
// want restricts the method to that post type.
func (h *XMLRPCHandler) postAt(idx int, want model.PostType) xmlrpcMethod {
	return func(ctx context.Context, rc *service.RequestContext, args []any) (any, error) {
		id := argInt(args, idx)
		p, err := h.Content.Post(ctx, id)
		if errors.Is(err, model.ErrNotFound) || id <= 0 {
			if err := h.callAccess(ctx, rc, 0); err != nil {
				return nil, err
			}
			if want == model.PostTypePage {
				return nil, faultBadPage
			}
			return nil, faultBadPost
		}
		if err != nil {
			return nil, err
		}
		if err := h.callAccess(ctx, rc, p.AccessTarget()); err != nil {
			return nil, err
		}
		if want != "" && p.Type != want {
			return nil, faultBadPage
		}
		return postStruct(p), nil
	}
}

func (h *XMLRPCHandler) getComment(ctx context.Context, rc *service.RequestContext, args []any) (any, error) {
	c, err := h.Content.Comment(ctx, argInt(args, 3))
	if errors.Is(err, model.ErrNotFound) {
		return nil, faultBadComment
	}
	if err != nil {
		return nil, err
	}
	if err := h.callAccess(ctx, rc, c.PostID); err != nil {
		return nil, err
	}
	return commentStruct(c), nil
}

// getPosts lists posts, redacting each one the visitor may not read.
func (h *XMLRPCHandler) getPosts(ctx context.Context, rc *service.RequestContext, args []any) (any, error) {
	filter := argStruct(args, 3)
	opts := model.PostListOptions{Limit: DefaultPageSize}
	if n, ok := filter.Int("number"); ok {
		opts.Limit = int(n)
	}
	if n, ok := filter.Int("offset"); ok {
		opts.Offset = int(n)
	}
	if t, ok := filter["post_type"].(string); ok {
		opts.Type = model.PostType(t)
	}
	posts, err := h.Content.Latest(ctx, opts)
	if err != nil {
		return nil, err
	}
	siteOK := h.Access.CheckSite(ctx, rc) == access.Allowed
	out := make([]xmlrpcStruct, 0, len(posts))
	for _, p := range posts {
		s := postStruct(p)
		if !siteOK || h.Access.CheckContent(ctx, rc, service.SurfaceXMLRPC, p) != access.Allowed {
			s["post_title"] = service.NoAccessText
			s["post_excerpt"] = service.NoAccessText
			s["post_content"] = service.NoAccessText
		}
		out = append(out, s)
	}
	return out, nil
}

// getComments lists comments, redacting those on posts the visitor may not
// read. A filter naming a post is checked up front like a single post.
func (h *XMLRPCHandler) getComments(ctx context.Context, rc *service.RequestContext, args []any) (any, error) {
	filter := argStruct(args, 3)
	postID, hasPost := filter.Int("post_id")
	if hasPost {
		if err := h.callAccess(ctx, rc, postID); err != nil {
			return nil, err
		}
	}
	limit := MaxCommentsPerPost
	if n, ok := filter.Int("number"); ok && n > 0 && n < MaxCommentsPerPost {
		limit = int(n)
	}
	comments, err := h.Content.Comments(ctx, postID, limit)
	if err != nil {
		return nil, err
	}
	siteOK := h.Access.CheckSite(ctx, rc) == access.Allowed
	out := make([]xmlrpcStruct, 0, len(comments))
	for _, c := range comments {
		if !siteOK || h.Access.CheckPost(ctx, rc, service.SurfaceXMLRPC, c.PostID) != access.Allowed {
			out = append(out, blockedComment(c))
			continue
		}
		out = append(out, commentStruct(c))
	}
	return out, nil
}

func (h *XMLRPCHandler) getRecentPosts(ctx context.Context, rc *service.RequestContext, args []any) (any, error) {
	if nu := rc.NativeUser(ctx); nu == nil || !nu.SuperAdmin {
		return nil, faultAdminsOnly
	}
	limit := DefaultPageSize
	if len(args) > 0 {
		// The post count is the last argument of both variants.
		if n := argInt(args, len(args)-1); n > 0 {
			limit = int(n)
		}
	}
	posts, err := h.Content.Latest(ctx, model.PostListOptions{Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]xmlrpcStruct, 0, len(posts))
	for _, p := range posts {
		out = append(out, postStruct(p))
	}
	return out, nil
}

func postStruct(p *model.Post) xmlrpcStruct {
	parent := int64(0)
	if p.ParentID != nil {
		parent = *p.ParentID
	}
	return xmlrpcStruct{
		"post_id":      strconv.FormatInt(p.ID, 10),
		"post_title":   p.Title,
		"post_type":    string(p.Type),
		"post_name":    p.Slug,
		"post_content": p.Content,
		"post_excerpt": p.Excerpt,
		"post_date":    p.CreatedAt,
		"post_parent":  strconv.FormatInt(parent, 10),
	}
}

func commentStruct(c *model.Comment) xmlrpcStruct {
	return xmlrpcStruct{
		"comment_id":       strconv.FormatInt(c.ID, 10),
		"parent":           "0",
		"post_id":          strconv.FormatInt(c.PostID, 10),
		"content":          c.Content,
		"author":           c.Author,
		"type":             "comment",
		"date_created_gmt": c.CreatedAt,
	}
}

// blockedComment keeps only the identifiers of a comment the visitor may not read.
func blockedComment(c *model.Comment) xmlrpcStruct {
	s := commentStruct(c)
	s["content"] = service.NoAccessText
	s["post_title"] = service.NoAccessText
	s["author"] = service.NoAccessText
	delete(s, "date_created_gmt")
	return s
}
