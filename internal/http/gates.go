package httpx

import (
	"net/http"
	"strconv"

	"github.com/target/oidc-gate/internal/domain/access"
	"github.com/target/oidc-gate/internal/service"
)

// pageHandler serves a page after its gates have passed.
type pageHandler func(w http.ResponseWriter, r *http.Request, rc *service.RequestContext)

// gate runs before a page handler. It returns false once it has written
// the response.
type gate func(w http.ResponseWriter, r *http.Request, rc *service.RequestContext) bool

// gateChain runs its gates in order and then the page handler. Page
// templates are only rendered after every gate has classified the request.
type gateChain []gate

func (c gateChain) then(h pageHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc, ok := requestContext(w, r)
		if !ok {
			return
		}
		for _, g := range c {
			if !g(w, r, rc) {
				return
			}
		}
		h(w, r, rc)
	})
}

// siteGate enforces the site-wide ACL.
func (h *PageHandlers) siteGate(w http.ResponseWriter, r *http.Request, rc *service.RequestContext) bool {
	return h.enforce(w, rc, h.Access.CheckSite(r.Context(), rc))
}

// postGate enforces the ACL of the post named by the {id} path value.
// Unknown ids pass through so the handler can answer 404.
func (h *PageHandlers) postGate(w http.ResponseWriter, r *http.Request, rc *service.RequestContext) bool {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return true
	}
	return h.enforce(w, rc, h.Access.CheckPost(r.Context(), rc, service.SurfacePost, id))
}

func (h *PageHandlers) enforce(w http.ResponseWriter, rc *service.RequestContext, d access.Decision) bool {
	switch d {
	case access.Allowed:
		return true
	case access.DeniedNotLoggedIn:
		h.deny(w, rc, true)
	default:
		h.deny(w, rc, false)
	}
	return false
}
