package httpx

import (
	"net/http"

	"github.com/target/oidc-gate/internal/service"
)

// requestContext returns the RequestContext attached by the RequestScope
// middleware. A request that bypassed the middleware gets a 500.
func requestContext(w http.ResponseWriter, r *http.Request) (*service.RequestContext, bool) {
	rc, ok := service.RequestContextFrom(r.Context())
	if !ok {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	return rc, true
}
