package httpx

import (
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	oidcgate "github.com/target/oidc-gate"
	"github.com/target/oidc-gate/internal/observability/metrics"
	"github.com/target/oidc-gate/internal/service"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Scope   *service.RequestScope
	Access  *service.AccessService
	Content *service.ContentService
	Auth    *service.AuthService
	Policy  *service.RedirectPolicy

	// Optional: metrics recorder and the registry served at MetricsPath.
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	MetricsPath string

	// Optional: dependency checks served at /readyz.
	Readiness map[string]ReadinessCheck

	IsDev  bool         // Serve templates and static files from disk
	Logger *slog.Logger // Logger for template and HTTP errors (optional)
}

// NewRouter creates the HTTP handler with the full middleware stack:
// Recover, Logging, RequestScope, NoCache.
func NewRouter(services RouterServices) (http.Handler, error) {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	templateFS, staticFS, err := assetFS(services.IsDev)
	if err != nil {
		return nil, err
	}
	tr, err := NewTemplateRenderer(TemplateRendererConfig{TemplateFS: templateFS, Logger: logger})
	if err != nil {
		return nil, err
	}

	v := views{T: tr, Policy: services.Policy, Logger: logger}
	pages := &PageHandlers{views: v, Content: services.Content, Access: services.Access}
	auth := &AuthHandlers{views: v, Svc: services.Auth}
	if services.Metrics != nil {
		auth.Metrics = services.Metrics
	}
	rest := &RESTHandlers{Content: services.Content, Access: services.Access, Logger: logger}
	xmlrpc := &XMLRPCHandler{Content: services.Content, Access: services.Access, Logger: logger}

	mux := http.NewServeMux()
	var obs RequestObserver
	if services.Metrics != nil {
		obs = services.Metrics
	}
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, observe(obs, pattern, h))
	}

	// Page routes: the site gate always runs before the post gate.
	site := gateChain{pages.siteGate}
	post := gateChain{pages.siteGate, pages.postGate}
	handle("GET /{$}", site.then(pages.Index))
	handle("GET /posts/{id}", post.then(pages.Post))
	handle("GET /search", site.then(pages.Search))
	handle("/", site.then(pages.NotFound))

	// Surfaces that gate themselves.
	handle("GET /feed", http.HandlerFunc(pages.Feed))
	handle("POST /xmlrpc", xmlrpc)
	registerRESTRoutes(handle, rest)
	registerAuthRoutes(handle, auth)

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /readyz", readyHandler(services.Readiness, logger))
	if services.Gatherer != nil {
		path := services.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, promhttp.HandlerFor(services.Gatherer, promhttp.HandlerOpts{}))
	}
	mux.Handle("GET /static/", staticHandler(staticFS))

	return Chain(mux,
		Recover(logger),
		Logging(logger),
		RequestScope(services.Scope),
		NoCache(),
	), nil
}

func registerRESTRoutes(handle func(string, http.Handler), h *RESTHandlers) {
	handle("GET /api/posts/{id}", http.HandlerFunc(h.GetPost))
	handle("GET /api/posts/{id}/revisions/{rid}", http.HandlerFunc(h.GetRevision))
	handle("GET /api/posts/{id}/access", http.HandlerFunc(h.GetAccess))
	handle("PUT /api/posts/{id}/access", http.HandlerFunc(h.SetAccess))
	handle("GET /api/comments/{id}", http.HandlerFunc(h.GetComment))
	handle("GET /api/search", http.HandlerFunc(h.Search))
	handle("GET /api/groups", http.HandlerFunc(h.Groups))
	handle("/api/", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "rest_no_route", Message: "No route was found matching the URL and request method."})
	}))
}

func registerAuthRoutes(handle func(string, http.Handler), h *AuthHandlers) {
	handle("GET /auth/login", http.HandlerFunc(h.Login))
	handle("GET /auth/callback", http.HandlerFunc(h.Callback))
	handle("GET /auth/logout", http.HandlerFunc(h.Logout))
	handle("GET /auth/status", http.HandlerFunc(h.Status))
	handle("GET /login", http.HandlerFunc(h.NativeLogin))
}

// assetFS returns the template and static filesystems. Dev mode reads them
// from disk so edits show up without a rebuild.
func assetFS(isDev bool) (fs.FS, fs.FS, error) {
	if isDev {
		return os.DirFS(TemplatePathFromRoot), os.DirFS(StaticPathFromRoot), nil
	}
	templates, err := oidcgate.Templates()
	if err != nil {
		return nil, nil, err
	}
	static, err := oidcgate.Static()
	if err != nil {
		return nil, nil, err
	}
	return templates, static, nil
}

// staticHandler serves /static/* with a short public cache lifetime.
func staticHandler(fsys fs.FS) http.Handler {
	files := http.StripPrefix("/static/", http.FileServerFS(fsys))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	})
}
