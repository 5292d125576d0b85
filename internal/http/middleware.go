package httpx

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/target/oidc-gate/internal/service"
)

// requestIDHeader is echoed back and attached to the request log line.
const requestIDHeader = "X-Request-ID"

// Logging logs one line per request. Health probes log at debug and server
// errors at error level.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" || len(reqID) > 64 {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			switch {
			case ww.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case r.URL.Path == "/healthz" || r.URL.Path == "/readyz":
				level = slog.LevelDebug
			}
			logger.LogAttrs(r.Context(), level, "http",
				slog.String("request_id", reqID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Int64("bytes", ww.bytes),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func (w *respWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status, w.wroteHeader = status, true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *respWriter) Write(p []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (w *respWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Recover turns a handler panic into a logged 500. http.ErrAbortHandler is
// re-raised so the server can drop the connection.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.ErrorContext(r.Context(), "panic",
					slog.Any("error", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestScoper builds the per-request context.
type RequestScoper interface {
	Begin(w http.ResponseWriter, r *http.Request) *service.RequestContext
}

// RequestScope attaches a fresh RequestContext to every request.
// The context keeps a pointer to the request it was built for, so handlers
// further down see the same session and memoized verdicts.
func RequestScope(scope RequestScoper) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := scope.Begin(w, r)
			r = r.WithContext(service.WithRequestContext(r.Context(), rc))
			rc.Request = r
			next.ServeHTTP(w, r)
		})
	}
}

// No-cache header values sent to logged-in visitors.
const (
	noCacheExpires      = "Wed, 11 Jan 1984 05:00:00 GMT"
	noCacheCacheControl = "no-cache, must-revalidate, max-age=0, no-store, private"
)

// NoCache marks responses to visitors with an OIDC login as uncacheable so a
// shared cache never serves restricted pages to someone else.
// Static assets are skipped.
func NoCache() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/static/") {
				next.ServeHTTP(w, r)
				return
			}
			if rc, ok := service.RequestContextFrom(r.Context()); ok && rc.User.LoggedIn(r.Context()) {
				h := w.Header()
				h.Set("Expires", noCacheExpires)
				h.Set("Cache-Control", noCacheCacheControl)
				h.Del("Last-Modified")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestObserver records request latency per route.
type RequestObserver interface {
	ObserveRequest(route string, status int, d time.Duration)
}

// observe wraps h to report its latency under the route pattern.
func observe(obs RequestObserver, route string, h http.Handler) http.Handler {
	if obs == nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(ww, r)
		obs.ObserveRequest(route, ww.status, time.Since(start))
	})
}

// Chain applies middlewares so the first one listed runs outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
