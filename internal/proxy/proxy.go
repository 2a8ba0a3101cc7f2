package proxy

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/baechuer/user-console/internal/downstream"
	"github.com/baechuer/user-console/internal/logger"
	"github.com/baechuer/user-console/middleware"
)

// New creates a read-only reverse proxy to the remote user API for the
// signed-in operator. The session token is attached as the access-token
// header; the browser never sees it.
// targetHost: "http://users-api:5000"
// stripPrefix: "/api/users"
// upstreamPrefix: "/users"
func New(targetHost, stripPrefix, upstreamPrefix string) (http.Handler, error) {
	target, err := url.Parse(targetHost)
	if err != nil {
		return nil, err
	}

	rp := httputil.NewSingleHostReverseProxy(target)
	originalDirector := rp.Director

	rp.Director = func(req *http.Request) {
		originalDirector(req)

		req.Host = target.Host

		// /api/users/42 -> /users/42
		if strings.HasPrefix(req.URL.Path, stripPrefix) {
			req.URL.Path = upstreamPrefix + strings.TrimPrefix(req.URL.Path, stripPrefix)
			req.URL.RawPath = ""
		}

		// the console cookie is ours; the token goes in the header instead
		req.Header.Del("Cookie")
		req.Header.Del(downstream.TokenHeader)
		if sess := middleware.GetSession(req.Context()); sess.Authenticated() {
			req.Header.Set(downstream.TokenHeader, sess.Token)
		}

		reqID := middleware.GetRequestID(req.Context())
		if reqID != "" {
			req.Header.Set(middleware.HeaderXRequestID, reqID)
		}
	}

	rp.Transport = &middleware.TracingTransport{Base: http.DefaultTransport}

	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		reqID := middleware.GetRequestID(r.Context())

		logger.Log.Error().
			Err(err).
			Str("target", targetHost).
			Str("request_id", reqID).
			Msg("upstream_proxy_error")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"code":"upstream_unavailable","message":"upstream service unreachable","request_id":"` + reqID + `"}}`))
	}

	return readOnly(rp), nil
}

// readOnly lets GET and HEAD through. Writes go through the screens so the
// draft rules always run.
func readOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusMethodNotAllowed)
			_, _ = w.Write([]byte(`{"error":{"code":"method_not_allowed","message":"read-only endpoint"}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
