// Package offline is a caching gateway in front of the app server. It gives
// the web UI the same degraded-network behavior a browser service worker
// would: the app shell keeps loading from cache while live data waits for
// connectivity.
package offline

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"famledger/internal/cache"
)

// ShellPath is the document served when a navigation cannot reach the
// network and has no cached copy of its own.
const ShellPath = "/"

type cachedResponse struct {
	status int
	header http.Header
	body   []byte
}

// Gateway routes requests per the offline contract:
//   - non-GET requests always pass through
//   - API paths pass through untouched, never cached
//   - shell assets are served cache-first
//   - other GETs are network-first with cache fallback
//   - navigations fall back to the cached shell, then a synthetic 503
type Gateway struct {
	upstream    http.RoundTripper
	cache       *cache.Cache[cachedResponse]
	shellAssets map[string]bool
	apiPrefixes []string
	logger      *slog.Logger
}

func NewGateway(upstream http.RoundTripper, shellAssets []string, apiPrefixes []string, maxEntries int, ttl time.Duration, logger *slog.Logger) *Gateway {
	shell := make(map[string]bool, len(shellAssets))
	for _, p := range shellAssets {
		shell[p] = true
	}
	return &Gateway{
		upstream:    upstream,
		cache:       cache.New[cachedResponse](maxEntries, ttl),
		shellAssets: shell,
		apiPrefixes: apiPrefixes,
		logger:      logger,
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method != http.MethodGet:
		g.passThrough(w, r)
	case g.isAPI(r.URL.Path):
		g.passThrough(w, r)
	case g.shellAssets[r.URL.Path]:
		g.cacheFirst(w, r)
	default:
		g.networkFirst(w, r)
	}
}

func (g *Gateway) isAPI(path string) bool {
	for _, prefix := range g.apiPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// passThrough forwards without touching the cache. A transport failure is the
// one case that yields the synthetic offline response for mutations.
func (g *Gateway) passThrough(w http.ResponseWriter, r *http.Request) {
	resp, err := g.fetch(r)
	if err != nil {
		g.offline(w, r, err)
		return
	}
	writeCached(w, resp)
}

func (g *Gateway) cacheFirst(w http.ResponseWriter, r *http.Request) {
	if cached, ok := g.cache.Get(r.URL.Path); ok {
		writeCached(w, cached)
		return
	}

	resp, err := g.fetch(r)
	if err != nil {
		g.offline(w, r, err)
		return
	}
	g.store(r.URL.Path, resp)
	writeCached(w, resp)
}

func (g *Gateway) networkFirst(w http.ResponseWriter, r *http.Request) {
	resp, err := g.fetch(r)
	if err == nil {
		g.store(r.URL.Path, resp)
		writeCached(w, resp)
		return
	}

	if cached, ok := g.cache.Get(r.URL.Path); ok {
		writeCached(w, cached)
		return
	}

	// Navigations degrade to the cached shell so the app can boot and show
	// its own offline state.
	if isNavigation(r) {
		if shell, ok := g.cache.Get(ShellPath); ok {
			writeCached(w, shell)
			return
		}
	}

	g.offline(w, r, err)
}

func (g *Gateway) fetch(r *http.Request) (cachedResponse, error) {
	resp, err := g.upstream.RoundTrip(r)
	if err != nil {
		return cachedResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cachedResponse{}, err
	}
	return cachedResponse{status: resp.StatusCode, header: resp.Header.Clone(), body: body}, nil
}

func (g *Gateway) store(key string, resp cachedResponse) {
	if resp.status >= 200 && resp.status < 400 {
		g.cache.Set(key, resp)
	}
}

func (g *Gateway) offline(w http.ResponseWriter, r *http.Request, err error) {
	g.logger.WarnContext(r.Context(), "Serving synthetic offline response",
		"path", r.URL.Path,
		"method", r.Method,
		"error", err)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte("offline"))
}

func isNavigation(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeCached(w http.ResponseWriter, c cachedResponse) {
	for k, vals := range c.header {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(c.status)
	w.Write(c.body)
}
