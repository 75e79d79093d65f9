// The gateway fronts a famledger server and keeps the app shell usable when
// the network to it drops. Run it next to the browser (or on an edge box),
// point it at the server, and browse through it.
package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"famledger/internal/config"
	applog "famledger/internal/log"
	"famledger/internal/offline"
)

const cacheEntries = 256

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: applog.ComponentOffline})
	applog.SetDefault(logger)

	cfg := config.Load()

	upstreamRaw := os.Getenv("UPSTREAM_URL")
	if upstreamRaw == "" {
		upstreamRaw = "http://localhost:" + cfg.Port
	}
	upstream, err := url.Parse(upstreamRaw)
	if err != nil || upstream.Scheme == "" || upstream.Host == "" {
		logger.Error("UPSTREAM_URL must be an absolute http(s) URL", "value", upstreamRaw)
		os.Exit(1)
	}

	port := os.Getenv("GATEWAY_PORT")
	if port == "" {
		port = "8090"
	}

	gateway := offline.NewGateway(
		&rewriteTransport{base: upstream, next: http.DefaultTransport},
		cfg.ShellAssets,
		[]string{"/api/", "/auth/", "/expenses", "/filters", "/categories", "/export.csv"},
		cacheEntries,
		cfg.OfflineCacheTTL,
		logger.Logger,
	)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      gateway,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting offline gateway",
			"port", port,
			"upstream", upstream.String(),
			"cache_ttl", cfg.OfflineCacheTTL.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Gateway error", "error", err)
		os.Exit(1)
	}
	logger.Info("Gateway stopped gracefully")
}

// rewriteTransport retargets inbound requests at the upstream server. Inbound
// requests carry no scheme or host, so they cannot be round-tripped as-is.
type rewriteTransport struct {
	base *url.URL
	next http.RoundTripper
}

func (t *rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	out := r.Clone(r.Context())
	out.URL.Scheme = t.base.Scheme
	out.URL.Host = t.base.Host
	out.Host = t.base.Host
	out.RequestURI = ""
	return t.next.RoundTrip(out)
}
