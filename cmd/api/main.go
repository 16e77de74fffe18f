package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookfinder/internal/catalog"
	"bookfinder/internal/config"
	"bookfinder/internal/httpx"
	"bookfinder/internal/logging"
	"bookfinder/internal/metrics"
	"bookfinder/internal/platform/openlibrary"
)

const maxRequestBytes = 1 << 20

func main() {
	config.LoadEnvFiles()
	cfg := config.LoadGateway()
	logging.Init(cfg.Log)

	upstream := openlibrary.NewClient(openlibrary.Options{
		BaseURL:    cfg.OpenLibraryBaseURL,
		UserAgent:  cfg.UserAgent,
		RPS:        cfg.UpstreamRPS,
		Timeout:    cfg.UpstreamTimeout,
		MaxRetries: cfg.UpstreamMaxRetries,
	})
	svc := catalog.NewService(upstream)

	limiter := httpx.NewRateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Close()

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      newRouter(cfg, svc, limiter),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 2*cfg.UpstreamTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", cfg.Addr).Str("upstream", cfg.OpenLibraryBaseURL).Msg("starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logging.Fatal().Err(err).Msg("server error")
	case sig := <-stop:
		logging.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// newRouter mounts the gateway routes and /metrics behind the middleware
// chain. The first middleware listed is the outermost.
func newRouter(cfg config.Gateway, svc *catalog.Service, limiter *httpx.RateLimitMiddleware) http.Handler {
	router := http.NewServeMux()
	catalog.NewHTTPHandler(svc).Register(router)
	router.Handle("/metrics", httpx.GetOnly(metrics.Handler().ServeHTTP))

	return httpx.Chain(router,
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware,
		httpx.RecoveryMiddleware,
		httpx.SecurityHeadersMiddleware,
		httpx.CORSMiddleware(cfg.AllowedOrigins),
		limiter.Middleware,
		httpx.RequestSizeLimitMiddleware(maxRequestBytes),
	)
}
