// Package httpapi is the thin HTTP adapter onto pkg/controller (spec §1
// "treat it as a thin adapter onto the operations in §4"), grounded on
// dittofs's pkg/controlplane/api/router.go for its chi middleware stack
// and route-grouping idiom.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/BlackLotus/nomad/internal/logger"
	"github.com/BlackLotus/nomad/internal/metrics"
	"github.com/BlackLotus/nomad/pkg/config"
	"github.com/BlackLotus/nomad/pkg/controller"
)

// NewRouter builds the chi router for cfg's HTTP surface against ctrl.
func NewRouter(cfg config.HTTPConfig, ctrl *controller.Controller) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	health := healthHandler{}
	r.Get("/health", health.liveness)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	uploads := newUploadHandler(ctrl)
	verifier := newTokenVerifier(cfg.JWTSecret)

	r.Route("/api/v1/uploads", func(r chi.Router) {
		r.Use(jwtAuth(verifier))

		r.Post("/", uploads.create)

		r.Route("/{uploadID}", func(r chi.Router) {
			r.Get("/", uploads.get)
			r.Post("/raw", uploads.addFiles)
			r.Delete("/raw", uploads.deleteFiles)
			r.Patch("/metadata", uploads.setMetadata)
			r.Post("/publish", uploads.publish)
			r.Post("/publish-externally", uploads.publishExternally)
			r.Post("/reprocess", uploads.reprocess)
			r.Post("/lift-embargo", uploads.liftEmbargo)
			r.Delete("/", uploads.delete)
			r.Get("/bundle", uploads.exportBundle)
		})
	})

	return r
}

// requestLogger logs each request at Info with method/path/status/duration,
// mirroring dittofs's router.requestLogger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.ObserveHTTPRequest(route, r.Method, ww.Status(), elapsed)
		logger.InfoCtx(r.Context(), "http request",
			logger.Path(r.URL.Path),
			logger.DurationMs(float64(elapsed.Milliseconds())),
			slog.Int("status", ww.Status()),
		)
	})
}
