package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/BlackLotus/nomad/internal/logger"
	"github.com/BlackLotus/nomad/pkg/config"
	"github.com/BlackLotus/nomad/pkg/controller"
)

// Server wraps an http.Server serving the upload-controller API, grounded
// on dittofs's pkg/api.Server (create-in-stopped-state, block-until-ctx
// graceful shutdown shape).
type Server struct {
	httpServer *http.Server
	shutdown   time.Duration
}

// NewServer builds a Server bound to cfg.Addr, serving ctrl through
// NewRouter.
func NewServer(cfg config.HTTPConfig, shutdownTimeout time.Duration, ctrl *controller.Controller) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      NewRouter(cfg, ctrl),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		shutdown: shutdownTimeout,
	}
}

// Start listens and serves until ctx is canceled, then gracefully shuts
// down within the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.InfoCtx(ctx, "http api listening", logger.Path(s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http api serve: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
