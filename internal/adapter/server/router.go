package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"costume-portal/internal/core/domain/types"
	"costume-portal/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// API wraps the HTTP router and server lifecycle shared by every run mode.
type API struct {
	router chi.Router
	log    logger.Logger
}

func NewRouter(log logger.Logger) *API {
	api := &API{
		router: chi.NewRouter(),
		log:    log,
	}
	api.router.Use(api.requestLogger)
	return api
}

// Router exposes the underlying chi router so each run mode mounts its own
// handlers.
func (api *API) Router() chi.Router {
	return api.router
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (api *API) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: api.router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	api.log.Info(ctx, types.ActionServiceStarted, "http server listening", "port", port)

	select {
	case err := <-errCh:
		api.log.Error(ctx, types.ActionServiceFailed, "http server failed", err)
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	api.log.Info(shutdownCtx, types.ActionGracefulShutdown, "shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
