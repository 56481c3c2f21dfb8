package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/micro-ha/imou-ptz/addon/internal/http/handlers"
)

// NewRouter builds the full HTTP routing tree for the backend API.
func NewRouter(api *handlers.API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RecoverJSON)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(StripIngressPrefix)
	r.Use(RequestLogger(api))

	r.Get("/healthz", api.Health)
	r.Route("/api", func(apiRouter chi.Router) {
		apiRouter.Get("/channels", api.ListChannels)
		apiRouter.Get("/channels/{deviceID}/{channelID}", func(w http.ResponseWriter, r *http.Request) {
			api.GetChannel(w, r, chi.URLParam(r, "deviceID"), chi.URLParam(r, "channelID"))
		})
		apiRouter.Patch("/channels/{deviceID}/{channelID}", func(w http.ResponseWriter, r *http.Request) {
			api.PatchChannel(w, r, chi.URLParam(r, "deviceID"), chi.URLParam(r, "channelID"))
		})
		apiRouter.Post("/channels/{deviceID}/{channelID}/wakeup", func(w http.ResponseWriter, r *http.Request) {
			api.Wakeup(w, r, chi.URLParam(r, "deviceID"), chi.URLParam(r, "channelID"))
		})
		apiRouter.Post("/channels/{deviceID}/{channelID}/buttons/{type}", func(w http.ResponseWriter, r *http.Request) {
			api.PressButton(w, r, chi.URLParam(r, "deviceID"), chi.URLParam(r, "channelID"), chi.URLParam(r, "type"))
		})
		apiRouter.Post("/channels/{deviceID}/{channelID}/select", func(w http.ResponseWriter, r *http.Request) {
			api.SelectOption(w, r, chi.URLParam(r, "deviceID"), chi.URLParam(r, "channelID"))
		})
		apiRouter.Post("/channels/{deviceID}/{channelID}/ptz", func(w http.ResponseWriter, r *http.Request) {
			api.MovePTZ(w, r, chi.URLParam(r, "deviceID"), chi.URLParam(r, "channelID"))
		})
		apiRouter.Post("/discover", api.Discover)
		apiRouter.Post("/refresh", api.Refresh)
		apiRouter.Get("/ws", api.Stream)
	})

	return r
}

// RunServer starts and gracefully stops the HTTP server with context cancellation.
func RunServer(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
