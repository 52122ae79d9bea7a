// Package server wires the HTTP API onto a store.
package server

import (
	"context"
	"errors"
	"excalidash/handlers/api/collections"
	"excalidash/handlers/api/documents"
	"excalidash/handlers/api/drawings"
	"excalidash/handlers/api/library"
	"excalidash/handlers/auth"
	authMiddleware "excalidash/middleware"
	"excalidash/stores"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// allowOrigin accepts browser origins served from the local machine.
func allowOrigin(r *http.Request, origin string) bool {
	parsed, err := url.Parse(origin)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return false
	}
	switch parsed.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

func NewRouter(store stores.Store, provider *auth.Provider) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  allowOrigin,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", library.NameHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v2", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT(provider))
			r.Route("/drawings", func(r chi.Router) {
				r.Get("/", drawings.HandleList(store))
				r.Post("/", drawings.HandleCreate(store))
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", drawings.HandleGet(store))
					r.Patch("/", drawings.HandleUpdate(store))
					r.Delete("/", drawings.HandleDelete(store))
					r.Put("/data", drawings.HandleSaveData(store))
					r.Post("/duplicate", drawings.HandleDuplicate(store))
				})
			})
			r.Route("/collections", func(r chi.Router) {
				r.Get("/", collections.HandleList(store))
				r.Post("/", collections.HandleCreate(store))
				r.Put("/{id}", collections.HandleRename(store))
				r.Delete("/{id}", collections.HandleDelete(store))
			})
			r.Post("/library", library.HandleCreate(store))
			r.Get("/library/{id}", library.HandleGet(store))
		})

		// Anonymous share links
		r.Post("/post/", documents.HandleCreate(store))
		r.Get("/{id}", documents.HandleGet(store))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", provider.HandleLogin)
		r.Get("/callback", provider.HandleCallback)
	})

	return r
}

// ListenAndServe serves handler on addr until ctx is cancelled, then shuts
// down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logrus.WithField("addr", addr).Info("starting server")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logrus.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
