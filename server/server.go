// Package server exposes the local vault over the `bw serve` API subset
// used by the Bitwarden adapter.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/richinex/vaultbridge/storage"
	"github.com/rs/zerolog"
)

// Store is the subset of *storage.SqliteStorage the server needs.
type Store interface {
	GetEntry(ctx context.Context, id string) (*storage.Entry, error)
	PutEntry(ctx context.Context, entry storage.Entry) error
	ListEntries(ctx context.Context) ([]storage.Entry, error)
	DeleteEntry(ctx context.Context, id string) error
}

// Server serves the local vault.
type Server struct {
	store  Store
	logger zerolog.Logger
	router *chi.Mux
}

// New creates the handler.
func New(store Store, logger zerolog.Logger) *Server {
	s := &Server{
		store:  store,
		logger: logger,
		router: chi.NewRouter(),
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.logRequests)
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/status", s.getStatus)
	r.Post("/unlock", s.acknowledge("Your vault is now unlocked!"))
	r.Post("/lock", s.acknowledge("Your vault is locked."))
	r.Post("/sync", s.acknowledge("Syncing complete."))

	r.Get("/list/object/items", s.listItems)

	r.Route("/object", func(r chi.Router) {
		r.Post("/item", s.createItem)
		r.Route("/item/{id}", func(r chi.Router) {
			r.Get("/", s.getItem)
			r.Put("/", s.putItem)
			r.Delete("/", s.deleteItem)
		})
		r.Get("/totp/{id}", s.getTOTP)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// ListenAndServe serves on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
