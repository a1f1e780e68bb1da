// Package server exposes the pipeline over HTTP. Chat and comparison runs
// stream their protocol events as Server-Sent Events; the constitution
// registry and a health probe are plain JSON endpoints.
//
// Provider API keys are request-scoped: each request may carry its own keys,
// with the server's configured keys as fallback. There is no process-global
// mutable keystore.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Superego-Agent/superego-lgdemo-sub000/constitution"
	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
	"github.com/Superego-Agent/superego-lgdemo-sub000/logging"
	"github.com/Superego-Agent/superego-lgdemo-sub000/session"
)

// APIKeys carries request-scoped provider credentials.
type APIKeys struct {
	Anthropic string `json:"anthropic,omitempty"`
	OpenAI    string `json:"openai,omitempty"`
}

// ExecutorFactory builds a stage executor bound to the given credentials.
// The factory is invoked once per request so keys never outlive it.
type ExecutorFactory func(keys APIKeys) core.StageExecutor

// Options configure the server.
type Options struct {
	// Store persists sessions and checkpoints. Defaults to in-memory.
	Store session.Store
	// Logger receives request diagnostics.
	Logger logging.Logger
	// DefaultProvider is used when a request names none.
	DefaultProvider string
	// ReadHeaderTimeout guards slow-header clients on the listener.
	ReadHeaderTimeout time.Duration
}

// Server routes HTTP traffic to the pipeline.
type Server struct {
	factory  ExecutorFactory
	registry *constitution.Registry
	store    session.Store
	logger   logging.Logger

	defaultProvider   string
	readHeaderTimeout time.Duration

	router chi.Router
}

// New assembles the server and its routes.
func New(factory ExecutorFactory, registry *constitution.Registry, optFns ...func(o *Options)) *Server {
	opts := Options{
		Store:             session.NewInMemoryStore(),
		Logger:            logging.NoOpLogger{},
		DefaultProvider:   "anthropic",
		ReadHeaderTimeout: 10 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		factory:           factory,
		registry:          registry,
		store:             opts.Store,
		logger:            opts.Logger,
		defaultProvider:   opts.DefaultProvider,
		readHeaderTimeout: opts.ReadHeaderTimeout,
	}
	s.router = s.routes()
	return s
}

// WithStore sets the session store.
func WithStore(store session.Store) func(o *Options) {
	return func(o *Options) { o.Store = store }
}

// WithLogger sets the server's logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithDefaultProvider sets the provider used when requests name none.
func WithDefaultProvider(p string) func(o *Options) {
	return func(o *Options) { o.DefaultProvider = p }
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/constitutions", s.handleConstitutions)
		r.Post("/chat", s.handleChat)
		r.Post("/compare", s.handleCompare)
	})
	return r
}

// Handler returns the server's root handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks serving on addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: s.readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
