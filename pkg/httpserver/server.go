// Package httpserver exposes the operational HTTP surface of the inventory
// service: liveness and readiness probes. Requests are optionally traced as
// server spans when HTTP instrumentation is enabled.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Server is the operational HTTP server.
type Server interface {
	// Run starts the server and returns a shutdown function for graceful
	// termination.
	Run() Shutdown
	// RegisterRoute adds a route. Safe to call after Run.
	RegisterRoute(route Route)
	// ShutdownListener receives the server termination error, or nil after
	// a clean shutdown.
	ShutdownListener() chan error
	// ServeHTTP implements http.Handler for testing.
	ServeHTTP(http.ResponseWriter, *http.Request)
}

// Shutdown gracefully stops a running server.
type Shutdown func(ctx context.Context) error

// Middleware wraps an http.Handler.
type Middleware func(handler http.Handler) http.Handler

// Route is one registered HTTP route.
type Route struct {
	Method      string
	Path        string
	Handler     http.HandlerFunc
	Middlewares []Middleware
}

type server struct {
	http.Server
	router           *chi.Mux
	shutdownListener chan error
	mu               sync.Mutex
}

// New creates a server listening on the given port with the configured
// routes and global middlewares.
func New(options ...Option) Server {
	settings := defaultSettings
	for _, option := range options {
		settings = option(settings)
	}

	router := chi.NewRouter()
	srv := &server{
		Server: http.Server{
			Addr:              fmt.Sprintf(":%s", settings.port),
			Handler:           Wrap(router, settings.globalMiddlewares...),
			ReadTimeout:       settings.readTimeout,
			WriteTimeout:      settings.writeTimeout,
			IdleTimeout:       settings.idleTimeout,
			ReadHeaderTimeout: settings.readHeaderTimeout,
		},
		router:           router,
		shutdownListener: make(chan error, 1),
	}

	for _, route := range settings.routes {
		srv.registerRoute(route)
	}
	return srv
}

func (s *server) Run() Shutdown {
	go func() {
		err := s.Server.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			s.shutdownListener <- nil
			return
		}
		s.shutdownListener <- err
	}()
	return s.Server.Shutdown
}

func (s *server) ShutdownListener() chan error {
	return s.shutdownListener
}

func (s *server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.Server.Handler.ServeHTTP(w, req)
}

func (s *server) RegisterRoute(route Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerRoute(route)
}

func (s *server) registerRoute(route Route) {
	s.router.Method(route.Method, route.Path, Wrap(route.Handler, route.Middlewares...))
}

// Wrap applies middlewares to a handler; the first middleware is the
// outermost wrapper.
func Wrap(handler http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
