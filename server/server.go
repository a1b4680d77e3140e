// Package server owns the HTTP surface: routing, the session gate, and
// the login, archive, and app handlers.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/reporover/reporover/archive"
	"github.com/reporover/reporover/githubapi"
	"github.com/reporover/reporover/internal/config"
	"github.com/reporover/reporover/session"
)

// Server wires the router, the session gate, and the handlers together.
type Server struct {
	config   *config.Config
	log      zerolog.Logger
	sessions *session.Manager
	identity *githubapi.Client
	archives *archive.Service
	gate     *SessionGate
	router   chi.Router
}

// New creates the server and mounts all routes.
func New(cfg *config.Config, log zerolog.Logger, sessions *session.Manager, identity *githubapi.Client, archives *archive.Service) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if sessions == nil {
		return nil, errors.New("[Server New] session manager is required")
	}
	if identity == nil {
		return nil, errors.New("[Server New] identity client is required")
	}
	if archives == nil {
		return nil, errors.New("[Server New] archive service is required")
	}

	s := &Server{
		config:   cfg,
		log:      log,
		sessions: sessions,
		identity: identity,
		archives: archives,
		gate:     NewSessionGate(sessions, cfg.Gate.Exclusions, log),
	}
	if err := s.initRoutes(); err != nil {
		return nil, errors.Wrap(err, "[Server New] failed to initialise routes")
	}
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) initRoutes() error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := NewMetrics(registry)

	loginHandler, err := s.LoginPageHandler()
	if err != nil {
		return err
	}
	loginSubmit, err := s.LoginSubmitHandler()
	if err != nil {
		return err
	}
	index, err := s.IndexHandler()
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(s.gate.Middleware)

	// Ungated surface (on the gate's exclusion list).
	r.Get(RouteHealthz, s.HealthzHandler())
	r.Method(http.MethodGet, RouteMetrics, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Handle(RouteStatic+"*", http.StripPrefix(RouteStatic, http.FileServer(http.Dir(s.config.Dirs.Static))))

	// App pages.
	r.Get(RouteRoot, index)
	r.Get(RouteLogin, loginHandler)
	r.Post(RouteLogin, loginSubmit)
	r.Post(RouteLogout, s.LogoutHandler())

	// Archive API.
	r.Post(RouteAPIClone, s.CloneHandler())
	r.Get(RouteAPIArchives, s.DownloadArchiveHandler())
	r.Post(RouteAPIPush, s.PushHandler())

	s.router = r
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}
