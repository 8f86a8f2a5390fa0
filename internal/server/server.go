// Package server is paramtrail's HTTP host. It captures tracked parameters
// from every page request into the visitor's session and serves the
// endpoints that read them back: JSON values, composed links, redirects,
// prefilled third-party forms and a live capture inspector.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/conneroisu/paramtrail/internal/capture"
	"github.com/conneroisu/paramtrail/internal/compose"
	"github.com/conneroisu/paramtrail/internal/config"
	"github.com/conneroisu/paramtrail/internal/errors"
	"github.com/conneroisu/paramtrail/internal/forms"
	"github.com/conneroisu/paramtrail/internal/integration"
	"github.com/conneroisu/paramtrail/internal/logging"
	"github.com/conneroisu/paramtrail/internal/metrics"
	"github.com/conneroisu/paramtrail/internal/middleware"
	"github.com/conneroisu/paramtrail/internal/params"
	"github.com/conneroisu/paramtrail/internal/render"
	"github.com/conneroisu/paramtrail/internal/session"
)

// minSweepInterval bounds how often expired sessions are swept.
const minSweepInterval = time.Minute

// Server wires the capture pipeline and its readers behind net/http.
type Server struct {
	mu     sync.RWMutex
	config *config.Config
	forms  map[string]forms.Form

	logger     logging.Logger
	errHandler *errors.ErrorHandler
	metrics    *metrics.Metrics
	source     *params.Source
	sessions   *session.Manager
	pipeline   *capture.Pipeline
	composer   *compose.Composer
	builder    *forms.Builder
	renderer   *render.Renderer
	hub        *integration.Hub
	jsonAPI    *integration.JSONCapability
	templ      *integration.TemplCapability
	inspector  *Inspector

	httpServer   *http.Server
	shutdownOnce sync.Once
}

// New builds a Server from a validated configuration.
func New(cfg *config.Config, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("server")

	reg, err := cfg.BuildRegistry()
	if err != nil {
		return nil, err
	}
	formSet, err := cfg.BuildForms()
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:     cfg,
		forms:      formSet,
		logger:     logger,
		errHandler: errors.NewErrorHandler(logger),
		source:     params.NewSource(reg),
	}

	if cfg.Metrics.Enabled {
		s.metrics = metrics.New()
	}

	s.sessions = session.NewManager(session.Options{
		CookieName:  cfg.Session.CookieName,
		IdleTimeout: cfg.Session.IdleTimeout,
		MaxSessions: cfg.Session.MaxSessions,
		Secure:      cfg.Session.Secure,
		OnError: func(r *http.Request, err error) {
			s.errHandler.Handle(r.Context(), err)
		},
	})

	opts := []capture.Option{capture.WithLogger(logger), capture.WithMetrics(s.metrics)}
	if cfg.Inspector.Enabled {
		s.inspector = NewInspector(cfg.Inspector.AllowedOrigins, logger)
		opts = append(opts, capture.WithObserver(s.inspector.Observe))
	}
	s.pipeline = capture.NewPipeline(s.source, opts...)
	s.composer = compose.New(s.source, s.metrics)
	s.builder = forms.NewBuilder(s.source, s.metrics)
	s.renderer = render.New(s.source, s.composer)

	s.hub = integration.NewHub(logger)
	s.jsonAPI = integration.NewJSONCapability()
	s.templ = integration.NewTemplCapability()
	for _, c := range []integration.Capability{s.templ, s.jsonAPI} {
		if err := s.hub.Register(c); err != nil {
			return nil, errors.NewInternalError(errors.ErrCodeConfigInvalid, "failed to register capability", err)
		}
	}
	s.hub.Attach(context.Background(), integration.NewSessionSource(s.source, s.renderer))

	return s, nil
}

// Source returns the registry holder shared by every component.
func (s *Server) Source() *params.Source {
	return s.source
}

// Sessions returns the session manager.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// Hub returns the host integration hub.
func (s *Server) Hub() *integration.Hub {
	return s.hub
}

// Handler returns the complete HTTP handler.
func (s *Server) Handler() http.Handler {
	s.mu.RLock()
	cfg := s.config
	s.mu.RUnlock()

	// Pages and API routes run inside the session and capture middleware.
	tracked := http.NewServeMux()
	tracked.HandleFunc("GET /{$}", s.handleIndex)
	tracked.HandleFunc("GET /api/params", s.jsonAPI.ServeHTTP)
	tracked.HandleFunc("POST /api/params", s.handleParamsPost)
	tracked.HandleFunc("GET /api/compose", s.handleCompose)
	tracked.HandleFunc("GET /go/{name}", s.handleGo)
	tracked.HandleFunc("GET /forms/{name}", s.handleForm)

	sessionChain := middleware.NewChain(
		middleware.CORS(cfg.Inspector.AllowedOrigins),
		s.sessions.Middleware,
		capture.Middleware(s.pipeline),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("DELETE /api/params", s.handleParamsDelete)
	if s.metrics != nil {
		mux.Handle("GET "+cfg.Metrics.Path, s.metrics.Handler())
	}
	if s.inspector != nil {
		mux.Handle("GET /inspect", s.inspector)
	}
	mux.Handle("/", sessionChain.Apply(tracked))

	return middleware.NewChain(
		middleware.Recover(s.logger),
		middleware.Logging(s.logger),
		middleware.SecurityHeaders(),
	).Apply(mux)
}

// Reload swaps in a new parameter registry and form set. Server, session
// and inspector settings take effect only on restart.
func (s *Server) Reload(cfg *config.Config) error {
	reg, err := cfg.BuildRegistry()
	if err != nil {
		return err
	}
	formSet, err := cfg.BuildForms()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.forms = formSet
	s.config.Parameters = cfg.Parameters
	s.config.Forms = cfg.Forms
	s.config.Obfuscation = cfg.Obfuscation
	s.mu.Unlock()

	s.source.Swap(reg)
	s.logger.Info(context.Background(), "Parameter registry swapped",
		"parameters", reg.Len(),
		"forms", len(formSet),
		"obfuscation", reg.ObfuscationEnabled())
	return nil
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.RLock()
	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
	timeout := s.config.Server.ShutdownTimeout
	s.mu.RUnlock()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, timeout)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	go s.sweepLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown stops accepting requests, closes inspector clients and drops
// every session.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		if s.inspector != nil {
			s.inspector.Close()
		}

		s.mu.RLock()
		srv := s.httpServer
		s.mu.RUnlock()
		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil {
				shutdownErr = fmt.Errorf("server shutdown: %w", err)
			}
		}

		s.sessions.Close()
		s.metrics.SetSessions(0)
	})
	return shutdownErr
}

func (s *Server) sweepLoop(ctx context.Context) {
	s.mu.RLock()
	interval := s.config.Session.IdleTimeout / 2
	s.mu.RUnlock()
	if interval < minSweepInterval {
		interval = minSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.sessions.Sweep(); removed > 0 {
				s.logger.Debug(ctx, "Expired sessions swept", "removed", removed)
			}
			s.metrics.SetSessions(s.sessions.Len())
		}
	}
}
