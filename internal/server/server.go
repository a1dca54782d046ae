package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/entreepos/entree-web/internal/router"
	"github.com/entreepos/entree-web/internal/views"
)

// Options configures a Server. Only Address, Renderer and Routes are required.
type Options struct {
	Address  string
	Renderer *views.Renderer
	Routes   *router.Table
	// PublicDir serves /img, /css and /assets when set.
	PublicDir string
	// AuthBackendURL receives the login, logout and register form submissions.
	AuthBackendURL string
	Logger         *zap.Logger
}

type Server struct {
	address   string
	renderer  *views.Renderer
	routes    *router.Table
	publicDir string
	forms     http.Handler
	logger    *zap.Logger
	server    *http.Server
}

func NewServer(opts Options) (*Server, error) {
	if opts.Renderer == nil {
		return nil, errors.New("server: renderer is required")
	}
	if opts.Routes == nil {
		opts.Routes = router.DefaultTable()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		address:   opts.Address,
		renderer:  opts.Renderer,
		routes:    opts.Routes,
		publicDir: opts.PublicDir,
		logger:    opts.Logger,
	}

	if opts.AuthBackendURL != "" {
		target, err := url.Parse(opts.AuthBackendURL)
		if err != nil {
			return nil, fmt.Errorf("invalid auth backend url: %w", err)
		}
		proxy := httputil.NewSingleHostReverseProxy(target)
		proxy.ErrorHandler = func(w http.ResponseWriter, request *http.Request, err error) {
			s.logger.Error("Auth backend request failed",
				zap.String("path", request.URL.Path),
				zap.Error(err))
			http.Error(w, "Authentication service unavailable", http.StatusBadGateway)
		}
		s.forms = proxy
	}
	return s, nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

// handlePage renders whatever the route table resolves for the request path.
// Unmatched paths get the not-found view with a 404.
func (s *Server) handlePage(w http.ResponseWriter, request *http.Request) {
	match := s.routes.Resolve(request.URL.Path)

	var buf bytes.Buffer
	data := views.PageData{Path: request.URL.Path}
	if err := s.renderer.Render(&buf, match.Layout, match.View, data); err != nil {
		s.logger.Error("Render failed",
			zap.String("view", match.View.Name),
			zap.String("path", request.URL.Path),
			zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if !match.Found {
		w.WriteHeader(http.StatusNotFound)
	}
	buf.WriteTo(w)
}

func (s *Server) handleForm(w http.ResponseWriter, request *http.Request) {
	if s.forms == nil {
		s.logger.Warn("Form submission with no auth backend configured", zap.String("path", request.URL.Path))
		http.Error(w, "Authentication service not configured", http.StatusServiceUnavailable)
		return
	}
	s.forms.ServeHTTP(w, request)
}

func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	for _, route := range s.routes.Routes() {
		r.Get(route.Pattern, s.handlePage)
	}

	r.Post("/login", s.handleForm)
	r.Post("/register/register", s.handleForm)
	r.Get("/login/logout", s.handleForm)

	if s.publicDir != "" {
		files := http.FileServer(http.Dir(s.publicDir))
		for _, prefix := range []string{"/img/*", "/css/*", "/assets/*"} {
			r.Handle(prefix, files)
		}
	}

	r.NotFound(s.handlePage)
	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, request *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, request.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("Request",
				zap.String("request_id", middleware.GetReqID(request.Context())),
				zap.String("method", request.Method),
				zap.String("path", request.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		}()
		next.ServeHTTP(ww, request)
	})
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown
	shutdownChannel := make(chan os.Signal, 1)
	signal.Notify(shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownChannel)

	serveErrors := make(chan error, 1)
	go func() {
		s.logger.Info("Entree web listening", zap.String("address", s.address))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrors <- err
		}
	}()

	select {
	case err := <-serveErrors:
		return fmt.Errorf("server failed to start: %w", err)
	case <-shutdownChannel:
	}
	s.logger.Info("Shutting down server...")

	shutdownContext, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownContext); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("Server exited")
	return nil
}
