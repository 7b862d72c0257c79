// Package server exposes the panel over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/fastpanel/fastpanel/internal/auth"
	"github.com/fastpanel/fastpanel/internal/metrics"
	"github.com/fastpanel/fastpanel/internal/models"
	"github.com/fastpanel/fastpanel/internal/service"
)

// DefaultMaxBodyBytes bounds JSON request bodies; source uploads carry
// whole playlists.
const DefaultMaxBodyBytes = 50 << 20

// Options configures a Server. Zero values select the defaults.
type Options struct {
	MaxBodyBytes int64
	// PublicRate and PublicBurst limit get.php and login per client IP.
	PublicRate  rate.Limit
	PublicBurst int
}

// Server holds dependencies for the HTTP API.
type Server struct {
	svc     *service.Service
	tokens  *auth.Tokens
	users   auth.Users
	opts    Options
	log     *logrus.Entry
	limiter *IPRateLimiter
	router  chi.Router
}

// New creates a Server and registers routes. Close releases the rate
// limiter.
func New(svc *service.Service, tokens *auth.Tokens, users auth.Users, opts Options, log *logrus.Entry) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.PublicRate <= 0 {
		opts.PublicRate = rate.Every(time.Second)
	}
	if opts.PublicBurst <= 0 {
		opts.PublicBurst = 20
	}
	s := &Server{
		svc:     svc,
		tokens:  tokens,
		users:   users,
		opts:    opts,
		log:     log,
		limiter: NewIPRateLimiter(opts.PublicRate, opts.PublicBurst),
	}
	s.routes()
	return s
}

// Close stops background work started by New.
func (s *Server) Close() {
	s.limiter.Close()
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(withCORS)
	r.Use(s.withLogging)
	r.Use(metrics.Middleware)

	r.Get("/health", s.handleHealth)
	r.Get("/api/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.With(s.rateLimited).Post("/api/auth/login", s.handleLogin)

	r.Route("/api/playlists", func(r chi.Router) {
		r.With(s.rateLimited).Get("/get.php", s.handleClientPlaylist)

		r.Group(func(r chi.Router) {
			r.Use(s.tokens.Middleware)
			r.Use(auth.RequireRoles(models.RoleSuperAdmin, models.RoleMasterReseller))

			r.Get("/", s.handleListPlaylists)
			r.Post("/", s.handleMergeSelection)
			r.Post("/remote", s.handleAddRemotePlaylist)
			r.Post("/sync-master", s.handleSyncMaster)
			r.Post("/analyze", s.handleAnalyze)
			r.Get("/m3u-folder-content", s.handleFolderContent)

			r.Get("/master-text", s.handleMasterText)
			r.With(auth.RequireRoles(models.RoleSuperAdmin)).Put("/master-text", s.handleUpdateMasterText)

			r.Route("/master", func(r chi.Router) {
				r.Post("/create-from-parsed", s.handleCreateFromParsed)
				r.Post("/ingest", s.handleIngest)
				r.Get("/streams", s.handleMasterStreams)
				r.Post("/streams", s.handleAddMasterStream)
				r.Put("/streams/{streamId}", s.handleUpdateMasterStream)
				r.Put("/streams/{streamId}/type", s.handleUpdateStreamType)
				r.Delete("/streams/{streamId}", s.handleDeleteMasterStream)
			})

			r.Delete("/{id}", s.handleDeletePlaylist)
			r.Post("/{id}/refresh", s.handleRefreshPlaylist)
		})
	})

	r.Route("/api/clients", func(r chi.Router) {
		r.Use(s.tokens.Middleware)
		r.Use(auth.RequireRoles(models.RoleSuperAdmin, models.RoleMasterReseller, models.RoleReseller))

		r.Get("/", s.handleListClients)
		r.Post("/", s.handleCreateClient)
		r.Delete("/{id}", s.handleDeleteClient)
		r.Put("/{id}/reset-password", s.handleResetPassword)
		r.Put("/{id}/renew", s.handleRenewClient)
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Use(s.tokens.Middleware)

		r.With(auth.RequireRoles(models.RoleSuperAdmin)).Get("/", s.handleListUsers)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRoles(models.RoleSuperAdmin, models.RoleMasterReseller))
			r.Post("/", s.handleCreateUser)
			r.Get("/{id}", s.handleGetUser)
			r.Put("/{id}", s.handleUpdateUser)
			r.Delete("/{id}", s.handleDeleteUser)
		})
	})

	r.Route("/api/tokens", func(r chi.Router) {
		r.With(s.rateLimited).Get("/validate/{token}", s.handleValidateToken)
		r.With(s.rateLimited).Post("/register", s.handleRegister)
		r.With(s.tokens.Middleware, auth.RequireRoles(models.RoleSuperAdmin, models.RoleMasterReseller)).
			Post("/generate", s.handleGenerateToken)
	})

	r.Route("/api/source-playlists", func(r chi.Router) {
		r.Use(s.tokens.Middleware)
		r.Use(auth.RequireRoles(models.RoleMasterReseller, models.RoleSuperAdmin))

		r.Get("/", s.handleListSources)
		r.Post("/", s.handleCreateSource)
		r.Delete("/{id}", s.handleDeleteSource)
		r.Get("/{id}/content", s.handleSourceContent)
		r.Put("/{id}/content", s.handleUpdateSourceContent)
	})

	r.Route("/api/dashboard", func(r chi.Router) {
		r.Use(s.tokens.Middleware)

		r.With(auth.RequireRoles(models.RoleSuperAdmin, models.RoleMasterReseller)).Get("/stats", s.handleStats)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRoles(models.RoleSuperAdmin))
			r.Get("/settings", s.handleSettings)
			r.Put("/settings", s.handleUpdateSettings)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Route not found.")
	})
	s.router = r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on addr.
// It blocks until the server is shut down or ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.WithError(err).Error("server shutdown")
		}
	}()

	s.log.WithField("addr", addr).Info("listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		s.log.WithError(err).Warn("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "FastPanel API is running!"})
}

// caller builds the service caller from the token claims set by the auth
// middleware.
func caller(r *http.Request) service.Caller {
	c := auth.ClaimsFromContext(r.Context())
	if c == nil {
		return service.Caller{}
	}
	return service.Caller{UserID: c.UserID, Role: c.Role}
}
