// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer: it connects handlers, middleware and
// routes, and owns the account store for the lifetime of the process.
//
// DEPENDENCY INJECTION FLOW:
// main.go creates:
//
//	config → logger → store (sqlite|postgres) → generator (openai|unavailable)
//
// Server.New creates:
//
//	quota.Gate, metrics → services → handlers → routes
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/excuse-me/internal/auth"
	"github.com/sakif/excuse-me/internal/config"
	"github.com/sakif/excuse-me/internal/generator"
	"github.com/sakif/excuse-me/internal/handler"
	"github.com/sakif/excuse-me/internal/metrics"
	"github.com/sakif/excuse-me/internal/middleware"
	"github.com/sakif/excuse-me/internal/quota"
	"github.com/sakif/excuse-me/internal/repository"
	"github.com/sakif/excuse-me/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store. Start closes it after the HTTP server has
// drained, so in-flight usage writes finish first.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	store   repository.Store
	limiter *middleware.RateLimiter
}

// New wires services, handlers and routes around store and gen.
func New(cfg *config.Config, logger *slog.Logger, store repository.Store, gen generator.Generator) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		store:   store,
		limiter: middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s.setupRoutes(tokens, gen, reg)
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz               → liveness + store ping
// GET    /metrics               → Prometheus
// POST   /auth/signup           → email/password signup
// POST   /auth/login            → email/password login
// POST   /auth/logout           → clear session
// GET    /auth/github/login     → start GitHub OAuth   (when configured)
// GET    /auth/github/callback  → finish GitHub OAuth  (when configured)
// GET    /api/options           → form choices
// GET    /api/me                → current account      [auth]
// GET    /api/usage             → today's quota        [auth]
// POST   /api/excuses           → generate an excuse   [auth, rate limited]
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID, RealIP
// 2. Metrics (outermost of ours, so it sees the final status)
// 3. Logger
// 4. Recoverer, so a panic becomes a 500 that Metrics and Logger record
// 5. CORS
func (s *Server) setupRoutes(tokens *auth.TokenService, gen generator.Generator, reg *prometheus.Registry) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Metrics(metrics.NewHTTP(reg)))
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// === Services ===
	gate := quota.New(s.config.Quota.Location)
	authService := service.NewAuthService(s.store, tokens, auth.NewPasswordService(), s.logger)
	accountService := service.NewAccountService(s.store, gate, s.logger)
	excuseService := service.NewExcuseService(
		s.store,
		gate,
		gen,
		service.NewLedgerWriter(s.store, gate),
		metrics.NewPipeline(reg),
		s.logger,
	)

	// === Handlers ===
	var github *auth.GitHubProvider
	if s.config.Auth.GitHubEnabled() {
		github = auth.NewGitHubProvider(
			s.config.Auth.GitHubClientID,
			s.config.Auth.GitHubClientSecret,
			s.config.Auth.GitHubCallbackURL,
		)
	}
	authHandler := handler.NewAuthHandler(authService, github, s.config.SecureCookies, s.logger)
	accountHandler := handler.NewAccountHandler(accountService)
	excuseHandler := handler.NewExcuseHandler(excuseService, s.logger)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	// === Routes ===
	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignup)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		if authHandler.GitHubEnabled() {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		}
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/options", excuseHandler.HandleOptions)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
			r.Get("/usage", accountHandler.HandleUsage)
			r.With(middleware.PerUser(s.limiter)).Post("/excuses", excuseHandler.HandleSubmit)
		})
	})
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (ShutdownTimeout)
// 3. Close the store
func (s *Server) Start() error {
	defer s.store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.limiter.Run(ctx, 5*time.Minute)

	// WriteTimeout leaves room for a full generation call.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.Generation.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DB.Driver),
			slog.String("quotaTimezone", s.config.Quota.Location.String()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancelShutdown()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
