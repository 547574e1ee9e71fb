package dash

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/quickcourt/quickcourt/internal/api"
	"github.com/quickcourt/quickcourt/internal/guard"
	"github.com/quickcourt/quickcourt/internal/models"
	"github.com/quickcourt/quickcourt/internal/session"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	selectRolePath = "/select-role"
	logoutPath     = "/logout"
)

// reservedPaths are served by the dashboard itself and may not appear in the route table
var reservedPaths = []string{selectRolePath, logoutPath, "/health", "/api/session"}

// Authenticator is the part of the backend API the dashboard calls directly
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	UpdateRole(ctx context.Context, bearer, role string) (*models.User, error)
}

// Options configures the dashboard listener
type Options struct {
	Addr           string
	AllowedOrigins []string
}

// Server is the local dashboard bound to the CLI session
type Server struct {
	router   *gin.Engine
	sessions *session.Manager
	auth     Authenticator
	routes   *guard.Table
	opts     Options
	logger   zerolog.Logger
}

// New creates a dashboard serving every route of routes behind the guard
func New(sessions *session.Manager, auth Authenticator, routes *guard.Table, opts Options, logger zerolog.Logger) (*Server, error) {
	for _, p := range reservedPaths {
		if _, ok := routes.Match(p); ok {
			return nil, fmt.Errorf("route table may not declare reserved path %s", p)
		}
	}

	s := &Server{
		sessions: sessions,
		auth:     auth,
		routes:   routes,
		opts:     opts,
		logger:   logger,
	}

	if err := s.setupRouter(); err != nil {
		return nil, err
	}

	return s, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() error {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	// Add middleware
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	if len(s.opts.AllowedOrigins) > 0 {
		s.router.Use(cors.New(cors.Config{
			AllowOrigins:     s.opts.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	tmpl, err := template.New("").ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	s.router.SetHTMLTemplate(tmpl)

	// Unguarded endpoints
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/api/session", s.getSession)
	s.router.POST(guard.LoginPath, s.login)
	s.router.POST(logoutPath, s.logout)

	// Guarded pages from the route table
	s.routes.Register(s.router, s.sessions, s.logger, map[string]gin.HandlerFunc{
		guard.LoginPath: s.loginPage,
	}, s.page)
	if _, ok := s.routes.Match(guard.LoginPath); !ok {
		s.router.GET(guard.LoginPath, s.loginPage)
	}

	// Role selection requires a session but no particular role
	selectRole := guard.Route{Path: selectRolePath, Title: "Select your role"}
	s.router.GET(selectRolePath, guard.Middleware(s.sessions, selectRole, s.logger), s.selectRolePage)
	s.router.POST(selectRolePath, guard.Middleware(s.sessions, selectRole, s.logger), s.selectRole)

	return nil
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Dashboard request")
	}
}

// Handler returns the dashboard's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve initializes the session in the background and serves on ln until
// ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := s.sessions.Initialize(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Session initialization failed")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting dashboard")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("dashboard server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info().Msg("Shutting down dashboard...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down dashboard: %w", err)
	}

	return nil
}
