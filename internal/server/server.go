package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/oauth2"

	"github.com/teemow/garelay/internal/instrumentation"
	"github.com/teemow/garelay/internal/logging"
	"github.com/teemow/garelay/internal/relay"
	"github.com/teemow/garelay/internal/sink"
)

const (
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultWriteTimeout      = 60 * time.Second
	DefaultIdleTimeout       = 120 * time.Second

	// maxBodyBytes bounds JSON request bodies.
	maxBodyBytes = 1 << 20
)

// Authorizer builds consent URLs and exchanges authorization codes.
// *google.Client implements it.
type Authorizer interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// Relay runs queries against stored credentials. *relay.Dispatcher
// implements it.
type Relay interface {
	Query(ctx context.Context, req relay.Request) (interface{}, error)
	Disconnect(ctx context.Context, workspaceID string) error
}

// Config holds the dependencies of a Server.
type Config struct {
	ServiceName string
	Version     string

	Authorizer Authorizer
	Sink       sink.CredentialSink

	// Relay serves /query and /disconnect. Nil disables both.
	Relay Relay

	// MCP serves /mcp. Nil disables the endpoint.
	MCP http.Handler
	// MCPSecret, when set, is the bearer token /mcp requires.
	MCPSecret string

	AllowedOrigins []string

	Health  *HealthChecker
	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// Server is the relay's public HTTP surface.
type Server struct {
	config     Config
	logger     *slog.Logger
	health     *HealthChecker
	router     chi.Router
	httpServer *http.Server
}

// New validates cfg and builds the router.
func New(cfg Config) (*Server, error) {
	if cfg.Authorizer == nil {
		return nil, fmt.Errorf("authorizer is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("credential sink is required")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "garelay"
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	health := cfg.Health
	if health == nil {
		health = NewHealthChecker()
	}

	s := &Server{
		config: cfg,
		logger: logging.WithOperation(logger, "http"),
		health: health,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.metricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Mcp-Session-Id"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/healthz", s.health.LivenessHandler())
	r.Method(http.MethodGet, "/readyz", s.health.ReadinessHandler())
	r.Method(http.MethodGet, "/healthz/detailed", s.health.DetailedHealthHandler())

	r.Get("/auth/init", s.handleAuthInit)
	r.Get("/callback", s.handleCallback)
	r.Get("/auth/callback", s.handleCallback)

	if s.config.Relay != nil {
		r.Post("/query", s.handleQuery)
		r.Post("/disconnect", s.handleDisconnect)
	}
	if s.config.MCP != nil {
		r.With(requireBearer(s.config.MCPSecret, s.logger)).Handle("/mcp", s.config.MCP)
	}

	return r
}

// endpoints lists the routes reported by GET /.
func (s *Server) endpoints() []string {
	out := []string{"/health", "/healthz", "/readyz", "/auth/init", "/callback"}
	if s.config.Relay != nil {
		out = append(out, "/query", "/disconnect")
	}
	if s.config.MCP != nil {
		out = append(out, "/mcp")
	}
	return out
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	s.logger.Info("starting http server", "addr", addr, "endpoints", s.endpoints())
	return s.httpServer.ListenAndServe()
}

// Shutdown marks the server as not ready and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetShuttingDown()
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
