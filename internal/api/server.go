package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/smazurov/loopcast/internal/api/models"
	"github.com/smazurov/loopcast/internal/events"
	"github.com/smazurov/loopcast/internal/ffmpeg"
	"github.com/smazurov/loopcast/internal/logging"
	"github.com/smazurov/loopcast/internal/session"
	"github.com/smazurov/loopcast/internal/version"
)

// DefaultAuthHeader is the request header carrying the shared token.
const DefaultAuthHeader = "Authentication"

// SessionManager is the part of session.Manager the API drives.
type SessionManager interface {
	Start(ctx context.Context, req session.StartRequest) (session.Info, error)
	Stop(ctx context.Context, key string) error
	Get(key string) (session.Info, bool)
	List() []session.Info
}

// EncodingDefaults supplies the encoding params new sessions start from.
type EncodingDefaults interface {
	Get() ffmpeg.EncodingParams
}

// Options configures the API server.
type Options struct {
	Manager  SessionManager
	Encoding EncodingDefaults
	EventBus *events.Bus

	// AuthHeader names the header holding the token. Defaults to
	// DefaultAuthHeader.
	AuthHeader string
	// AuthToken is the shared secret. Empty disables authentication.
	AuthToken string

	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler
}

// Server is the HTTP API of the session manager.
type Server struct {
	api        huma.API
	router     *chi.Mux
	httpServer *http.Server
	manager    SessionManager
	encoding   EncodingDefaults
	eventBus   *events.Bus
	options    *Options
	logger     *slog.Logger

	mu sync.Mutex
	// closing is closed by Stop so long-lived event feeds return.
	closing chan struct{}
	stopped bool
}

// NewServer creates the API server and registers every route.
func NewServer(opts *Options) *Server {
	if opts.AuthHeader == "" {
		opts.AuthHeader = DefaultAuthHeader
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", opts.AuthHeader},
		MaxAge:         300,
	}))

	config := huma.DefaultConfig("loopcast API", version.String())
	config.Info.Description = "Loops local video files to RTMP ingest endpoints, one ffmpeg per stream key"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"tokenAuth": {
			Type: "apiKey",
			In:   "header",
			Name: opts.AuthHeader,
		},
	}

	api := humachi.New(router, config)

	server := &Server{
		api:      api,
		router:   router,
		manager:  opts.Manager,
		encoding: opts.Encoding,
		eventBus: opts.EventBus,
		options:  opts,
		logger:   logging.GetLogger("api"),
		closing:  make(chan struct{}),
	}

	api.UseMiddleware(HTTPLoggingMiddleware)

	if opts.AuthToken != "" {
		api.UseMiddleware(server.tokenAuthMiddleware(opts.AuthHeader, opts.AuthToken))
	} else {
		server.logger.Warn("No auth token configured, API is unauthenticated")
	}

	if opts.MetricsHandler != nil {
		router.Handle("/metrics", opts.MetricsHandler)
	}

	server.registerRoutes()

	return server
}

// tokenAuthMiddleware rejects requests whose header does not carry token.
// EventSource and WebSocket clients cannot set headers, so the token query
// parameter is accepted as a fallback.
func (s *Server) tokenAuthMiddleware(header, token string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		// Skip auth for operations without security requirements
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		provided := ctx.Header(header)
		if provided == "" {
			provided = ctx.Query("token")
		}
		if !tokenMatches(provided, token) {
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next(ctx)
	}
}

// authorized applies the token check to plain http handlers.
func (s *Server) authorized(r *http.Request) bool {
	if s.options.AuthToken == "" {
		return true
	}
	provided := r.Header.Get(s.options.AuthHeader)
	if provided == "" {
		provided = r.URL.Query().Get("token")
	}
	return tokenMatches(provided, s.options.AuthToken)
}

func tokenMatches(provided, token string) bool {
	return provided != "" && subtle.ConstantTimeCompare([]byte(provided), []byte(token)) == 1
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves the API on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting loopcast API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	s.httpServer = srv
	s.mu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes the event feeds and shuts the HTTP server down, waiting for
// in-flight requests until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.closing)
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("Stopping API server")
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	// Health check endpoint - no auth required
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
				Streams: len(s.manager.List()),
			},
		}, nil
	})

	// Version endpoint - no auth required
	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				BuildID:   info.BuildID,
				GoVersion: info.GoVersion,
				Compiler:  info.Compiler,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerStreamRoutes()
	s.registerSSERoutes()
	s.registerWebSocketRoutes()
}

// withAuth returns security requirement for token auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"tokenAuth": {}},
	}
}
