package gateway

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/coastalgrand/roomstream/component"
	"github.com/coastalgrand/roomstream/errors"
	"github.com/coastalgrand/roomstream/health"
	"github.com/coastalgrand/roomstream/store"
)

// Config holds the HTTP server settings.
type Config struct {
	Addr         string        `json:"addr"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// Server is the HTTP query API component.
type Server struct {
	cfg    Config
	stores store.Stores
	rooms  *RoomCache

	// checker aggregates watched component health for /healthz
	checker *health.Checker

	metricsHandler http.Handler

	listener net.Listener
	server   *http.Server
	logger   *slog.Logger

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	wg        sync.WaitGroup
}

// NewServer creates the query API server. The rooms cache is required;
// watched components appear on /healthz.
func NewServer(
	cfg Config,
	stores store.Stores,
	rooms *RoomCache,
	watched []component.Discoverable,
	deps *component.Dependencies,
) (*Server, error) {
	if rooms == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "gateway", "NewServer", "room cache required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":3000"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}

	s := &Server{
		cfg:     cfg,
		stores:  stores,
		rooms:   rooms,
		checker: health.NewChecker("roomstream", watched),
		logger:  deps.GetLoggerWithComponent("gateway"),
	}
	if deps.MetricsRegistry != nil {
		s.metricsHandler = deps.MetricsRegistry.Handler()
	}
	return s, nil
}

// Meta implements component.Discoverable.
func (s *Server) Meta() component.Metadata {
	return component.Metadata{
		Name:        "gateway",
		Type:        "gateway",
		Description: "HTTP query API for hotels, rooms and logs",
		Version:     "1.0.0",
	}
}

// Health implements component.Discoverable.
func (s *Server) Health() component.HealthStatus {
	s.mu.Lock()
	running := s.running
	started := s.startedAt
	s.mu.Unlock()

	var uptime time.Duration
	if running {
		uptime = time.Since(started)
	}
	return component.HealthStatus{
		Healthy:   running,
		LastCheck: time.Now(),
		Uptime:    uptime,
	}
}

// Initialize binds the listener and builds the router.
func (s *Server) Initialize() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.WrapFatal(err, "gateway", "Initialize", "bind listener")
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      s.router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	return nil
}

// Addr returns the bound listen address. Valid after Initialize.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Use(recovery(s.logger))
	r.Use(requestID)
	r.Use(requestLogging(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/hotels", s.listHotels)
		r.Get("/hotel/{hotelId}", s.getHotel)
		r.Put("/hotel/{hotelId}", s.updateHotel)
		r.Get("/rooms/{hotelId}", s.listRooms)
		r.Get("/attendance/{hotelId}", s.listAttendance)
		r.Get("/alerts/{hotelId}", s.listAlerts)
		r.Get("/denied_access/{hotelId}", s.listDenials)
		r.Get("/activity/{hotelId}", s.listActivity)
		r.Get("/users/{hotelId}", s.listUsers)
		r.Get("/cards/{hotelId}", s.listCards)
	})

	r.Get("/healthz", s.healthz)
	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler)
	}

	return r
}

// Start serves the API.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.Wrap(errors.ErrAlreadyStarted, "gateway", "Start", "start server")
	}
	if s.listener == nil {
		return errors.Wrap(errors.ErrNotStarted, "gateway", "Start", "initialize before start")
	}
	s.running = true
	s.startedAt = time.Now()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("serve failed", "error", err)
		}
	}()

	s.logger.Info("gateway started", "addr", s.Addr())
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		_ = s.server.Close()
		return errors.Wrap(err, "gateway", "Stop", "shutdown server")
	}
	s.wg.Wait()

	s.logger.Info("gateway stopped")
	return nil
}

var _ component.LifecycleComponent = (*Server)(nil)
