package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taskd-project/taskd/internal/api/handlers"
	apiMiddleware "github.com/taskd-project/taskd/internal/api/middleware"
	"github.com/taskd-project/taskd/internal/api/websocket"
	"github.com/taskd-project/taskd/internal/config"
	"github.com/taskd-project/taskd/internal/events"
	"github.com/taskd-project/taskd/internal/messages"
	"github.com/taskd-project/taskd/internal/state"
)

// Server is the daemon's HTTP control plane: task CRUD and control
// endpoints, daemon-wide admin endpoints, a websocket event stream and
// an optional Prometheus /metrics endpoint.
type Server struct {
	router       *chi.Mux
	state        *state.State
	queue        messages.Queue
	config       *config.Config
	taskHandler  *handlers.TaskHandler
	adminHandler *handlers.AdminHandler
	wsHub        *websocket.Hub
	wsHandler    *websocket.Handler
	publisher    events.Publisher
}

// NewServer creates the HTTP server, including its own websocket hub.
// redisPublisher is the optional Redis event mirror (nil when disabled);
// the server combines it with its hub into a single fan-out publisher
// so every task event reaches both websocket clients and Redis
// subscribers. Use Publisher() to wire the same fan-out into the task
// handler's tick loop.
func NewServer(cfg *config.Config, s *state.State, queue messages.Queue, redisPublisher events.Publisher) *Server {
	wsHub := websocket.NewHub()
	publisher := events.FanOut{wsHub, redisPublisher}

	taskHandler := handlers.NewTaskHandler(s, queue)
	taskHandler.SetPublisher(publisher)

	srv := &Server{
		router:       chi.NewRouter(),
		state:        s,
		queue:        queue,
		config:       cfg,
		taskHandler:  taskHandler,
		adminHandler: handlers.NewAdminHandler(s, queue),
		wsHub:        wsHub,
		wsHandler:    websocket.NewHandler(wsHub),
		publisher:    publisher,
	}

	srv.setupMiddleware()
	srv.setupRoutes()

	return srv
}

// Publisher returns the fan-out publisher combining the websocket hub
// and the optional Redis mirror, for wiring into the task handler.
func (s *Server) Publisher() events.Publisher {
	return s.publisher
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(apiMiddleware.RequestLogger())
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Heartbeat("/health"))

	if s.config.Auth.Enabled {
		authCfg := &apiMiddleware.AuthConfig{
			Enabled:   true,
			JWTSecret: s.config.Auth.JWTSecret,
			APIKeys:   make(map[string]bool, len(s.config.Auth.APIKeys)),
		}
		for _, key := range s.config.Auth.APIKeys {
			authCfg.APIKeys[key] = true
		}
		s.router.Use(apiMiddleware.Auth(authCfg))
	}
}

func (s *Server) setupRoutes() {
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))

		if s.config.Server.RateLimitRPS > 0 {
			r.Use(apiMiddleware.ClientRateLimit(s.config.Server.RateLimitRPS))
		}

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", s.taskHandler.Create)
			r.Get("/", s.taskHandler.List)
			r.Get("/{taskID}", s.taskHandler.Get)
			r.Post("/{taskID}/pause", s.taskHandler.Pause)
			r.Post("/{taskID}/start", s.taskHandler.Start)
			r.Post("/{taskID}/kill", s.taskHandler.Kill)
			r.Post("/{taskID}/send", s.taskHandler.Send)
		})
	})

	s.router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))

		r.Get("/health", s.adminHandler.HealthCheck)
		r.Post("/pause", s.adminHandler.Pause)
		r.Post("/resume", s.adminHandler.Resume)
		r.Post("/reset", s.adminHandler.Reset)
		r.Get("/groups", s.adminHandler.GetGroups)
		r.Put("/groups", s.adminHandler.UpdateGroups)
	})

	s.router.Get("/ws", s.wsHandler.ServeWS)

	if s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, promhttp.Handler())
	}
}

// Start starts the websocket hub's dispatch loop.
func (s *Server) Start(ctx context.Context) {
	s.wsHub.Run(ctx)
}

// Stop stops the websocket hub.
func (s *Server) Stop() {
	s.wsHub.Stop()
}

// Router returns the chi router.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Hub returns the websocket hub, e.g. for wiring it into an
// events.FanOut alongside a Redis mirror.
func (s *Server) Hub() *websocket.Hub {
	return s.wsHub
}
