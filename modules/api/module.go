// Package api exposes the chat over HTTP and websockets with Fiber.
package api

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/example/realtime-chat/modules/auth"
	"github.com/example/realtime-chat/modules/room"
	"github.com/example/realtime-chat/modules/session"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
)

// ChatProvider supplies the chat module's services once it has started.
type ChatProvider interface {
	Registry() *room.Registry
	Multiplexer() *session.Multiplexer
	History() session.Gateway
}

// APIModule is the HTTP API module with websocket support.
type APIModule struct {
	app         *fiber.App
	port        string
	logger      types.Logger
	authAdapter auth.AuthPort
	chat        ChatProvider
	stats       DeliveryStats
	handlers    *Handlers
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule(logger types.Logger) *APIModule {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	return &APIModule{
		port:   port,
		logger: logger,
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies. The chat
// dependency only orders startup; its services are injected with SetChat.
func (m *APIModule) Dependencies() []string {
	return []string{"auth", "chat"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authAdapter = auth.NewAuthAdapter(container)
	}
}

// SetChat sets the chat module (called from main.go).
func (m *APIModule) SetChat(p ChatProvider) {
	m.chat = p
}

// SetDeliveryStats sets the source of broadcast counters exported on
// /metrics (called from main.go).
func (m *APIModule) SetDeliveryStats(stats DeliveryStats) {
	m.stats = stats
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.authAdapter == nil {
		return fmt.Errorf("auth dependency not set")
	}
	if m.chat == nil || m.chat.Registry() == nil || m.chat.Multiplexer() == nil {
		return fmt.Errorf("chat module not started")
	}

	m.handlers = NewHandlers(m.authAdapter, m.chat.Registry(), m.chat.History(), m.chat.Multiplexer(), m.logger)
	m.app = newApp(m.handlers, m.authAdapter, newMetricsRegistry(m.handlers.rooms, m.handlers.conns, m.stats))

	go func() {
		if err := m.app.Listen(":" + m.port); err != nil {
			log.Printf("[api] HTTP server error: %v", err)
		}
	}()

	log.Printf("[api] HTTP server started on :%s", m.port)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(_ context.Context) error {
	if m.app == nil {
		return nil
	}
	log.Println("[api] Shutting down HTTP server...")
	return m.app.Shutdown()
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	details := map[string]any{
		"port": m.port,
	}
	if m.handlers != nil {
		details["connections"] = m.handlers.conns.Count()
	}
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: details,
	}
}

// newApp builds the Fiber app with middleware and routes.
func newApp(h *Handlers, authenticator Authenticator, reg *prometheus.Registry) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Next:   websocket.IsWebSocketUpgrade,
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(HealthResponse{
			Status: "healthy",
			Details: map[string]any{
				"module":      "api",
				"connections": h.conns.Count(),
			},
		})
	})

	app.Get("/metrics", metricsHandler(reg))

	app.Use("/ws", UpgradeGuard())
	app.Get("/ws", websocket.New(h.WebSocket))

	v1 := app.Group("/api/v1")

	authRoutes := v1.Group("/auth")
	authRoutes.Post("/register", h.Register)
	authRoutes.Post("/login", h.Login)
	authRoutes.Post("/refresh", h.Refresh)

	rooms := v1.Group("/rooms", AuthMiddleware(authenticator))
	rooms.Get("/", h.ListRooms)
	rooms.Post("/", h.CreateRoom)
	rooms.Get("/:id", h.GetRoom)
	rooms.Delete("/:id", h.DeleteRoom)
	rooms.Get("/:id/history", h.History)
	rooms.Get("/:id/members", h.Members)

	return app
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}
