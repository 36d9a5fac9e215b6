// Package chat wires the room registry, the connection multiplexer and the
// message store into a mono module.
package chat

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/events"
	"github.com/example/realtime-chat/modules/auth"
	"github.com/example/realtime-chat/modules/broadcast"
	"github.com/example/realtime-chat/modules/cache"
	"github.com/example/realtime-chat/modules/room"
	"github.com/example/realtime-chat/modules/session"
	"github.com/example/realtime-chat/modules/store"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ChatModule owns the chat store, the room registry and every live
// connection.
type ChatModule struct {
	dbPath      string
	cacheConfig cache.Config
	logger      types.Logger

	authAdapter auth.AuthPort
	coordinator *broadcast.Coordinator
	eventBus    mono.EventBus

	db       *gorm.DB
	repo     *store.Repository
	redis    *redis.Client
	history  *cache.HistoryCache
	gateway  session.Gateway
	registry *room.Registry
	mux      *session.Multiplexer
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*ChatModule)(nil)
	_ mono.DependentModule       = (*ChatModule)(nil)
	_ mono.EventBusAwareModule   = (*ChatModule)(nil)
	_ mono.EventEmitterModule    = (*ChatModule)(nil)
	_ mono.HealthCheckableModule = (*ChatModule)(nil)
	_ room.Observer              = (*ChatModule)(nil)
)

// NewModule creates a new ChatModule.
func NewModule(logger types.Logger) *ChatModule {
	dbPath := os.Getenv("CHAT_DB_PATH")
	if dbPath == "" {
		dbPath = "chat.db"
	}
	return &ChatModule{
		dbPath:      dbPath,
		cacheConfig: cache.ConfigFromEnv(),
		logger:      logger,
	}
}

// Name returns the module name.
func (m *ChatModule) Name() string {
	return "chat"
}

// Dependencies returns the list of module dependencies.
func (m *ChatModule) Dependencies() []string {
	return []string{"auth"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *ChatModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authAdapter = auth.NewAuthAdapter(container)
	}
}

// SetCoordinator sets the broadcast coordinator (called from main.go).
func (m *ChatModule) SetCoordinator(c *broadcast.Coordinator) {
	m.coordinator = c
}

// SetEventBus receives the EventBus from the framework.
func (m *ChatModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *ChatModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.RoomCreatedV1.ToBase(),
		events.RoomDeletedV1.ToBase(),
	}
}

// Start opens the chat store, loads the active rooms and starts accepting
// connections. It fails if the store cannot be opened.
func (m *ChatModule) Start(ctx context.Context) error {
	if m.authAdapter == nil {
		return fmt.Errorf("auth dependency not set")
	}
	if m.coordinator == nil {
		return fmt.Errorf("broadcast coordinator not set")
	}

	db, repo, err := store.Open(m.dbPath, gormLogLevel())
	if err != nil {
		return err
	}
	m.db = db
	m.repo = repo

	m.gateway = store.NewGateway(repo)
	if m.cacheConfig.Enabled() {
		client, err := cache.Connect(ctx, m.cacheConfig)
		if err != nil {
			log.Printf("[chat] Warning: history cache disabled: %v", err)
		} else {
			m.redis = client
			m.history = cache.NewHistoryCache(m.gateway, client, m.cacheConfig.Prefix, m.cacheConfig.TTL)
			m.gateway = m.history
		}
	}

	m.registry = room.NewRegistry(repo, m.coordinator, m.logger)
	m.registry.SetObserver(m)
	if err := m.registry.Load(ctx); err != nil {
		return err
	}

	m.mux, err = session.NewMultiplexer(m.authAdapter, m.registry, m.gateway, m.coordinator, m.logger, session.ConfigFromEnv())
	if err != nil {
		return err
	}

	log.Printf("[chat] Module started (database: %s, rooms: %d, history cache: %t)",
		m.dbPath, m.registry.ActiveRooms(), m.history != nil)
	return nil
}

// Stop closes every connection, then the cache and the store.
func (m *ChatModule) Stop(ctx context.Context) error {
	if m.mux != nil {
		if err := m.mux.Shutdown(ctx); err != nil {
			log.Printf("[chat] Warning: connections did not close in time: %v", err)
		}
	}
	if m.redis != nil {
		if err := m.redis.Close(); err != nil {
			log.Printf("[chat] Error closing Redis connection: %v", err)
		}
	}
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[chat] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *ChatModule) Health(ctx context.Context) mono.HealthStatus {
	if m.repo == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}
	if err := m.repo.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	details := map[string]any{
		"database":     m.dbPath,
		"active_rooms": m.registry.ActiveRooms(),
		"connections":  m.mux.Count(),
	}
	if m.history != nil {
		details["history_cache"] = m.history.GetStats()
		if err := m.history.Ping(ctx); err != nil {
			details["history_cache_error"] = err.Error()
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}

// RoomCreated publishes a RoomCreated event.
func (m *ChatModule) RoomCreated(_ context.Context, r domain.Room) {
	if m.eventBus == nil {
		return
	}
	event := events.RoomCreatedEvent{
		RoomID:    r.ID,
		RoomName:  r.Name,
		CreatedBy: r.CreatedBy,
		Timestamp: r.CreatedAt,
	}
	if err := events.RoomCreatedV1.Publish(m.eventBus, event, nil); err != nil {
		log.Printf("[chat] Warning: failed to publish RoomCreated event: %v", err)
	}
}

// RoomDeleted drops the room's cached history and publishes a RoomDeleted
// event.
func (m *ChatModule) RoomDeleted(ctx context.Context, r domain.Room, deletedBy string, evicted int) {
	if m.history != nil {
		if err := m.history.Invalidate(ctx, r.ID); err != nil {
			log.Printf("[chat] Warning: failed to drop cached history of room %s: %v", r.ID, err)
		}
	}

	if m.eventBus == nil {
		return
	}
	event := events.RoomDeletedEvent{
		RoomID:    r.ID,
		RoomName:  r.Name,
		DeletedBy: deletedBy,
		Evicted:   evicted,
		Timestamp: time.Now().UTC(),
	}
	if err := events.RoomDeletedV1.Publish(m.eventBus, event, nil); err != nil {
		log.Printf("[chat] Warning: failed to publish RoomDeleted event: %v", err)
	}
}

// Registry returns the room registry. It is nil until the module starts.
func (m *ChatModule) Registry() *room.Registry {
	return m.registry
}

// Multiplexer returns the connection multiplexer. It is nil until the
// module starts.
func (m *ChatModule) Multiplexer() *session.Multiplexer {
	return m.mux
}

// History returns the message gateway used for history reads.
func (m *ChatModule) History() session.Gateway {
	return m.gateway
}

func gormLogLevel() logger.LogLevel {
	if os.Getenv("DB_DEBUG") != "" {
		return logger.Info
	}
	return logger.Silent
}
