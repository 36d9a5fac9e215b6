package broadcast

import (
	"context"
	"fmt"
	"log"

	"github.com/example/realtime-chat/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// BroadcastModule owns the Coordinator and turns room lifecycle events into
// lobby notices for every connected session.
type BroadcastModule struct {
	coordinator *Coordinator
}

// Compile-time interface checks.
var _ mono.Module = (*BroadcastModule)(nil)
var _ mono.EventConsumerModule = (*BroadcastModule)(nil)
var _ mono.HealthCheckableModule = (*BroadcastModule)(nil)

// NewModule creates a new BroadcastModule.
func NewModule() *BroadcastModule {
	return &BroadcastModule{
		coordinator: NewCoordinator(),
	}
}

// Name returns the module name.
func (m *BroadcastModule) Name() string {
	return "broadcast"
}

// Start starts the module.
func (m *BroadcastModule) Start(_ context.Context) error {
	log.Println("[broadcast] Module started")
	return nil
}

// Stop stops the module.
func (m *BroadcastModule) Stop(_ context.Context) error {
	delivered, dropped := m.coordinator.Stats()
	log.Printf("[broadcast] Module stopped - %d sessions connected, %d delivered, %d dropped",
		m.coordinator.Count(), delivered, dropped)
	return nil
}

// Health returns the health status.
func (m *BroadcastModule) Health(_ context.Context) mono.HealthStatus {
	delivered, dropped := m.coordinator.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_sessions": m.coordinator.Count(),
			"delivered":          delivered,
			"dropped":            dropped,
		},
	}
}

// RegisterEventConsumers registers event handlers.
func (m *BroadcastModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomCreatedV1, m.handleRoomCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomCreated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomDeletedV1, m.handleRoomDeleted, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomDeleted consumer: %w", err)
	}

	log.Println("[broadcast] Registered event consumers: RoomCreated, RoomDeleted")
	return nil
}

func (m *BroadcastModule) handleRoomCreated(_ context.Context, event events.RoomCreatedEvent, _ *mono.Msg) error {
	p := System(EventRoomCreated, event.RoomID, event.CreatedBy, "")
	p.Content = event.RoomName
	p.Timestamp = &event.Timestamp

	n := m.coordinator.BroadcastAll(p)
	log.Printf("[broadcast] Room %s created, notified %d sessions", event.RoomName, n)
	return nil
}

// Evicted sessions already got a room_deleted notice from the registry;
// the lobby notice uses its own event so clients can tell them apart.
func (m *BroadcastModule) handleRoomDeleted(_ context.Context, event events.RoomDeletedEvent, _ *mono.Msg) error {
	p := System(EventRoomRemoved, event.RoomID, event.DeletedBy, "")
	p.Content = event.RoomName
	p.Timestamp = &event.Timestamp

	n := m.coordinator.BroadcastAll(p)
	log.Printf("[broadcast] Room %s deleted (%d evicted), notified %d sessions", event.RoomName, event.Evicted, n)
	return nil
}

// Coordinator returns the coordinator shared with the chat module.
func (m *BroadcastModule) Coordinator() *Coordinator {
	return m.coordinator
}
