// Package session owns live realtime connections: it authenticates them,
// runs their inbound events against the room registry and routes their
// messages through the persistence gateway and the broadcast path.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/domain/user"
	"github.com/example/realtime-chat/modules/broadcast"
	"github.com/example/realtime-chat/modules/room"
	"github.com/go-monolith/mono/pkg/types"
	nanoid "github.com/jaevor/go-nanoid"
)

// Session errors.
var (
	ErrRateLimited  = errors.New("sending too fast")
	ErrUnknownEvent = errors.New("unknown event type")
	ErrClosed       = errors.New("connection closed")
)

// Authenticator resolves a bearer credential to a user identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (user.Identity, error)
}

// Rooms is the room registry as seen by connections.
type Rooms interface {
	Join(ctx context.Context, m room.Member, roomID string) (*chat.Room, error)
	Leave(m room.Member, roomID string) error
	Disconnect(m room.Member) bool
	RoomOf(connID string) (string, bool)
	GetRoom(ctx context.Context, roomID string) (*chat.Room, error)
	ListRooms(ctx context.Context) ([]chat.Room, error)
	Members(ctx context.Context, roomID string) ([]chat.RoomMember, error)
	Present(roomID string) []user.Identity
}

// Gateway stores messages and reads room history.
type Gateway interface {
	StoreMessage(ctx context.Context, roomID string, sender user.Identity, body string) (*chat.Message, error)
	FetchHistory(ctx context.Context, roomID string, limit int, order chat.HistoryOrder) ([]chat.Message, error)
}

// Fanout delivers payloads to rooms and tracks connected sessions.
type Fanout interface {
	Connect(s broadcast.Subscriber)
	Disconnect(id string)
	Broadcast(roomID string, p broadcast.Payload) int
}

// EventKind names an inbound event.
type EventKind string

// Inbound event kinds.
const (
	EventJoin    EventKind = "join"
	EventLeave   EventKind = "leave"
	EventSend    EventKind = "message"
	EventHistory EventKind = "history"
	EventMembers EventKind = "members"
	EventRooms   EventKind = "rooms"
)

// Event is one inbound event of a connection.
type Event struct {
	Kind   EventKind `json:"type"`
	RoomID string    `json:"room_id,omitempty"`
	Body   string    `json:"content,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Order  string    `json:"order,omitempty"`
}

// Multiplexer owns every live session.
type Multiplexer struct {
	auth    Authenticator
	rooms   Rooms
	gateway Gateway
	fanout  Fanout
	logger  types.Logger
	config  Config
	newID   func() string

	sessions sync.Map // connID -> *Session
}

// NewMultiplexer creates a Multiplexer.
func NewMultiplexer(auth Authenticator, rooms Rooms, gateway Gateway, fanout Fanout, logger types.Logger, cfg Config) (*Multiplexer, error) {
	newID, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("failed to create id generator: %w", err)
	}
	return &Multiplexer{
		auth:    auth,
		rooms:   rooms,
		gateway: gateway,
		fanout:  fanout,
		logger:  logger,
		config:  cfg,
		newID:   newID,
	}, nil
}

// Open authenticates credential and admits the connection. On failure the
// connection gets an error payload and its transport is closed; the
// returned error wraps user.ErrUnauthenticated in that case.
func (m *Multiplexer) Open(ctx context.Context, credential string, t Transport) (*Session, error) {
	identity, err := m.auth.Authenticate(ctx, credential)
	if err != nil {
		m.logger.Info("Connection refused", "error", err)
		if werr := t.WriteJSON(broadcast.Error(ErrorCode(user.ErrUnauthenticated), "authentication failed")); werr != nil {
			m.logger.Debug("Failed to send refusal", "error", werr)
		}
		t.Close()
		if errors.Is(err, user.ErrUnauthenticated) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", user.ErrUnauthenticated, err)
	}

	s := newSession(m.newID(), identity, t, m.config, m.logger)
	s.state.Store(int32(StateAuthenticated))
	m.sessions.Store(s.id, s)
	m.fanout.Connect(s)

	go s.writeLoop()
	go m.eventLoop(s)

	s.Deliver(broadcast.Payload{
		Type:     broadcast.TypeConnected,
		UserID:   identity.UserID,
		Username: identity.DisplayName,
	})
	s.state.Store(int32(StateIdle))

	s.logger.Info("Connection opened", "username", identity.DisplayName)
	return s, nil
}

// State returns the current state of a session.
func (m *Multiplexer) State(s *Session) State {
	st := State(s.state.Load())
	if st == StateIdle {
		if _, ok := m.rooms.RoomOf(s.id); ok {
			return StateInRoom
		}
	}
	return st
}

// Submit queues ev for the session's event loop. It blocks while the
// inbound queue is full and reports false once the session is closed.
func (m *Multiplexer) Submit(s *Session, ev Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.inbound <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (m *Multiplexer) eventLoop(s *Session) {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.inbound:
			m.Handle(s.ctx, s, ev)
		}
	}
}

// Handle runs one inbound event. A failure is reported to this session
// only, as an error payload, and is also returned.
func (m *Multiplexer) Handle(ctx context.Context, s *Session, ev Event) error {
	if s.closed() {
		return ErrClosed
	}

	var err error
	switch ev.Kind {
	case EventJoin:
		err = m.join(ctx, s, ev.RoomID)
	case EventLeave:
		err = m.leave(s, ev.RoomID)
	case EventSend:
		err = m.send(ctx, s, ev.Body)
	case EventHistory:
		err = m.history(ctx, s, ev)
	case EventMembers:
		err = m.members(ctx, s, ev.RoomID)
	case EventRooms:
		err = m.listRooms(ctx, s)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
	}

	if err != nil {
		s.logger.Debug("Event failed", "event", ev.Kind, "roomID", ev.RoomID, "error", err)
		s.Deliver(broadcast.Error(ErrorCode(err), publicMessage(err)))
	}
	return err
}

// join subscribes s before reading history, so no message falls between
// the two. A message sent in that window can arrive both live and in the
// acknowledgement's history; clients drop repeats by message_id.
func (m *Multiplexer) join(ctx context.Context, s *Session, roomID string) error {
	joined, err := m.rooms.Join(ctx, s, roomID)
	if err != nil {
		return err
	}
	if s.closed() {
		// Closed while joining; undo so no presence outlives the session.
		m.rooms.Disconnect(s)
		return ErrClosed
	}

	history, err := m.gateway.FetchHistory(ctx, joined.ID, m.config.HistoryLimit, chat.OldestFirst)
	if err != nil {
		s.logger.Warn("Failed to load history on join", "roomID", joined.ID, "error", err)
		history = nil
	}

	ack, err := broadcast.WithData(broadcast.Payload{Type: broadcast.TypeJoined, RoomID: joined.ID}, joinedData{
		Room:    joined,
		History: history,
	})
	if err != nil {
		return err
	}
	s.Deliver(ack)
	return nil
}

func (m *Multiplexer) leave(s *Session, roomID string) error {
	current, ok := m.rooms.RoomOf(s.id)
	if !ok {
		return chat.ErrNotInRoom
	}
	if roomID == "" {
		roomID = current
	}
	if err := m.rooms.Leave(s, roomID); err != nil {
		return err
	}
	s.Deliver(broadcast.Payload{Type: broadcast.TypeLeft, RoomID: roomID})
	return nil
}

// send stores a message and broadcasts the stored copy. No room state is
// held while the store call runs.
func (m *Multiplexer) send(ctx context.Context, s *Session, body string) error {
	roomID, ok := m.rooms.RoomOf(s.id)
	if !ok {
		return chat.ErrNotInRoom
	}

	body, err := chat.NormalizeMessage(body)
	if err != nil {
		return err
	}
	if body == "" {
		return nil
	}

	if !s.limiter.Allow() {
		return ErrRateLimited
	}

	msg, err := m.gateway.StoreMessage(ctx, roomID, s.identity, body)
	if err != nil {
		return err
	}

	m.fanout.Broadcast(roomID, messagePayload(msg))
	return nil
}

func (m *Multiplexer) history(ctx context.Context, s *Session, ev Event) error {
	roomID, err := m.targetRoom(ctx, s, ev.RoomID)
	if err != nil {
		return err
	}

	messages, err := m.gateway.FetchHistory(ctx, roomID, ev.Limit, chat.ParseHistoryOrder(ev.Order))
	if err != nil {
		return err
	}

	p, err := broadcast.WithData(broadcast.Payload{Type: broadcast.TypeHistory, RoomID: roomID}, messages)
	if err != nil {
		return err
	}
	s.Deliver(p)
	return nil
}

func (m *Multiplexer) members(ctx context.Context, s *Session, roomID string) error {
	roomID, err := m.targetRoom(ctx, s, roomID)
	if err != nil {
		return err
	}

	members, err := m.rooms.Members(ctx, roomID)
	if err != nil {
		return err
	}

	p, err := broadcast.WithData(broadcast.Payload{Type: broadcast.TypeMembers, RoomID: roomID}, membersData{
		Members: members,
		Online:  m.rooms.Present(roomID),
	})
	if err != nil {
		return err
	}
	s.Deliver(p)
	return nil
}

func (m *Multiplexer) listRooms(ctx context.Context, s *Session) error {
	rooms, err := m.rooms.ListRooms(ctx)
	if err != nil {
		return err
	}
	p, err := broadcast.WithData(broadcast.Payload{Type: broadcast.TypeRooms}, rooms)
	if err != nil {
		return err
	}
	s.Deliver(p)
	return nil
}

// targetRoom resolves an explicit room id, or the current room when empty.
func (m *Multiplexer) targetRoom(ctx context.Context, s *Session, roomID string) (string, error) {
	if roomID == "" {
		current, ok := m.rooms.RoomOf(s.id)
		if !ok {
			return "", chat.ErrNotInRoom
		}
		return current, nil
	}
	if _, err := m.rooms.GetRoom(ctx, roomID); err != nil {
		return "", err
	}
	return roomID, nil
}

// Close closes a session. If it was in a room the room is told it left.
// Closing a closed session is a no-op.
func (m *Multiplexer) Close(s *Session) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		m.rooms.Disconnect(s)
		m.fanout.Disconnect(s.id)
		m.sessions.Delete(s.id)
		s.cancel()
		close(s.done)
		s.logger.Info("Connection closed")
	})
}

// Shutdown closes every session and waits for their transports to close
// or ctx to end.
func (m *Multiplexer) Shutdown(ctx context.Context) error {
	var open []*Session
	m.sessions.Range(func(_, v any) bool {
		open = append(open, v.(*Session))
		return true
	})

	for _, s := range open {
		m.Close(s)
	}
	for _, s := range open {
		select {
		case <-s.written:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Count returns the number of open sessions.
func (m *Multiplexer) Count() int {
	n := 0
	m.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

type joinedData struct {
	Room    *chat.Room     `json:"room"`
	History []chat.Message `json:"history"`
}

type membersData struct {
	Members []chat.RoomMember `json:"members"`
	Online  []user.Identity   `json:"online"`
}

func messagePayload(msg *chat.Message) broadcast.Payload {
	ts := msg.CreatedAt
	return broadcast.Payload{
		Type:      broadcast.TypeMessage,
		RoomID:    msg.RoomID,
		MessageID: msg.ID,
		UserID:    msg.SenderID,
		Username:  msg.SenderName,
		Content:   msg.Body,
		Timestamp: &ts,
	}
}

// ErrorCode maps an error to the code sent to clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, user.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, chat.ErrRoomNotFound):
		return "not_found"
	case errors.Is(err, chat.ErrRoomExists):
		return "conflict"
	case errors.Is(err, chat.ErrNotInRoom):
		return "invalid_state"
	case errors.Is(err, chat.ErrNotMember):
		return "forbidden"
	case errors.Is(err, chat.ErrPersistence):
		return "persistence_failure"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, chat.ErrMessageTooLong), errors.Is(err, chat.ErrMessageInvalid):
		return "invalid_message"
	case errors.Is(err, ErrUnknownEvent):
		return "invalid_event"
	default:
		return "internal_error"
	}
}

// publicMessage hides store details from clients.
func publicMessage(err error) string {
	switch ErrorCode(err) {
	case "persistence_failure":
		return chat.ErrPersistence.Error()
	case "internal_error":
		return "internal error"
	default:
		return err.Error()
	}
}
