package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/example/realtime-chat/domain/user"
	"github.com/example/realtime-chat/modules/broadcast"
	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/time/rate"
)

// State is the lifecycle state of a connection.
type State int32

// Connection states. InRoom is not stored on the session; it is derived
// from room presence.
const (
	StateConnecting State = iota
	StateAuthenticated
	StateIdle
	StateInRoom
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateIdle:
		return "idle"
	case StateInRoom:
		return "in_room"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport is the outbound side of a realtime connection.
type Transport interface {
	WriteJSON(v any) error
	Close() error
}

// Session is one authenticated connection. Payloads are queued and written
// by a dedicated goroutine; inbound events are handled one at a time by
// another.
type Session struct {
	id        string
	identity  user.Identity
	transport Transport
	limiter   *rate.Limiter
	logger    types.Logger

	state   atomic.Int32
	out     chan broadcast.Payload
	inbound chan Event

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	written   chan struct{}
	closeOnce sync.Once
}

func newSession(id string, identity user.Identity, t Transport, cfg Config, logger types.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        id,
		identity:  identity,
		transport: t,
		limiter:   rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendBurst),
		logger:    logger.With("connID", id, "userID", identity.UserID),
		out:       make(chan broadcast.Payload, cfg.OutboundBuffer),
		inbound:   make(chan Event, cfg.InboundBuffer),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		written:   make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// ID returns the connection id.
func (s *Session) ID() string { return s.id }

// Identity returns the user the connection authenticated as.
func (s *Session) Identity() user.Identity { return s.identity }

// Deliver queues p for writing. It never blocks; p is dropped when the
// queue is full or the session is closed.
func (s *Session) Deliver(p broadcast.Payload) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.out <- p:
		return true
	default:
		s.logger.Warn("Outbound queue full, dropping payload", "type", p.Type, "event", p.Event)
		return false
	}
}

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until queued payloads have been written and the transport
// has been closed.
func (s *Session) Wait() {
	<-s.written
}

func (s *Session) closed() bool {
	return State(s.state.Load()) == StateClosed
}

// writeLoop writes queued payloads until the session closes, then flushes
// what is left and closes the transport.
func (s *Session) writeLoop() {
	defer close(s.written)

	for {
		select {
		case p := <-s.out:
			s.write(p)
		case <-s.done:
			for {
				select {
				case p := <-s.out:
					s.write(p)
				default:
					if err := s.transport.Close(); err != nil {
						s.logger.Debug("Transport close failed", "error", err)
					}
					return
				}
			}
		}
	}
}

func (s *Session) write(p broadcast.Payload) {
	if err := s.transport.WriteJSON(p); err != nil {
		s.logger.Debug("Write failed", "type", p.Type, "error", err)
	}
}
