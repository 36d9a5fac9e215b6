package api

import (
	"context"
	"encoding/json"

	"github.com/example/realtime-chat/modules/broadcast"
	"github.com/example/realtime-chat/modules/session"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// UpgradeGuard rejects plain HTTP requests to the websocket endpoint and
// requests without a credential. The credential itself is checked when the
// connection opens.
func UpgradeGuard() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		token := bearerToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "token query parameter or Authorization header is required",
			})
		}
		c.Locals(tokenContextKey, token)
		return c.Next()
	}
}

// WebSocket serves one realtime connection: it opens a session, feeds
// inbound frames to it as events and closes it when the peer goes away.
func (h *Handlers) WebSocket(c *websocket.Conn) {
	token, _ := c.Locals(tokenContextKey).(string)

	s, err := h.conns.Open(context.Background(), token, c)
	if err != nil {
		h.logger.Info("WebSocket refused", "remote", c.RemoteAddr().String(), "error", err)
		return
	}
	defer func() {
		h.conns.Close(s)
		s.Wait()
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket read error", "connID", s.ID(), "error", err)
			}
			return
		}

		var ev session.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.Deliver(broadcast.Error("invalid_event", "Invalid message format"))
			continue
		}

		if !h.conns.Submit(s, ev) {
			return
		}
	}
}
