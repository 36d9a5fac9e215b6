package api

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/example/realtime-chat/domain/chat"
	domain "github.com/example/realtime-chat/domain/user"
	"github.com/example/realtime-chat/modules/auth"
	"github.com/example/realtime-chat/modules/session"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

// RoomService is the room registry as used over HTTP.
type RoomService interface {
	CreateRoom(ctx context.Context, name, creatorID string) (*chat.Room, error)
	ListRooms(ctx context.Context) ([]chat.Room, error)
	GetRoom(ctx context.Context, roomID string) (*chat.Room, error)
	DeleteRoom(ctx context.Context, roomID, requesterID string) error
	Members(ctx context.Context, roomID string) ([]chat.RoomMember, error)
	Present(roomID string) []domain.Identity
	ActiveRooms() int
}

// HistoryReader reads room history.
type HistoryReader interface {
	FetchHistory(ctx context.Context, roomID string, limit int, order chat.HistoryOrder) ([]chat.Message, error)
}

// Connections admits and serves realtime connections.
type Connections interface {
	Open(ctx context.Context, credential string, t session.Transport) (*session.Session, error)
	Submit(s *session.Session, ev session.Event) bool
	Close(s *session.Session)
	Count() int
}

// Handlers contains the HTTP and websocket handlers.
type Handlers struct {
	auth    auth.AuthPort
	rooms   RoomService
	history HistoryReader
	conns   Connections
	logger  types.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authPort auth.AuthPort, rooms RoomService, history HistoryReader, conns Connections, logger types.Logger) *Handlers {
	return &Handlers{
		auth:    authPort,
		rooms:   rooms,
		history: history,
		conns:   conns,
		logger:  logger,
	}
}

// Register handles user registration.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return badRequest(c, "Username, email and password are required")
	}

	resp, err := h.auth.Register(c.UserContext(), auth.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return h.handleAuthError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(UserResponse{
		ID:        resp.ID,
		Username:  resp.Username,
		Email:     resp.Email,
		CreatedAt: resp.CreatedAt,
	})
}

// Login handles user login.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	resp, err := h.auth.Login(c.UserContext(), auth.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return h.handleAuthError(c, err)
	}
	return c.JSON(tokenResponse(resp))
}

// Refresh handles token refresh.
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.RefreshToken == "" {
		return badRequest(c, "Refresh token is required")
	}

	resp, err := h.auth.Refresh(c.UserContext(), auth.RefreshRequest{RefreshToken: req.RefreshToken})
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid or expired refresh token",
		})
	}
	return c.JSON(tokenResponse(resp))
}

// ListRooms handles GET /api/v1/rooms.
func (h *Handlers) ListRooms(c *fiber.Ctx) error {
	rooms, err := h.rooms.ListRooms(c.UserContext())
	if err != nil {
		return h.handleRoomError(c, err)
	}

	response := RoomListResponse{Rooms: make([]RoomResponse, 0, len(rooms))}
	for i := range rooms {
		response.Rooms = append(response.Rooms, h.roomResponse(&rooms[i]))
	}
	return c.JSON(response)
}

// CreateRoom handles POST /api/v1/rooms.
func (h *Handlers) CreateRoom(c *fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return unauthorized(c)
	}

	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	room, err := h.rooms.CreateRoom(c.UserContext(), req.Name, identity.UserID)
	if err != nil {
		return h.handleRoomError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(h.roomResponse(room))
}

// GetRoom handles GET /api/v1/rooms/:id.
func (h *Handlers) GetRoom(c *fiber.Ctx) error {
	room, err := h.rooms.GetRoom(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.handleRoomError(c, err)
	}
	return c.JSON(h.roomResponse(room))
}

// DeleteRoom handles DELETE /api/v1/rooms/:id.
func (h *Handlers) DeleteRoom(c *fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.rooms.DeleteRoom(c.UserContext(), c.Params("id"), identity.UserID); err != nil {
		return h.handleRoomError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// History handles GET /api/v1/rooms/:id/history?limit=&order=.
func (h *Handlers) History(c *fiber.Ctx) error {
	roomID := c.Params("id")
	if _, err := h.rooms.GetRoom(c.UserContext(), roomID); err != nil {
		return h.handleRoomError(c, err)
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			return badRequest(c, "limit must be a positive integer")
		}
		limit = parsed
	}
	order := chat.ParseHistoryOrder(c.Query("order"))

	messages, err := h.history.FetchHistory(c.UserContext(), roomID, limit, order)
	if err != nil {
		return h.handleRoomError(c, err)
	}

	response := HistoryResponse{
		RoomID:   roomID,
		Order:    string(order),
		Messages: make([]MessageResponse, 0, len(messages)),
	}
	for _, msg := range messages {
		response.Messages = append(response.Messages, MessageResponse{
			ID:        msg.ID,
			RoomID:    msg.RoomID,
			UserID:    msg.SenderID,
			Username:  msg.SenderName,
			Content:   msg.Body,
			Timestamp: msg.CreatedAt,
		})
	}
	return c.JSON(response)
}

// Members handles GET /api/v1/rooms/:id/members.
func (h *Handlers) Members(c *fiber.Ctx) error {
	roomID := c.Params("id")
	members, err := h.rooms.Members(c.UserContext(), roomID)
	if err != nil {
		return h.handleRoomError(c, err)
	}

	online := make(map[string]bool)
	for _, identity := range h.rooms.Present(roomID) {
		online[identity.UserID] = true
	}

	response := MembersResponse{
		RoomID:  roomID,
		Members: make([]MemberResponse, 0, len(members)),
	}
	for _, member := range members {
		response.Members = append(response.Members, MemberResponse{
			UserID:   member.UserID,
			JoinedAt: member.JoinedAt,
			Online:   online[member.UserID],
		})
	}
	return c.JSON(response)
}

func (h *Handlers) roomResponse(room *chat.Room) RoomResponse {
	return RoomResponse{
		ID:        room.ID,
		Name:      room.Name,
		CreatedBy: room.CreatedBy,
		CreatedAt: room.CreatedAt,
		Online:    len(h.rooms.Present(room.ID)),
	}
}

// handleRoomError maps room and store errors to HTTP responses.
func (h *Handlers) handleRoomError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, chat.ErrRoomNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Room not found",
		})
	case errors.Is(err, chat.ErrRoomExists):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "conflict",
			Message: "A room with this name already exists",
		})
	case errors.Is(err, chat.ErrNotMember):
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
			Error:   "forbidden",
			Message: "Only room members may delete the room",
		})
	case errors.Is(err, chat.ErrRoomNameEmpty),
		errors.Is(err, chat.ErrRoomNameTooLong),
		errors.Is(err, chat.ErrRoomNameInvalid):
		return badRequest(c, err.Error())
	default:
		h.logger.Error("Room request failed", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}

// handleAuthError maps auth service errors to HTTP responses. Errors come
// back over request-reply as text, so they are matched by message.
func (h *Handlers) handleAuthError(c *fiber.Ctx, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, auth.ErrInvalidCredentials.Error()):
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid email or password",
		})
	case strings.Contains(errStr, auth.ErrUserExists.Error()):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "conflict",
			Message: "User with this email or username already exists",
		})
	case strings.Contains(errStr, auth.ErrInvalidEmail.Error()),
		strings.Contains(errStr, auth.ErrInvalidUsername.Error()),
		strings.Contains(errStr, auth.ErrWeakPassword.Error()),
		strings.Contains(errStr, auth.ErrPasswordTooLong.Error()):
		return badRequest(c, authErrorMessage(errStr))
	default:
		h.logger.Error("Auth request failed", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}

// authErrorMessage returns the known validation message contained in errStr.
func authErrorMessage(errStr string) string {
	for _, known := range []error{auth.ErrInvalidEmail, auth.ErrInvalidUsername, auth.ErrWeakPassword, auth.ErrPasswordTooLong} {
		if strings.Contains(errStr, known.Error()) {
			return known.Error()
		}
	}
	return "Invalid request"
}

func tokenResponse(resp *auth.TokenResponse) TokenResponse {
	return TokenResponse{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
		TokenType:    resp.TokenType,
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "bad_request",
		Message: message,
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error:   "unauthorized",
		Message: "User not authenticated",
	})
}
