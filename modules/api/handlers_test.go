package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/realtime-chat/domain/chat"
	domain "github.com/example/realtime-chat/domain/user"
	"github.com/example/realtime-chat/modules/auth"
	"github.com/example/realtime-chat/modules/session"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRooms implements RoomService for testing
type fakeRooms struct {
	createFunc  func(ctx context.Context, name, creatorID string) (*chat.Room, error)
	rooms       []chat.Room
	deleteFunc  func(ctx context.Context, roomID, requesterID string) error
	members     []chat.RoomMember
	present     []domain.Identity
	listErr     error
	deletedWith string
}

func (f *fakeRooms) CreateRoom(ctx context.Context, name, creatorID string) (*chat.Room, error) {
	if f.createFunc != nil {
		return f.createFunc(ctx, name, creatorID)
	}
	return nil, errors.New("not implemented")
}

func (f *fakeRooms) ListRooms(_ context.Context) ([]chat.Room, error) {
	return f.rooms, f.listErr
}

func (f *fakeRooms) GetRoom(_ context.Context, roomID string) (*chat.Room, error) {
	for i := range f.rooms {
		if f.rooms[i].ID == roomID {
			return &f.rooms[i], nil
		}
	}
	return nil, chat.ErrRoomNotFound
}

func (f *fakeRooms) DeleteRoom(ctx context.Context, roomID, requesterID string) error {
	f.deletedWith = requesterID
	if f.deleteFunc != nil {
		return f.deleteFunc(ctx, roomID, requesterID)
	}
	return nil
}

func (f *fakeRooms) Members(ctx context.Context, roomID string) ([]chat.RoomMember, error) {
	if _, err := f.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return f.members, nil
}

func (f *fakeRooms) Present(_ string) []domain.Identity {
	return f.present
}

func (f *fakeRooms) ActiveRooms() int {
	return len(f.rooms)
}

// fakeHistory implements HistoryReader for testing
type fakeHistory struct {
	messages  []chat.Message
	gotLimit  int
	gotOrder  chat.HistoryOrder
	returnErr error
}

func (f *fakeHistory) FetchHistory(_ context.Context, _ string, limit int, order chat.HistoryOrder) ([]chat.Message, error) {
	f.gotLimit = limit
	f.gotOrder = order
	return f.messages, f.returnErr
}

// fakeConns implements Connections for testing
type fakeConns struct{}

func (fakeConns) Open(context.Context, string, session.Transport) (*session.Session, error) {
	return nil, domain.ErrUnauthenticated
}
func (fakeConns) Submit(*session.Session, session.Event) bool { return false }
func (fakeConns) Close(*session.Session)                      {}
func (fakeConns) Count() int                                  { return 3 }

type fakeStats struct{}

func (fakeStats) Stats() (delivered, dropped uint64) { return 42, 2 }

var alice = domain.Identity{UserID: "alice-id", DisplayName: "alice"}

func setupTestApp(t *testing.T, authPort *mockAuthPort, rooms *fakeRooms, history *fakeHistory) *fiber.App {
	t.Helper()

	if authPort.authenticateFunc == nil {
		authPort.authenticateFunc = func(_ context.Context, token string) (domain.Identity, error) {
			if token == "alice-token" {
				return alice, nil
			}
			return domain.Identity{}, domain.ErrUnauthenticated
		}
	}
	h := NewHandlers(authPort, rooms, history, fakeConns{}, &mockLogger{})
	return newApp(h, authPort, newMetricsRegistry(rooms, fakeConns{}, fakeStats{}))
}

func doRequest(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer alice-token")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestHandlers_Register(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		registerErr    error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "created",
			body:           `{"username":"alice","email":"alice@example.com","password":"password123"}`,
			expectedStatus: http.StatusCreated,
			expectedBody:   `"username":"alice"`,
		},
		{
			name:           "missing fields",
			body:           `{"username":"alice"}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"Username, email and password are required"`,
		},
		{
			name:           "duplicate user",
			body:           `{"username":"alice","email":"alice@example.com","password":"password123"}`,
			registerErr:    fmt.Errorf("service error: %s", auth.ErrUserExists.Error()),
			expectedStatus: http.StatusConflict,
			expectedBody:   `"conflict"`,
		},
		{
			name:           "weak password",
			body:           `{"username":"alice","email":"alice@example.com","password":"short"}`,
			registerErr:    fmt.Errorf("service error: %s", auth.ErrWeakPassword.Error()),
			expectedStatus: http.StatusBadRequest,
			expectedBody:   auth.ErrWeakPassword.Error(),
		},
		{
			name:           "unexpected failure",
			body:           `{"username":"alice","email":"alice@example.com","password":"password123"}`,
			registerErr:    errors.New("nats: timeout"),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"internal_error"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authPort := &mockAuthPort{
				registerFunc: func(_ context.Context, req auth.RegisterRequest) (*auth.RegisterResponse, error) {
					if tt.registerErr != nil {
						return nil, tt.registerErr
					}
					return &auth.RegisterResponse{ID: "alice-id", Username: req.Username, Email: req.Email, CreatedAt: time.Now()}, nil
				},
			}
			app := setupTestApp(t, authPort, &fakeRooms{}, &fakeHistory{})

			resp, body := doRequest(t, app, "POST", "/api/v1/auth/register", tt.body)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			assert.Contains(t, body, tt.expectedBody)
		})
	}
}

func TestHandlers_Login(t *testing.T) {
	authPort := &mockAuthPort{
		loginFunc: func(_ context.Context, req auth.LoginRequest) (*auth.TokenResponse, error) {
			if req.Password != "password123" {
				return nil, errors.New(auth.ErrInvalidCredentials.Error())
			}
			return &auth.TokenResponse{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 900, TokenType: "Bearer"}, nil
		},
	}
	app := setupTestApp(t, authPort, &fakeRooms{}, &fakeHistory{})

	resp, body := doRequest(t, app, "POST", "/api/v1/auth/login", `{"email":"alice@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var tokens TokenResponse
	require.NoError(t, json.Unmarshal([]byte(body), &tokens))
	assert.Equal(t, "access", tokens.AccessToken)
	assert.Equal(t, "Bearer", tokens.TokenType)

	resp, body = doRequest(t, app, "POST", "/api/v1/auth/login", `{"email":"alice@example.com","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Invalid email or password")
}

func TestHandlers_Refresh(t *testing.T) {
	authPort := &mockAuthPort{
		refreshFunc: func(_ context.Context, req auth.RefreshRequest) (*auth.TokenResponse, error) {
			if req.RefreshToken != "refresh" {
				return nil, errors.New(auth.ErrInvalidToken.Error())
			}
			return &auth.TokenResponse{AccessToken: "access-2", RefreshToken: "refresh-2", TokenType: "Bearer"}, nil
		},
	}
	app := setupTestApp(t, authPort, &fakeRooms{}, &fakeHistory{})

	resp, body := doRequest(t, app, "POST", "/api/v1/auth/refresh", `{"refresh_token":"refresh"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"access-2"`)

	resp, _ = doRequest(t, app, "POST", "/api/v1/auth/refresh", `{"refresh_token":"stale"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doRequest(t, app, "POST", "/api/v1/auth/refresh", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlers_CreateRoom(t *testing.T) {
	tests := []struct {
		name           string
		createErr      error
		expectedStatus int
		expectedBody   string
	}{
		{name: "created", expectedStatus: http.StatusCreated, expectedBody: `"name":"general"`},
		{name: "duplicate name", createErr: chat.ErrRoomExists, expectedStatus: http.StatusConflict, expectedBody: `"conflict"`},
		{name: "invalid name", createErr: chat.ErrRoomNameEmpty, expectedStatus: http.StatusBadRequest, expectedBody: chat.ErrRoomNameEmpty.Error()},
		{name: "store failure", createErr: fmt.Errorf("%w: %w", chat.ErrPersistence, errors.New("disk full")), expectedStatus: http.StatusInternalServerError, expectedBody: `"internal_error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var creator string
			rooms := &fakeRooms{
				createFunc: func(_ context.Context, name, creatorID string) (*chat.Room, error) {
					creator = creatorID
					if tt.createErr != nil {
						return nil, tt.createErr
					}
					return &chat.Room{ID: "room-1", Name: name, CreatedBy: creatorID, CreatedAt: time.Now()}, nil
				},
			}
			app := setupTestApp(t, &mockAuthPort{}, rooms, &fakeHistory{})

			resp, body := doRequest(t, app, "POST", "/api/v1/rooms", `{"name":"general"}`)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			assert.Contains(t, body, tt.expectedBody)
			assert.Equal(t, alice.UserID, creator)
		})
	}
}

func TestHandlers_RoomsRequireToken(t *testing.T) {
	app := setupTestApp(t, &mockAuthPort{}, &fakeRooms{}, &fakeHistory{})

	req := httptest.NewRequest("GET", "/api/v1/rooms", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandlers_ListAndGetRoom(t *testing.T) {
	rooms := &fakeRooms{
		rooms: []chat.Room{
			{ID: "room-1", Name: "general", CreatedBy: "alice-id"},
			{ID: "room-2", Name: "random", CreatedBy: "bob-id"},
		},
		present: []domain.Identity{alice},
	}
	app := setupTestApp(t, &mockAuthPort{}, rooms, &fakeHistory{})

	resp, body := doRequest(t, app, "GET", "/api/v1/rooms", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list RoomListResponse
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list.Rooms, 2)
	assert.Equal(t, "general", list.Rooms[0].Name)
	assert.Equal(t, 1, list.Rooms[0].Online)

	resp, body = doRequest(t, app, "GET", "/api/v1/rooms/room-2", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"name":"random"`)

	resp, body = doRequest(t, app, "GET", "/api/v1/rooms/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, `"not_found"`)
}

func TestHandlers_DeleteRoom(t *testing.T) {
	tests := []struct {
		name           string
		deleteErr      error
		expectedStatus int
	}{
		{name: "deleted", expectedStatus: http.StatusNoContent},
		{name: "not found", deleteErr: chat.ErrRoomNotFound, expectedStatus: http.StatusNotFound},
		{name: "not a member", deleteErr: chat.ErrNotMember, expectedStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rooms := &fakeRooms{
				deleteFunc: func(context.Context, string, string) error { return tt.deleteErr },
			}
			app := setupTestApp(t, &mockAuthPort{}, rooms, &fakeHistory{})

			resp, _ := doRequest(t, app, "DELETE", "/api/v1/rooms/room-1", "")
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			assert.Equal(t, alice.UserID, rooms.deletedWith)
		})
	}
}

func TestHandlers_History(t *testing.T) {
	now := time.Now().UTC()
	rooms := &fakeRooms{rooms: []chat.Room{{ID: "room-1", Name: "general"}}}
	history := &fakeHistory{
		messages: []chat.Message{
			{ID: "m2", RoomID: "room-1", SenderID: "alice-id", SenderName: "alice", Body: "second", CreatedAt: now},
			{ID: "m1", RoomID: "room-1", SenderID: "alice-id", SenderName: "alice", Body: "first", CreatedAt: now.Add(-time.Second)},
		},
	}
	app := setupTestApp(t, &mockAuthPort{}, rooms, history)

	resp, body := doRequest(t, app, "GET", "/api/v1/rooms/room-1/history?limit=10&order=asc", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 10, history.gotLimit)
	assert.Equal(t, chat.OldestFirst, history.gotOrder)

	var got HistoryResponse
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "second", got.Messages[0].Content)
	assert.Equal(t, "alice", got.Messages[0].Username)

	resp, _ = doRequest(t, app, "GET", "/api/v1/rooms/room-1/history", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, history.gotLimit)
	assert.Equal(t, chat.NewestFirst, history.gotOrder)

	resp, _ = doRequest(t, app, "GET", "/api/v1/rooms/room-1/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doRequest(t, app, "GET", "/api/v1/rooms/missing/history", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlers_Members(t *testing.T) {
	rooms := &fakeRooms{
		rooms: []chat.Room{{ID: "room-1", Name: "general"}},
		members: []chat.RoomMember{
			{RoomID: "room-1", UserID: "alice-id"},
			{RoomID: "room-1", UserID: "bob-id"},
		},
		present: []domain.Identity{alice},
	}
	app := setupTestApp(t, &mockAuthPort{}, rooms, &fakeHistory{})

	resp, body := doRequest(t, app, "GET", "/api/v1/rooms/room-1/members", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got MembersResponse
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	require.Len(t, got.Members, 2)
	assert.True(t, got.Members[0].Online)
	assert.False(t, got.Members[1].Online)
}

func TestWebSocketUpgradeGuard(t *testing.T) {
	app := setupTestApp(t, &mockAuthPort{}, &fakeRooms{}, &fakeHistory{})

	req := httptest.NewRequest("GET", "/ws", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)

	req = httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	app := setupTestApp(t, &mockAuthPort{}, &fakeRooms{}, &fakeHistory{})

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.EqualValues(t, 3, health.Details["connections"])
}

func TestMetricsEndpoint(t *testing.T) {
	rooms := &fakeRooms{rooms: []chat.Room{{ID: "room-1"}, {ID: "room-2"}}}
	app := setupTestApp(t, &mockAuthPort{}, rooms, &fakeHistory{})

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "chat_connections 3")
	assert.Contains(t, text, "chat_active_rooms 2")
	assert.Contains(t, text, "chat_broadcast_delivered_total 42")
	assert.Contains(t, text, "chat_broadcast_dropped_total 2")
}
