package auth

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/realtime-chat/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AuthPort is what other modules use to reach the auth module.
type AuthPort interface {
	Authenticate(ctx context.Context, token string) (domain.Identity, error)
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error)
}

// AuthAdapter implements AuthPort over the auth module's request-reply services.
type AuthAdapter struct {
	container mono.ServiceContainer
}

var _ AuthPort = (*AuthAdapter)(nil)

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	return &AuthAdapter{container: container}
}

// Authenticate resolves a credential through the authenticate service.
func (a *AuthAdapter) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	req := AuthenticateRequest{Token: token}
	var resp AuthenticateResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"authenticate",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return domain.Identity{}, fmt.Errorf("authenticate request failed: %w", err)
	}

	if !resp.Valid {
		return domain.Identity{}, fmt.Errorf("%w: %s", domain.ErrUnauthenticated, resp.Error)
	}

	return domain.Identity{
		UserID:      resp.UserID,
		DisplayName: resp.DisplayName,
	}, nil
}

// Register creates a user through the register service.
func (a *AuthAdapter) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"register",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}

	return &resp, nil
}

// Login issues tokens through the login service.
func (a *AuthAdapter) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	var resp TokenResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"login",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}

	return &resp, nil
}

// Refresh rotates tokens through the refresh-token service.
func (a *AuthAdapter) Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error) {
	var resp TokenResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"refresh-token",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("refresh-token request failed: %w", err)
	}

	return &resp, nil
}
