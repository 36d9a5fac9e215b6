package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	domain "github.com/example/realtime-chat/domain/user"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestService creates an AuthService backed by a throwaway SQLite file.
func setupTestService(t *testing.T) (*AuthService, *UserRepository, *JWTManager) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "auth.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	repo := NewUserRepository(db)
	if err := repo.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	jwtManager := NewJWTManager(testJWTConfig())
	return NewAuthService(repo, NewPasswordHasher(bcrypt.MinCost), jwtManager), repo, jwtManager
}

func TestAuthService_Register(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		wantErr  error
	}{
		{name: "valid", username: "alice", email: "alice@example.com", password: "password123"},
		{name: "email is normalized", username: "bob", email: "  Bob@Example.com ", password: "password123"},
		{name: "short username", username: "al", email: "al@example.com", password: "password123", wantErr: ErrInvalidUsername},
		{name: "username with spaces", username: "al ice", email: "x@example.com", password: "password123", wantErr: ErrInvalidUsername},
		{name: "bad email", username: "carol", email: "carol-at-example", password: "password123", wantErr: ErrInvalidEmail},
		{name: "short password", username: "dave", email: "dave@example.com", password: "1234567", wantErr: ErrWeakPassword},
		{name: "long password", username: "erin", email: "erin@example.com", password: strings.Repeat("a", 73), wantErr: ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := setupTestService(t)

			user, err := svc.Register(context.Background(), tt.username, tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Register() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if user.ID == "" {
				t.Error("Register() returned user without ID")
			}
			if user.Email != strings.ToLower(strings.TrimSpace(tt.email)) {
				t.Errorf("Email = %q, want normalized %q", user.Email, tt.email)
			}
			if user.PasswordHash == tt.password {
				t.Error("password stored in plain text")
			}
		})
	}
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "alice@example.com", "password123"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, err := svc.Register(ctx, "alice2", "alice@example.com", "password123"); !errors.Is(err, ErrUserExists) {
		t.Errorf("duplicate email error = %v, want %v", err, ErrUserExists)
	}
	if _, err := svc.Register(ctx, "alice", "other@example.com", "password123"); !errors.Is(err, ErrUserExists) {
		t.Errorf("duplicate username error = %v, want %v", err, ErrUserExists)
	}
}

func TestAuthService_LoginAndRefresh(t *testing.T) {
	svc, _, jwtManager := setupTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, err := svc.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(wrong password) error = %v, want %v", err, ErrInvalidCredentials)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(unknown email) error = %v, want %v", err, ErrInvalidCredentials)
	}

	tokens, err := svc.Login(ctx, "ALICE@example.com", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if tokens.TokenType != "Bearer" {
		t.Errorf("TokenType = %q, want Bearer", tokens.TokenType)
	}

	claims, err := jwtManager.ValidateAccessToken(tokens.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}
	if claims.UserID != user.ID || claims.Username != "alice" {
		t.Errorf("claims = %+v, want user %s/alice", claims, user.ID)
	}

	refreshed, err := svc.RefreshTokens(ctx, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshTokens() error = %v", err)
	}
	if refreshed.AccessToken == "" || refreshed.RefreshToken == "" {
		t.Error("RefreshTokens() returned empty tokens")
	}

	if _, err := svc.RefreshTokens(ctx, tokens.AccessToken); err == nil {
		t.Error("RefreshTokens() accepted an access token")
	}
}

func TestAuthService_Authenticate(t *testing.T) {
	svc, repo, jwtManager := setupTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	access, err := jwtManager.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	refresh, err := jwtManager.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}
	ghost, err := jwtManager.GenerateAccessToken("missing-user", "ghost")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	identity, err := svc.Authenticate(ctx, access)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	want := domain.Identity{UserID: user.ID, DisplayName: "alice"}
	if identity != want {
		t.Errorf("Authenticate() = %+v, want %+v", identity, want)
	}

	rejected := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "blank", token: "   "},
		{name: "garbage", token: "abc.def.ghi"},
		{name: "refresh token", token: refresh},
		{name: "unknown user", token: ghost},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Authenticate(ctx, tt.token); !errors.Is(err, domain.ErrUnauthenticated) {
				t.Errorf("Authenticate() error = %v, want %v", err, domain.ErrUnauthenticated)
			}
		})
	}

	t.Run("deleted user", func(t *testing.T) {
		if err := repo.Delete(ctx, user.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		_, err := svc.Authenticate(ctx, access)
		if !errors.Is(err, domain.ErrUnauthenticated) || !errors.Is(err, ErrUserNotFound) {
			t.Errorf("Authenticate() error = %v, want unauthenticated user-not-found", err)
		}
	})
}
