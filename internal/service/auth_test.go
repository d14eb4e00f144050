package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cutroom/floor-service/internal/db"
	"github.com/cutroom/floor-service/internal/db/repository"
	"github.com/cutroom/floor-service/internal/models"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	repos := repository.NewRepositories(db.NewTestDB(t))
	return NewAuthService(repos, JWTConfig{Secret: "test-secret", ExpiresIn: 1})
}

func TestLoginAndLogout(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, models.UserRequest{
		Username: "Spreader2",
		Password: "pw",
		Role:     models.RoleSpreader,
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	if _, _, err := svc.Login(ctx, "Spreader2", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}

	token, user, err := svc.Login(ctx, "Spreader2", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.Role != models.RoleSpreader {
		t.Errorf("expected role %q, got %q", models.RoleSpreader, user.Role)
	}

	claims, err := svc.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if claims.Username != "Spreader2" || claims.ID == "" {
		t.Errorf("unexpected claims: %+v", claims)
	}

	if err := svc.Logout(ctx, claims); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Authenticate(ctx, token); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("expected ErrTokenRevoked after logout, got %v", err)
	}
}

func TestLoginInactiveUser(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	if _, err := svc.RegisterUser(ctx, models.UserRequest{Username: "Cutter1", Password: "pw", Role: models.RoleCutter}); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if _, _, err := svc.Login(ctx, "Cutter1", "pw"); !errors.Is(err, ErrInactiveUser) {
		t.Errorf("expected ErrInactiveUser, got %v", err)
	}
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	svc := newAuthService(t)
	other := NewAuthService(nil, JWTConfig{Secret: "other", ExpiresIn: 1})

	token, err := other.generateToken(&models.User{Username: "x", Role: models.RoleManager})
	if err != nil {
		t.Fatalf("generateToken: %v", err)
	}
	if _, err := svc.ValidateToken(token); err == nil {
		t.Error("expected token signed with another secret to be rejected")
	}
}

func TestRegisterUserRejectsUnknownRole(t *testing.T) {
	svc := newAuthService(t)
	_, err := svc.RegisterUser(context.Background(), models.UserRequest{Username: "x", Password: "y", Role: "Chef"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestEnsureAdminRunsOnce(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	if err := svc.EnsureAdmin(ctx, "admin", "secret"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if err := svc.EnsureAdmin(ctx, "admin2", "secret"); err != nil {
		t.Fatalf("second EnsureAdmin: %v", err)
	}

	users, err := svc.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 || users[0].Role != models.RoleAdministrator {
		t.Errorf("expected a single administrator, got %+v", users)
	}
}

func TestOperatorServiceValidation(t *testing.T) {
	svc := NewOperatorService(repository.NewRepositories(db.NewTestDB(t)))
	ctx := context.Background()

	if _, err := svc.CreateOperator(ctx, models.OperatorRequest{Name: " ", Type: models.OperatorSpreader}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for blank name, got %v", err)
	}
	if _, err := svc.ListActive(ctx, "chef"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for unknown type, got %v", err)
	}

	if _, err := svc.CreateOperator(ctx, models.OperatorRequest{Name: "Maria", Type: models.OperatorSpreader}); err != nil {
		t.Fatalf("CreateOperator: %v", err)
	}
	ops, err := svc.ListActive(ctx, "Spreader")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(ops) != 1 || ops[0].Name != "Maria" {
		t.Errorf("unexpected operators: %+v", ops)
	}

	if err := svc.DeactivateOperator(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
