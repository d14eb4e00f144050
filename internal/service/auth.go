package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cutroom/floor-service/internal/db/repository"
	"github.com/cutroom/floor-service/internal/models"
)

// JWTConfig holds configuration for JWT token generation
type JWTConfig struct {
	Secret    string
	ExpiresIn int // hours
}

// AuthService handles authentication and authorization
type AuthService struct {
	repos     *repository.Repositories
	jwtConfig JWTConfig
}

// NewAuthService creates a new authentication service
func NewAuthService(repos *repository.Repositories, jwtConfig JWTConfig) *AuthService {
	return &AuthService{
		repos:     repos,
		jwtConfig: jwtConfig,
	}
}

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Login authenticates a user and returns a JWT token
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.repos.User.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Printf("login lookup for %q failed: %v", username, err)
		}
		return "", nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return "", nil, ErrInactiveUser
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return token, user, nil
}

// generateToken generates a JWT token for a user
func (s *AuthService) generateToken(user *models.User) (string, error) {
	now := time.Now()
	expirationTime := now.Add(time.Duration(s.jwtConfig.ExpiresIn) * time.Hour)

	claims := &Claims{
		UserID:   user.ID.String(),
		Username: user.Username,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtConfig.Secret), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// Authenticate validates a token and rejects revoked ones
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.ID != "" {
		revoked, err := s.repos.Token.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}

// Logout revokes the token so it cannot be used again before it expires
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" {
		return nil
	}

	expiresAt := time.Now().Add(time.Duration(s.jwtConfig.ExpiresIn) * time.Hour)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	if err := s.repos.Token.Revoke(ctx, claims.ID, expiresAt); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}

	return nil
}

// GetUserFromToken gets the user associated with a token
func (s *AuthService) GetUserFromToken(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := s.Authenticate(ctx, tokenString)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in token: %w", err)
	}

	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	return user, nil
}

// ListUsers lists all users
func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.repos.User.List(ctx)
}

// RegisterUser registers a new user
func (s *AuthService) RegisterUser(ctx context.Context, req models.UserRequest) (*models.User, error) {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return nil, validationError("username and password are required")
	}
	if !req.Role.Valid() {
		return nil, validationError("unknown role %q", req.Role)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username:     strings.TrimSpace(req.Username),
		PasswordHash: string(hashedPassword),
		Role:         req.Role,
		IsActive:     req.IsActive,
	}

	createdUser, err := s.repos.User.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return createdUser, nil
}

// EnsureAdmin creates the first administrator when no users exist yet
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	users, err := s.repos.User.List(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}
	if password == "" {
		return errors.New("no users exist and no admin password is configured")
	}

	_, err = s.RegisterUser(ctx, models.UserRequest{
		Username: username,
		Password: password,
		Role:     models.RoleAdministrator,
		IsActive: true,
	})
	if err != nil {
		return err
	}

	log.Printf("Created initial administrator %q", username)
	return nil
}
