package handler

import (
	"log"
	"net/http"

	"github.com/cutroom/floor-service/internal/api"
	"github.com/cutroom/floor-service/internal/middleware"
	"github.com/cutroom/floor-service/internal/models"
	"github.com/cutroom/floor-service/internal/service"
)

// UserHandler handles user-related requests
type UserHandler struct {
	authService *service.AuthService
}

// NewUserHandler creates a new user handler
func NewUserHandler(authService *service.AuthService) *UserHandler {
	return &UserHandler{
		authService: authService,
	}
}

// LoginResponse is the body of a successful login
type LoginResponse struct {
	Success bool               `json:"success"`
	Token   string             `json:"token"`
	User    models.SessionUser `json:"user"`
}

// Login authenticates a user
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := api.DecodeJSON(r, &req); err != nil {
		api.BadRequest(w, "Invalid request body")
		return
	}

	token, user, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.JSON(w, http.StatusOK, LoginResponse{
		Success: true,
		Token:   token,
		User:    models.SessionUser{Username: user.Username, Role: user.Role},
	})
}

// Logout revokes the caller's token
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.authService.Logout(r.Context(), claims); err != nil {
		log.Printf("logout for %s failed: %v", claims.Username, err)
		api.Error(w, err)
		return
	}

	api.JSON(w, http.StatusOK, api.Envelope{Success: true, Message: "Logged out"})
}

// List lists all users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.authService.ListUsers(r.Context())
	if err != nil {
		api.Error(w, err)
		return
	}

	api.OK(w, http.StatusOK, users)
}

// Create registers a new user
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.UserRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.BadRequest(w, "Invalid request body")
		return
	}

	user, err := h.authService.RegisterUser(r.Context(), req)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.OK(w, http.StatusCreated, user)
}
