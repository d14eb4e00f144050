package router

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/cutroom/floor-service/internal/api/handler"
	"github.com/cutroom/floor-service/internal/config"
	"github.com/cutroom/floor-service/internal/db"
	"github.com/cutroom/floor-service/internal/db/repository"
	"github.com/cutroom/floor-service/internal/middleware"
	"github.com/cutroom/floor-service/internal/models"
	"github.com/cutroom/floor-service/internal/service"
	"github.com/cutroom/floor-service/internal/websockets"
)

// Router handles HTTP routing
type Router struct {
	mux     *mux.Router
	handler http.Handler

	auth      *service.AuthService
	mattress  *service.MattressService
	operators *service.OperatorService
	hub       *websockets.Hub
	database  *db.Database
	cfg       *config.Config
}

// New creates a new router
func New(database *db.Database, hub *websockets.Hub, cfg *config.Config) *Router {
	repos := repository.NewRepositories(database)

	r := &Router{
		mux:       mux.NewRouter(),
		auth:      service.NewAuthService(repos, service.JWTConfig{Secret: cfg.JWT.Secret, ExpiresIn: cfg.JWT.ExpiresIn}),
		mattress:  service.NewMattressService(repos, hub),
		operators: service.NewOperatorService(repos),
		hub:       hub,
		database:  database,
		cfg:       cfg,
	}

	r.mattress.SetCutterRoutes(cfg.CutterRoutes)
	r.setupRoutes()

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORS.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", middleware.RequestIDHeader}),
	)

	r.handler = handlers.RecoveryHandler(handlers.PrintRecoveryStack(cfg.Server.Mode != "production"))(
		middleware.Logger(cors(r.mux)),
	)

	return r
}

// Auth exposes the authentication service for startup tasks such as seeding
func (r *Router) Auth() *service.AuthService {
	return r.auth
}

// ServeHTTP implements the http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// setupRoutes sets up the routes for the router
func (r *Router) setupRoutes() {
	users := handler.NewUserHandler(r.auth)
	mattresses := handler.NewMattressHandler(r.mattress)
	operators := handler.NewOperatorHandler(r.operators)

	// Public routes
	r.mux.Handle("/health", handler.NewHealthHandler(func(req *http.Request) error {
		return r.database.HealthCheck(req.Context())
	})).Methods(http.MethodGet)
	r.mux.HandleFunc("/users/login", users.Login).Methods(http.MethodPost)

	// Protected routes
	protected := r.mux.NewRoute().Subrouter()
	protected.Use(middleware.Auth(r.auth))

	protected.HandleFunc("/users/logout", users.Logout).Methods(http.MethodPost)
	protected.HandleFunc("/api/users/logout", users.Logout).Methods(http.MethodPost)

	protected.HandleFunc("/mattress/kanban", mattresses.Kanban).Methods(http.MethodGet)
	protected.HandleFunc("/mattress/cutter_queue", mattresses.CutterQueue).Methods(http.MethodGet)
	protected.HandleFunc("/mattress/update_status/{id:[0-9]+}", mattresses.UpdateStatus).Methods(http.MethodPut)
	protected.HandleFunc("/mattress/update_layers_a/{id:[0-9]+}", mattresses.UpdateLayersA).Methods(http.MethodPut)
	protected.HandleFunc("/mattress/finish_spreading/{id:[0-9]+}", mattresses.FinishSpreading).Methods(http.MethodPut)
	protected.HandleFunc("/mattress/{id:[0-9]+}/history", mattresses.History).Methods(http.MethodGet)
	protected.Handle("/mattress", requireRole(mattresses.Create, models.RolePlanner)).Methods(http.MethodPost)

	protected.HandleFunc("/operators/active", operators.ListActive).Methods(http.MethodGet)
	protected.HandleFunc("/cutter_operators/active", operators.ListActiveCutters).Methods(http.MethodGet)
	protected.Handle("/operators", requireRole(operators.Create)).Methods(http.MethodPost)
	protected.Handle("/operators/{id:[0-9]+}", requireRole(operators.Deactivate)).Methods(http.MethodDelete)

	protected.Handle("/users", requireRole(users.List)).Methods(http.MethodGet)
	protected.Handle("/users", requireRole(users.Create)).Methods(http.MethodPost)

	protected.Handle("/ws", handler.NewWebSocketHandler(r.hub)).Methods(http.MethodGet)
}

// requireRole wraps h so that only the given roles and the super roles reach it
func requireRole(h http.HandlerFunc, roles ...models.UserRole) http.Handler {
	return middleware.RequireRole(roles...)(h)
}
