package api

import (
	"net/http"

	"github.com/stylevault/backend/internal/auth"
	"github.com/stylevault/backend/internal/chat"
	apperrors "github.com/stylevault/backend/internal/errors"
	"github.com/stylevault/backend/internal/health"
	"github.com/stylevault/backend/internal/logger"
	"github.com/stylevault/backend/internal/metrics"
	"github.com/stylevault/backend/internal/middleware"
	"github.com/stylevault/backend/internal/users"
	"github.com/stylevault/backend/internal/wardrobe"
)

type Router struct {
	mux              *http.ServeMux
	authHandlers     *auth.Handlers
	authService      *auth.Service
	userHandlers     *users.Handlers
	wardrobeHandlers *wardrobe.Handlers
	chatHandlers     *chat.Handlers
	wsHandler        *chat.WSHandler
	healthHandler    *health.Handler
	corsOrigins      []string
	log              *logger.Logger
}

type RouterConfig struct {
	AuthHandlers     *auth.Handlers
	AuthService      *auth.Service
	UserHandlers     *users.Handlers
	WardrobeHandlers *wardrobe.Handlers
	ChatHandlers     *chat.Handlers
	WSHandler        *chat.WSHandler
	HealthHandler    *health.Handler
	CORSOrigins      []string
}

func NewRouter(cfg *RouterConfig) *Router {
	r := &Router{
		mux:              http.NewServeMux(),
		authHandlers:     cfg.AuthHandlers,
		authService:      cfg.AuthService,
		userHandlers:     cfg.UserHandlers,
		wardrobeHandlers: cfg.WardrobeHandlers,
		chatHandlers:     cfg.ChatHandlers,
		wsHandler:        cfg.WSHandler,
		healthHandler:    cfg.HealthHandler,
		corsOrigins:      cfg.CORSOrigins,
		log:              logger.Default().WithComponent("http"),
	}
	r.setupRoutes()
	return r
}

// Handler wraps the route table in the shared middleware stack.
func (r *Router) Handler() http.Handler {
	return middleware.Chain(r.mux,
		middleware.Recoverer(r.log),
		middleware.RequestID,
		middleware.Logging(r.log),
		middleware.Metrics(metrics.Default()),
		middleware.CORS(r.corsOrigins),
	)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.Handler().ServeHTTP(w, req)
}

func (r *Router) setupRoutes() {
	// Health and operational endpoints
	r.mux.HandleFunc("GET /health", r.healthHandler.HealthHandler)
	r.mux.HandleFunc("GET /health/live", r.healthHandler.LivenessHandler)
	r.mux.HandleFunc("GET /health/ready", r.healthHandler.ReadinessHandler)
	r.mux.HandleFunc("GET /metrics", metrics.Default().Handler())

	// Auth routes (no auth required)
	r.mux.HandleFunc("POST /api/v1/auth/register", apperrors.HandleFunc(r.authHandlers.Register))
	r.mux.HandleFunc("POST /api/v1/auth/login", apperrors.HandleFunc(r.authHandlers.Login))
	r.mux.HandleFunc("POST /api/v1/auth/refresh", apperrors.HandleFunc(r.authHandlers.Refresh))

	// Auth routes (auth required)
	r.mux.Handle("POST /api/v1/auth/logout", r.withAuth(r.authHandlers.Logout))

	// User profile routes
	r.mux.Handle("GET /api/v1/users/me", r.withAuth(r.userHandlers.Me))
	r.mux.Handle("PUT /api/v1/users/me/profile", r.withAuth(r.userHandlers.UpdateProfile))
	r.mux.Handle("POST /api/v1/users/me/profile-picture", r.withAuth(r.userHandlers.UploadProfilePicture))
	r.mux.Handle("DELETE /api/v1/users/me/profile-picture", r.withAuth(r.userHandlers.DeleteProfilePicture))

	// Wardrobe routes
	r.mux.Handle("GET /api/v1/wardrobe/items", r.withAuth(r.wardrobeHandlers.List))
	r.mux.Handle("POST /api/v1/wardrobe/items", r.withAuth(r.wardrobeHandlers.Create))
	r.mux.Handle("GET /api/v1/wardrobe/items/{item_id}", r.withAuth(r.wardrobeHandlers.Get))
	r.mux.Handle("PUT /api/v1/wardrobe/items/{item_id}", r.withAuth(r.wardrobeHandlers.Update))
	r.mux.Handle("DELETE /api/v1/wardrobe/items/{item_id}", r.withAuth(r.wardrobeHandlers.Delete))
	r.mux.Handle("POST /api/v1/wardrobe/items/{item_id}/image", r.withAuth(r.wardrobeHandlers.UploadImage))

	// Chat routes
	r.mux.Handle("POST /api/v1/chat/sessions", r.withAuth(r.chatHandlers.CreateSession))
	r.mux.Handle("GET /api/v1/chat/sessions", r.withAuth(r.chatHandlers.ListSessions))
	r.mux.Handle("POST /api/v1/chat/sessions/{session_id}/messages", r.withAuth(r.chatHandlers.SendMessage))
	r.mux.Handle("GET /api/v1/chat/sessions/{session_id}/history", r.withAuth(r.chatHandlers.History))
	r.mux.Handle("DELETE /api/v1/chat/sessions/{session_id}/history", r.withAuth(r.chatHandlers.ClearHistory))
	r.mux.Handle("DELETE /api/v1/chat/sessions/{session_id}", r.withAuth(r.chatHandlers.DeleteSession))

	// Websocket mirror of a chat session. Authenticates via query
	// token inside the handler, so no bearer middleware here.
	r.mux.HandleFunc("GET /api/v1/chat/sessions/{session_id}/ws", r.wsHandler.ServeWS)
}

func (r *Router) withAuth(h apperrors.Handler) http.Handler {
	return r.authService.RequireAccess(apperrors.HandleFunc(h))
}
