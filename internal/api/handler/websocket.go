package handler

import (
	"net/http"

	"github.com/cutroom/floor-service/internal/middleware"
	"github.com/cutroom/floor-service/internal/websockets"
)

type WebSocketHandler struct {
	hub *websockets.Hub
}

func NewWebSocketHandler(hub *websockets.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	// device is optional: dashboards subscribe without one
	device := r.URL.Query().Get("device")

	conn, err := websockets.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// If upgrading fails, the upgrader has already written the error to the response
		return
	}

	websockets.ServeWs(h.hub, conn, userID, device)
}
