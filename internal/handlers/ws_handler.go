package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/studylink/backend/internal/access"
	"github.com/studylink/backend/internal/middleware"
	"github.com/studylink/backend/internal/models"
	"github.com/studylink/backend/internal/realtime"
	"github.com/studylink/backend/internal/repositories"
)

// WSHandler upgrades authenticated connections and hands them to the hub.
type WSHandler struct {
	hub            *realtime.Hub
	chatRepository repositories.ChatRepository
	gate           *access.Gate
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(hub *realtime.Hub, chatRepo repositories.ChatRepository, gate *access.Gate) *WSHandler {
	return &WSHandler{
		hub:            hub,
		chatRepository: chatRepo,
		gate:           gate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// CORS is handled globally; the API is token-authenticated.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterWSRoutes registers the websocket endpoint
func (h *WSHandler) RegisterWSRoutes(e *echo.Echo) {
	e.GET("/ws", h.Connect)
}

// Connect authenticates the handshake, upgrades it and runs the connection
// until the client goes away. The token travels in the "token" query
// parameter (browsers cannot set headers on websocket upgrades) with an
// Authorization header fallback for non-browser clients.
func (h *WSHandler) Connect(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		authHeader := c.Request().Header.Get("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			token = parts[1]
		}
	}
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
	}

	claims, err := middleware.ParseToken(token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := realtime.NewClient(h.hub, conn, claims.UserID, h.chatRepository,
		func(userID uint, chat *models.Chat) error {
			return h.gate.CanRead(userID, chat)
		})
	client.Run()
	return nil
}
