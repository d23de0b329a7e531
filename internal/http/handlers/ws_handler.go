package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/upscpath/prep-platform/internal/http/handlers/common"
	"github.com/upscpath/prep-platform/internal/service"
	"github.com/upscpath/prep-platform/internal/ws"
)

// WSHandler отвечает за подписку на статус сессии верификации по WebSocket.
type WSHandler struct {
	hub      *ws.Hub
	auth     *service.AuthService
	upgrader websocket.Upgrader
}

// NewWSHandler создаёт новый хэндлер.
func NewWSHandler(hub *ws.Hub, auth *service.AuthService) *WSHandler {
	return &WSHandler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle обслуживает GET /api/auth/session/:sessionKey/ws.
// Подписка доступна без bearer-токена: сессия верификации существует до
// аутентификации, её ключ и есть секрет подписки.
func (h *WSHandler) Handle(c *gin.Context) {
	sessionKey := c.Param("sessionKey")
	if sessionKey == "" {
		common.RespondBadRequest(c, "параметр sessionKey обязателен")
		return
	}

	// Несуществующая или протухшая сессия не получает подписку.
	status, err := h.auth.SessionStatus(c.Request.Context(), sessionKey)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		common.RespondInternalError(c, "")
		return
	}

	client := ws.NewClient(conn, h.hub, sessionKey)
	h.hub.Register(client)

	// Первым сообщением уходит текущий снимок, дальше только изменения.
	h.hub.PublishStatus(sessionKey, status)

	client.Run(c.Request.Context())
}
