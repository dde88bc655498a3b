package handlers

import (
	"chatsino/internal/gateway"

	"github.com/gin-gonic/gin"
)

type WebSocketHandler struct {
	gateway *gateway.Gateway
}

func NewWebSocketHandler(gw *gateway.Gateway) *WebSocketHandler {
	return &WebSocketHandler{gateway: gw}
}

// HandleWebSocket upgrades GET /ws?ticket=... The ticket must have been
// granted to the same client address gin resolves here.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	h.gateway.Upgrade(c.Writer, c.Request, c.ClientIP())
}
