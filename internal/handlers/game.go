package handlers

import (
	"net/http"

	"chatsino/internal/middleware"
	"chatsino/internal/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type GameHandler struct {
	blackjack *services.BlackjackService
	roulette  *services.RouletteService
	log       *log.Entry
}

func NewGameHandler(blackjack *services.BlackjackService, roulette *services.RouletteService, logger *log.Entry) *GameHandler {
	return &GameHandler{
		blackjack: blackjack,
		roulette:  roulette,
		log:       logger.WithField("handler", "game"),
	}
}

// GetBlackjack returns the caller's active hand, or null.
func (h *GameHandler) GetBlackjack(c *gin.Context) {
	clientID := c.GetInt64(middleware.KeyClientID)

	game, err := h.blackjack.Load(c.Request.Context(), clientID)
	if err != nil {
		h.log.WithError(err).WithField("client_id", clientID).Error("failed to load blackjack game")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load game"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"game": game})
}

// GetRoulette returns the running round, or null.
func (h *GameHandler) GetRoulette(c *gin.Context) {
	game, err := h.roulette.Load(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("failed to load roulette game")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load game"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"game": game})
}
