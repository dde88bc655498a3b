package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"chatsino/internal/middleware"
	"chatsino/internal/models"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type ClientStore interface {
	FindClientByID(ctx context.Context, id int64) (models.ClientIdentity, error)
	Balance(ctx context.Context, clientID int64) (int64, error)
	Transactions(ctx context.Context, clientID int64, limit int) ([]models.Transaction, error)
}

type TicketGranter interface {
	GrantTicket(ctx context.Context, username, remoteAddress string) (string, error)
}

type UserHandler struct {
	clients ClientStore
	tickets TicketGranter
	log     *log.Entry
}

func NewUserHandler(clients ClientStore, tickets TicketGranter, logger *log.Entry) *UserHandler {
	return &UserHandler{
		clients: clients,
		tickets: tickets,
		log:     logger.WithField("handler", "user"),
	}
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	clientID := c.GetInt64(middleware.KeyClientID)

	client, err := h.clients.FindClientByID(c.Request.Context(), clientID)
	if errors.Is(err, models.ErrClientNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("client_id", clientID).Error("failed to load client")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load client"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"client": client})
}

// GrantTicket issues a one-time socket ticket bound to the caller's address.
func (h *UserHandler) GrantTicket(c *gin.Context) {
	username := c.GetString(middleware.KeyUsername)

	ticket, err := h.tickets.GrantTicket(c.Request.Context(), username, c.ClientIP())
	switch {
	case errors.Is(err, models.ErrClientNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	case errors.Is(err, models.ErrInvalidTicketInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot determine client address"})
		return
	case err != nil:
		h.log.WithError(err).WithField("username", username).Error("failed to grant ticket")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to grant ticket"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

func (h *UserHandler) GetBalance(c *gin.Context) {
	clientID := c.GetInt64(middleware.KeyClientID)

	chips, err := h.clients.Balance(c.Request.Context(), clientID)
	if errors.Is(err, models.ErrClientNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("client_id", clientID).Error("failed to read balance")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read balance"})
		return
	}

	c.JSON(http.StatusOK, models.BalanceResponse{ClientID: clientID, Chips: chips})
}

func (h *UserHandler) GetTransactions(c *gin.Context) {
	clientID := c.GetInt64(middleware.KeyClientID)

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	txs, err := h.clients.Transactions(c.Request.Context(), clientID, limit)
	if err != nil {
		h.log.WithError(err).WithField("client_id", clientID).Error("failed to list transactions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list transactions"})
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}
