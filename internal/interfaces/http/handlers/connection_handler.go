package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"agrimarket.walletd/internal/domain/entities"
	domainerrors "agrimarket.walletd/internal/domain/errors"
	"agrimarket.walletd/internal/infrastructure/provider"
	"agrimarket.walletd/internal/interfaces/http/response"
	"agrimarket.walletd/internal/usecases"
)

type connectionService interface {
	View() entities.ConnectionView
	Networks() []entities.Network
	Connect(ctx context.Context) error
	Disconnect()
	SwitchNetwork(ctx context.Context, chainID uint64) error
	SwitchAccount(ctx context.Context) error
}

// ConnectionHandler handles wallet connection endpoints
type ConnectionHandler struct {
	connection connectionService
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(connection *usecases.ConnectionManager) *ConnectionHandler {
	return &ConnectionHandler{connection: connection}
}

// SwitchNetworkInput accepts a decimal or 0x-prefixed chain id
type SwitchNetworkInput struct {
	ChainID string `json:"chainId" binding:"required"`
}

// GetConnection returns the current connection
// GET /api/v1/connection
func (h *ConnectionHandler) GetConnection(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"connection": h.connection.View()})
}

// Connect prompts the wallet for an account
// POST /api/v1/connection/connect
func (h *ConnectionHandler) Connect(c *gin.Context) {
	if err := h.connection.Connect(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"connection": h.connection.View()})
}

// Disconnect resets the connection
// POST /api/v1/connection/disconnect
func (h *ConnectionHandler) Disconnect(c *gin.Context) {
	h.connection.Disconnect()
	response.Success(c, http.StatusOK, gin.H{"connection": h.connection.View()})
}

// SwitchNetwork asks the wallet to change network. The new state follows the wallet's
// chainChanged notification, so the response only acknowledges the request.
// POST /api/v1/connection/network
func (h *ConnectionHandler) SwitchNetwork(c *gin.Context) {
	var input SwitchNetworkInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	chainID, err := parseChainID(input.ChainID)
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid chain ID"))
		return
	}

	if err := h.connection.SwitchNetwork(c.Request.Context(), chainID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{
		"message":    "Network switch requested",
		"connection": h.connection.View(),
	})
}

// SwitchAccount opens the wallet's account picker
// POST /api/v1/connection/account
func (h *ConnectionHandler) SwitchAccount(c *gin.Context) {
	if err := h.connection.SwitchAccount(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"message": "Account selection requested"})
}

// ListNetworks lists the supported networks
// GET /api/v1/networks
func (h *ConnectionHandler) ListNetworks(c *gin.Context) {
	networks := h.connection.Networks()
	if networks == nil {
		networks = []entities.Network{}
	}
	response.Success(c, http.StatusOK, gin.H{"networks": networks})
}

func parseChainID(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(raw), "0x") {
		return provider.ParseChainID(raw)
	}
	return strconv.ParseUint(raw, 10, 64)
}
