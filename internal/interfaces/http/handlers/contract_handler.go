package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"agrimarket.walletd/internal/domain/entities"
	"agrimarket.walletd/internal/interfaces/http/response"
	"agrimarket.walletd/internal/usecases"
)

type statsService interface {
	Stats(ctx context.Context) (*entities.ContractStats, error)
}

// ContractHandler reads marketplace state through the current handle
type ContractHandler struct {
	contract statsService
}

// NewContractHandler creates a new contract handler
func NewContractHandler(connection *usecases.ConnectionManager) *ContractHandler {
	return &ContractHandler{contract: connection}
}

// Stats returns the batch and order counters
// GET /api/v1/contract/stats
func (h *ContractHandler) Stats(c *gin.Context) {
	stats, err := h.contract.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}
