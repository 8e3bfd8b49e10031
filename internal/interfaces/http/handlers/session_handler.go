package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"agrimarket.walletd/internal/domain/entities"
	domainerrors "agrimarket.walletd/internal/domain/errors"
	"agrimarket.walletd/internal/interfaces/http/response"
	"agrimarket.walletd/internal/usecases"
)

type sessionService interface {
	Current(ctx context.Context) (*entities.Session, error)
	CheckAvailableRoles(ctx context.Context) (*entities.AvailableRoles, error)
	Login(ctx context.Context, role entities.Role) (*entities.Session, error)
	Logout(ctx context.Context) error
	RegisterAsFarmer(ctx context.Context, input *entities.FarmerRegistrationInput) (*entities.Session, error)
	RegisterAsBuyer(ctx context.Context, input *entities.BuyerRegistrationInput) (*entities.Session, error)
}

// SessionHandler handles role and session endpoints
type SessionHandler struct {
	sessions sessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *usecases.SessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// GetSession returns the current session, or null
// GET /api/v1/session
func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.sessions.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// GetRoles reports which roles the connected wallet holds
// GET /api/v1/session/roles
func (h *SessionHandler) GetRoles(c *gin.Context) {
	roles, err := h.sessions.CheckAvailableRoles(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"roles": roles})
}

// Login opens a session for a registered role
// POST /api/v1/session/login
func (h *SessionHandler) Login(c *gin.Context) {
	var input entities.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	role, ok := entities.ParseRole(input.Role)
	if !ok {
		response.Error(c, domainerrors.BadRequest("Invalid role"))
		return
	}

	session, err := h.sessions.Login(c.Request.Context(), role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// Logout clears the session
// POST /api/v1/session/logout
func (h *SessionHandler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Logged out"})
}

// RegisterFarmer registers the wallet on the marketplace contract
// POST /api/v1/session/register/farmer
func (h *SessionHandler) RegisterFarmer(c *gin.Context) {
	var input entities.FarmerRegistrationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	session, err := h.sessions.RegisterAsFarmer(c.Request.Context(), &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"session": session})
}

// RegisterBuyer records the buyer role for the wallet
// POST /api/v1/session/register/buyer
func (h *SessionHandler) RegisterBuyer(c *gin.Context) {
	var input entities.BuyerRegistrationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	session, err := h.sessions.RegisterAsBuyer(c.Request.Context(), &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"session": session})
}
