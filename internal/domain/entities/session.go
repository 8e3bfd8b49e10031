package entities

import (
	"strings"
	"time"
)

// Role is an application role a wallet can log in as
type Role string

const (
	RoleGuest  Role = "guest"
	RoleFarmer Role = "farmer"
	RoleBuyer  Role = "buyer"
)

// ParseRole accepts any casing of a registered role name.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleFarmer:
		return RoleFarmer, true
	case RoleBuyer:
		return RoleBuyer, true
	case RoleGuest:
		return RoleGuest, true
	}
	return "", false
}

// Session is the logged-in identity. WalletAddress always matches the connected account.
type Session struct {
	WalletAddress string    `json:"walletAddress"`
	Role          Role      `json:"role"`
	DisplayName   string    `json:"displayName"`
	Location      string    `json:"location,omitempty"`
	RegisteredAt  time.Time `json:"registeredAt"`
}

// AvailableRoles is the result of a role lookup for the connected account
type AvailableRoles struct {
	IsFarmer  bool   `json:"isFarmer"`
	IsBuyer   bool   `json:"isBuyer"`
	BuyerName string `json:"buyerName,omitempty"`
}

// FarmerRegistrationInput represents input for registering as a farmer
type FarmerRegistrationInput struct {
	Name     string `json:"name" binding:"required"`
	Location string `json:"location" binding:"required"`
	CertHash string `json:"certHash"`
}

// BuyerRegistrationInput represents input for registering as a buyer
type BuyerRegistrationInput struct {
	Name string `json:"name" binding:"required"`
}

// LoginInput represents input for logging in with a role
type LoginInput struct {
	Role string `json:"role" binding:"required"`
}
