package entities

import (
	"strings"

	"github.com/volatiletech/null/v8"
)

// RoleRecord is the locally persisted registration history of a wallet.
// Fields are append-only: roles are only added and names only replaced by non-empty values.
type RoleRecord struct {
	WalletAddress string      `json:"walletAddress"`
	Roles         []Role      `json:"roles"`
	FarmerName    null.String `json:"farmerName"`
	BuyerName     null.String `json:"buyerName"`
	Location      null.String `json:"location"`
	RegisteredAt  null.Time   `json:"registeredAt"`
}

// RoleUpdate carries the fields to merge into a RoleRecord
type RoleUpdate struct {
	Role       Role
	FarmerName string
	BuyerName  string
	Location   string
}

// NormalizeAddress lowercases an address for use as a record key.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// HasRole reports whether the record contains role
func (r *RoleRecord) HasRole(role Role) bool {
	if r == nil {
		return false
	}
	for _, have := range r.Roles {
		if have == role {
			return true
		}
	}
	return false
}
