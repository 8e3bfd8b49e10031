package repositories

import (
	"context"

	"agrimarket.walletd/internal/domain/entities"
)

// RoleRepository defines role record data operations. Addresses are matched case-insensitively.
type RoleRepository interface {
	// Get returns ErrNotFound when the address has no record
	Get(ctx context.Context, address string) (*entities.RoleRecord, error)
	Upsert(ctx context.Context, address string, update entities.RoleUpdate) (*entities.RoleRecord, error)
}
