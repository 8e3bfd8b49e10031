package repositories

import (
	"context"

	"agrimarket.walletd/internal/domain/entities"
)

// SessionRepository persists the single current-session slot
type SessionRepository interface {
	// Load returns nil when no valid session is stored
	Load(ctx context.Context) (*entities.Session, error)
	Save(ctx context.Context, session *entities.Session) error
	Clear(ctx context.Context) error
}
