package repositories

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"agrimarket.walletd/internal/domain/entities"
	"agrimarket.walletd/internal/domain/repositories"
	"agrimarket.walletd/pkg/crypto"
	"agrimarket.walletd/pkg/logger"
)

// SessionKey is the slot holding the current session
const SessionKey = "agrimarket:session"

// SessionRepository stores the current session, sealed with AES-GCM when a cipher is set
type SessionRepository struct {
	store  repositories.KVStore
	cipher *crypto.Cipher
}

// NewSessionRepository creates a session repository. cipher may be nil for plaintext storage.
func NewSessionRepository(store repositories.KVStore, cipher *crypto.Cipher) *SessionRepository {
	return &SessionRepository{store: store, cipher: cipher}
}

// Load returns nil for a missing, undecryptable or malformed slot
func (r *SessionRepository) Load(ctx context.Context) (*entities.Session, error) {
	raw, found, err := r.store.Get(ctx, SessionKey)
	if err != nil {
		return nil, err
	}
	if !found || raw == "" {
		return nil, nil
	}

	payload := []byte(raw)
	if r.cipher != nil {
		payload, err = r.cipher.Open(raw)
		if err != nil {
			logger.Warn(ctx, "Discarding undecryptable session", zap.Error(err))
			return nil, nil
		}
	}

	var session entities.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		logger.Warn(ctx, "Discarding malformed session", zap.Error(err))
		return nil, nil
	}
	if session.WalletAddress == "" {
		return nil, nil
	}
	return &session, nil
}

func (r *SessionRepository) Save(ctx context.Context, session *entities.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	value := string(payload)
	if r.cipher != nil {
		if value, err = r.cipher.Seal(payload); err != nil {
			return err
		}
	}
	return r.store.Set(ctx, SessionKey, value, 0)
}

func (r *SessionRepository) Clear(ctx context.Context) error {
	return r.store.Remove(ctx, SessionKey)
}
