package repositories

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"agrimarket.walletd/internal/domain/entities"
	domainerrors "agrimarket.walletd/internal/domain/errors"
	"agrimarket.walletd/internal/domain/repositories"
	"agrimarket.walletd/pkg/logger"
)

// RolesKey is the slot holding every role record as one JSON map
const RolesKey = "agrimarket:roles"

var nowFunc = time.Now

type RoleRepository struct {
	store repositories.KVStore
	mu    sync.Mutex
}

func NewRoleRepository(store repositories.KVStore) *RoleRepository {
	return &RoleRepository{store: store}
}

// load reads the whole map. A missing or malformed slot reads as empty.
func (r *RoleRepository) load(ctx context.Context) (map[string]*entities.RoleRecord, error) {
	raw, found, err := r.store.Get(ctx, RolesKey)
	if err != nil {
		return nil, err
	}
	records := make(map[string]*entities.RoleRecord)
	if !found || raw == "" {
		return records, nil
	}
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		logger.Warn(ctx, "Discarding malformed role records", zap.Error(err))
		return make(map[string]*entities.RoleRecord), nil
	}
	// keys written by older clients may not be normalized
	normalized := make(map[string]*entities.RoleRecord, len(records))
	for key, rec := range records {
		if rec == nil {
			continue
		}
		normalized[entities.NormalizeAddress(key)] = rec
	}
	return normalized, nil
}

func (r *RoleRepository) Get(ctx context.Context, address string) (*entities.RoleRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := records[entities.NormalizeAddress(address)]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	return rec, nil
}

// Upsert merges update into the record for address. Existing roles and names are never removed.
func (r *RoleRepository) Upsert(ctx context.Context, address string, update entities.RoleUpdate) (*entities.RoleRecord, error) {
	key := entities.NormalizeAddress(address)
	if key == "" {
		return nil, domainerrors.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	rec, ok := records[key]
	if !ok {
		rec = &entities.RoleRecord{WalletAddress: key}
		records[key] = rec
	}
	if update.Role != "" && update.Role != entities.RoleGuest && !rec.HasRole(update.Role) {
		rec.Roles = append(rec.Roles, update.Role)
	}
	if name := strings.TrimSpace(update.FarmerName); name != "" {
		rec.FarmerName = null.StringFrom(name)
	}
	if name := strings.TrimSpace(update.BuyerName); name != "" {
		rec.BuyerName = null.StringFrom(name)
	}
	if loc := strings.TrimSpace(update.Location); loc != "" {
		rec.Location = null.StringFrom(loc)
	}
	if !rec.RegisteredAt.Valid {
		rec.RegisteredAt = null.TimeFrom(nowFunc().UTC())
	}

	raw, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	if err := r.store.Set(ctx, RolesKey, string(raw), 0); err != nil {
		return nil, err
	}
	return rec, nil
}
