package usecases

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"agrimarket.walletd/internal/domain/entities"
	domainerrors "agrimarket.walletd/internal/domain/errors"
	"agrimarket.walletd/internal/domain/repositories"
	"agrimarket.walletd/pkg/logger"
)

var sessionNow = time.Now

// ConnectionReader exposes the committed connection state
type ConnectionReader interface {
	State() entities.ConnectionState
}

// SessionManager derives application roles from the connected wallet and owns the session slot.
// A stored session always belongs to the connected account.
type SessionManager struct {
	connection ConnectionReader
	roles      repositories.RoleRepository
	sessions   repositories.SessionRepository

	// serializes account checks with session writes
	mu sync.Mutex
}

func NewSessionManager(connection ConnectionReader, roles repositories.RoleRepository, sessions repositories.SessionRepository) *SessionManager {
	return &SessionManager{
		connection: connection,
		roles:      roles,
		sessions:   sessions,
	}
}

type roleLookup struct {
	available entities.AvailableRoles
	farmer    *entities.FarmerRecord
	record    *entities.RoleRecord
}

func (s *SessionManager) lookupRoles(ctx context.Context, state entities.ConnectionState) (*roleLookup, error) {
	if !state.HasAccount() || state.Contract == nil {
		return nil, domainerrors.ErrWalletNotConnected
	}

	farmer, err := state.Contract.Farmer(ctx, common.HexToAddress(state.Account))
	if err != nil {
		return nil, classifyProviderError(err)
	}

	record, err := s.roles.Get(ctx, state.Account)
	if err != nil && err != domainerrors.ErrNotFound {
		return nil, err
	}

	out := &roleLookup{farmer: farmer, record: record}
	out.available.IsFarmer = farmer.IsRegistered() && !farmer.IsDeleted()
	out.available.IsBuyer = record.HasRole(entities.RoleBuyer)
	if out.available.IsBuyer && record.BuyerName.Valid {
		out.available.BuyerName = record.BuyerName.String
	}
	return out, nil
}

// CheckAvailableRoles reports which roles the connected account can log in as
func (s *SessionManager) CheckAvailableRoles(ctx context.Context) (*entities.AvailableRoles, error) {
	lookup, err := s.lookupRoles(ctx, s.connection.State())
	if err != nil {
		return nil, err
	}
	return &lookup.available, nil
}

// RegisterAsFarmer sends registerFarmer, waits for it to be mined and then records the role
// and opens a farmer session
func (s *SessionManager) RegisterAsFarmer(ctx context.Context, input *entities.FarmerRegistrationInput) (*entities.Session, error) {
	if input == nil || strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Location) == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	state := s.connection.State()
	if !state.HasAccount() || state.Contract == nil {
		return nil, domainerrors.ErrWalletNotConnected
	}
	name := strings.TrimSpace(input.Name)
	location := strings.TrimSpace(input.Location)

	txHash, err := state.Contract.RegisterFarmer(ctx, name, location, strings.TrimSpace(input.CertHash))
	if err != nil {
		return nil, classifyProviderError(err)
	}
	logger.Info(ctx, "Farmer registration submitted", zap.String("account", state.Account), zap.String("tx_hash", txHash.Hex()))

	receipt, err := state.Contract.WaitForReceipt(ctx, txHash)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, &domainerrors.RevertError{}
	}

	if _, err := s.roles.Upsert(ctx, state.Account, entities.RoleUpdate{
		Role:       entities.RoleFarmer,
		FarmerName: name,
		Location:   location,
	}); err != nil {
		return nil, err
	}

	session := &entities.Session{
		WalletAddress: state.Account,
		Role:          entities.RoleFarmer,
		DisplayName:   name,
		Location:      location,
		RegisteredAt:  sessionNow().UTC(),
	}
	if err := s.saveFor(ctx, state.Account, session); err != nil {
		return nil, err
	}
	return session, nil
}

// RegisterAsBuyer records the buyer role locally; the contract has no buyer registry
func (s *SessionManager) RegisterAsBuyer(ctx context.Context, input *entities.BuyerRegistrationInput) (*entities.Session, error) {
	if input == nil || strings.TrimSpace(input.Name) == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	state := s.connection.State()
	if !state.HasAccount() {
		return nil, domainerrors.ErrWalletNotConnected
	}
	name := strings.TrimSpace(input.Name)

	record, err := s.roles.Upsert(ctx, state.Account, entities.RoleUpdate{
		Role:      entities.RoleBuyer,
		BuyerName: name,
	})
	if err != nil {
		return nil, err
	}

	session := &entities.Session{
		WalletAddress: state.Account,
		Role:          entities.RoleBuyer,
		DisplayName:   name,
		RegisteredAt:  record.RegisteredAt.Time,
	}
	if err := s.saveFor(ctx, state.Account, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Login opens a session for role after checking the account holds it
func (s *SessionManager) Login(ctx context.Context, role entities.Role) (*entities.Session, error) {
	state := s.connection.State()
	lookup, err := s.lookupRoles(ctx, state)
	if err != nil {
		return nil, err
	}

	session := &entities.Session{WalletAddress: state.Account, Role: role}
	switch role {
	case entities.RoleFarmer:
		if !lookup.available.IsFarmer {
			return nil, domainerrors.ErrRoleNotRegistered
		}
		session.DisplayName = lookup.farmer.Name
		session.Location = lookup.farmer.Location
		if lookup.farmer.RegisteredAt != nil && lookup.farmer.RegisteredAt.Sign() > 0 {
			session.RegisteredAt = time.Unix(lookup.farmer.RegisteredAt.Int64(), 0).UTC()
		}
	case entities.RoleBuyer:
		if !lookup.available.IsBuyer {
			return nil, domainerrors.ErrRoleNotRegistered
		}
		session.DisplayName = lookup.available.BuyerName
		if lookup.record.Location.Valid {
			session.Location = lookup.record.Location.String
		}
		session.RegisteredAt = lookup.record.RegisteredAt.Time
	default:
		return nil, domainerrors.ErrRoleNotRegistered
	}

	if err := s.saveFor(ctx, state.Account, session); err != nil {
		return nil, err
	}
	logger.Info(ctx, "Session opened", zap.String("account", state.Account), zap.String("role", string(role)))
	return session, nil
}

// Logout clears the session slot. Role records are kept.
func (s *SessionManager) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.Clear(ctx)
}

// Current returns the stored session, or nil. A session of another wallet is discarded.
func (s *SessionManager) Current(ctx context.Context) (*entities.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.sessions.Load(ctx)
	if err != nil || session == nil {
		return nil, err
	}
	if !entities.SameAccount(session.WalletAddress, s.connection.State().Account) {
		logger.Info(ctx, "Discarding session of a different wallet", zap.String("session_wallet", session.WalletAddress))
		return nil, s.sessions.Clear(ctx)
	}
	return session, nil
}

// OnConnectionChanged drops the session as soon as the connected account changes
func (s *SessionManager) OnConnectionChanged(ctx context.Context, prev, next entities.ConnectionState) {
	if entities.SameAccount(prev.Account, next.Account) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.sessions.Load(ctx)
	if err != nil {
		logger.Error(ctx, "Failed to load session on account change", zap.Error(err))
		return
	}
	if session == nil || entities.SameAccount(session.WalletAddress, next.Account) {
		return
	}
	if err := s.sessions.Clear(ctx); err != nil {
		logger.Error(ctx, "Failed to clear session on account change", zap.Error(err))
		return
	}
	logger.Info(ctx, "Session invalidated by account change",
		zap.String("session_wallet", session.WalletAddress),
		zap.String("account", next.Account),
	)
}

// saveFor persists session only while account is still the connected one
func (s *SessionManager) saveFor(ctx context.Context, account string, session *entities.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.connection.State().Account
	if !entities.SameAccount(current, account) {
		return fmt.Errorf("%w: account changed during the request", domainerrors.ErrWalletNotConnected)
	}
	return s.sessions.Save(ctx, session)
}
