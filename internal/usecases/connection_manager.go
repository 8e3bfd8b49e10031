package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"

	"agrimarket.walletd/internal/domain/entities"
	domainerrors "agrimarket.walletd/internal/domain/errors"
	"agrimarket.walletd/internal/infrastructure/provider"
	"agrimarket.walletd/pkg/logger"
	"agrimarket.walletd/pkg/metrics"
)

// WalletGateway is the typed wallet surface the connection manager drives
type WalletGateway interface {
	Available() bool
	RequestAccounts(ctx context.Context) ([]string, error)
	Accounts(ctx context.Context) ([]string, error)
	ChainID(ctx context.Context) (uint64, error)
	SwitchChain(ctx context.Context, chainID uint64) error
	AddChain(ctx context.Context, params entities.AddChainParams) error
	RequestPermissions(ctx context.Context) error
	Subscribe(sink chan<- provider.Notification) (event.Subscription, error)
}

// ContractBuilder binds and checks a marketplace handle
type ContractBuilder interface {
	Build(ctx context.Context, account string, chainID uint64) (entities.MarketplaceContract, error)
}

// NetworkRegistry resolves supported networks
type NetworkRegistry interface {
	Lookup(chainID uint64) (entities.Network, bool)
	Supported(chainID uint64) bool
	All() []entities.Network
}

// ConnectionListener is invoked synchronously after every committed state change.
// Listeners must not call back into the ConnectionManager's mutating methods.
type ConnectionListener interface {
	OnConnectionChanged(ctx context.Context, prev, next entities.ConnectionState)
}

// ConnectionManager owns the wallet connection state machine.
// Every initialization attempt takes a generation; only the latest generation may commit.
type ConnectionManager struct {
	gateway  WalletGateway
	factory  ContractBuilder
	networks NetworkRegistry
	metrics  *metrics.WalletMetrics

	mu            sync.RWMutex
	state         entities.ConnectionState
	lastErr       error
	generation    uint64
	targetAccount string
	targetChain   uint64
	// chainSeq counts chainChanged notifications; lastChain is the most recent one
	chainSeq  uint64
	lastChain uint64

	commitMu  sync.Mutex
	listeners []ConnectionListener

	ctx           context.Context
	cancel        context.CancelFunc
	notifications chan provider.Notification
	sub           event.Subscription
	wg            sync.WaitGroup
	startOnce     sync.Once
	closeOnce     sync.Once
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(gateway WalletGateway, factory ContractBuilder, networks NetworkRegistry, m *metrics.WalletMetrics) *ConnectionManager {
	ctx, cancel := context.WithCancel(logger.WithComponent(context.Background(), "connection_manager"))
	return &ConnectionManager{
		gateway:       gateway,
		factory:       factory,
		networks:      networks,
		metrics:       m,
		state:         entities.DisconnectedState(),
		ctx:           ctx,
		cancel:        cancel,
		notifications: make(chan provider.Notification, 16),
	}
}

// AddListener registers l. Listeners run in registration order; register before Start.
func (m *ConnectionManager) AddListener(l ConnectionListener) {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Start subscribes to wallet notifications and runs the dispatcher.
// Without a wallet there is nothing to listen to and Start is a no-op.
func (m *ConnectionManager) Start() error {
	var err error
	m.startOnce.Do(func() {
		if !m.gateway.Available() {
			return
		}
		m.sub, err = m.gateway.Subscribe(m.notifications)
		if err != nil {
			return
		}
		m.wg.Add(1)
		go m.dispatch()
	})
	return err
}

// Close stops the dispatcher, waits for in-flight initializations and releases the handle
func (m *ConnectionManager) Close() {
	m.closeOnce.Do(func() {
		if m.sub != nil {
			m.sub.Unsubscribe()
		}
		m.cancel()
		m.wg.Wait()

		m.mu.Lock()
		m.generation++
		handle := m.state.Contract
		m.state = entities.DisconnectedState()
		m.targetAccount = ""
		m.targetChain = 0
		m.mu.Unlock()
		if handle != nil {
			handle.Close()
		}
	})
}

// State returns a snapshot of the current connection
func (m *ConnectionManager) State() entities.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Contract returns the current handle, or nil
func (m *ConnectionManager) Contract() entities.MarketplaceContract {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Contract
}

// LastError returns the error of the most recent failed transition
func (m *ConnectionManager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// View returns the connection as presented to the UI
func (m *ConnectionManager) View() entities.ConnectionView {
	m.mu.RLock()
	state, lastErr := m.state, m.lastErr
	m.mu.RUnlock()

	view := entities.ConnectionView{
		Account: state.Account,
		ChainID: state.ChainID,
		Status:  state.Status,
	}
	if state.ChainID != 0 {
		view.ChainIDHex = provider.FormatChainID(state.ChainID)
	}
	if network, ok := m.networks.Lookup(state.ChainID); ok {
		view.NetworkName = network.Name
		view.CAIP2 = network.CAIP2ID()
	}
	if state.Contract != nil {
		view.ContractAddress = state.Contract.Address().Hex()
	}
	if lastErr != nil {
		view.LastError = domainerrors.UserMessage(lastErr)
	}
	return view
}

// Networks lists the supported networks
func (m *ConnectionManager) Networks() []entities.Network {
	return m.networks.All()
}

// Connect prompts the wallet for an account and initializes the contract handle
func (m *ConnectionManager) Connect(ctx context.Context) error {
	return m.connect(ctx, true)
}

// Restore reconnects silently to an already authorized account. No account is not an error.
func (m *ConnectionManager) Restore(ctx context.Context) error {
	return m.connect(ctx, false)
}

func (m *ConnectionManager) connect(ctx context.Context, prompt bool) error {
	if !m.gateway.Available() {
		return domainerrors.ErrProviderUnavailable
	}

	m.mu.Lock()
	m.generation++
	gen := m.generation
	prev := m.state
	connecting := entities.ConnectionState{
		Account: prev.Account,
		ChainID: prev.ChainID,
		Status:  entities.ConnectionConnecting,
	}
	m.mu.Unlock()
	// releases prev's handle
	m.commit(gen, connecting, nil)

	var (
		accounts []string
		err      error
	)
	if prompt {
		accounts, err = m.gateway.RequestAccounts(ctx)
	} else {
		accounts, err = m.gateway.Accounts(ctx)
	}
	if err == nil && len(accounts) == 0 && prompt {
		err = domainerrors.ErrWalletNotConnected
	}
	if err != nil {
		err = classifyProviderError(err)
		m.rollback(gen, prev, err)
		return err
	}
	if len(accounts) == 0 {
		m.rollback(gen, prev, nil)
		return nil
	}

	m.mu.RLock()
	seq := m.chainSeq
	m.mu.RUnlock()
	chainID, err := m.gateway.ChainID(ctx)
	if err != nil {
		err = classifyProviderError(err)
		m.rollback(gen, prev, err)
		return err
	}

	account := accounts[0]
	m.mu.Lock()
	if m.chainSeq != seq {
		// a chainChanged arrived while the chain id was in flight
		chainID = m.lastChain
	}
	if gen == m.generation {
		m.targetAccount = account
		m.targetChain = chainID
	}
	m.mu.Unlock()

	return m.initialize(ctx, gen, account, chainID)
}

// rollback returns to prev after a connect attempt that produced no account. A Connected prev
// lost its handle when Connecting was committed, so the handle is rebuilt.
func (m *ConnectionManager) rollback(gen uint64, prev entities.ConnectionState, cause error) {
	if prev.Status != entities.ConnectionConnected {
		m.commit(gen, prev, cause)
		return
	}
	handle, err := m.factory.Build(m.ctx, prev.Account, prev.ChainID)
	if err != nil {
		logger.Warn(m.ctx, "Failed to rebuild contract after connect attempt",
			zap.String("account", prev.Account),
			zap.Uint64("chain_id", prev.ChainID),
			zap.Error(err),
		)
		m.commit(gen, entities.DisconnectedState(), cause)
		return
	}
	prev.Contract = handle
	m.commit(gen, prev, cause)
}

// initialize builds the handle for {account, chainID} and commits the outcome under gen.
// A failed build clears the handle rather than keeping the previous one.
func (m *ConnectionManager) initialize(ctx context.Context, gen uint64, account string, chainID uint64) error {
	if !m.networks.Supported(chainID) {
		m.commit(gen, entities.ConnectionState{
			Account: account,
			ChainID: chainID,
			Status:  entities.ConnectionUnsupportedNetwork,
		}, domainerrors.ErrUnsupportedNetwork)
		return domainerrors.ErrUnsupportedNetwork
	}

	handle, err := m.factory.Build(ctx, account, chainID)
	if err != nil {
		err = classifyProviderError(err)
		next := entities.DisconnectedState()
		if errors.Is(err, domainerrors.ErrUnsupportedNetwork) {
			next = entities.ConnectionState{Account: account, ChainID: chainID, Status: entities.ConnectionUnsupportedNetwork}
		}
		if m.commit(gen, next, err) {
			logger.Error(m.ctx, "Contract initialization failed",
				zap.String("account", account),
				zap.Uint64("chain_id", chainID),
				zap.Error(err),
			)
		}
		return err
	}

	m.commit(gen, entities.ConnectionState{
		Account:  account,
		ChainID:  chainID,
		Contract: handle,
		Status:   entities.ConnectionConnected,
	}, nil)
	return nil
}

// Disconnect resets to Disconnected and supersedes any in-flight initialization
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.targetAccount = ""
	m.targetChain = 0
	m.mu.Unlock()

	m.commit(gen, entities.DisconnectedState(), nil)
}

// SwitchNetwork asks the wallet to move to chainID, adding the network first when the wallet
// does not know it. State follows the resulting chainChanged notification.
func (m *ConnectionManager) SwitchNetwork(ctx context.Context, chainID uint64) error {
	network, ok := m.networks.Lookup(chainID)
	if !ok {
		return fmt.Errorf("%w: chain %d", domainerrors.ErrUnsupportedNetwork, chainID)
	}
	if !m.gateway.Available() {
		return domainerrors.ErrProviderUnavailable
	}

	err := m.gateway.SwitchChain(ctx, chainID)
	if err == nil {
		return nil
	}
	if providerCode(err) != provider.CodeUnrecognizedChain {
		return classifyProviderError(err)
	}

	logger.Info(m.ctx, "Wallet does not know the network, adding it", zap.Uint64("chain_id", chainID))
	if addErr := m.gateway.AddChain(ctx, network.AddChainParams()); addErr != nil {
		if providerCode(addErr) == provider.CodeUserRejected {
			return fmt.Errorf("%w: %w", domainerrors.ErrUserRejected, addErr)
		}
		return fmt.Errorf("%w: %w", domainerrors.ErrChainAddFailed, addErr)
	}
	if err := m.gateway.SwitchChain(ctx, chainID); err != nil {
		return classifyProviderError(err)
	}
	return nil
}

// SwitchAccount opens the wallet's account picker. A new selection arrives as accountsChanged;
// picking the same account changes nothing.
func (m *ConnectionManager) SwitchAccount(ctx context.Context) error {
	if !m.gateway.Available() {
		return domainerrors.ErrProviderUnavailable
	}
	return classifyProviderError(m.gateway.RequestPermissions(ctx))
}

func (m *ConnectionManager) dispatch() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case err, ok := <-m.sub.Err():
			if ok && err != nil {
				logger.Error(m.ctx, "Wallet notification subscription failed", zap.Error(err))
			}
			return
		case n := <-m.notifications:
			m.handleNotification(n)
		}
	}
}

func (m *ConnectionManager) handleNotification(n provider.Notification) {
	switch n.Event {
	case provider.EventAccountsChanged:
		m.handleAccountsChanged(n.Accounts)
	case provider.EventChainChanged:
		chainID, err := provider.ParseChainID(n.ChainID)
		if err != nil {
			logger.Warn(m.ctx, "Ignoring malformed chainChanged", zap.String("chain_id", n.ChainID), zap.Error(err))
			return
		}
		m.handleChainChanged(chainID)
	}
}

func (m *ConnectionManager) handleAccountsChanged(accounts []string) {
	if len(accounts) == 0 {
		m.mu.RLock()
		idle := m.targetAccount == "" && m.state.Status == entities.ConnectionDisconnected
		m.mu.RUnlock()
		if !idle {
			logger.Info(m.ctx, "Wallet locked or all accounts disconnected")
			m.Disconnect()
		}
		return
	}

	account := accounts[0]
	m.mu.Lock()
	if m.targetAccount == "" && m.state.Status == entities.ConnectionDisconnected {
		m.mu.Unlock()
		return
	}
	if entities.SameAccount(account, m.targetAccount) {
		m.mu.Unlock()
		return
	}
	m.generation++
	gen := m.generation
	m.targetAccount = account
	chainID := m.targetChain
	m.mu.Unlock()

	logger.Info(m.ctx, "Wallet account changed", zap.String("account", account), zap.Uint64("generation", gen))
	m.spawnInitialize(gen, account, chainID)
}

func (m *ConnectionManager) handleChainChanged(chainID uint64) {
	m.mu.Lock()
	m.chainSeq++
	m.lastChain = chainID
	if chainID == m.targetChain {
		m.mu.Unlock()
		return
	}
	m.targetChain = chainID
	account := m.targetAccount
	if account == "" {
		m.mu.Unlock()
		return
	}
	m.generation++
	gen := m.generation
	m.mu.Unlock()

	logger.Info(m.ctx, "Wallet network changed", zap.Uint64("chain_id", chainID), zap.Uint64("generation", gen))
	if !m.networks.Supported(chainID) {
		m.commit(gen, entities.ConnectionState{
			Account: account,
			ChainID: chainID,
			Status:  entities.ConnectionUnsupportedNetwork,
		}, domainerrors.ErrUnsupportedNetwork)
		return
	}
	m.spawnInitialize(gen, account, chainID)
}

func (m *ConnectionManager) spawnInitialize(gen uint64, account string, chainID uint64) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if chainID == 0 {
			// account arrived before any chain was known
			id, err := m.gateway.ChainID(m.ctx)
			if err != nil {
				m.commit(gen, entities.DisconnectedState(), classifyProviderError(err))
				return
			}
			chainID = id
			m.mu.Lock()
			if gen == m.generation {
				m.targetChain = id
			}
			m.mu.Unlock()
		}
		_ = m.initialize(m.ctx, gen, account, chainID)
	}()
}

// commit installs next when gen is still the latest generation and notifies listeners in
// registration order. A superseded commit is discarded and its handle closed.
func (m *ConnectionManager) commit(gen uint64, next entities.ConnectionState, cause error) bool {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	m.mu.Lock()
	if gen != m.generation {
		current := m.generation
		orphaned := next.Contract != nil && next.Contract != m.state.Contract
		m.mu.Unlock()
		if orphaned {
			next.Contract.Close()
		}
		m.metrics.RecordStaleDiscarded()
		logger.Debug(m.ctx, "Discarded stale connection attempt",
			zap.Uint64("generation", gen),
			zap.Uint64("current_generation", current),
		)
		return false
	}
	prev := m.state
	m.state = next
	m.lastErr = cause
	m.mu.Unlock()

	if prev.Status != next.Status || !entities.SameAccount(prev.Account, next.Account) || prev.ChainID != next.ChainID {
		logger.LogTransition(m.ctx, string(prev.Status), string(next.Status), next.Account, next.ChainID, gen)
		m.metrics.RecordTransition(string(prev.Status), string(next.Status))
	}

	for _, l := range m.listeners {
		l.OnConnectionChanged(m.ctx, prev, next)
	}

	if prev.Contract != nil && prev.Contract != next.Contract {
		prev.Contract.Close()
	}
	return true
}

func providerCode(err error) int {
	var coded interface{ ErrorCode() int }
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return 0
}

// Stats reads the batch and order counters through the current handle
func (m *ConnectionManager) Stats(ctx context.Context) (*entities.ContractStats, error) {
	contract := m.Contract()
	if contract == nil {
		return nil, domainerrors.ErrWalletNotConnected
	}
	batches, err := contract.BatchCounter(ctx)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	orders, err := contract.OrderCounter(ctx)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	return &entities.ContractStats{
		ContractAddress: contract.Address().Hex(),
		ChainID:         contract.ChainID(),
		BatchCount:      batches.String(),
		OrderCount:      orders.String(),
	}, nil
}
