package usecases

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"

	"agrimarket.walletd/internal/domain/entities"
	domainerrors "agrimarket.walletd/internal/domain/errors"
	"agrimarket.walletd/pkg/logger"
	"agrimarket.walletd/pkg/metrics"
	"agrimarket.walletd/pkg/utils"
)

// EventHandler receives normalized contract events. Handlers run on the watch goroutine and
// must not call back into the ConnectionManager.
type EventHandler func(entities.ContractEvent)

// Subscription is a registered handler. It survives handle changes until disposed.
type Subscription struct {
	id      string
	names   []string
	handler EventHandler
	manager *EventSubscriptionManager
	once    sync.Once
}

// ID returns the handler id
func (s *Subscription) ID() string { return s.id }

// Dispose removes the handler and detaches watches nobody else needs
func (s *Subscription) Dispose() {
	s.once.Do(func() { s.manager.remove(s) })
}

type contractWatch struct {
	name string
	sub  event.Subscription
	sink chan types.Log
}

// EventSubscriptionManager keeps one watch per event name on the current contract handle and
// fans logs out to every subscriber of that name.
type EventSubscriptionManager struct {
	metrics *metrics.WalletMetrics
	ctx     context.Context

	mu          sync.Mutex
	subscribers []*Subscription
	contract    entities.MarketplaceContract
	watches     map[string]*contractWatch
	failed      map[string]bool

	// epoch changes under deliverMu and mu; a delivery holds the read lock and checks its epoch
	deliverMu sync.RWMutex
	epoch     atomic.Uint64
	attachMu  sync.Mutex

	wg sync.WaitGroup
}

// NewEventSubscriptionManager creates a manager with no handle bound
func NewEventSubscriptionManager(m *metrics.WalletMetrics) *EventSubscriptionManager {
	return &EventSubscriptionManager{
		metrics: m,
		ctx:     logger.WithComponent(context.Background(), "event_subscriptions"),
		watches: make(map[string]*contractWatch),
		failed:  make(map[string]bool),
	}
}

// Subscribe registers handler for names and attaches any missing watches on the current handle
func (m *EventSubscriptionManager) Subscribe(names []string, handler EventHandler) (*Subscription, error) {
	if handler == nil || len(names) == 0 {
		return nil, domainerrors.ErrInvalidInput
	}
	seen := make(map[string]bool, len(names))
	unique := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := entities.EventIDArg(name); !ok {
			return nil, fmt.Errorf("%w: unknown event %q", domainerrors.ErrInvalidInput, name)
		}
		if !seen[name] {
			seen[name] = true
			unique = append(unique, name)
		}
	}

	s := &Subscription{id: utils.NewID(), names: unique, handler: handler, manager: m}
	m.mu.Lock()
	m.subscribers = append(m.subscribers, s)
	contract, epoch := m.contract, m.epoch.Load()
	m.mu.Unlock()

	if contract != nil {
		m.attach(epoch, contract, unique)
	}
	return s, nil
}

// Listening reports whether every wanted watch is attached to a live handle
func (m *EventSubscriptionManager) Listening() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contract != nil && len(m.failed) == 0
}

// Subscriptions returns one entry per subscriber and event name
func (m *EventSubscriptionManager) Subscriptions() []entities.EventSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	address := ""
	if m.contract != nil {
		address = m.contract.Address().Hex()
	}
	var out []entities.EventSubscription
	for _, s := range m.subscribers {
		for _, name := range s.names {
			_, active := m.watches[name]
			out = append(out, entities.EventSubscription{
				EventName:       name,
				HandlerID:       s.id,
				ContractAddress: address,
				Active:          active,
			})
		}
	}
	return out
}

// OnConnectionChanged moves every watch to the new handle. Nothing from the old handle is
// delivered once this returns.
func (m *EventSubscriptionManager) OnConnectionChanged(_ context.Context, prev, next entities.ConnectionState) {
	if prev.Contract == next.Contract {
		return
	}
	epoch, names := m.rebind(next.Contract)
	if next.Contract == nil || len(names) == 0 {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.attach(epoch, next.Contract, names)
	}()
}

// Close detaches every watch and waits for watch goroutines to finish
func (m *EventSubscriptionManager) Close() {
	m.rebind(nil)
	m.wg.Wait()
}

func (m *EventSubscriptionManager) rebind(contract entities.MarketplaceContract) (uint64, []string) {
	m.deliverMu.Lock()
	m.mu.Lock()
	epoch := m.epoch.Add(1)
	old := m.watches
	m.watches = make(map[string]*contractWatch)
	m.failed = make(map[string]bool)
	m.contract = contract
	names := m.wantedLocked()
	m.mu.Unlock()
	m.deliverMu.Unlock()

	for _, w := range old {
		w.sub.Unsubscribe()
	}
	m.metrics.SetActiveWatches(0)
	if len(old) > 0 {
		logger.Info(m.ctx, "Detached contract event watches", zap.Int("count", len(old)), zap.Uint64("epoch", epoch))
	}
	return epoch, names
}

func (m *EventSubscriptionManager) wantedLocked() []string {
	seen := map[string]bool{}
	var names []string
	for _, s := range m.subscribers {
		for _, name := range s.names {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// attach starts watches for names that have none yet. Failures are not retried on this handle.
func (m *EventSubscriptionManager) attach(epoch uint64, contract entities.MarketplaceContract, names []string) {
	m.attachMu.Lock()
	defer m.attachMu.Unlock()

	for _, name := range names {
		m.mu.Lock()
		skip := m.epoch.Load() != epoch || m.watches[name] != nil || m.failed[name]
		m.mu.Unlock()
		if skip {
			continue
		}

		sink := make(chan types.Log, 64)
		sub, err := contract.WatchLogs(m.ctx, name, sink)

		m.mu.Lock()
		if m.epoch.Load() != epoch {
			m.mu.Unlock()
			if sub != nil {
				sub.Unsubscribe()
			}
			return
		}
		if err != nil {
			m.failed[name] = true
			m.mu.Unlock()
			m.metrics.RecordAttachFailure(name)
			logger.Error(m.ctx, "Failed to attach contract event watch",
				zap.String("event", name),
				zap.String("contract", contract.Address().Hex()),
				zap.Error(err),
			)
			continue
		}
		w := &contractWatch{name: name, sub: sub, sink: sink}
		m.watches[name] = w
		active := len(m.watches)
		m.mu.Unlock()

		m.metrics.SetActiveWatches(active)
		m.wg.Add(1)
		go m.run(epoch, contract, w)
	}
}

func (m *EventSubscriptionManager) run(epoch uint64, contract entities.MarketplaceContract, w *contractWatch) {
	defer m.wg.Done()
	for {
		select {
		case l := <-w.sink:
			m.deliver(epoch, contract, w.name, l)
		case err, ok := <-w.sub.Err():
			if ok && err != nil {
				logger.Error(m.ctx, "Contract event watch failed", zap.String("event", w.name), zap.Error(err))
			}
			return
		}
	}
}

func (m *EventSubscriptionManager) deliver(epoch uint64, contract entities.MarketplaceContract, name string, l types.Log) {
	args, err := contract.UnpackEvent(name, l)
	if err != nil {
		logger.Warn(m.ctx, "Dropping undecodable contract log", zap.String("event", name), zap.Error(err))
		return
	}
	ev := entities.ContractEvent{
		Name:            name,
		Args:            args,
		ContractAddress: contract.Address().Hex(),
		BlockNumber:     l.BlockNumber,
		TxHash:          l.TxHash.Hex(),
		Raw:             l,
	}
	if arg, ok := entities.EventIDArg(name); ok {
		if id, ok := args[arg].(*big.Int); ok {
			ev.ID = id
		}
	}

	m.deliverMu.RLock()
	defer m.deliverMu.RUnlock()
	if m.epoch.Load() != epoch {
		return
	}

	m.mu.Lock()
	var handlers []EventHandler
	for _, s := range m.subscribers {
		for _, n := range s.names {
			if n == name {
				handlers = append(handlers, s.handler)
				break
			}
		}
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(ev)
		m.metrics.RecordEventDelivered(name)
	}
}

func (m *EventSubscriptionManager) remove(s *Subscription) {
	m.mu.Lock()
	for i, existing := range m.subscribers {
		if existing == s {
			m.subscribers = append(m.subscribers[:i:i], m.subscribers[i+1:]...)
			break
		}
	}
	wanted := make(map[string]bool)
	for _, name := range m.wantedLocked() {
		wanted[name] = true
	}
	var orphaned []*contractWatch
	for name, w := range m.watches {
		if !wanted[name] {
			orphaned = append(orphaned, w)
			delete(m.watches, name)
		}
	}
	for name := range m.failed {
		if !wanted[name] {
			delete(m.failed, name)
		}
	}
	active := len(m.watches)
	m.mu.Unlock()

	for _, w := range orphaned {
		w.sub.Unsubscribe()
	}
	m.metrics.SetActiveWatches(active)
}
