package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrimarket.walletd/internal/domain/entities"
	domainerrors "agrimarket.walletd/internal/domain/errors"
	"agrimarket.walletd/internal/infrastructure/networks"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []entities.ContractEvent
}

func (r *eventRecorder) handle(ev entities.ContractEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *eventRecorder) Events() []entities.ContractEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entities.ContractEvent(nil), r.events...)
}

// emitWhenWatched retries until a watch is attached to receive the log
func emitWhenWatched(t *testing.T, c *fakeContract, name string, id int64) {
	t.Helper()
	require.Eventually(t, func() bool { return c.emit(name, id) > 0 }, waitFor, tick)
}

func TestEventSubscriptionManager_FanOut(t *testing.T) {
	h := newHarness(t, []string{accountA}, networks.SepoliaChainID)
	require.NoError(t, h.conn.Connect(context.Background()))
	contract := contractFor(t, h.factory, accountA)

	var first, second eventRecorder
	_, err := h.events.Subscribe([]string{entities.EventBatchCreated, entities.EventOrderPlaced}, first.handle)
	require.NoError(t, err)
	_, err = h.events.Subscribe([]string{entities.EventBatchCreated}, second.handle)
	require.NoError(t, err)

	assert.True(t, h.events.Listening())
	assert.Equal(t, 2, contract.WatchCalls(), "one watch per event name")

	emitWhenWatched(t, contract, entities.EventBatchCreated, 7)
	require.Eventually(t, func() bool { return first.Len() == 1 && second.Len() == 1 }, waitFor, tick)

	ev := first.Events()[0]
	assert.Equal(t, entities.EventBatchCreated, ev.Name)
	require.NotNil(t, ev.ID)
	assert.Equal(t, int64(7), ev.ID.Int64())
	assert.Equal(t, contract.Address().Hex(), ev.ContractAddress)
	assert.Equal(t, uint64(7), ev.BlockNumber)

	emitWhenWatched(t, contract, entities.EventOrderPlaced, 3)
	require.Eventually(t, func() bool { return first.Len() == 2 }, waitFor, tick)
	assert.Equal(t, 1, second.Len())
	assert.Equal(t, int64(3), first.Events()[1].ID.Int64())
}

func TestEventSubscriptionManager_SubscribeBeforeConnect(t *testing.T) {
	h := newHarness(t, []string{accountA}, networks.SepoliaChainID)

	var rec eventRecorder
	_, err := h.events.Subscribe([]string{entities.EventOrderCompleted}, rec.handle)
	require.NoError(t, err)
	assert.False(t, h.events.Listening())

	subs := h.events.Subscriptions()
	require.Len(t, subs, 1)
	assert.False(t, subs[0].Active)
	assert.Empty(t, subs[0].ContractAddress)

	require.NoError(t, h.conn.Connect(context.Background()))
	contract := contractFor(t, h.factory, accountA)

	emitWhenWatched(t, contract, entities.EventOrderCompleted, 11)
	require.Eventually(t, func() bool { return rec.Len() == 1 }, waitFor, tick)
	assert.True(t, h.events.Listening())

	subs = h.events.Subscriptions()
	require.Len(t, subs, 1)
	assert.True(t, subs[0].Active)
	assert.Equal(t, contract.Address().Hex(), subs[0].ContractAddress)
}

func TestEventSubscriptionManager_Dispose(t *testing.T) {
	h := newHarness(t, []string{accountA}, networks.SepoliaChainID)
	require.NoError(t, h.conn.Connect(context.Background()))
	contract := contractFor(t, h.factory, accountA)

	var kept, dropped eventRecorder
	keep, err := h.events.Subscribe([]string{entities.EventBatchDeleted}, kept.handle)
	require.NoError(t, err)
	drop, err := h.events.Subscribe([]string{entities.EventBatchDeleted, entities.EventOrderCancelled}, dropped.handle)
	require.NoError(t, err)
	assert.NotEqual(t, keep.ID(), drop.ID())

	drop.Dispose()
	drop.Dispose()

	assert.Zero(t, contract.emit(entities.EventOrderCancelled, 1), "watch without subscribers is detached")
	emitWhenWatched(t, contract, entities.EventBatchDeleted, 2)
	require.Eventually(t, func() bool { return kept.Len() == 1 }, waitFor, tick)
	assert.Zero(t, dropped.Len())

	subs := h.events.Subscriptions()
	require.Len(t, subs, 1)
	assert.Equal(t, keep.ID(), subs[0].HandlerID)
}

func TestEventSubscriptionManager_RebindOnAccountChange(t *testing.T) {
	h := newHarness(t, []string{accountA}, networks.SepoliaChainID)
	require.NoError(t, h.conn.Connect(context.Background()))
	oldContract := contractFor(t, h.factory, accountA)

	var rec eventRecorder
	_, err := h.events.Subscribe([]string{entities.EventOrderPlaced}, rec.handle)
	require.NoError(t, err)
	emitWhenWatched(t, oldContract, entities.EventOrderPlaced, 1)
	require.Eventually(t, func() bool { return rec.Len() == 1 }, waitFor, tick)

	h.gateway.emitAccounts(accountB)
	require.Eventually(t, func() bool { return h.conn.State().Account == accountB }, waitFor, tick)
	newContract := contractFor(t, h.factory, accountB)
	require.Eventually(t, func() bool { return newContract.WatchCalls() == 1 }, waitFor, tick)

	assert.Zero(t, oldContract.emit(entities.EventOrderPlaced, 2), "old handle has no watches left")
	emitWhenWatched(t, newContract, entities.EventOrderPlaced, 3)
	require.Eventually(t, func() bool { return rec.Len() == 2 }, waitFor, tick)

	events := rec.Events()
	assert.Equal(t, int64(1), events[0].ID.Int64())
	assert.Equal(t, int64(3), events[1].ID.Int64())
}

func TestEventSubscriptionManager_DisconnectStopsDelivery(t *testing.T) {
	h := newHarness(t, []string{accountA}, networks.SepoliaChainID)
	require.NoError(t, h.conn.Connect(context.Background()))
	contract := contractFor(t, h.factory, accountA)

	var rec eventRecorder
	_, err := h.events.Subscribe([]string{entities.EventBatchCreated}, rec.handle)
	require.NoError(t, err)
	require.True(t, h.events.Listening())

	h.conn.Disconnect()
	assert.False(t, h.events.Listening())
	assert.Zero(t, contract.emit(entities.EventBatchCreated, 5))
	assert.Zero(t, rec.Len())
}

func TestEventSubscriptionManager_AttachFailure(t *testing.T) {
	h := newHarness(t, []string{accountA}, networks.SepoliaChainID)
	h.factory.prepare = func(c *fakeContract) {
		if entities.SameAccount(c.Account().Hex(), accountA) {
			c.watchErr = errors.New("filter not supported")
		}
	}

	var rec eventRecorder
	_, err := h.events.Subscribe([]string{entities.EventOrderPlaced}, rec.handle)
	require.NoError(t, err)

	require.NoError(t, h.conn.Connect(context.Background()))
	failing := contractFor(t, h.factory, accountA)
	require.Eventually(t, func() bool { return failing.WatchCalls() == 1 }, waitFor, tick)
	require.Never(t, h.events.Listening, 50*time.Millisecond, tick)

	_, err = h.events.Subscribe([]string{entities.EventOrderPlaced}, rec.handle)
	require.NoError(t, err)
	assert.Equal(t, 1, failing.WatchCalls(), "no retry on the same handle")
	assert.False(t, h.events.Listening())

	h.gateway.emitAccounts(accountB)
	require.Eventually(t, func() bool { return h.conn.State().Account == accountB }, waitFor, tick)
	require.Eventually(t, h.events.Listening, waitFor, tick)
}

func TestEventSubscriptionManager_RejectsUnknownEvents(t *testing.T) {
	h := newHarness(t, nil, networks.SepoliaChainID)
	noop := func(entities.ContractEvent) {}

	_, err := h.events.Subscribe([]string{"Transfer"}, noop)
	require.ErrorIs(t, err, domainerrors.ErrInvalidInput)
	_, err = h.events.Subscribe(nil, noop)
	require.ErrorIs(t, err, domainerrors.ErrInvalidInput)
	_, err = h.events.Subscribe([]string{entities.EventOrderPlaced}, nil)
	require.ErrorIs(t, err, domainerrors.ErrInvalidInput)
	assert.Empty(t, h.events.Subscriptions())
}
