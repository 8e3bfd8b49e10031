package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/require"

	"agrimarket.walletd/internal/domain/entities"
	"agrimarket.walletd/internal/infrastructure/networks"
	"agrimarket.walletd/internal/infrastructure/provider"
	"agrimarket.walletd/internal/infrastructure/repositories"
	"agrimarket.walletd/internal/infrastructure/storage"
	"agrimarket.walletd/internal/usecases"
)

const (
	accountA = "0x00000000000000000000000000000000000000a1"
	accountB = "0x00000000000000000000000000000000000000b2"
	accountC = "0x00000000000000000000000000000000000000c3"

	sepoliaContract   = "0x1111111111111111111111111111111111111111"
	localhostContract = "0x2222222222222222222222222222222222222222"
)

func testRegistry() *networks.Registry {
	return networks.NewRegistry(map[uint64]string{
		networks.SepoliaChainID:   sepoliaContract,
		networks.LocalhostChainID: localhostContract,
	})
}

// fakeGateway is a scripted wallet
type fakeGateway struct {
	mu          sync.Mutex
	unavailable bool
	accounts    []string
	chainID     uint64
	requestErr  error
	switchErrs  []error
	addErr      error
	calls       []string
	added       []entities.AddChainParams
	// onChainID runs after eth_chainId has been answered
	onChainID func()

	feed event.Feed
}

func (g *fakeGateway) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func (g *fakeGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *fakeGateway) Available() bool { return !g.unavailable }

func (g *fakeGateway) RequestAccounts(context.Context) ([]string, error) {
	g.record(provider.MethodRequestAccounts)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.requestErr != nil {
		return nil, g.requestErr
	}
	return append([]string(nil), g.accounts...), nil
}

func (g *fakeGateway) Accounts(context.Context) ([]string, error) {
	g.record(provider.MethodAccounts)
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.accounts...), nil
}

func (g *fakeGateway) ChainID(context.Context) (uint64, error) {
	g.record(provider.MethodChainID)
	g.mu.Lock()
	id, hook := g.chainID, g.onChainID
	g.onChainID = nil
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	return id, nil
}

func (g *fakeGateway) SwitchChain(_ context.Context, chainID uint64) error {
	g.record(fmt.Sprintf("%s:%d", provider.MethodSwitchChain, chainID))
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.switchErrs) > 0 {
		err := g.switchErrs[0]
		g.switchErrs = g.switchErrs[1:]
		return err
	}
	return nil
}

func (g *fakeGateway) AddChain(_ context.Context, params entities.AddChainParams) error {
	g.record(provider.MethodAddChain)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.added = append(g.added, params)
	return g.addErr
}

func (g *fakeGateway) RequestPermissions(context.Context) error {
	g.record(provider.MethodRequestPermissions)
	return nil
}

func (g *fakeGateway) Subscribe(sink chan<- provider.Notification) (event.Subscription, error) {
	if g.unavailable {
		return nil, errors.New("no wallet")
	}
	return g.feed.Subscribe(sink), nil
}

func (g *fakeGateway) emitAccounts(accounts ...string) {
	g.feed.Send(provider.Notification{Event: provider.EventAccountsChanged, Accounts: accounts})
}

func (g *fakeGateway) emitChain(chainID uint64) {
	g.feed.Send(provider.Notification{Event: provider.EventChainChanged, ChainID: provider.FormatChainID(chainID)})
}

// fakeContract is an in-memory marketplace
type fakeContract struct {
	address common.Address
	chainID uint64
	account common.Address

	mu            sync.Mutex
	farmer        *entities.FarmerRecord
	registered    []string
	receiptStatus uint64
	registerErr   error
	watchErr      error
	watchCalls    int
	feeds         map[string]*event.Feed
	closed        atomic.Bool
}

func newFakeContract(address common.Address, chainID uint64, account common.Address) *fakeContract {
	return &fakeContract{
		address:       address,
		chainID:       chainID,
		account:       account,
		receiptStatus: types.ReceiptStatusSuccessful,
		feeds:         map[string]*event.Feed{},
	}
}

func (c *fakeContract) Address() common.Address { return c.address }
func (c *fakeContract) ChainID() uint64         { return c.chainID }
func (c *fakeContract) Account() common.Address { return c.account }

func (c *fakeContract) Farmer(_ context.Context, wallet common.Address) (*entities.FarmerRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.farmer == nil || c.farmer.Wallet != wallet {
		return &entities.FarmerRecord{RegisteredAt: big.NewInt(0)}, nil
	}
	cp := *c.farmer
	return &cp, nil
}

func (c *fakeContract) BatchCounter(context.Context) (*big.Int, error) { return big.NewInt(4), nil }
func (c *fakeContract) OrderCounter(context.Context) (*big.Int, error) { return big.NewInt(9), nil }

func (c *fakeContract) RegisterFarmer(_ context.Context, name, location, certHash string) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.registerErr != nil {
		return common.Hash{}, c.registerErr
	}
	c.registered = append(c.registered, name)
	if c.receiptStatus == types.ReceiptStatusSuccessful {
		c.farmer = &entities.FarmerRecord{
			Wallet:       c.account,
			Name:         name,
			Location:     location,
			CertHash:     certHash,
			Flags:        entities.FarmerFlagRegistered,
			RegisteredAt: big.NewInt(1700000000),
		}
	}
	return common.HexToHash("0xfeed"), nil
}

func (c *fakeContract) WaitForReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &types.Receipt{Status: c.receiptStatus}, nil
}

func (c *fakeContract) feed(name string) *event.Feed {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.feeds[name]
	if !ok {
		f = new(event.Feed)
		c.feeds[name] = f
	}
	return f
}

func (c *fakeContract) WatchLogs(_ context.Context, eventName string, sink chan<- types.Log) (event.Subscription, error) {
	c.mu.Lock()
	c.watchCalls++
	err := c.watchErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.feed(eventName).Subscribe(sink), nil
}

func (c *fakeContract) WatchCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watchCalls
}

// emit sends a log whose id argument is id; it returns the number of watches reached
func (c *fakeContract) emit(eventName string, id int64) int {
	return c.feed(eventName).Send(types.Log{
		Address:     c.address,
		BlockNumber: uint64(id),
		Data:        []byte(eventName),
	})
}

func (c *fakeContract) UnpackEvent(eventName string, l types.Log) (map[string]interface{}, error) {
	if string(l.Data) != eventName {
		return nil, fmt.Errorf("log is not a %s event", eventName)
	}
	arg, _ := entities.EventIDArg(eventName)
	return map[string]interface{}{arg: new(big.Int).SetUint64(l.BlockNumber)}, nil
}

func (c *fakeContract) Close() { c.closed.Store(true) }

// fakeFactory builds fake contracts; a gate set for an account blocks the build until released
type fakeFactory struct {
	mu       sync.Mutex
	registry *networks.Registry
	built    []*fakeContract
	gates    map[string]chan struct{}
	buildErr error
	prepare  func(*fakeContract)
	builds   atomic.Int32
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{registry: testRegistry(), gates: map[string]chan struct{}{}}
}

func (f *fakeFactory) gate(account string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[entities.NormalizeAddress(account)] = ch
	return ch
}

func (f *fakeFactory) Build(ctx context.Context, account string, chainID uint64) (entities.MarketplaceContract, error) {
	f.builds.Add(1)
	f.mu.Lock()
	gate := f.gates[entities.NormalizeAddress(account)]
	err := f.buildErr
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	network, ok := f.registry.Lookup(chainID)
	if !ok {
		return nil, errors.New("no network")
	}
	c := newFakeContract(network.ContractAddress, chainID, common.HexToAddress(account))
	f.mu.Lock()
	if f.prepare != nil {
		f.prepare(c)
	}
	f.built = append(f.built, c)
	f.mu.Unlock()
	return c, nil
}

func (f *fakeFactory) Built() []*fakeContract {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeContract(nil), f.built...)
}

// recordingListener captures committed transitions
type recordingListener struct {
	mu     sync.Mutex
	name   string
	order  *[]string
	states []entities.ConnectionState
}

func (l *recordingListener) OnConnectionChanged(_ context.Context, _, next entities.ConnectionState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, next)
	if l.order != nil {
		*l.order = append(*l.order, l.name)
	}
}

func (l *recordingListener) Statuses() []entities.ConnectionStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]entities.ConnectionStatus, 0, len(l.states))
	for _, s := range l.states {
		out = append(out, s.Status)
	}
	return out
}

type harness struct {
	gateway  *fakeGateway
	factory  *fakeFactory
	conn     *usecases.ConnectionManager
	events   *usecases.EventSubscriptionManager
	sessions *usecases.SessionManager
	store    *storage.MemoryStore
}

func newHarness(t *testing.T, accounts []string, chainID uint64) *harness {
	t.Helper()
	h := &harness{
		gateway: &fakeGateway{accounts: accounts, chainID: chainID},
		factory: newFakeFactory(),
		store:   storage.NewMemoryStore(),
	}
	h.conn = usecases.NewConnectionManager(h.gateway, h.factory, testRegistry(), nil)
	h.events = usecases.NewEventSubscriptionManager(nil)
	h.sessions = usecases.NewSessionManager(h.conn,
		repositories.NewRoleRepository(h.store),
		repositories.NewSessionRepository(h.store, nil),
	)
	h.conn.AddListener(h.sessions)
	h.conn.AddListener(h.events)
	require.NoError(t, h.conn.Start())
	t.Cleanup(func() {
		h.conn.Close()
		h.events.Close()
	})
	return h
}

func (h *harness) storedSession(t *testing.T) string {
	t.Helper()
	raw, _, err := h.store.Get(context.Background(), repositories.SessionKey)
	require.NoError(t, err)
	return raw
}

func (h *harness) sessionWallet(t *testing.T) string {
	t.Helper()
	raw := h.storedSession(t)
	if raw == "" {
		return ""
	}
	var s entities.Session
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	return s.WalletAddress
}
