package provider

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"

	domainerrors "agrimarket.walletd/internal/domain/errors"
)

var dialRPC = rpc.DialContext

// RPCProvider exposes a JSON-RPC wallet endpoint (a node with unlocked accounts or a
// signer bridge) as a Provider. The endpoint cannot push, so Poll synthesizes
// accountsChanged and chainChanged notifications from eth_accounts / eth_chainId.
type RPCProvider struct {
	client *rpc.Client

	accountsFeed event.Feed
	chainFeed    event.Feed

	mu       sync.Mutex
	primed   bool
	accounts []string
	chainID  string
}

// DialRPCProvider connects to the wallet endpoint. An empty URL means no wallet is installed.
func DialRPCProvider(ctx context.Context, url string) (*RPCProvider, error) {
	if strings.TrimSpace(url) == "" {
		return nil, domainerrors.ErrProviderUnavailable
	}
	client, err := dialRPC(ctx, url)
	if err != nil {
		return nil, err
	}
	return &RPCProvider{client: client}, nil
}

// Request forwards a call to the endpoint. JSON-RPC failures come back as *RPCError.
func (p *RPCProvider) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := p.client.CallContext(ctx, &raw, method, params...); err != nil {
		return nil, toRPCError(err)
	}
	return raw, nil
}

// On registers sink for the named notification
func (p *RPCProvider) On(eventName string, sink chan<- Notification) event.Subscription {
	switch eventName {
	case EventAccountsChanged:
		return p.accountsFeed.Subscribe(sink)
	case EventChainChanged:
		return p.chainFeed.Subscribe(sink)
	default:
		return event.NewSubscription(func(quit <-chan struct{}) error {
			<-quit
			return nil
		})
	}
}

// Poll reads the endpoint's accounts and chain and emits a notification for each that
// differs from the previous poll. The first poll only records the baseline.
func (p *RPCProvider) Poll(ctx context.Context) error {
	var accounts []string
	if err := p.client.CallContext(ctx, &accounts, MethodAccounts); err != nil {
		return toRPCError(err)
	}
	var chainID string
	if err := p.client.CallContext(ctx, &chainID, MethodChainID); err != nil {
		return toRPCError(err)
	}
	chainID = strings.ToLower(chainID)

	p.mu.Lock()
	accountsChanged := p.primed && !sameAccounts(p.accounts, accounts)
	chainChanged := p.primed && p.chainID != chainID
	p.accounts = accounts
	p.chainID = chainID
	p.primed = true
	p.mu.Unlock()

	if chainChanged {
		p.chainFeed.Send(Notification{Event: EventChainChanged, ChainID: chainID})
	}
	if accountsChanged {
		p.accountsFeed.Send(Notification{Event: EventAccountsChanged, Accounts: append([]string(nil), accounts...)})
	}
	return nil
}

// Close releases the underlying connection
func (p *RPCProvider) Close() {
	p.client.Close()
}

func sameAccounts(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

func toRPCError(err error) error {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return err
	}
	out := &RPCError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		out.Data = dataErr.ErrorData()
	}
	return out
}
