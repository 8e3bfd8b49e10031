package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"agrimarket.walletd/internal/domain/entities"
	domainerrors "agrimarket.walletd/internal/domain/errors"
)

// Gateway is a typed adapter over the wallet Provider. It also serves as the signing
// transport of contract handles: writes go through eth_sendTransaction so the wallet signs.
type Gateway struct {
	provider Provider
}

// NewGateway creates a gateway. A nil provider yields a gateway that reports
// ErrProviderUnavailable on every request.
func NewGateway(p Provider) *Gateway {
	return &Gateway{provider: p}
}

// Available reports whether a wallet provider is attached
func (g *Gateway) Available() bool {
	return g != nil && g.provider != nil
}

func (g *Gateway) request(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	if !g.Available() {
		return domainerrors.ErrProviderUnavailable
	}
	raw, err := g.provider.Request(ctx, method, params...)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// RequestAccounts prompts the wallet for account access
func (g *Gateway) RequestAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := g.request(ctx, &accounts, MethodRequestAccounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Accounts returns already authorized accounts without prompting
func (g *Gateway) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := g.request(ctx, &accounts, MethodAccounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// ChainID returns the wallet's active chain
func (g *Gateway) ChainID(ctx context.Context) (uint64, error) {
	var raw string
	if err := g.request(ctx, &raw, MethodChainID); err != nil {
		return 0, err
	}
	return ParseChainID(raw)
}

// SwitchChain asks the wallet to change networks
func (g *Gateway) SwitchChain(ctx context.Context, chainID uint64) error {
	return g.request(ctx, nil, MethodSwitchChain, map[string]string{"chainId": FormatChainID(chainID)})
}

// AddChain asks the wallet to register a network it does not know
func (g *Gateway) AddChain(ctx context.Context, params entities.AddChainParams) error {
	return g.request(ctx, nil, MethodAddChain, params)
}

// RequestPermissions re-prompts the wallet's account picker
func (g *Gateway) RequestPermissions(ctx context.Context) error {
	return g.request(ctx, nil, MethodRequestPermissions, map[string]interface{}{"eth_accounts": map[string]interface{}{}})
}

// Subscribe routes both accountsChanged and chainChanged into sink
func (g *Gateway) Subscribe(sink chan<- Notification) (event.Subscription, error) {
	if !g.Available() {
		return nil, domainerrors.ErrProviderUnavailable
	}
	return event.JoinSubscriptions(
		g.provider.On(EventAccountsChanged, sink),
		g.provider.On(EventChainChanged, sink),
	), nil
}

// Call executes a read-only contract call
func (g *Gateway) Call(ctx context.Context, from, to common.Address, data []byte) ([]byte, error) {
	msg := map[string]interface{}{
		"to":   to,
		"data": hexutil.Bytes(data),
	}
	if from != (common.Address{}) {
		msg["from"] = from
	}
	var out hexutil.Bytes
	if err := g.request(ctx, &out, MethodCall, msg, "latest"); err != nil {
		return nil, err
	}
	return out, nil
}

// SendTransaction submits a transaction for the wallet to sign and broadcast
func (g *Gateway) SendTransaction(ctx context.Context, from, to common.Address, data []byte) (common.Hash, error) {
	var hash common.Hash
	err := g.request(ctx, &hash, MethodSendTransaction, map[string]interface{}{
		"from": from,
		"to":   to,
		"data": hexutil.Bytes(data),
	})
	return hash, err
}

// rpcReceipt decodes only what WaitForReceipt reads. Dev wallets and local nodes return
// receipts without logsBloom or cumulativeGasUsed, which types.Receipt requires.
type rpcReceipt struct {
	TxHash      common.Hash    `json:"transactionHash"`
	BlockHash   common.Hash    `json:"blockHash"`
	BlockNumber *hexutil.Big   `json:"blockNumber"`
	Status      hexutil.Uint64 `json:"status"`
	GasUsed     hexutil.Uint64 `json:"gasUsed"`
}

// TransactionReceipt returns ethereum.NotFound while the transaction is pending
func (g *Gateway) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var r *rpcReceipt
	if err := g.request(ctx, &r, MethodTransactionReceipt, txHash); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ethereum.NotFound
	}
	receipt := &types.Receipt{
		TxHash:    r.TxHash,
		BlockHash: r.BlockHash,
		Status:    uint64(r.Status),
		GasUsed:   uint64(r.GasUsed),
	}
	if r.BlockNumber != nil {
		receipt.BlockNumber = (*big.Int)(r.BlockNumber)
	}
	return receipt, nil
}

// BlockNumber returns the latest block number
func (g *Gateway) BlockNumber(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	if err := g.request(ctx, &n, MethodBlockNumber); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// Logs runs eth_getLogs. Results keep the provider's order.
func (g *Gateway) Logs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	if err := g.request(ctx, &logs, MethodGetLogs, toFilterArg(q)); err != nil {
		return nil, err
	}
	return logs, nil
}

// toFilterArg encodes q the way ethclient does; its encoder is not exported.
func toFilterArg(q ethereum.FilterQuery) map[string]interface{} {
	arg := map[string]interface{}{
		"address": q.Addresses,
		"topics":  q.Topics,
	}
	if q.BlockHash != nil {
		arg["blockHash"] = *q.BlockHash
		return arg
	}
	arg["fromBlock"] = blockArg(q.FromBlock, "earliest")
	arg["toBlock"] = blockArg(q.ToBlock, "latest")
	return arg
}

func blockArg(n *big.Int, fallback string) string {
	if n == nil {
		return fallback
	}
	return hexutil.EncodeBig(n)
}
