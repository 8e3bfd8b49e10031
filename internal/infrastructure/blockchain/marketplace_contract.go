package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"

	"agrimarket.walletd/internal/domain/entities"
	domainerrors "agrimarket.walletd/internal/domain/errors"
	"agrimarket.walletd/pkg/logger"
)

var receiptPollInterval = time.Second

// Transport carries contract calls to the chain. Writes are signed by the wallet behind it.
type Transport interface {
	Call(ctx context.Context, from, to common.Address, data []byte) ([]byte, error)
	SendTransaction(ctx context.Context, from, to common.Address, data []byte) (common.Hash, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Logs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// MarketplaceContract is bound to one {address, ABI, signer account} on one chain
type MarketplaceContract struct {
	address      common.Address
	chainID      uint64
	account      common.Address
	abi          *abi.ABI
	transport    Transport
	pollInterval time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// NewMarketplaceContract binds a handle. Prefer ContractFactory.Build, which also checks the contract.
func NewMarketplaceContract(parsed *abi.ABI, transport Transport, address common.Address, chainID uint64, account common.Address, pollInterval time.Duration) *MarketplaceContract {
	if pollInterval <= 0 {
		pollInterval = 4 * time.Second
	}
	return &MarketplaceContract{
		address:      address,
		chainID:      chainID,
		account:      account,
		abi:          parsed,
		transport:    transport,
		pollInterval: pollInterval,
		done:         make(chan struct{}),
	}
}

func (c *MarketplaceContract) Address() common.Address { return c.address }

func (c *MarketplaceContract) ChainID() uint64 { return c.chainID }

func (c *MarketplaceContract) Account() common.Address { return c.account }

func (c *MarketplaceContract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := c.transport.Call(ctx, c.account, c.address, data)
	if err != nil {
		return nil, err
	}
	values, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

// Farmer reads farmers(wallet)
func (c *MarketplaceContract) Farmer(ctx context.Context, wallet common.Address) (*entities.FarmerRecord, error) {
	values, err := c.call(ctx, "farmers", wallet)
	if err != nil {
		return nil, err
	}
	if len(values) != 6 {
		return nil, fmt.Errorf("farmers: unexpected output length %d", len(values))
	}
	record := &entities.FarmerRecord{}
	var ok [6]bool
	record.Wallet, ok[0] = values[0].(common.Address)
	record.Name, ok[1] = values[1].(string)
	record.Location, ok[2] = values[2].(string)
	record.CertHash, ok[3] = values[3].(string)
	record.Flags, ok[4] = values[4].(uint8)
	record.RegisteredAt, ok[5] = values[5].(*big.Int)
	for i, good := range ok {
		if !good {
			return nil, fmt.Errorf("farmers: unexpected type for output %d", i)
		}
	}
	return record, nil
}

func (c *MarketplaceContract) counter(ctx context.Context, method string) (*big.Int, error) {
	values, err := c.call(ctx, method)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s: unexpected output length %d", method, len(values))
	}
	n, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected output type", method)
	}
	return n, nil
}

func (c *MarketplaceContract) BatchCounter(ctx context.Context) (*big.Int, error) {
	return c.counter(ctx, "batchCounter")
}

func (c *MarketplaceContract) OrderCounter(ctx context.Context) (*big.Int, error) {
	return c.counter(ctx, "orderCounter")
}

// RegisterFarmer submits registerFarmer from the bound account and returns the tx hash
func (c *MarketplaceContract) RegisterFarmer(ctx context.Context, name, location, certHash string) (common.Hash, error) {
	if c.account == (common.Address{}) {
		return common.Hash{}, domainerrors.ErrWalletNotConnected
	}
	data, err := c.abi.Pack("registerFarmer", name, location, certHash)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack registerFarmer: %w", err)
	}
	return c.transport.SendTransaction(ctx, c.account, c.address, data)
}

// WaitForReceipt polls until the transaction is mined or ctx ends
func (c *MarketplaceContract) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.transport.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// WatchLogs streams logs of eventName emitted after the current head. The watch ends when
// unsubscribed or when the handle is closed.
func (c *MarketplaceContract) WatchLogs(ctx context.Context, eventName string, sink chan<- types.Log) (event.Subscription, error) {
	ev, ok := c.abi.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("unknown event %q", eventName)
	}
	select {
	case <-c.done:
		return nil, errors.New("contract handle closed")
	default:
	}
	head, err := c.transport.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", eventName, err)
	}

	query := ethereum.FilterQuery{
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{ev.ID}},
	}
	from := head + 1
	logCtx := logger.WithComponent(context.Background(), "contract_watch")

	return event.NewSubscription(func(quit <-chan struct{}) error {
		watchCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-quit:
			case <-c.done:
			case <-watchCtx.Done():
			}
			cancel()
		}()

		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-watchCtx.Done():
				return nil
			case <-ticker.C:
			}

			latest, err := c.transport.BlockNumber(watchCtx)
			if err != nil {
				if watchCtx.Err() == nil {
					logger.Warn(logCtx, "Block number poll failed", zap.String("event", eventName), zap.Error(err))
				}
				continue
			}
			if latest < from {
				continue
			}
			query.FromBlock = new(big.Int).SetUint64(from)
			query.ToBlock = new(big.Int).SetUint64(latest)
			logs, err := c.transport.Logs(watchCtx, query)
			if err != nil {
				if watchCtx.Err() == nil {
					logger.Warn(logCtx, "Log poll failed", zap.String("event", eventName), zap.Error(err))
				}
				continue
			}
			for _, l := range logs {
				if l.Removed {
					continue
				}
				select {
				case sink <- l:
				case <-watchCtx.Done():
					return nil
				}
			}
			from = latest + 1
		}
	}), nil
}

// UnpackEvent decodes indexed and non-indexed arguments of a log into one map
func (c *MarketplaceContract) UnpackEvent(eventName string, log types.Log) (map[string]interface{}, error) {
	ev, ok := c.abi.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("unknown event %q", eventName)
	}
	if len(log.Topics) == 0 || log.Topics[0] != ev.ID {
		return nil, fmt.Errorf("log is not a %s event", eventName)
	}

	out := make(map[string]interface{})
	if len(log.Data) > 0 {
		if err := ev.Inputs.NonIndexed().UnpackIntoMap(out, log.Data); err != nil {
			return nil, fmt.Errorf("unpack %s data: %w", eventName, err)
		}
	}
	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := abi.ParseTopicsIntoMap(out, indexed, log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("unpack %s topics: %w", eventName, err)
	}
	return out, nil
}

// Close stops every watch started on this handle
func (c *MarketplaceContract) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
