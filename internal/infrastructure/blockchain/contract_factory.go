package blockchain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"agrimarket.walletd/internal/domain/entities"
	domainerrors "agrimarket.walletd/internal/domain/errors"
)

var parseMarketplaceABI = func() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(MarketplaceABI))
}

// NetworkLookup resolves supported networks
type NetworkLookup interface {
	Lookup(chainID uint64) (entities.Network, bool)
}

// ContractFactory builds marketplace handles
type ContractFactory struct {
	transport    Transport
	networks     NetworkLookup
	pollInterval time.Duration

	abiOnce sync.Once
	abi     abi.ABI
	abiErr  error
}

// NewContractFactory creates a new contract factory
func NewContractFactory(transport Transport, networks NetworkLookup, pollInterval time.Duration) *ContractFactory {
	return &ContractFactory{
		transport:    transport,
		networks:     networks,
		pollInterval: pollInterval,
	}
}

// ABI returns the parsed marketplace ABI, parsing it on first use
func (f *ContractFactory) ABI() (*abi.ABI, error) {
	f.abiOnce.Do(func() {
		f.abi, f.abiErr = parseMarketplaceABI()
	})
	if f.abiErr != nil {
		return nil, f.abiErr
	}
	return &f.abi, nil
}

// Build binds a handle for account on chainID and checks it with batchCounter().
// A failed check means the address holds no marketplace contract on that chain.
func (f *ContractFactory) Build(ctx context.Context, account string, chainID uint64) (entities.MarketplaceContract, error) {
	network, ok := f.networks.Lookup(chainID)
	if !ok {
		return nil, domainerrors.ErrUnsupportedNetwork
	}
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("%w: invalid account %q", domainerrors.ErrInvalidInput, account)
	}
	parsed, err := f.ABI()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domainerrors.ErrContractInitFailed, err)
	}

	handle := NewMarketplaceContract(parsed, f.transport, network.ContractAddress, chainID, common.HexToAddress(account), f.pollInterval)
	if _, err := handle.BatchCounter(ctx); err != nil {
		handle.Close()
		return nil, fmt.Errorf("%w: %w", domainerrors.ErrContractInitFailed, err)
	}
	return handle, nil
}
