package entities

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// Marketplace event names
const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderCompleted = "OrderCompleted"
	EventOrderCancelled = "OrderCancelled"
	EventBatchCreated   = "BatchCreated"
	EventBatchDeleted   = "BatchDeleted"
)

// MarketplaceEvents lists every event the marketplace contract emits
var MarketplaceEvents = []string{
	EventOrderPlaced,
	EventOrderCompleted,
	EventOrderCancelled,
	EventBatchCreated,
	EventBatchDeleted,
}

var eventIDArgs = map[string]string{
	EventOrderPlaced:    "orderId",
	EventOrderCompleted: "orderId",
	EventOrderCancelled: "orderId",
	EventBatchCreated:   "batchId",
	EventBatchDeleted:   "batchId",
}

// EventIDArg names the indexed uint256 argument identifying the order or batch of an event
func EventIDArg(eventName string) (string, bool) {
	arg, ok := eventIDArgs[eventName]
	return arg, ok
}

// Farmer flag bits
const (
	FarmerFlagRegistered uint8 = 1 << 0
	FarmerFlagDeleted    uint8 = 1 << 1
)

// FarmerRecord is the on-chain farmer struct
type FarmerRecord struct {
	Wallet       common.Address
	Name         string
	Location     string
	CertHash     string
	Flags        uint8
	RegisteredAt *big.Int
}

// IsRegistered reads bit 0 of the flag field
func (f *FarmerRecord) IsRegistered() bool {
	return f != nil && f.Flags&FarmerFlagRegistered != 0
}

// IsDeleted reads bit 1 of the flag field
func (f *FarmerRecord) IsDeleted() bool {
	return f != nil && f.Flags&FarmerFlagDeleted != 0
}

// MarketplaceContract is a handle bound to {address, ABI, signer account} on one chain.
// A handle never changes identity; a new account or chain yields a new handle.
type MarketplaceContract interface {
	Address() common.Address
	ChainID() uint64
	Account() common.Address

	Farmer(ctx context.Context, wallet common.Address) (*FarmerRecord, error)
	BatchCounter(ctx context.Context) (*big.Int, error)
	OrderCounter(ctx context.Context) (*big.Int, error)

	RegisterFarmer(ctx context.Context, name, location, certHash string) (common.Hash, error)
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)

	WatchLogs(ctx context.Context, eventName string, sink chan<- types.Log) (event.Subscription, error)
	UnpackEvent(eventName string, log types.Log) (map[string]interface{}, error)

	Close()
}

// ContractEvent is a normalized contract log delivered to subscribers
type ContractEvent struct {
	Name            string                 `json:"name"`
	ID              *big.Int               `json:"id,omitempty"`
	Args            map[string]interface{} `json:"args"`
	ContractAddress string                 `json:"contractAddress"`
	BlockNumber     uint64                 `json:"blockNumber"`
	TxHash          string                 `json:"txHash"`
	Raw             types.Log              `json:"-"`
}

// EventSubscription describes one subscriber's binding to an event on a handle
type EventSubscription struct {
	EventName       string `json:"eventName"`
	HandlerID       string `json:"handlerId"`
	ContractAddress string `json:"contractAddress,omitempty"`
	Active          bool   `json:"active"`
}

// ContractStats are the marketplace counters read through the current handle
type ContractStats struct {
	ContractAddress string `json:"contractAddress"`
	ChainID         uint64 `json:"chainId"`
	BatchCount      string `json:"batchCount"`
	OrderCount      string `json:"orderCount"`
}
