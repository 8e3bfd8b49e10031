package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/event"
)

// Provider notification names
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// Wallet request methods
const (
	MethodRequestAccounts    = "eth_requestAccounts"
	MethodAccounts           = "eth_accounts"
	MethodChainID            = "eth_chainId"
	MethodSwitchChain        = "wallet_switchEthereumChain"
	MethodAddChain           = "wallet_addEthereumChain"
	MethodRequestPermissions = "wallet_requestPermissions"

	MethodCall               = "eth_call"
	MethodSendTransaction    = "eth_sendTransaction"
	MethodTransactionReceipt = "eth_getTransactionReceipt"
	MethodBlockNumber        = "eth_blockNumber"
	MethodGetLogs            = "eth_getLogs"
)

// EIP-1193 provider error codes
const (
	CodeUserRejected       = 4001
	CodeUnauthorized       = 4100
	CodeUnsupportedMethod  = 4200
	CodeDisconnected       = 4900
	CodeChainDisconnected  = 4901
	CodeUnrecognizedChain  = 4902
	CodeRequestPending     = -32002
	CodeInternalRPCFailure = -32603
)

// Notification is a provider push message. Accounts is set for accountsChanged,
// ChainID (0x hex) for chainChanged.
type Notification struct {
	Event    string
	Accounts []string
	ChainID  string
}

// Provider is the wallet surface: JSON-RPC style requests plus push notifications.
// Unsubscribing the returned subscription is the removeListener operation.
type Provider interface {
	Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error)
	On(eventName string, sink chan<- Notification) event.Subscription
}

// RPCError is a provider error carrying a JSON-RPC / EIP-1193 code.
// It satisfies go-ethereum's rpc.Error and rpc.DataError.
type RPCError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

func (e *RPCError) ErrorCode() int { return e.Code }

func (e *RPCError) ErrorData() interface{} { return e.Data }
