package entities

import "strings"

// ConnectionStatus is the lifecycle state of the wallet connection
type ConnectionStatus string

const (
	ConnectionDisconnected       ConnectionStatus = "DISCONNECTED"
	ConnectionConnecting         ConnectionStatus = "CONNECTING"
	ConnectionConnected          ConnectionStatus = "CONNECTED"
	ConnectionUnsupportedNetwork ConnectionStatus = "UNSUPPORTED_NETWORK"
)

// ConnectionState is the authoritative {account, chain, contract} triple.
// Contract is non-nil iff Status is ConnectionConnected.
type ConnectionState struct {
	Account  string              `json:"account"`
	ChainID  uint64              `json:"chainId,omitempty"`
	Contract MarketplaceContract `json:"-"`
	Status   ConnectionStatus    `json:"status"`
}

// DisconnectedState is the zero state every manager starts in.
func DisconnectedState() ConnectionState {
	return ConnectionState{Status: ConnectionDisconnected}
}

// HasAccount reports whether an account is attached.
func (s ConnectionState) HasAccount() bool {
	return s.Account != ""
}

// SameAccount compares addresses case-insensitively.
func SameAccount(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ConnectionView is the JSON projection of the state exposed to the UI.
type ConnectionView struct {
	Account         string           `json:"account"`
	ChainID         uint64           `json:"chainId,omitempty"`
	ChainIDHex      string           `json:"chainIdHex,omitempty"`
	NetworkName     string           `json:"networkName,omitempty"`
	CAIP2           string           `json:"caip2,omitempty"`
	ContractAddress string           `json:"contractAddress,omitempty"`
	Status          ConnectionStatus `json:"status"`
	LastError       string           `json:"lastError,omitempty"`
}
