package entities

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// NativeCurrency describes the gas token of a network
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// Network is a supported chain with the marketplace deployment on it
type Network struct {
	ChainID         uint64         `json:"chainId"`
	ChainIDHex      string         `json:"chainIdHex"`
	Name            string         `json:"name"`
	NativeCurrency  NativeCurrency `json:"nativeCurrency"`
	RPCURLs         []string       `json:"rpcUrls"`
	ExplorerURLs    []string       `json:"blockExplorerUrls"`
	ContractAddress common.Address `json:"contractAddress"`
}

// AddChainParams is the wallet_addEthereumChain parameter object
type AddChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

// AddChainParams builds the wallet descriptor for n
func (n Network) AddChainParams() AddChainParams {
	return AddChainParams{
		ChainID:           n.ChainIDHex,
		ChainName:         n.Name,
		NativeCurrency:    n.NativeCurrency,
		RPCURLs:           n.RPCURLs,
		BlockExplorerURLs: n.ExplorerURLs,
	}
}

// CAIP2ID returns the CAIP-2 chain identifier, e.g. eip155:11155111
func (n Network) CAIP2ID() string {
	return "eip155:" + strconv.FormatUint(n.ChainID, 10)
}
