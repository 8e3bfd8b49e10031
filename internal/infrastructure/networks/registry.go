package networks

import (
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"agrimarket.walletd/internal/domain/entities"
)

const (
	SepoliaChainID   uint64 = 11155111
	LocalhostChainID uint64 = 31337
)

// descriptors are the networks the marketplace is deployed to. Addresses come from
// deployment configuration.
var descriptors = map[uint64]entities.Network{
	SepoliaChainID: {
		ChainID:        SepoliaChainID,
		Name:           "Sepolia",
		NativeCurrency: entities.NativeCurrency{Name: "Sepolia Ether", Symbol: "SepoliaETH", Decimals: 18},
		RPCURLs:        []string{"https://rpc.sepolia.org"},
		ExplorerURLs:   []string{"https://sepolia.etherscan.io"},
	},
	LocalhostChainID: {
		ChainID:        LocalhostChainID,
		Name:           "Hardhat Localhost",
		NativeCurrency: entities.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		RPCURLs:        []string{"http://127.0.0.1:8545"},
	},
}

// Registry maps chain ids to supported networks. It is immutable after construction.
type Registry struct {
	networks map[uint64]entities.Network
}

// NewRegistry builds the registry from configured contract addresses. Networks without a
// valid address are left out, so they are never reported as supported.
func NewRegistry(contractAddresses map[uint64]string) *Registry {
	r := &Registry{networks: make(map[uint64]entities.Network)}
	for chainID, raw := range contractAddresses {
		desc, ok := descriptors[chainID]
		if !ok {
			continue
		}
		raw = strings.TrimSpace(raw)
		if !common.IsHexAddress(raw) {
			continue
		}
		addr := common.HexToAddress(raw)
		if addr == (common.Address{}) {
			continue
		}
		desc.ChainIDHex = hexutil.EncodeUint64(chainID)
		desc.ContractAddress = addr
		r.networks[chainID] = clone(desc)
	}
	return r
}

// Lookup returns the network for chainID
func (r *Registry) Lookup(chainID uint64) (entities.Network, bool) {
	n, ok := r.networks[chainID]
	if !ok {
		return entities.Network{}, false
	}
	return clone(n), true
}

// Supported reports whether chainID has a deployment
func (r *Registry) Supported(chainID uint64) bool {
	_, ok := r.networks[chainID]
	return ok
}

// All returns the supported networks ordered by chain id
func (r *Registry) All() []entities.Network {
	out := make([]entities.Network, 0, len(r.networks))
	for _, n := range r.networks {
		out = append(out, clone(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

func clone(n entities.Network) entities.Network {
	n.RPCURLs = append([]string(nil), n.RPCURLs...)
	n.ExplorerURLs = append([]string(nil), n.ExplorerURLs...)
	return n
}
