package provider

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseChainID converts a 0x-prefixed hex chain id from the provider boundary into its
// numeric form.
func ParseChainID(raw string) (uint64, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasPrefix(value, "0x") {
		return 0, fmt.Errorf("chain id %q is not 0x-prefixed", raw)
	}
	if len(value) == 2 {
		return 0, fmt.Errorf("chain id %q has no digits", raw)
	}
	// wallets occasionally pad ("0x01"), which hexutil rejects
	digits := strings.TrimLeft(value[2:], "0")
	if digits == "" {
		digits = "0"
	}
	id, err := hexutil.DecodeUint64("0x" + digits)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id %q: %w", raw, err)
	}
	return id, nil
}

// FormatChainID is the inverse of ParseChainID
func FormatChainID(id uint64) string {
	return hexutil.EncodeUint64(id)
}
