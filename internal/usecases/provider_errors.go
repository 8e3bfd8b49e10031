package usecases

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/rpc"

	domainerrors "agrimarket.walletd/internal/domain/errors"
	"agrimarket.walletd/internal/infrastructure/provider"
)

var (
	revertHexPattern = regexp.MustCompile(`0x[0-9a-fA-F]{8,}`)
	revertReasonText = regexp.MustCompile(`(?i)execution reverted(?::\s*(.+))?`)

	taxonomy = []error{
		domainerrors.ErrProviderUnavailable,
		domainerrors.ErrUserRejected,
		domainerrors.ErrUnsupportedNetwork,
		domainerrors.ErrChainAddFailed,
		domainerrors.ErrContractInitFailed,
		domainerrors.ErrInsufficientFunds,
		domainerrors.ErrContractReverted,
		domainerrors.ErrRoleNotRegistered,
		domainerrors.ErrWalletNotConnected,
		domainerrors.ErrTransactionUnderpriced,
		domainerrors.ErrNonceConflict,
		domainerrors.ErrNetworkConnectivity,
		domainerrors.ErrRequestPending,
		domainerrors.ErrInvalidInput,
		domainerrors.ErrNotFound,
	}

	messagePatterns = []struct {
		fragments []string
		target    error
	}{
		{[]string{"insufficient funds"}, domainerrors.ErrInsufficientFunds},
		{[]string{"underpriced", "fee too low", "max fee per gas less than block base fee"}, domainerrors.ErrTransactionUnderpriced},
		{[]string{"nonce too low", "nonce has already been used", "already known"}, domainerrors.ErrNonceConflict},
		{[]string{"user rejected", "user denied"}, domainerrors.ErrUserRejected},
		{[]string{"connection refused", "network error", "failed to fetch", "no such host", "i/o timeout", "unexpected eof"}, domainerrors.ErrNetworkConnectivity},
	}
)

// classifyProviderError maps a raw provider or contract failure onto the error taxonomy.
// The original error stays in the chain for logging.
func classifyProviderError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	for _, known := range taxonomy {
		if errors.Is(err, known) {
			return err
		}
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case provider.CodeUserRejected:
			return wrapTaxonomy(domainerrors.ErrUserRejected, err)
		case provider.CodeUnauthorized:
			return wrapTaxonomy(domainerrors.ErrWalletNotConnected, err)
		case provider.CodeUnrecognizedChain:
			return wrapTaxonomy(domainerrors.ErrUnsupportedNetwork, err)
		case provider.CodeDisconnected, provider.CodeChainDisconnected:
			return wrapTaxonomy(domainerrors.ErrNetworkConnectivity, err)
		case provider.CodeRequestPending:
			return wrapTaxonomy(domainerrors.ErrRequestPending, err)
		}
	}

	if revert, ok := decodeRevert(err); ok {
		return fmt.Errorf("%w: %v", revert, err)
	}

	message := strings.ToLower(err.Error())
	for _, p := range messagePatterns {
		for _, fragment := range p.fragments {
			if strings.Contains(message, fragment) {
				return wrapTaxonomy(p.target, err)
			}
		}
	}
	return err
}

func wrapTaxonomy(target, err error) error {
	return fmt.Errorf("%w: %w", target, err)
}

// decodeRevert recognizes a reverted call from rpc.DataError payloads, revert bytes embedded
// in the message, or an "execution reverted" message.
func decodeRevert(err error) (*domainerrors.RevertError, bool) {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := parseRevertBytesFromAny(dataErr.ErrorData()); ok {
			return &domainerrors.RevertError{Reason: revertReason(data)}, true
		}
	}

	message := err.Error()
	match := revertReasonText.FindStringSubmatch(message)
	if match == nil {
		return nil, false
	}
	for _, candidate := range revertHexPattern.FindAllString(message, -1) {
		if data, ok := parseHexBytes(candidate); ok {
			if reason := revertReason(data); reason != "" {
				return &domainerrors.RevertError{Reason: reason}, true
			}
		}
	}
	reason := strings.TrimSpace(match[1])
	if revertHexPattern.MatchString(reason) {
		reason = ""
	}
	return &domainerrors.RevertError{Reason: reason}, true
}

// revertReason unpacks Error(string) payloads; custom errors yield no reason
func revertReason(data []byte) string {
	reason, err := abi.UnpackRevert(data)
	if err != nil {
		return ""
	}
	return reason
}

func parseRevertBytesFromAny(value interface{}) ([]byte, bool) {
	switch v := value.(type) {
	case string:
		return parseHexBytes(v)
	case []byte:
		if len(v) == 0 {
			return nil, false
		}
		out := make([]byte, len(v))
		copy(out, v)
		return out, true
	case map[string]interface{}:
		if raw, ok := v["data"]; ok {
			return parseRevertBytesFromAny(raw)
		}
	}
	return nil, false
}

func parseHexBytes(raw string) ([]byte, bool) {
	value := strings.TrimSpace(strings.TrimPrefix(raw, "0x"))
	if len(value) < 8 || len(value)%2 != 0 {
		return nil, false
	}
	data, err := hex.DecodeString(value)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}
