package errors

import (
	"errors"
	"net/http"
)

// Domain errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")

	ErrProviderUnavailable    = errors.New("wallet provider unavailable")
	ErrUserRejected           = errors.New("request rejected by user")
	ErrUnsupportedNetwork     = errors.New("unsupported network")
	ErrChainAddFailed         = errors.New("wallet failed to add chain")
	ErrContractInitFailed     = errors.New("contract initialization failed")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrContractReverted       = errors.New("contract call reverted")
	ErrRoleNotRegistered      = errors.New("role not registered")
	ErrWalletNotConnected     = errors.New("wallet not connected")
	ErrTransactionUnderpriced = errors.New("transaction underpriced")
	ErrNonceConflict          = errors.New("nonce conflict")
	ErrNetworkConnectivity    = errors.New("network connectivity")
	ErrRequestPending         = errors.New("wallet request already pending")
)

// Error codes
const (
	CodeInvalidInput           = "INVALID_INPUT"
	CodeNotFound               = "NOT_FOUND"
	CodeInternalError          = "INTERNAL_ERROR"
	CodeProviderUnavailable    = "PROVIDER_UNAVAILABLE"
	CodeUserRejected           = "USER_REJECTED"
	CodeUnsupportedNetwork     = "UNSUPPORTED_NETWORK"
	CodeChainAddFailed         = "CHAIN_ADD_FAILED"
	CodeContractInitFailed     = "CONTRACT_INIT_FAILED"
	CodeInsufficientFunds      = "INSUFFICIENT_FUNDS"
	CodeContractReverted       = "CONTRACT_REVERTED"
	CodeRoleNotRegistered      = "ROLE_NOT_REGISTERED"
	CodeWalletNotConnected     = "WALLET_NOT_CONNECTED"
	CodeTransactionUnderpriced = "TRANSACTION_UNDERPRICED"
	CodeNonceConflict          = "NONCE_CONFLICT"
	CodeNetworkConnectivity    = "NETWORK_CONNECTIVITY"
	CodeRequestPending         = "REQUEST_PENDING"
)

// RevertError carries the human-readable reason of a reverted contract call when the
// provider supplied one.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return ErrContractReverted.Error()
	}
	return ErrContractReverted.Error() + ": " + e.Reason
}

func (e *RevertError) Unwrap() error {
	return ErrContractReverted
}

// AppError represents application error with HTTP status
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeInvalidInput, message, ErrInvalidInput)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternalError, "Something went wrong. Please try again.", err)
}

type mapping struct {
	target  error
	status  int
	code    string
	message string
}

// Order matters: the first match wins.
var userFacing = []mapping{
	{ErrProviderUnavailable, http.StatusServiceUnavailable, CodeProviderUnavailable, "No wallet detected. Install or start a wallet and try again."},
	{ErrUserRejected, http.StatusConflict, CodeUserRejected, "The request was rejected in your wallet."},
	{ErrUnsupportedNetwork, http.StatusConflict, CodeUnsupportedNetwork, "Your wallet is on an unsupported network. Switch to a supported network."},
	{ErrChainAddFailed, http.StatusBadGateway, CodeChainAddFailed, "Your wallet could not add the network. Add it manually and try again."},
	{ErrContractInitFailed, http.StatusBadGateway, CodeContractInitFailed, "Could not reach the marketplace contract on this network."},
	{ErrInsufficientFunds, http.StatusPaymentRequired, CodeInsufficientFunds, "Insufficient funds to pay for this transaction."},
	{ErrRoleNotRegistered, http.StatusForbidden, CodeRoleNotRegistered, "This wallet is not registered for that role."},
	{ErrWalletNotConnected, http.StatusUnauthorized, CodeWalletNotConnected, "Connect your wallet first."},
	{ErrTransactionUnderpriced, http.StatusConflict, CodeTransactionUnderpriced, "Transaction gas price too low. Retry with a higher fee."},
	{ErrNonceConflict, http.StatusConflict, CodeNonceConflict, "A pending transaction conflicts with this one. Wait for it to finish or reset your wallet."},
	{ErrRequestPending, http.StatusConflict, CodeRequestPending, "A wallet request is already pending. Open your wallet to continue."},
	{ErrNetworkConnectivity, http.StatusBadGateway, CodeNetworkConnectivity, "Network connection problem. Check your connection and try again."},
	{ErrInvalidInput, http.StatusBadRequest, CodeInvalidInput, "Invalid input."},
	{ErrNotFound, http.StatusNotFound, CodeNotFound, "Resource not found."},
}

// FromError converts any error into the single summarized message shown to the user.
// Errors outside the taxonomy collapse into a generic internal error.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr
	}

	var revertErr *RevertError
	if errors.As(err, &revertErr) {
		msg := "The transaction was reverted by the contract."
		if revertErr.Reason != "" {
			msg = "The transaction was reverted: " + revertErr.Reason
		}
		return NewAppError(http.StatusUnprocessableEntity, CodeContractReverted, msg, err)
	}
	if errors.Is(err, ErrContractReverted) {
		return NewAppError(http.StatusUnprocessableEntity, CodeContractReverted, "The transaction was reverted by the contract.", err)
	}

	for _, m := range userFacing {
		if errors.Is(err, m.target) {
			return NewAppError(m.status, m.code, m.message, err)
		}
	}
	return InternalError(err)
}

// UserMessage returns the summarized message for err.
func UserMessage(err error) string {
	if appErr := FromError(err); appErr != nil {
		return appErr.Message
	}
	return ""
}
