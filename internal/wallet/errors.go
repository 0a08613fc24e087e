package wallet

import "strings"

// WalletNotFoundError indicates no wallet provider is available at all.
type WalletNotFoundError struct{}

func (e *WalletNotFoundError) Error() string {
	return "wallet provider not found"
}

// RequestTimeoutError indicates a wallet request did not complete within the
// configured deadline.
type RequestTimeoutError struct {
	Op string
}

func (e *RequestTimeoutError) Error() string {
	return "wallet request timed out: " + e.Op
}

// WalletLockedError indicates the wallet exists but is locked.
type WalletLockedError struct{}

func (e *WalletLockedError) Error() string {
	return "wallet is locked"
}

// WalletNotSetupError indicates the wallet extension is installed but has
// never been initialized with a wallet.
type WalletNotSetupError struct{}

func (e *WalletNotSetupError) Error() string {
	return "wallet is not set up"
}

// NoActiveAddressError indicates the wallet has no active address selected.
type NoActiveAddressError struct{}

func (e *NoActiveAddressError) Error() string {
	return "no active address"
}

// NoActiveWalletError indicates the provider has no active wallet selected.
type NoActiveWalletError struct{}

func (e *NoActiveWalletError) Error() string {
	return "no active wallet"
}

// UserRejectedError indicates the user declined a connection or approval
// prompt in the wallet.
type UserRejectedError struct {
	Op string
}

func (e *UserRejectedError) Error() string {
	return "user rejected request: " + e.Op
}

// UserCancelledError indicates the user cancelled a signing prompt. It is
// kept distinct from UserRejectedError so callers can tell a declined
// connection from an abandoned purchase.
type UserCancelledError struct{}

func (e *UserCancelledError) Error() string {
	return "user cancelled signing"
}

// SignatureFailedError indicates signing failed for a reason other than user
// cancellation, including a malformed signer response.
type SignatureFailedError struct {
	Message string
}

func (e *SignatureFailedError) Error() string {
	if e.Message == "" {
		return "transaction signing failed"
	}
	return "transaction signing failed: " + e.Message
}

// BroadcastError indicates the signed transaction was not accepted by the
// network. The transaction may or may not have propagated; callers must not
// retry the broadcast blindly.
type BroadcastError struct {
	Message string
}

func (e *BroadcastError) Error() string {
	if e.Message == "" {
		return "transaction broadcast failed"
	}
	return "transaction broadcast failed: " + e.Message
}

// NotConnectedError indicates an operation requiring a connected wallet was
// attempted before Connect succeeded.
type NotConnectedError struct{}

func (e *NotConnectedError) Error() string {
	return "wallet not connected"
}

// isUnsupportedMethod reports whether the provider rejected a call as an
// unknown method.
func isUnsupportedMethod(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "method not found") ||
		strings.Contains(msg, "unsupported method") ||
		strings.Contains(msg, "method not supported")
}

// classifyProviderError maps a raw provider error onto the wallet error
// taxonomy using the message patterns the extension emits. Unrecognized
// errors pass through unchanged.
func classifyProviderError(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "WALLET_NOT_SETUP"):
		return &WalletNotSetupError{}
	case strings.Contains(msg, "WALLET_LOCKED"):
		return &WalletLockedError{}
	case strings.Contains(msg, "NO_ACTIVE_ADDRESS"):
		return &NoActiveAddressError{}
	case strings.Contains(msg, "NO_ACTIVE_WALLET"):
		return &NoActiveWalletError{}
	case strings.Contains(msg, "User denied"), strings.Contains(msg, "User rejected"):
		return &UserRejectedError{Op: op}
	default:
		return err
	}
}
