package api

import (
	"errors"

	"github.com/XCP/xcpfolio.com/internal/counterparty"
	"github.com/XCP/xcpfolio.com/internal/purchase"
	"github.com/XCP/xcpfolio.com/internal/wallet"
)

// PurchaseRequest is the POST /api/v1/purchase body.
type PurchaseRequest struct {
	GiveAsset          string  `json:"giveAsset"`
	GiveQuantity       int64   `json:"giveQuantity"`
	GetAsset           string  `json:"getAsset"`
	GetQuantity        int64   `json:"getQuantity"`
	ExpirationBlocks   int     `json:"expirationBlocks,omitempty"`
	FeeRateSatPerVByte float64 `json:"feeRateSatPerVByte,omitempty"`
}

// PurchaseResponse is the POST /api/v1/purchase success body.
type PurchaseResponse struct {
	Success bool              `json:"success"`
	Receipt *purchase.Receipt `json:"receipt,omitempty"`
}

// ErrorResponse carries a failure plus a machine-readable kind so the
// frontend can branch on failure class instead of parsing messages.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// WalletResponse is the wallet connection snapshot.
type WalletResponse struct {
	Address   string `json:"address,omitempty"`
	Connected bool   `json:"connected"`
}

// HealthResponse reports per-dependency health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// BlockHeightResponse is the GET /api/v1/block-height body.
type BlockHeightResponse struct {
	Height int64 `json:"height"`
}

// errorKind classifies an error from the purchase or wallet flow.
func errorKind(err error) string {
	var (
		notConnected *wallet.NotConnectedError
		notFound     *wallet.WalletNotFoundError
		locked       *wallet.WalletLockedError
		notSetup     *wallet.WalletNotSetupError
		noAddress    *wallet.NoActiveAddressError
		noWallet     *wallet.NoActiveWalletError
		rejected     *wallet.UserRejectedError
		cancelled    *wallet.UserCancelledError
		timeout      *wallet.RequestTimeoutError
		signFailed   *wallet.SignatureFailedError
		broadcast    *wallet.BroadcastError
		compose      *counterparty.ComposeError
	)
	switch {
	case errors.As(err, &notConnected):
		return "not_connected"
	case errors.As(err, &notFound):
		return "wallet_not_found"
	case errors.As(err, &locked):
		return "wallet_locked"
	case errors.As(err, &notSetup):
		return "wallet_not_setup"
	case errors.As(err, &noAddress):
		return "no_active_address"
	case errors.As(err, &noWallet):
		return "no_active_wallet"
	case errors.As(err, &rejected):
		return "user_rejected"
	case errors.As(err, &cancelled):
		return "user_cancelled"
	case errors.As(err, &timeout):
		return "timeout"
	case errors.As(err, &signFailed):
		return "signature_failed"
	case errors.As(err, &broadcast):
		return "broadcast_failed"
	case errors.As(err, &compose):
		return "compose_failed"
	default:
		return "internal"
	}
}

// errorStatus maps an error kind to an HTTP status code.
func errorStatus(kind string) int {
	switch kind {
	case "not_connected", "wallet_not_found", "wallet_locked", "wallet_not_setup",
		"no_active_address", "no_active_wallet", "user_rejected", "user_cancelled":
		return 400
	case "compose_failed":
		return 422
	case "timeout":
		return 504
	case "broadcast_failed", "signature_failed":
		return 502
	default:
		return 500
	}
}
