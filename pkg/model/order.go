package model

import (
	"errors"
	"fmt"
)

// SwapOrderRequest describes a DEX order to swap one asset for another.
// Quantities are in indivisible base units (satoshis for divisible assets).
type SwapOrderRequest struct {
	GiveAsset          string  `json:"giveAsset"`
	GiveQuantity       int64   `json:"giveQuantity"`
	GetAsset           string  `json:"getAsset"`
	GetQuantity        int64   `json:"getQuantity"`
	ExpirationBlocks   int     `json:"expirationBlocks,omitempty"`
	FeeRateSatPerVByte float64 `json:"feeRateSatPerVByte,omitempty"`
}

// Validate checks the swap invariants: distinct assets, positive quantities,
// and sane expiration/fee-rate overrides when present.
func (r SwapOrderRequest) Validate() error {
	if r.GiveAsset == "" || r.GetAsset == "" {
		return errors.New("giveAsset and getAsset are required")
	}
	if r.GiveAsset == r.GetAsset {
		return fmt.Errorf("giveAsset and getAsset must differ (both %q)", r.GiveAsset)
	}
	if r.GiveQuantity <= 0 {
		return fmt.Errorf("giveQuantity must be positive, got %d", r.GiveQuantity)
	}
	if r.GetQuantity <= 0 {
		return fmt.Errorf("getQuantity must be positive, got %d", r.GetQuantity)
	}
	// Zero means "use the service default" for both overrides.
	if r.ExpirationBlocks < 0 {
		return fmt.Errorf("expirationBlocks must be >= 1, got %d", r.ExpirationBlocks)
	}
	if r.FeeRateSatPerVByte != 0 && r.FeeRateSatPerVByte < 1 {
		return fmt.Errorf("feeRateSatPerVByte must be >= 1, got %g", r.FeeRateSatPerVByte)
	}
	return nil
}

// ComposedParams echoes the parameters the compose endpoint actually used.
type ComposedParams struct {
	Source       string `json:"source"`
	GiveAsset    string `json:"give_asset"`
	GiveQuantity int64  `json:"give_quantity"`
	GetAsset     string `json:"get_asset"`
	GetQuantity  int64  `json:"get_quantity"`
	Expiration   int    `json:"expiration"`
	FeeRequired  int64  `json:"fee_required"`
}

// ComposedTransaction is an unsigned order transaction returned by the
// compose endpoint. Immutable once returned; consumed exactly once by the
// signing step.
type ComposedTransaction struct {
	RawTransactionHex string         `json:"rawTransactionHex"`
	EstimatedFeeSats  int64          `json:"estimatedFeeSats"`
	BTCIn             int64          `json:"btcIn"`
	BTCOut            int64          `json:"btcOut"`
	BTCChange         int64          `json:"btcChange"`
	Params            ComposedParams `json:"params"`
}

// SignedTransaction is the ephemeral signed form of a composed transaction.
// Never persisted; passed directly to broadcast.
type SignedTransaction struct {
	SignedHex string `json:"signedHex"`
}

// BroadcastResult is the terminal artifact of a successful purchase attempt.
type BroadcastResult struct {
	TransactionID string `json:"transactionId"`
}

// WalletConnection is the process-wide wallet session state. Owned
// exclusively by the signing bridge; everything else reads it.
type WalletConnection struct {
	Address   string `json:"address,omitempty"`
	Connected bool   `json:"connected"`
}
