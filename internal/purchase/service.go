// Package purchase orchestrates the buy flow for an asset listing:
// advise a fee rate, compose the order on the Counterparty node, have the
// wallet sign it, then broadcast. Each step's failure surfaces through the
// wallet/compose error taxonomy untouched so callers can branch on kind.
package purchase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/XCP/xcpfolio.com/internal/metrics"
	"github.com/XCP/xcpfolio.com/internal/wallet"
	"github.com/XCP/xcpfolio.com/pkg/model"
)

// Composer builds unsigned order transactions.
type Composer interface {
	ComposeOrder(ctx context.Context, source string, req model.SwapOrderRequest) (*model.ComposedTransaction, error)
}

// Signer is the wallet surface the purchase flow needs.
type Signer interface {
	Connected() bool
	Address() string
	SignTransaction(ctx context.Context, rawHex string) (*model.SignedTransaction, error)
	BroadcastTransaction(ctx context.Context, signedHex string) (*model.BroadcastResult, error)
}

// FeeAdvisor supplies the order fee rate when the request leaves it unset.
type FeeAdvisor interface {
	GetOrderFeeRate(ctx context.Context) float64
}

// Publisher emits purchase lifecycle events. May be nil.
type Publisher interface {
	PublishPurchaseCompleted(ctx context.Context, evt model.PurchaseCompleted) error
}

// Receipt is the outcome of a successful purchase.
type Receipt struct {
	TransactionID string                     `json:"txid"`
	Address       string                     `json:"address"`
	Composed      *model.ComposedTransaction `json:"composed"`
	BroadcastAt   time.Time                  `json:"broadcastAt"`
}

// Service runs the purchase flow.
type Service struct {
	logger    *zap.Logger
	composer  Composer
	signer    Signer
	fees      FeeAdvisor
	publisher Publisher
}

// NewService wires a purchase Service. publisher may be nil when no event
// bus is configured.
func NewService(logger *zap.Logger, composer Composer, signer Signer, fees FeeAdvisor, publisher Publisher) *Service {
	return &Service{
		logger:    logger,
		composer:  composer,
		signer:    signer,
		fees:      fees,
		publisher: publisher,
	}
}

// Purchase executes compose, sign and broadcast for req. The wallet must
// already be connected; nothing touches the network before that check.
// There is no retry or rollback: a failed broadcast leaves the signed
// transaction unsent and the caller re-runs the whole flow, recomposing
// against current UTXOs.
func (s *Service) Purchase(ctx context.Context, req model.SwapOrderRequest) (*Receipt, error) {
	if !s.signer.Connected() {
		metrics.IncPurchase("not_connected")
		return nil, &wallet.NotConnectedError{}
	}
	address := s.signer.Address()

	if req.FeeRateSatPerVByte == 0 && s.fees != nil {
		req.FeeRateSatPerVByte = s.fees.GetOrderFeeRate(ctx)
	}

	composed, err := s.composer.ComposeOrder(ctx, address, req)
	if err != nil {
		metrics.IncPurchase("compose_failed")
		s.logger.Warn("purchase.compose_failed",
			zap.String("address", address),
			zap.String("get_asset", req.GetAsset),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("purchase.composed",
		zap.String("address", address),
		zap.String("get_asset", req.GetAsset),
		zap.Int64("fee_sats", composed.EstimatedFeeSats))

	signed, err := s.signer.SignTransaction(ctx, composed.RawTransactionHex)
	if err != nil {
		metrics.IncPurchase(signOutcome(err))
		s.logger.Warn("purchase.sign_failed", zap.Error(err))
		return nil, err
	}

	result, err := s.signer.BroadcastTransaction(ctx, signed.SignedHex)
	if err != nil {
		metrics.IncPurchase("broadcast_failed")
		s.logger.Error("purchase.broadcast_failed", zap.Error(err))
		return nil, err
	}

	metrics.IncPurchase("ok")
	s.logger.Info("purchase.broadcast",
		zap.String("txid", result.TransactionID),
		zap.String("address", address),
		zap.String("get_asset", req.GetAsset))

	receipt := &Receipt{
		TransactionID: result.TransactionID,
		Address:       address,
		Composed:      composed,
		BroadcastAt:   time.Now().UTC(),
	}

	if s.publisher != nil {
		evt := model.PurchaseCompleted{
			AttemptID:     uuid.New(),
			Source:        address,
			GiveAsset:     req.GiveAsset,
			GetAsset:      req.GetAsset,
			TransactionID: receipt.TransactionID,
			FeeSats:       composed.EstimatedFeeSats,
			Timestamp:     receipt.BroadcastAt,
		}
		if err := s.publisher.PublishPurchaseCompleted(ctx, evt); err != nil {
			// The purchase already happened; event loss is logged, not fatal.
			s.logger.Error("purchase.event_publish_failed", zap.Error(err))
		}
	}

	return receipt, nil
}

func signOutcome(err error) string {
	switch err.(type) {
	case *wallet.UserCancelledError:
		return "cancelled"
	default:
		return "sign_failed"
	}
}
