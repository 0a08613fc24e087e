package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/XCP/xcpfolio.com/internal/counterparty"
	"github.com/XCP/xcpfolio.com/internal/fees"
	"github.com/XCP/xcpfolio.com/internal/orders"
	"github.com/XCP/xcpfolio.com/internal/purchase"
	"github.com/XCP/xcpfolio.com/internal/store"
	"github.com/XCP/xcpfolio.com/pkg/model"
)

// Catalog is the Counterparty read surface the asset routes need.
type Catalog interface {
	GetSubassets(ctx context.Context) ([]counterparty.Subasset, error)
	GetAsset(ctx context.Context, asset string) (*counterparty.Asset, error)
	GetAssetOrders(ctx context.Context, asset string) ([]counterparty.DexOrder, error)
	GetAssetOrderHistory(ctx context.Context, asset string) ([]counterparty.DexOrder, error)
	GetAssetOrderMatches(ctx context.Context, asset string) ([]counterparty.OrderMatch, error)
	GetAssetIssuances(ctx context.Context, asset string) ([]counterparty.Issuance, error)
	Healthy(ctx context.Context) error
}

// PurchaseRunner executes a purchase flow end to end.
type PurchaseRunner interface {
	Purchase(ctx context.Context, req model.SwapOrderRequest) (*purchase.Receipt, error)
}

// WalletSession is the wallet surface the connect/disconnect routes need.
type WalletSession interface {
	Connect(ctx context.Context) (string, error)
	Disconnect(ctx context.Context)
	Connection() model.WalletConnection
}

// FeeSource supplies fee rates and chain height.
type FeeSource interface {
	GetFeeRates(ctx context.Context) fees.FeeRates
	BlockHeight(ctx context.Context) (int64, error)
}

// EventBus is the health-check view of the publisher.
type EventBus interface {
	Healthy() bool
}

type Handler struct {
	Logger   *zap.Logger
	Catalog  Catalog
	Fees     FeeSource
	Orders   orders.Feed
	Store    store.Store
	Wallet   WalletSession
	Purchase PurchaseRunner
	Bus      EventBus
}

// Health reports dependency status. Redis or NATS being down degrades the
// response without failing it; an unreachable Counterparty node fails it.
func (h *Handler) Health(c *fiber.Ctx) error {
	checks := map[string]string{}
	status := fiber.StatusOK

	if err := h.Catalog.Healthy(c.Context()); err != nil {
		checks["counterparty"] = err.Error()
		status = fiber.StatusServiceUnavailable
	} else {
		checks["counterparty"] = "ok"
	}

	if h.Store != nil {
		if err := h.Store.HealthCheck(c.Context()); err != nil {
			checks["store"] = err.Error()
		} else {
			checks["store"] = "ok"
		}
	}

	if h.Bus != nil {
		if h.Bus.Healthy() {
			checks["nats"] = "ok"
		} else {
			checks["nats"] = "disconnected"
		}
	}

	overall := "ok"
	if status != fiber.StatusOK {
		overall = "unhealthy"
	}
	return c.Status(status).JSON(HealthResponse{Status: overall, Checks: checks})
}

// GetFees returns the current recommended fee rates.
func (h *Handler) GetFees(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(h.Fees.GetFeeRates(c.Context()))
}

// GetBlockHeight returns the current Bitcoin tip height.
func (h *Handler) GetBlockHeight(c *fiber.Ctx) error {
	height, err := h.Fees.BlockHeight(c.Context())
	if err != nil {
		h.Logger.Error("api.block_height_failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: err.Error(), Kind: "upstream"})
	}
	return c.Status(http.StatusOK).JSON(BlockHeightResponse{Height: height})
}

// GetOrders returns the tracked-order feed, serving the cached snapshot
// when the bot is unreachable.
func (h *Handler) GetOrders(c *fiber.Ctx) error {
	tracked, err := h.Orders.GetOrders(c.Context())
	if err != nil {
		if cached, ok := h.cachedOrders(c.Context()); ok {
			h.Logger.Warn("api.orders_served_from_cache", zap.Error(err))
			tracked = cached
		} else {
			h.Logger.Error("api.orders_fetch_failed", zap.Error(err))
			return c.Status(fiber.StatusBadGateway).JSON(model.OrdersResponse{
				Success: false,
				Error:   err.Error(),
			})
		}
	}

	return c.Status(http.StatusOK).JSON(model.OrdersResponse{
		Success:   true,
		Orders:    tracked,
		Total:     len(tracked),
		Timestamp: c.Context().Time().UnixMilli(),
	})
}

// GetOrdersDisplay returns the order feed projected into display form.
func (h *Handler) GetOrdersDisplay(c *fiber.Ctx) error {
	tracked, err := h.Orders.GetOrders(c.Context())
	if err != nil {
		if cached, ok := h.cachedOrders(c.Context()); ok {
			tracked = cached
		} else {
			return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: err.Error(), Kind: "upstream"})
		}
	}
	return c.Status(http.StatusOK).JSON(orders.ProjectAll(tracked))
}

func (h *Handler) cachedOrders(ctx context.Context) ([]model.TrackedOrder, bool) {
	if h.Store == nil {
		return nil, false
	}
	var cached []model.TrackedOrder
	if err := h.Store.GetJSON(ctx, orders.CacheKeyRecent, &cached); err != nil {
		if !errors.Is(err, store.ErrCacheMiss) {
			h.Logger.Debug("api.orders_cache_read_failed", zap.Error(err))
		}
		return nil, false
	}
	return cached, true
}

// ListAssets returns the marketplace catalog (XCPFOLIO subassets).
func (h *Handler) ListAssets(c *fiber.Ctx) error {
	subassets, err := h.Catalog.GetSubassets(c.Context())
	if err != nil {
		h.Logger.Error("api.subassets_failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: err.Error(), Kind: "upstream"})
	}
	return c.Status(http.StatusOK).JSON(subassets)
}

// GetAsset returns details for one asset.
func (h *Handler) GetAsset(c *fiber.Ctx) error {
	asset := c.Params("asset")
	if asset == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "missing asset", Kind: "bad_request"})
	}
	info, err := h.Catalog.GetAsset(c.Context(), asset)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: err.Error(), Kind: "upstream"})
	}
	if info == nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "asset not found", Kind: "not_found"})
	}
	return c.Status(http.StatusOK).JSON(info)
}

// GetAssetOrders returns the open sell orders for an asset.
func (h *Handler) GetAssetOrders(c *fiber.Ctx) error {
	return h.assetList(c, h.Catalog.GetAssetOrders)
}

// GetAssetHistory returns the recent order history for an asset.
func (h *Handler) GetAssetHistory(c *fiber.Ctx) error {
	return h.assetList(c, h.Catalog.GetAssetOrderHistory)
}

func (h *Handler) assetList(c *fiber.Ctx, fetch func(context.Context, string) ([]counterparty.DexOrder, error)) error {
	asset := c.Params("asset")
	if asset == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "missing asset", Kind: "bad_request"})
	}
	list, err := fetch(c.Context(), asset)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: err.Error(), Kind: "upstream"})
	}
	return c.Status(http.StatusOK).JSON(list)
}

// GetAssetMatches returns completed order matches for an asset.
func (h *Handler) GetAssetMatches(c *fiber.Ctx) error {
	asset := c.Params("asset")
	if asset == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "missing asset", Kind: "bad_request"})
	}
	matches, err := h.Catalog.GetAssetOrderMatches(c.Context(), asset)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: err.Error(), Kind: "upstream"})
	}
	return c.Status(http.StatusOK).JSON(matches)
}

// GetAssetIssuances returns the issuance history for an asset.
func (h *Handler) GetAssetIssuances(c *fiber.Ctx) error {
	asset := c.Params("asset")
	if asset == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "missing asset", Kind: "bad_request"})
	}
	issuances, err := h.Catalog.GetAssetIssuances(c.Context(), asset)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: err.Error(), Kind: "upstream"})
	}
	return c.Status(http.StatusOK).JSON(issuances)
}

// ConnectWallet prompts the wallet for authorization.
func (h *Handler) ConnectWallet(c *fiber.Ctx) error {
	address, err := h.Wallet.Connect(c.Context())
	if err != nil {
		kind := errorKind(err)
		return c.Status(errorStatus(kind)).JSON(ErrorResponse{Error: err.Error(), Kind: kind})
	}
	return c.Status(http.StatusOK).JSON(WalletResponse{Address: address, Connected: true})
}

// DisconnectWallet ends the wallet session.
func (h *Handler) DisconnectWallet(c *fiber.Ctx) error {
	h.Wallet.Disconnect(c.Context())
	return c.Status(http.StatusOK).JSON(WalletResponse{Connected: false})
}

// GetWallet returns the current wallet session snapshot.
func (h *Handler) GetWallet(c *fiber.Ctx) error {
	conn := h.Wallet.Connection()
	return c.Status(http.StatusOK).JSON(WalletResponse{Address: conn.Address, Connected: conn.Connected})
}

// ExecutePurchase runs the purchase flow for the posted swap request.
func (h *Handler) ExecutePurchase(c *fiber.Ctx) error {
	var req PurchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error(), Kind: "bad_request"})
	}

	swap := model.SwapOrderRequest{
		GiveAsset:          req.GiveAsset,
		GiveQuantity:       req.GiveQuantity,
		GetAsset:           req.GetAsset,
		GetQuantity:        req.GetQuantity,
		ExpirationBlocks:   req.ExpirationBlocks,
		FeeRateSatPerVByte: req.FeeRateSatPerVByte,
	}

	receipt, err := h.Purchase.Purchase(c.Context(), swap)
	if err != nil {
		kind := errorKind(err)
		h.Logger.Warn("api.purchase_failed",
			zap.String("kind", kind),
			zap.String("get_asset", req.GetAsset),
			zap.Error(err))
		return c.Status(errorStatus(kind)).JSON(ErrorResponse{Error: err.Error(), Kind: kind})
	}

	return c.Status(fiber.StatusCreated).JSON(PurchaseResponse{Success: true, Receipt: receipt})
}
