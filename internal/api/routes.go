package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Get("/health", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api/v1")
	v1.Get("/fees", h.GetFees)
	v1.Get("/block-height", h.GetBlockHeight)
	v1.Get("/orders", h.GetOrders)
	v1.Get("/orders/display", h.GetOrdersDisplay)
	v1.Get("/assets", h.ListAssets)
	v1.Get("/assets/:asset", h.GetAsset)
	v1.Get("/assets/:asset/orders", h.GetAssetOrders)
	v1.Get("/assets/:asset/history", h.GetAssetHistory)
	v1.Get("/assets/:asset/matches", h.GetAssetMatches)
	v1.Get("/assets/:asset/issuances", h.GetAssetIssuances)
	v1.Get("/wallet", h.GetWallet)
	v1.Post("/wallet/connect", h.ConnectWallet)
	v1.Post("/wallet/disconnect", h.DisconnectWallet)
	v1.Post("/purchase", h.ExecutePurchase)
}
