package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/XCP/xcpfolio.com/internal/api"
	"github.com/XCP/xcpfolio.com/internal/counterparty"
	"github.com/XCP/xcpfolio.com/internal/fees"
	"github.com/XCP/xcpfolio.com/internal/orders"
	"github.com/XCP/xcpfolio.com/internal/publisher"
	"github.com/XCP/xcpfolio.com/internal/purchase"
	"github.com/XCP/xcpfolio.com/internal/rate"
	internalsecrets "github.com/XCP/xcpfolio.com/internal/secrets"
	"github.com/XCP/xcpfolio.com/internal/store"
	"github.com/XCP/xcpfolio.com/internal/wallet"
	"github.com/XCP/xcpfolio.com/pkg/config"
	"github.com/XCP/xcpfolio.com/pkg/logger"
	"github.com/XCP/xcpfolio.com/pkg/secrets"
	"github.com/XCP/xcpfolio.com/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [xcpfolio-agent]...")
	if cfg.DatabaseURL != "" {
		logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))
	}

	// --- Credentials (AWS Secrets Manager, env fallback) ---
	var resolver *internalsecrets.Resolver
	fallback := internalsecrets.Credentials{
		BotAPIKey:   config.GetEnv("BOT_API_KEY", ""),
		SignerToken: config.GetEnv("SIGNER_TOKEN", ""),
	}
	stopCleaner := make(chan struct{})
	if cfg.SecretName != "" {
		awsProvider, err := secrets.NewAWSProvider(cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		credCache := secrets.NewCache[internalsecrets.Credentials](cfg.CacheTTL)
		go credCache.StartCleaner(cfg.CleanupFreq, stopCleaner)
		resolver = internalsecrets.NewResolver(logger.L(), awsProvider, credCache, cfg.SecretName, fallback)
	} else {
		resolver = internalsecrets.NewResolver(logger.L(), nil, nil, "", fallback)
	}
	creds, err := resolver.Resolve(ctx)
	if err != nil {
		logg.Warnw("credential resolution failed; continuing with anonymous upstream access", "error", err)
	}

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		logg.Fatalw("failed to connect to NATS", "error", err)
	}

	// --- Publisher ---
	pub, err := publisher.New(nc, "evt.xcpfolio", "XCPFOLIO_EVENTS")
	if err != nil {
		logg.Fatalw("failed to init publisher", "error", err)
	}

	// --- Rate limiter ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: 10,
		Burst:             20,
	})

	// --- Store (Redis + optional Postgres archive) ---
	st, err := store.NewHybrid(cfg.RedisAddr, cfg.RedisDB, cfg.DatabaseURL, store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}, logger.L())
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}

	// --- Upstream clients ---
	cpClient := counterparty.NewClient(logger.L(), rateMgr, cfg.CounterpartyURL, cfg.OrderExpiration, cfg.OrderFeeRate)
	feeAdvisor := fees.NewAdvisor(logger.L(), rateMgr, cfg.MempoolURL, cfg.FeeCacheTTL)
	botClient := orders.NewBotClient(logger.L(), rateMgr, cfg.BotAPIURL, creds.BotAPIKey, cfg.OrdersLimit)

	// --- Wallet bridge over the remote signer ---
	signerProvider := wallet.NewWSProvider(cfg.SignerURL, creds.SignerToken, logger.L())
	if err := signerProvider.Connect(ctx); err != nil {
		// The provider keeps re-dialing; the bridge surfaces a wallet error
		// until the signer is reachable.
		logg.Warnw("signer connection failed; purchase flow unavailable until it reconnects",
			"url", cfg.SignerURL, "error", err)
	}
	bridge := wallet.NewBridge(logger.L(), signerProvider, cfg.ConnectTimeout, cfg.SignTimeout, cfg.BroadcastTimeout)
	if accounts := bridge.GetAccounts(ctx); len(accounts) > 0 {
		logg.Infow("wallet session resumed", "address", accounts[0])
	}

	// --- Purchase service ---
	purchaseSvc := purchase.NewService(logger.L(), cpClient, bridge, feeAdvisor, pub)

	// --- Delivery-status poller ---
	poller := orders.NewPoller(logger.L(), botClient, pub, st, cfg.OrderPollInterval, cfg.OrdersCacheTTL)
	go poller.Run(ctx)

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	handler := &api.Handler{
		Logger:   logger.L(),
		Catalog:  cpClient,
		Fees:     feeAdvisor,
		Orders:   botClient,
		Store:    st,
		Wallet:   bridge,
		Purchase: purchaseSvc,
		Bus:      pub,
	}
	api.RegisterRoutes(app, handler)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[xcpfolio-agent] running",
		"counterparty", cfg.CounterpartyURL,
		"mempool", cfg.MempoolURL,
		"bot", cfg.BotAPIURL,
		"nats", cfg.NATSURL,
		"env", cfg.Env,
		"poll_interval", cfg.OrderPollInterval)

	<-ctx.Done()
	logg.Info("shutting down [xcpfolio-agent]...")

	close(stopCleaner)
	poller.Stop()
	bridge.Disconnect(context.Background())
	if err := signerProvider.Close(); err != nil {
		logg.Warnw("signer.close_failed", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if err := nc.Drain(); err != nil {
		logg.Warnw("nats.drain_failed", "error", err)
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
}
