package config

import (
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration for the xcpfolio agent.
// Values come from environment variables (and a .env file if present),
// with sensible defaults for local development.
type Config struct {
	ServiceName string // e.g. "xcpfolio-agent"
	Env         string // "dev", "uat", "prod"
	LogLevel    string // "debug", "info", etc.
	Port        int    // HTTP API + metrics port

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int

	// Upstream endpoints.
	CounterpartyURL string // Counterparty API, e.g. https://api.counterparty.io:4000
	MempoolURL      string // mempool.space API base
	BotAPIURL       string // settlement bot orders API
	SignerURL       string // remote wallet signer websocket, e.g. ws://localhost:8332/ws

	// Messaging and storage.
	NATSURL     string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	DatabaseURL string // optional Postgres order archive; empty disables it

	// AWS Secrets Manager (per-environment upstream credentials).
	AWSRegion   string
	SecretName  string // secret holding bot/signer credentials; empty = env only
	CacheTTL    time.Duration
	CleanupFreq time.Duration

	// Fee advisor.
	FeeCacheTTL time.Duration // freshness window for mempool.space rates

	// Order composition defaults.
	OrderExpiration int     // blocks until an order expires (~8 weeks)
	OrderFeeRate    float64 // fallback sat/vB when the advisor is bypassed

	// Wallet bridge.
	ConnectTimeout   time.Duration // hard timeout on connect popups
	SignTimeout      time.Duration // 0 = wait indefinitely for the signer
	BroadcastTimeout time.Duration // 0 = wait indefinitely

	// Order status tracking.
	OrderPollInterval time.Duration
	OrdersCacheTTL    time.Duration
	OrdersLimit       int

	PGMaxConns          int
	PGMinConns          int
	PGMaxConnLifetime   time.Duration
	PGMaxConnIdleTime   time.Duration
	PGHealthCheckPeriod time.Duration
}

// Load loads configuration from environment variables and .env file if present.
func Load() *Config {
	// load .env silently (no error if missing)
	_ = godotenv.Load()

	return &Config{
		ServiceName: GetEnv("SERVICE_NAME", "xcpfolio-agent"),
		Env:         GetEnv("ENV", "dev"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		Port:        GetEnvInt("PORT", 9020),

		HTTPReadTimeout:  GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout: GetEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
		HTTPIdleTimeout:  GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:    GetEnvInt("HTTP_BODY_LIMIT", 1*1024*1024),

		CounterpartyURL: GetEnv("COUNTERPARTY_API_URL", "https://api.counterparty.io:4000"),
		MempoolURL:      GetEnv("MEMPOOL_API_URL", "https://mempool.space"),
		BotAPIURL:       GetEnv("BOT_API_URL", "http://localhost:3001"),
		SignerURL:       GetEnv("SIGNER_WS_URL", "ws://localhost:8332/ws"),

		NATSURL:     GetEnv("NATS_URL", "nats://localhost:4222"),
		RedisAddr:   GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     GetEnvInt("REDIS_DB", 0),
		RedisPass:   GetEnv("REDIS_PASS", ""),
		DatabaseURL: GetEnv("DATABASE_URL", ""),

		AWSRegion:   GetEnv("AWS_REGION", "us-east-2"),
		SecretName:  GetEnv("SECRET_NAME", ""),
		CacheTTL:    GetEnvDuration("CACHE_TTL", 24*time.Hour),
		CleanupFreq: GetEnvDuration("CACHE_CLEANUP_FREQ", 10*time.Minute),

		FeeCacheTTL: GetEnvDuration("FEE_CACHE_TTL", 30*time.Second),

		OrderExpiration: GetEnvInt("ORDER_EXPIRATION_BLOCKS", 8064),
		OrderFeeRate:    GetEnvFloat("ORDER_FEE_RATE", 10),

		ConnectTimeout:   GetEnvDuration("WALLET_CONNECT_TIMEOUT", 10*time.Second),
		SignTimeout:      GetEnvDuration("WALLET_SIGN_TIMEOUT", 0),
		BroadcastTimeout: GetEnvDuration("WALLET_BROADCAST_TIMEOUT", 0),

		OrderPollInterval: GetEnvDuration("ORDER_POLL_INTERVAL", 10*time.Second),
		OrdersCacheTTL:    GetEnvDuration("ORDERS_CACHE_TTL", 30*time.Second),
		OrdersLimit:       GetEnvInt("ORDERS_LIMIT", 100),

		PGMaxConns:          GetEnvInt("PG_MAX_CONNS", 10),
		PGMinConns:          GetEnvInt("PG_MIN_CONNS", 2),
		PGMaxConnLifetime:   GetEnvDuration("PG_MAX_CONN_LIFETIME", 30*time.Minute),
		PGMaxConnIdleTime:   GetEnvDuration("PG_MAX_CONN_IDLE_TIME", 5*time.Minute),
		PGHealthCheckPeriod: GetEnvDuration("PG_HEALTH_CHECK_PERIOD", 1*time.Minute),
	}
}
