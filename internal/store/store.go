// Package store provides the Redis-first, Postgres-backed persistence used
// by the delivery tracker: Redis caches hot read-path payloads (order feed,
// catalog responses), Postgres keeps a permanent archive of orders that
// reached a terminal status.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/XCP/xcpfolio.com/pkg/model"
)

// Store defines the contract for caching and archiving order data.
type Store interface {
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error
	ArchiveOrder(ctx context.Context, order model.TrackedOrder) error
	GetArchivedOrder(ctx context.Context, orderHash string) (*model.TrackedOrder, error)
	ListArchivedOrders(ctx context.Context, buyer string, limit int) ([]model.TrackedOrder, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// ErrCacheMiss is returned by GetJSON when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

type HybridStore struct {
	redis  *redis.Client
	PG     *pgxpool.Pool
	logger *zap.Logger
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewHybrid creates a Redis-first, Postgres-backed store. pgURL may be empty,
// in which case archive operations become no-ops.
func NewHybrid(redisAddr string, redisDB int, pgURL string, pgPoolConfig PGPoolConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   redisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if pgPoolConfig.MaxConns > 0 {
			cfg.MaxConns = pgPoolConfig.MaxConns
		}
		if pgPoolConfig.MinConns > 0 {
			cfg.MinConns = pgPoolConfig.MinConns
		}
		if pgPoolConfig.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
		}
		if pgPoolConfig.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
		}
		if pgPoolConfig.HealthCheckPeriod > 0 {
			cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return &HybridStore{redis: rdb, PG: pgPool, logger: logger}, nil
}

func (s *HybridStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

func (s *HybridStore) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	} else if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// ArchiveOrder upserts a terminal order into the archive table. Re-archiving
// the same order with fresher fields overwrites the previous row.
func (s *HybridStore) ArchiveOrder(ctx context.Context, order model.TrackedOrder) error {
	if s.PG == nil {
		return nil
	}
	_, err := s.PG.Exec(ctx, `
		INSERT INTO marketplace.order_archive (
			order_hash, asset, price, buyer, status, stage,
			purchased_at, purchased_block, delivered_at,
			confirmed_at, confirmed_block, confirmations,
			txid, error, retry_count, archived_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
		ON CONFLICT (order_hash)
		DO UPDATE SET
			status = EXCLUDED.status,
			stage = EXCLUDED.stage,
			delivered_at = EXCLUDED.delivered_at,
			confirmed_at = EXCLUDED.confirmed_at,
			confirmed_block = EXCLUDED.confirmed_block,
			confirmations = EXCLUDED.confirmations,
			txid = EXCLUDED.txid,
			error = EXCLUDED.error,
			retry_count = EXCLUDED.retry_count,
			archived_at = NOW();
	`, order.OrderHash, order.Asset, order.Price, order.Buyer, string(order.Status), order.Stage,
		order.PurchasedAt, order.PurchasedBlock, order.DeliveredAt,
		order.ConfirmedAt, order.ConfirmedBlock, order.Confirmations,
		order.TxID, order.Error, order.RetryCount)
	if err != nil {
		s.logger.Error("store.pg.archive_order_failed",
			zap.String("order_hash", order.OrderHash),
			zap.Error(err))
	}
	return err
}

func (s *HybridStore) GetArchivedOrder(ctx context.Context, orderHash string) (*model.TrackedOrder, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	const q = `
		SELECT order_hash, asset, price, buyer, status, stage,
		       purchased_at, purchased_block, delivered_at,
		       confirmed_at, confirmed_block, confirmations,
		       txid, error, retry_count
		FROM marketplace.order_archive
		WHERE order_hash = $1
		LIMIT 1;
	`
	row := s.PG.QueryRow(ctx, q, orderHash)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("GetArchivedOrder scan failed: %w", err)
	}
	return order, nil
}

func (s *HybridStore) ListArchivedOrders(ctx context.Context, buyer string, limit int) ([]model.TrackedOrder, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.PG.Query(ctx, `
		SELECT order_hash, asset, price, buyer, status, stage,
		       purchased_at, purchased_block, delivered_at,
		       confirmed_at, confirmed_block, confirmations,
		       txid, error, retry_count
		FROM marketplace.order_archive
		WHERE ($1 = '' OR buyer = $1)
		ORDER BY purchased_at DESC
		LIMIT $2;
	`, buyer, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.TrackedOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *order)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*model.TrackedOrder, error) {
	var o model.TrackedOrder
	var status string
	if err := row.Scan(&o.OrderHash, &o.Asset, &o.Price, &o.Buyer, &status, &o.Stage,
		&o.PurchasedAt, &o.PurchasedBlock, &o.DeliveredAt,
		&o.ConfirmedAt, &o.ConfirmedBlock, &o.Confirmations,
		&o.TxID, &o.Error, &o.RetryCount); err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	return &o, nil
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
