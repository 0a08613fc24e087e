package orders

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/XCP/xcpfolio.com/internal/metrics"
	"github.com/XCP/xcpfolio.com/internal/store"
	"github.com/XCP/xcpfolio.com/pkg/model"
)

// CacheKeyRecent is the Redis key holding the latest order feed snapshot.
const CacheKeyRecent = "orders:recent"

// Feed supplies the tracked-order list, normally the bot API.
type Feed interface {
	GetOrders(ctx context.Context) ([]model.TrackedOrder, error)
}

// EventSink receives order lifecycle events. Normally the NATS publisher.
type EventSink interface {
	PublishOrderStatusChanged(ctx context.Context, change model.OrderStatusChanged) error
	PublishOrderTerminal(ctx context.Context, change model.OrderStatusChanged) error
}

// Poller periodically reads the bot's order feed, caches the snapshot, and
// emits an event for every status transition it observes. Orders reaching a
// terminal status additionally get a final event and an archive row.
type Poller struct {
	logger    *zap.Logger
	feed      Feed
	publisher EventSink
	store     store.Store
	interval  time.Duration
	cacheTTL  time.Duration
	stopCh    chan struct{}

	mu         sync.Mutex
	lastStatus map[string]model.OrderStatus
}

// NewPoller constructs a delivery-status poller. publisher and st may be nil;
// polling then only maintains the in-memory status map.
func NewPoller(logger *zap.Logger, feed Feed, publisher EventSink, st store.Store, interval, cacheTTL time.Duration) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Poller{
		logger:     logger,
		feed:       feed,
		publisher:  publisher,
		store:      st,
		interval:   interval,
		cacheTTL:   cacheTTL,
		stopCh:     make(chan struct{}),
		lastStatus: make(map[string]model.OrderStatus),
	}
}

// Stop signals the poller to stop gracefully.
func (p *Poller) Stop() {
	close(p.stopCh)
}

// Run polls until ctx is cancelled or Stop is called. The first poll happens
// immediately so the cache is warm before the first tick.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("orders.poller_started", zap.Duration("interval", p.interval))

	p.pollOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("orders.poller_stopped", zap.String("reason", "context_cancelled"))
			return
		case <-p.stopCh:
			p.logger.Info("orders.poller_stopped", zap.String("reason", "poller_shutdown"))
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	tracked, err := p.feed.GetOrders(ctx)
	if err != nil {
		p.logger.Warn("orders.poll_failed", zap.Error(err))
		metrics.IncError("orders_poller", "fetch_failed")
		return
	}
	metrics.SetLastPoll("orders", time.Now())

	if p.store != nil {
		if err := p.store.SetJSON(ctx, CacheKeyRecent, tracked, p.cacheTTL); err != nil {
			p.logger.Warn("orders.cache_write_failed", zap.Error(err))
		}
	}

	seen := make(map[string]struct{}, len(tracked))
	for _, order := range tracked {
		seen[order.OrderHash] = struct{}{}
		p.handleOrder(ctx, order)
	}
	p.prune(seen)
}

// prune drops status entries for orders no longer in the feed, keeping the
// map bounded by the feed size. Terminal orders leave the feed once the bot
// rotates them out, so their entries go with them.
func (p *Poller) prune(seen map[string]struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for hash := range p.lastStatus {
		if _, ok := seen[hash]; !ok {
			delete(p.lastStatus, hash)
		}
	}
}

func (p *Poller) handleOrder(ctx context.Context, order model.TrackedOrder) {
	p.mu.Lock()
	previous, seen := p.lastStatus[order.OrderHash]
	changed := !seen || previous != order.Status
	if changed {
		p.lastStatus[order.OrderHash] = order.Status
	}
	p.mu.Unlock()

	if !changed {
		return
	}

	change := model.OrderStatusChanged{
		OrderHash: order.OrderHash,
		Asset:     order.Asset,
		Buyer:     order.Buyer,
		Status:    order.Status,
		Previous:  previous,
		Stage:     order.Stage,
		TxID:      order.TxID,
		Final:     order.Status.Terminal(),
		UpdatedAt: time.Now().UTC(),
	}

	p.logger.Info("orders.status_changed",
		zap.String("order_hash", order.OrderHash),
		zap.String("asset", order.Asset),
		zap.String("previous", string(previous)),
		zap.String("status", string(order.Status)))

	if p.publisher != nil {
		if err := p.publisher.PublishOrderStatusChanged(ctx, change); err != nil {
			p.logger.Debug("nats.publish_failed",
				zap.String("order_hash", order.OrderHash),
				zap.Error(err))
		}
	}

	if order.Status.Terminal() {
		p.handleTerminal(ctx, order, change)
	}
}

func (p *Poller) handleTerminal(ctx context.Context, order model.TrackedOrder, change model.OrderStatusChanged) {
	if p.store != nil {
		if err := p.store.ArchiveOrder(ctx, order); err != nil {
			p.logger.Warn("orders.archive_failed",
				zap.String("order_hash", order.OrderHash),
				zap.Error(err))
		} else {
			p.logger.Info("orders.archived",
				zap.String("order_hash", order.OrderHash),
				zap.String("status", string(order.Status)))
		}
	}

	if p.publisher != nil {
		if err := p.publisher.PublishOrderTerminal(ctx, change); err != nil {
			p.logger.Debug("nats.publish_failed",
				zap.String("order_hash", order.OrderHash),
				zap.Error(err))
		}
	}
}
