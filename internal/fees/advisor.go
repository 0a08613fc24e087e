// Package fees supplies recommended Bitcoin fee rates for order composition.
//
// Rates come from the mempool.space recommended-fees endpoint and are cached
// for a short freshness window. The advisor never fails: when the upstream is
// unreachable it serves the last-known rates regardless of staleness, and
// falls back to conservative hardcoded defaults only when no fetch has ever
// succeeded.
package fees

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/XCP/xcpfolio.com/internal/httpclient"
	"github.com/XCP/xcpfolio.com/internal/metrics"
	"github.com/XCP/xcpfolio.com/internal/rate"
)

// FeeRates are recommended fee rates in sat/vB, fastest first.
type FeeRates struct {
	FastestFee  float64 `json:"fastestFee"`
	HalfHourFee float64 `json:"halfHourFee"`
	HourFee     float64 `json:"hourFee"`
	EconomyFee  float64 `json:"economyFee"`
	MinimumFee  float64 `json:"minimumFee"`
}

// DefaultRates are the fallback rates used when no fetch has ever succeeded.
func DefaultRates() FeeRates {
	return FeeRates{
		FastestFee:  10,
		HalfHourFee: 5,
		HourFee:     3,
		EconomyFee:  2,
		MinimumFee:  1,
	}
}

// Advisor fetches and caches recommended fee rates.
type Advisor struct {
	logger  *zap.Logger
	exec    *httpclient.Executor
	baseURL string
	ttl     time.Duration
	now     func() time.Time

	mu        sync.Mutex
	cached    FeeRates
	hasCache  bool
	fetchedAt time.Time
}

// NewAdvisor constructs an advisor against the given mempool.space base URL.
// ttl is the cache freshness window.
func NewAdvisor(logger *zap.Logger, rateMgr *rate.Manager, baseURL string, ttl time.Duration) *Advisor {
	return NewAdvisorWithClock(logger, rateMgr, baseURL, ttl, time.Now)
}

// NewAdvisorWithClock is NewAdvisor with an explicit clock, used in tests to
// exercise TTL expiry without sleeping.
func NewAdvisorWithClock(logger *zap.Logger, rateMgr *rate.Manager, baseURL string, ttl time.Duration, now func() time.Time) *Advisor {
	exec := httpclient.New(logger, rateMgr, &http.Client{Timeout: 10 * time.Second}, 1, "mempool", nil)
	return &Advisor{
		logger:  logger,
		exec:    exec,
		baseURL: baseURL,
		ttl:     ttl,
		now:     now,
	}
}

// GetFeeRates returns the current recommended rates. It never returns an
// error: upstream failures degrade to the last-known rates, then to defaults.
func (a *Advisor) GetFeeRates(ctx context.Context) FeeRates {
	a.mu.Lock()
	if a.hasCache && a.now().Sub(a.fetchedAt) < a.ttl {
		rates := a.cached
		a.mu.Unlock()
		metrics.IncFeeCache("hit")
		return rates
	}
	a.mu.Unlock()

	rates, err := a.fetch(ctx)
	if err != nil {
		a.logger.Warn("fees.fetch_failed", zap.Error(err))

		a.mu.Lock()
		defer a.mu.Unlock()
		if a.hasCache {
			metrics.IncFeeCache("stale")
			return a.cached
		}
		metrics.IncFeeCache("default")
		return DefaultRates()
	}

	a.mu.Lock()
	a.cached = rates
	a.hasCache = true
	a.fetchedAt = a.now()
	a.mu.Unlock()

	metrics.IncFeeCache("miss")
	return rates
}

// GetOrderFeeRate returns the rate used for swap order transactions. Orders
// are asset-ownership listings, not time-critical trades, so the hour rate
// is enough; the floor of 1 sat/vB guards against a zero or negative quote.
func (a *Advisor) GetOrderFeeRate(ctx context.Context) float64 {
	rates := a.GetFeeRates(ctx)
	if rates.HourFee < 1 {
		return 1
	}
	return rates.HourFee
}

// BlockHeight returns the current Bitcoin tip height. Unlike the fee rates
// there is no sensible fallback value, so upstream failures propagate.
func (a *Advisor) BlockHeight(ctx context.Context) (int64, error) {
	url := a.baseURL + "/api/blocks/tip/height"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build height request: %w", err)
	}

	// The endpoint returns the bare height as text, which decodes as a
	// JSON number.
	var height int64
	if err := a.exec.DoJSON(ctx, req, "mempool", &height); err != nil {
		metrics.IncUpstreamRequest("mempool", "tip_height", "error")
		return 0, err
	}
	metrics.IncUpstreamRequest("mempool", "tip_height", "ok")
	return height, nil
}

func (a *Advisor) fetch(ctx context.Context) (FeeRates, error) {
	url := a.baseURL + "/api/v1/fees/recommended"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FeeRates{}, fmt.Errorf("build fee request: %w", err)
	}

	start := time.Now()
	var rates FeeRates
	if err := a.exec.DoJSON(ctx, req, "mempool", &rates); err != nil {
		metrics.IncUpstreamRequest("mempool", "fees_recommended", "error")
		return FeeRates{}, err
	}
	metrics.IncUpstreamRequest("mempool", "fees_recommended", "ok")
	metrics.ObserveDuration(metrics.UpstreamRequestDuration, start, "mempool", "fees_recommended")

	return rates, nil
}
