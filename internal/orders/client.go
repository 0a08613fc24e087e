// Package orders tracks purchase delivery: it reads the settlement bot's
// order feed, projects statuses into display form, and polls for status
// changes to publish and archive.
package orders

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/XCP/xcpfolio.com/internal/httpclient"
	"github.com/XCP/xcpfolio.com/internal/metrics"
	"github.com/XCP/xcpfolio.com/internal/rate"
	"github.com/XCP/xcpfolio.com/pkg/model"
)

// BotClient reads the settlement bot's order-tracking API.
type BotClient struct {
	logger  *zap.Logger
	exec    *httpclient.Executor
	baseURL string
	apiKey  string
	limit   int
}

// NewBotClient constructs a client for the bot API at baseURL. apiKey, when
// non-empty, is sent as a bearer credential on every request. limit caps
// how many orders a single fetch requests.
func NewBotClient(logger *zap.Logger, rateMgr *rate.Manager, baseURL, apiKey string, limit int) *BotClient {
	if limit <= 0 {
		limit = 100
	}
	exec := httpclient.New(logger, rateMgr, &http.Client{Timeout: 15 * time.Second}, 2, "bot", nil)
	return &BotClient{
		logger:  logger,
		exec:    exec,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		limit:   limit,
	}
}

// GetOrders fetches the most recent tracked orders, newest first.
func (c *BotClient) GetOrders(ctx context.Context) ([]model.TrackedOrder, error) {
	endpoint := c.baseURL + "/api/orders?limit=" + strconv.Itoa(c.limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build orders request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	var resp model.OrdersResponse
	if err := c.exec.DoJSON(ctx, req, "bot", &resp); err != nil {
		metrics.IncUpstreamRequest("bot", "orders", "error")
		return nil, err
	}
	if !resp.Success {
		metrics.IncUpstreamRequest("bot", "orders", "error")
		msg := resp.Error
		if msg == "" {
			msg = "bot reported failure without detail"
		}
		return nil, fmt.Errorf("bot orders fetch failed: %s", msg)
	}
	metrics.IncUpstreamRequest("bot", "orders", "ok")
	metrics.ObserveDuration(metrics.UpstreamRequestDuration, start, "bot", "orders")

	return resp.Orders, nil
}

// GetOrder returns the tracked order with the given hash, or nil when the
// bot does not know it.
func (c *BotClient) GetOrder(ctx context.Context, orderHash string) (*model.TrackedOrder, error) {
	all, err := c.GetOrders(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].OrderHash == orderHash {
			return &all[i], nil
		}
	}
	return nil, nil
}
