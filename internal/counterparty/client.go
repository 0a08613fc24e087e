// Package counterparty wraps the Counterparty v2 HTTP API: order
// composition for the purchase flow plus the read endpoints the
// marketplace pages are built on. Transaction building is deferred
// entirely to the upstream node; this client only validates input,
// shapes queries and surfaces upstream errors.
package counterparty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/XCP/xcpfolio.com/internal/httpclient"
	"github.com/XCP/xcpfolio.com/internal/metrics"
	"github.com/XCP/xcpfolio.com/internal/rate"
	"github.com/XCP/xcpfolio.com/pkg/model"
)

// ParentAsset is the namespace whose subassets the marketplace lists.
const ParentAsset = "XCPFOLIO"

// DefaultExpiration is the default order lifetime in blocks (~8 weeks).
// Orders are asset-ownership claim listings, not time-sensitive trades.
const DefaultExpiration = 8064

// Client talks to a Counterparty API node.
type Client struct {
	logger  *zap.Logger
	exec    *httpclient.Executor
	baseURL string

	// Composition defaults, overridable per request.
	expiration int
	feeRate    float64
}

// NewClient constructs a Counterparty client. expiration and feeRate are the
// defaults applied when a compose request leaves them unset.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, baseURL string, expiration int, feeRate float64) *Client {
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	exec := httpclient.New(logger, rateMgr, &http.Client{Timeout: 30 * time.Second}, 2, "counterparty",
		func(status int, body []byte) error {
			var env envelope[json.RawMessage]
			_ = json.Unmarshal(body, &env)

			logger.Warn("counterparty.client_error",
				zap.Int("status", status),
				zap.String("error", env.Error),
				zap.String("body", string(body)))

			return &UpstreamError{Status: status, Message: env.Error}
		})
	return &Client{
		logger:     logger,
		exec:       exec,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		expiration: expiration,
		feeRate:    feeRate,
	}
}

// ComposeOrder builds an unsigned DEX order transaction for source.
// It asks the node to exclude UTXOs that carry asset balances so an
// asset-bearing output is never spent as plain transaction fee input.
func (c *Client) ComposeOrder(ctx context.Context, source string, req model.SwapOrderRequest) (*model.ComposedTransaction, error) {
	if source == "" {
		return nil, &ComposeError{Message: "source address is required"}
	}
	if err := req.Validate(); err != nil {
		return nil, &ComposeError{Message: err.Error()}
	}

	expiration := req.ExpirationBlocks
	if expiration == 0 {
		expiration = c.expiration
	}
	feeRate := req.FeeRateSatPerVByte
	if feeRate == 0 {
		feeRate = c.feeRate
	}

	q := url.Values{}
	q.Set("give_asset", req.GiveAsset)
	q.Set("give_quantity", strconv.FormatInt(req.GiveQuantity, 10))
	q.Set("get_asset", req.GetAsset)
	q.Set("get_quantity", strconv.FormatInt(req.GetQuantity, 10))
	q.Set("expiration", strconv.Itoa(expiration))
	q.Set("fee_required", "0")
	q.Set("sat_per_vbyte", strconv.FormatFloat(feeRate, 'f', -1, 64))
	q.Set("exclude_utxos_with_balances", "true")
	q.Set("verbose", "true")

	endpoint := fmt.Sprintf("%s/v2/addresses/%s/compose/order?%s", c.baseURL, url.PathEscape(source), q.Encode())

	var env envelope[composeOrderResult]
	if err := c.getJSON(ctx, endpoint, "compose_order", &env); err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			msg := upstream.Message
			if msg == "" {
				msg = fmt.Sprintf("counterparty returned %d", upstream.Status)
			}
			return nil, &ComposeError{Message: msg}
		}
		return nil, err
	}
	if env.Error != "" {
		return nil, &ComposeError{Message: env.Error}
	}
	if env.Result.RawTransaction == "" {
		// The node answered 200 but without a transaction; treat it the
		// same as an explicit compose rejection.
		return nil, &ComposeError{Message: "compose response missing rawtransaction"}
	}

	c.logger.Info("counterparty.order_composed",
		zap.String("source", source),
		zap.String("give_asset", req.GiveAsset),
		zap.String("get_asset", req.GetAsset),
		zap.Int64("btc_fee", env.Result.BTCFee))

	return &model.ComposedTransaction{
		RawTransactionHex: env.Result.RawTransaction,
		EstimatedFeeSats:  env.Result.BTCFee,
		BTCIn:             env.Result.BTCIn,
		BTCOut:            env.Result.BTCOut,
		BTCChange:         env.Result.BTCChange,
		Params: model.ComposedParams{
			Source:       env.Result.Params.Source,
			GiveAsset:    env.Result.Params.GiveAsset,
			GiveQuantity: env.Result.Params.GiveQuantity,
			GetAsset:     env.Result.Params.GetAsset,
			GetQuantity:  env.Result.Params.GetQuantity,
			Expiration:   env.Result.Params.Expiration,
			FeeRequired:  env.Result.Params.FeeRequired,
		},
	}, nil
}

// GetSubassets lists the parent asset's subassets (the marketplace catalog).
func (c *Client) GetSubassets(ctx context.Context) ([]Subasset, error) {
	endpoint := fmt.Sprintf("%s/v2/assets/%s/subassets?verbose=true&limit=1000", c.baseURL, ParentAsset)
	var env envelope[[]Subasset]
	if err := c.getJSON(ctx, endpoint, "subassets", &env); err != nil {
		return nil, err
	}
	return env.Result, nil
}

// GetAsset fetches detailed information for a single asset.
func (c *Client) GetAsset(ctx context.Context, asset string) (*Asset, error) {
	endpoint := fmt.Sprintf("%s/v2/assets/%s?verbose=true&show_unconfirmed=true", c.baseURL, url.PathEscape(asset))
	var env envelope[*Asset]
	if err := c.getJSON(ctx, endpoint, "asset", &env); err != nil {
		return nil, err
	}
	return env.Result, nil
}

// GetAssetOrders returns open sell orders for an asset. Subassets must be
// queried by their numeric id, so the asset is resolved first.
func (c *Client) GetAssetOrders(ctx context.Context, asset string) ([]DexOrder, error) {
	numericID, err := c.resolveNumericID(ctx, asset)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/v2/assets/%s/orders?status=open&verbose=true", c.baseURL, numericID)
	var env envelope[[]DexOrder]
	if err := c.getJSON(ctx, endpoint, "asset_orders", &env); err != nil {
		return nil, err
	}
	return env.Result, nil
}

// GetAssetOrderHistory returns recent orders for an asset in any status.
func (c *Client) GetAssetOrderHistory(ctx context.Context, asset string) ([]DexOrder, error) {
	numericID, err := c.resolveNumericID(ctx, asset)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/v2/assets/%s/orders?status=all&verbose=true&limit=50&sort=tx_index:desc", c.baseURL, numericID)
	var env envelope[[]DexOrder]
	if err := c.getJSON(ctx, endpoint, "asset_order_history", &env); err != nil {
		return nil, err
	}
	return env.Result, nil
}

// GetAssetOrderMatches returns completed matches for an asset, used to tell
// whether a listing has already been sold.
func (c *Client) GetAssetOrderMatches(ctx context.Context, asset string) ([]OrderMatch, error) {
	numericID, err := c.resolveNumericID(ctx, asset)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/v2/assets/%s/matches?status=completed&verbose=true", c.baseURL, numericID)
	var env envelope[[]OrderMatch]
	if err := c.getJSON(ctx, endpoint, "asset_matches", &env); err != nil {
		return nil, err
	}
	return env.Result, nil
}

// GetAssetIssuances returns the issuance history of an asset.
func (c *Client) GetAssetIssuances(ctx context.Context, asset string) ([]Issuance, error) {
	endpoint := fmt.Sprintf("%s/v2/assets/%s/issuances?verbose=true&show_unconfirmed=true&limit=50", c.baseURL, url.PathEscape(asset))
	var env envelope[[]Issuance]
	if err := c.getJSON(ctx, endpoint, "asset_issuances", &env); err != nil {
		return nil, err
	}
	return env.Result, nil
}

// Healthy reports whether the node root endpoint answers.
func (c *Client) Healthy(ctx context.Context) error {
	endpoint := c.baseURL + "/v2/"
	var out json.RawMessage
	return c.getJSON(ctx, endpoint, "root", &out)
}

// resolveNumericID maps XCPFOLIO.NAME (or a bare NAME) to the numeric asset
// id the orders endpoints require.
func (c *Client) resolveNumericID(ctx context.Context, asset string) (string, error) {
	full := asset
	if !strings.Contains(asset, ".") {
		full = ParentAsset + "." + asset
	}
	info, err := c.GetAsset(ctx, full)
	if err != nil {
		return "", err
	}
	if info == nil || info.Asset == "" {
		return "", fmt.Errorf("no numeric id found for %q", full)
	}
	return info.Asset, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, tag string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	if err := c.exec.DoJSON(ctx, req, "counterparty", out); err != nil {
		metrics.IncUpstreamRequest("counterparty", tag, "error")
		return err
	}
	metrics.IncUpstreamRequest("counterparty", tag, "ok")
	metrics.ObserveDuration(metrics.UpstreamRequestDuration, start, "counterparty", tag)
	return nil
}
