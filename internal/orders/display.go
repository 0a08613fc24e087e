package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/XCP/xcpfolio.com/pkg/model"
)

// DisplayOrder is a tracked order projected into display form for the
// status page.
type DisplayOrder struct {
	model.TrackedOrder

	StatusLabel          string `json:"statusLabel"`
	ColorClass           string `json:"colorClass"`
	DeliverySummary      string `json:"deliverySummary"`
	PriceXCP             string `json:"priceXcp"`
	TimeToDeliveryBlocks *int64 `json:"timeToDeliveryBlocks,omitempty"`
}

// Project maps a tracked order to its display form.
func Project(order model.TrackedOrder) DisplayOrder {
	return DisplayOrder{
		TrackedOrder:         order,
		StatusLabel:          StatusLabel(order),
		ColorClass:           ColorClass(order.Status),
		DeliverySummary:      DeliverySummary(order),
		PriceXCP:             FormatPrice(order.Price),
		TimeToDeliveryBlocks: TimeToDeliveryBlocks(order),
	}
}

// ProjectAll maps a batch of tracked orders, preserving order.
func ProjectAll(tracked []model.TrackedOrder) []DisplayOrder {
	out := make([]DisplayOrder, len(tracked))
	for i, o := range tracked {
		out[i] = Project(o)
	}
	return out
}

// StatusLabel returns the badge text for an order's status. Unknown
// statuses fall through as-is rather than hiding the order.
func StatusLabel(order model.TrackedOrder) string {
	switch order.Status {
	case model.StatusConfirmed:
		return "Delivered ✓"
	case model.StatusConfirming:
		return "Confirming..."
	case model.StatusBroadcasting:
		return "Broadcasting..."
	case model.StatusProcessing:
		if order.RetryCount > 0 {
			return fmt.Sprintf("Processing (%d)", order.RetryCount)
		}
		return "Processing"
	case model.StatusPending:
		return "Pending"
	case model.StatusPermanentlyFailed:
		return "Failed (Permanent)"
	case model.StatusFailed:
		return "Failed"
	default:
		return string(order.Status)
	}
}

// ColorClass returns the badge color bucket for a status.
func ColorClass(status model.OrderStatus) string {
	switch status {
	case model.StatusConfirmed:
		return "green"
	case model.StatusConfirming, model.StatusBroadcasting:
		return "blue"
	case model.StatusProcessing:
		return "yellow"
	case model.StatusFailed, model.StatusPermanentlyFailed:
		return "red"
	default:
		return "gray"
	}
}

// DeliverySummary renders the delivery-time column: the elapsed
// purchase-to-delivery span once delivered, confirmation progress while
// confirming, and placeholders otherwise.
func DeliverySummary(order model.TrackedOrder) string {
	if order.DeliveredAt == 0 {
		switch {
		case order.Status == model.StatusFailed || order.Status == model.StatusPermanentlyFailed:
			return "N/A"
		case order.Status == model.StatusConfirming:
			return fmt.Sprintf("%d/1 confirmations", order.Confirmations)
		default:
			return "Pending..."
		}
	}

	seconds := (order.DeliveredAt - order.PurchasedAt) / 1000
	if seconds < 0 {
		seconds = 0
	}
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// TimeToDeliveryBlocks is the number of blocks between purchase and
// confirmation. It is only defined for confirmed orders that carry both
// block heights.
func TimeToDeliveryBlocks(order model.TrackedOrder) *int64 {
	if order.Status != model.StatusConfirmed {
		return nil
	}
	if order.PurchasedBlock == 0 || order.ConfirmedBlock == 0 {
		return nil
	}
	delta := order.ConfirmedBlock - order.PurchasedBlock
	return &delta
}

// FormatPrice renders an XCP price with trailing zeros trimmed, keeping at
// most the eight decimal places the protocol supports.
func FormatPrice(price float64) string {
	d := decimal.NewFromFloat(price).Round(8)
	return d.String() + " XCP"
}

// FormatRelativeTime renders a Unix-millisecond timestamp the way the
// status page shows purchase times: relative within the hour, clock time
// within the day, date otherwise.
func FormatRelativeTime(unixMillis int64, now time.Time) string {
	ts := time.UnixMilli(unixMillis).In(now.Location())
	diff := now.Sub(ts)

	if diff < time.Hour {
		minutes := int(diff.Minutes())
		if minutes < 1 {
			return "Just now"
		}
		return fmt.Sprintf("%dm ago", minutes)
	}

	if ts.Year() == now.Year() && ts.YearDay() == now.YearDay() {
		return ts.Format("3:04 PM")
	}
	return ts.Format("Jan 2, 3:04 PM")
}
