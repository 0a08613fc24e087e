package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XCP/xcpfolio.com/pkg/model"
)

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		name  string
		order model.TrackedOrder
		want  string
	}{
		{"confirmed", model.TrackedOrder{Status: model.StatusConfirmed}, "Delivered ✓"},
		{"confirming", model.TrackedOrder{Status: model.StatusConfirming}, "Confirming..."},
		{"broadcasting", model.TrackedOrder{Status: model.StatusBroadcasting}, "Broadcasting..."},
		{"processing", model.TrackedOrder{Status: model.StatusProcessing}, "Processing"},
		{"processing with retries", model.TrackedOrder{Status: model.StatusProcessing, RetryCount: 3}, "Processing (3)"},
		{"pending", model.TrackedOrder{Status: model.StatusPending}, "Pending"},
		{"failed", model.TrackedOrder{Status: model.StatusFailed}, "Failed"},
		{"permanently failed", model.TrackedOrder{Status: model.StatusPermanentlyFailed}, "Failed (Permanent)"},
		{"unknown passes through", model.TrackedOrder{Status: "migrating"}, "migrating"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusLabel(tt.order))
		})
	}
}

func TestColorClass(t *testing.T) {
	assert.Equal(t, "green", ColorClass(model.StatusConfirmed))
	assert.Equal(t, "blue", ColorClass(model.StatusConfirming))
	assert.Equal(t, "blue", ColorClass(model.StatusBroadcasting))
	assert.Equal(t, "yellow", ColorClass(model.StatusProcessing))
	assert.Equal(t, "red", ColorClass(model.StatusFailed))
	assert.Equal(t, "red", ColorClass(model.StatusPermanentlyFailed))
	assert.Equal(t, "gray", ColorClass(model.StatusPending))
}

func TestDeliverySummary(t *testing.T) {
	base := int64(1_700_000_000_000)

	t.Run("delivered under a minute", func(t *testing.T) {
		order := model.TrackedOrder{PurchasedAt: base, DeliveredAt: base + 42_000}
		assert.Equal(t, "42s", DeliverySummary(order))
	})

	t.Run("delivered in minutes", func(t *testing.T) {
		order := model.TrackedOrder{PurchasedAt: base, DeliveredAt: base + 330_000}
		assert.Equal(t, "5m 30s", DeliverySummary(order))
	})

	t.Run("delivered in hours", func(t *testing.T) {
		order := model.TrackedOrder{PurchasedAt: base, DeliveredAt: base + 2*3600_000 + 15*60_000}
		assert.Equal(t, "2h 15m", DeliverySummary(order))
	})

	t.Run("confirming shows confirmation progress", func(t *testing.T) {
		order := model.TrackedOrder{Status: model.StatusConfirming, Confirmations: 0}
		assert.Equal(t, "0/1 confirmations", DeliverySummary(order))
	})

	t.Run("failed has no delivery time", func(t *testing.T) {
		order := model.TrackedOrder{Status: model.StatusPermanentlyFailed}
		assert.Equal(t, "N/A", DeliverySummary(order))
	})

	t.Run("in flight", func(t *testing.T) {
		order := model.TrackedOrder{Status: model.StatusProcessing}
		assert.Equal(t, "Pending...", DeliverySummary(order))
	})
}

func TestTimeToDeliveryBlocks(t *testing.T) {
	t.Run("confirmed with both heights", func(t *testing.T) {
		order := model.TrackedOrder{
			Status:         model.StatusConfirmed,
			PurchasedBlock: 850000,
			ConfirmedBlock: 850002,
		}
		delta := TimeToDeliveryBlocks(order)
		require.NotNil(t, delta)
		assert.EqualValues(t, 2, *delta)
	})

	t.Run("not confirmed", func(t *testing.T) {
		order := model.TrackedOrder{
			Status:         model.StatusConfirming,
			PurchasedBlock: 850000,
			ConfirmedBlock: 850002,
		}
		assert.Nil(t, TimeToDeliveryBlocks(order))
	})

	t.Run("missing purchased block", func(t *testing.T) {
		order := model.TrackedOrder{Status: model.StatusConfirmed, ConfirmedBlock: 850002}
		assert.Nil(t, TimeToDeliveryBlocks(order))
	})
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "5 XCP", FormatPrice(5))
	assert.Equal(t, "0.5 XCP", FormatPrice(0.5))
	assert.Equal(t, "1.23456789 XCP", FormatPrice(1.23456789))
	assert.Equal(t, "10.1 XCP", FormatPrice(10.10))
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	t.Run("just now", func(t *testing.T) {
		ts := now.Add(-30 * time.Second).UnixMilli()
		assert.Equal(t, "Just now", FormatRelativeTime(ts, now))
	})

	t.Run("minutes ago", func(t *testing.T) {
		ts := now.Add(-25 * time.Minute).UnixMilli()
		assert.Equal(t, "25m ago", FormatRelativeTime(ts, now))
	})

	t.Run("earlier today", func(t *testing.T) {
		ts := time.Date(2025, 6, 15, 9, 5, 0, 0, time.UTC).UnixMilli()
		assert.Equal(t, "9:05 AM", FormatRelativeTime(ts, now))
	})

	t.Run("another day", func(t *testing.T) {
		ts := time.Date(2025, 6, 12, 18, 45, 0, 0, time.UTC).UnixMilli()
		assert.Equal(t, "Jun 12, 6:45 PM", FormatRelativeTime(ts, now))
	})
}

func TestProject(t *testing.T) {
	order := model.TrackedOrder{
		OrderHash:      "hash1",
		Asset:          "XCPFOLIO.BACH",
		Price:          2.5,
		Status:         model.StatusConfirmed,
		PurchasedAt:    1_700_000_000_000,
		DeliveredAt:    1_700_000_042_000,
		PurchasedBlock: 850000,
		ConfirmedBlock: 850001,
	}

	display := Project(order)

	assert.Equal(t, "Delivered ✓", display.StatusLabel)
	assert.Equal(t, "green", display.ColorClass)
	assert.Equal(t, "42s", display.DeliverySummary)
	assert.Equal(t, "2.5 XCP", display.PriceXCP)
	require.NotNil(t, display.TimeToDeliveryBlocks)
	assert.EqualValues(t, 1, *display.TimeToDeliveryBlocks)
}
