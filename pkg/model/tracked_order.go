package model

// OrderStatus is the delivery state reported by the settlement bot. The bot
// owns this lifecycle; the agent only renders it.
type OrderStatus string

const (
	StatusPending           OrderStatus = "pending"
	StatusProcessing        OrderStatus = "processing"
	StatusBroadcasting      OrderStatus = "broadcasting"
	StatusConfirming        OrderStatus = "confirming"
	StatusConfirmed         OrderStatus = "confirmed"
	StatusFailed            OrderStatus = "failed"
	StatusPermanentlyFailed OrderStatus = "permanently_failed"
)

// Terminal reports whether the status is final (no further transitions).
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusFailed, StatusPermanentlyFailed:
		return true
	default:
		return false
	}
}

// TrackedOrder is the settlement bot's progress record for a purchase.
// Timestamps are Unix milliseconds, as the bot reports them.
type TrackedOrder struct {
	OrderHash      string      `json:"orderHash"`
	Asset          string      `json:"asset"`
	Price          float64     `json:"price"`
	Buyer          string      `json:"buyer"`
	Status         OrderStatus `json:"status"`
	Stage          string      `json:"stage,omitempty"`
	PurchasedAt    int64       `json:"purchasedAt"`
	PurchasedBlock int64       `json:"purchasedBlock,omitempty"`
	DeliveredAt    int64       `json:"deliveredAt,omitempty"`
	ConfirmedAt    int64       `json:"confirmedAt,omitempty"`
	ConfirmedBlock int64       `json:"confirmedBlock,omitempty"`
	Confirmations  int         `json:"confirmations,omitempty"`
	TxID           string      `json:"txid,omitempty"`
	Error          string      `json:"error,omitempty"`
	RetryCount     int         `json:"retryCount,omitempty"`
}

// OrdersResponse is the envelope the bot's orders endpoint returns.
type OrdersResponse struct {
	Success   bool           `json:"success"`
	Orders    []TrackedOrder `json:"orders"`
	Total     int            `json:"total,omitempty"`
	Timestamp int64          `json:"timestamp,omitempty"`
	Error     string         `json:"error,omitempty"`
}
