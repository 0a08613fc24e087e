package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical event wrapper published to NATS.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope builds an envelope for eventType with a fresh id pair.
func NewEnvelope(topic, eventType string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		Topic:         topic,
		EventType:     eventType,
		Version:       "1.0.0",
		Timestamp:     time.Now().UTC(),
		Payload:       data,
	}, nil
}

// OrderStatusChanged is the payload for evt.order.status_changed events.
type OrderStatusChanged struct {
	OrderHash string      `json:"order_hash"`
	Asset     string      `json:"asset"`
	Buyer     string      `json:"buyer"`
	Status    OrderStatus `json:"status"`
	Previous  OrderStatus `json:"previous,omitempty"`
	Stage     string      `json:"stage,omitempty"`
	TxID      string      `json:"txid,omitempty"`
	Final     bool        `json:"final"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// PurchaseCompleted is the payload for evt.purchase.completed events.
type PurchaseCompleted struct {
	AttemptID     uuid.UUID `json:"attempt_id"`
	Source        string    `json:"source"`
	GiveAsset     string    `json:"give_asset"`
	GetAsset      string    `json:"get_asset"`
	TransactionID string    `json:"transaction_id"`
	FeeSats       int64     `json:"fee_sats"`
	Timestamp     time.Time `json:"timestamp"`
}
