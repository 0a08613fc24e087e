// Package publisher emits marketplace lifecycle events to NATS JetStream:
// order status changes seen by the delivery poller and completed purchases.
package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/XCP/xcpfolio.com/internal/metrics"
	"github.com/XCP/xcpfolio.com/pkg/logger"
	"github.com/XCP/xcpfolio.com/pkg/model"
)

// Subjects for marketplace events. Terminal order events append the
// lowercased status, e.g. evt.order.confirmed.v1.XCPFOLIO.
const (
	SubjectOrderStatusChanged = "evt.order.status_changed.v1.XCPFOLIO"
	SubjectPurchaseCompleted  = "evt.purchase.completed.v1.XCPFOLIO"
	subjectOrderTerminalBase  = "evt.order."
	subjectOrderTerminalTail  = ".v1.XCPFOLIO"
)

// TerminalSubject returns the subject for a terminal order status event.
func TerminalSubject(status model.OrderStatus) string {
	return subjectOrderTerminalBase + string(status) + subjectOrderTerminalTail
}

// Publisher wraps a NATS connection and provides helpers for publishing
// canonical events.
type Publisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	service string
}

// New creates a new Publisher with JetStream enabled.
func New(nc *nats.Conn, subject, service string) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		nc:      nc,
		js:      js,
		subject: subject,
		service: service,
	}, nil
}

// PublishEnvelope serializes and publishes a canonical event envelope.
func (p *Publisher) PublishEnvelope(ctx context.Context, subject string, env *model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		logger.S().Errorw("publisher.marshal_failed",
			"subject", subject,
			"event_type", env.EventType,
			"error", err,
		)
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	if subject == "" {
		subject = p.subject
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{env.EventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
		},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg)
	metrics.ObserveDuration(metrics.NATSMessageLatency, start, subject)

	if err != nil {
		logger.S().Errorw("publisher.publish_failed",
			"subject", subject,
			"event_type", env.EventType,
			"error", err,
		)
		metrics.IncNATSMessage(subject, "error")
		return err
	}

	logger.S().Infow("publisher.publish_success",
		"subject", subject,
		"event_type", env.EventType,
	)

	metrics.IncNATSMessage(subject, "ok")
	return nil
}

// PublishOrderStatusChanged emits an order status transition event.
func (p *Publisher) PublishOrderStatusChanged(ctx context.Context, change model.OrderStatusChanged) error {
	env, err := model.NewEnvelope(SubjectOrderStatusChanged, "order.status_changed", change)
	if err != nil {
		metrics.IncError("publisher", "marshal_failed")
		return err
	}
	return p.PublishEnvelope(ctx, SubjectOrderStatusChanged, env)
}

// PublishOrderTerminal emits the final event for an order that reached a
// terminal status.
func (p *Publisher) PublishOrderTerminal(ctx context.Context, change model.OrderStatusChanged) error {
	subject := TerminalSubject(change.Status)
	env, err := model.NewEnvelope(subject, "order."+string(change.Status), change)
	if err != nil {
		metrics.IncError("publisher", "marshal_failed")
		return err
	}
	return p.PublishEnvelope(ctx, subject, env)
}

// PublishPurchaseCompleted emits a purchase completion event.
func (p *Publisher) PublishPurchaseCompleted(ctx context.Context, evt model.PurchaseCompleted) error {
	env, err := model.NewEnvelope(SubjectPurchaseCompleted, "purchase.completed", evt)
	if err != nil {
		metrics.IncError("publisher", "marshal_failed")
		return err
	}
	return p.PublishEnvelope(ctx, SubjectPurchaseCompleted, env)
}

// Publish publishes raw JSON payloads (for non-canonical internal events).
func (p *Publisher) Publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{"source": []string{p.service}},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg)
	metrics.ObserveDuration(metrics.NATSMessageLatency, start, subject)

	if err != nil {
		metrics.IncNATSMessage(subject, "error")
		return err
	}

	metrics.IncNATSMessage(subject, "ok")
	return nil
}

// Healthy reports whether the underlying NATS connection is up.
func (p *Publisher) Healthy() bool {
	return p.nc != nil && p.nc.IsConnected()
}

func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
