// Package events publishes booking lifecycle events to RabbitMQ.
//
// Downstream consumers such as the CRM sync worker subscribe to the topic
// exchange declared here. Publishing is best-effort from the engine's point
// of view: a broker outage never blocks or fails a booking.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Inverseit/crm-whatsapp-service/internal/models"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultExchange is the topic exchange bookings are published to.
	DefaultExchange = "salon.events"
	// RoutingKeyBookingCreated is the routing key for finalized bookings.
	RoutingKeyBookingCreated = "booking.created.v1"
)

// Meta carries the event envelope metadata.
type Meta struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	CorrelationID string    `json:"correlation_id"`
	Time          time.Time `json:"time"`
}

// Envelope wraps an event payload with its metadata.
type Envelope struct {
	Meta Meta        `json:"meta"`
	Data interface{} `json:"data"`
}

// Opts holds configuration options for the publisher.
type Opts struct {
	Exchange string
}

// Option defines a configuration option for the publisher.
type Option func(*Opts)

// WithExchange overrides the exchange events are published to.
func WithExchange(exchange string) Option {
	return func(o *Opts) {
		o.Exchange = exchange
	}
}

// Publisher publishes booking events to a RabbitMQ topic exchange.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewPublisher connects to the broker and declares the exchange.
func NewPublisher(amqpURL string, opts ...Option) (*Publisher, error) {
	if amqpURL == "" {
		return nil, fmt.Errorf("amqp url missing")
	}
	cfg := Opts{Exchange: DefaultExchange}
	for _, opt := range opts {
		opt(&cfg)
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	slog.Info("NewPublisher: connected", "exchange", cfg.Exchange)
	return &Publisher{conn: conn, ch: ch, exchange: cfg.Exchange}, nil
}

// NotifyBookingCreated publishes a booking.created event.
func (p *Publisher) NotifyBookingCreated(ctx context.Context, n models.BookingNotification) error {
	envelope := Envelope{
		Meta: Meta{
			ID:            uuid.NewString(),
			Type:          RoutingKeyBookingCreated,
			CorrelationID: n.ConversationID,
			Time:          time.Now().UTC(),
		},
		Data: n,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, RoutingKeyBookingCreated, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     envelope.Meta.ID,
		CorrelationId: envelope.Meta.CorrelationID,
		Timestamp:     envelope.Meta.Time,
		Body:          body,
	})
	if err != nil {
		slog.Error("Publisher.NotifyBookingCreated: publish failed", "error", err, "booking_id", n.BookingID)
		return fmt.Errorf("failed to publish event: %w", err)
	}
	slog.Debug("Publisher.NotifyBookingCreated: event published", "booking_id", n.BookingID, "routingKey", RoutingKeyBookingCreated)
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return fmt.Errorf("failed to close channel: %w", err)
	}
	return p.conn.Close()
}
