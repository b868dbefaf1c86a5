package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/config"
)

// OrderEvent is emitted on every order creation and applied transition
type OrderEvent struct {
	Type        string    `json:"type"` // order.created, order.transitioned
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to"`
	Actor       string    `json:"actor"`
	At          time.Time `json:"at"`
}

// CampaignEvent is emitted when a campaign dispatch expands into jobs
type CampaignEvent struct {
	Type       string    `json:"type"` // campaign.dispatched
	CampaignID string    `json:"campaign_id"`
	WindowKey  string    `json:"window_key"`
	Enqueued   int       `json:"enqueued"`
	At         time.Time `json:"at"`
}

// Publisher handles publishing domain events to Kafka
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a new Kafka event publisher
func NewPublisher(cfg config.KafkaConfig) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
		Async:        false, // Synchronous for reliability
	}

	return &Publisher{writer: writer}
}

// PublishOrderEvent publishes an order domain event, keyed by order id so
// events for one order stay ordered within a partition
func (p *Publisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	return p.publish(ctx, event.OrderID, event.Type, event)
}

// PublishCampaignEvent publishes a campaign domain event
func (p *Publisher) PublishCampaignEvent(ctx context.Context, event CampaignEvent) error {
	return p.publish(ctx, event.CampaignID, event.Type, event)
}

func (p *Publisher) publish(ctx context.Context, key, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
		Time: time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write event to Kafka: %w", err)
	}
	return nil
}

// Close closes the publisher
func (p *Publisher) Close() error {
	return p.writer.Close()
}
