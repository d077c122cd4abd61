package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/price-tracker/internal/database"
	"github.com/maltedev/price-tracker/internal/models"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypeProductTracked is published when a product enters tracking.
	EventTypeProductTracked EventType = "PRODUCT_TRACKED"
	// EventTypePriceChanged is published when a significant price move is
	// recorded for a tracked product.
	EventTypePriceChanged EventType = "PRICE_CHANGED"
	// EventTypeAlertTriggered is published when a price alert fires.
	EventTypeAlertTriggered EventType = "ALERT_TRIGGERED"
)

// PriceChangedPayload is the wire payload for PRICE_CHANGED events.
type PriceChangedPayload struct {
	EventID     string             `json:"event_id"`
	EventType   string             `json:"event_type"`
	Timestamp   time.Time          `json:"timestamp"`
	ASIN        string             `json:"asin"`
	Marketplace models.Marketplace `json:"marketplace"`
	Title       string             `json:"title"`
	Currency    string             `json:"currency"`
	OldPrice    float64            `json:"old_price"`
	NewPrice    float64            `json:"new_price"`
	ChangePct   float64            `json:"change_pct"`
	URL         string             `json:"url"`
	Source      string             `json:"source"`
}

// ProductTrackedPayload is the wire payload for PRODUCT_TRACKED events.
type ProductTrackedPayload struct {
	EventID     string             `json:"event_id"`
	EventType   string             `json:"event_type"`
	Timestamp   time.Time          `json:"timestamp"`
	ASIN        string             `json:"asin"`
	Marketplace models.Marketplace `json:"marketplace"`
	Title       string             `json:"title"`
	Currency    string             `json:"currency"`
	Price       float64            `json:"price"`
	URL         string             `json:"url"`
	Source      string             `json:"source"`
}

// AlertTriggeredPayload is the wire payload for ALERT_TRIGGERED events.
type AlertTriggeredPayload struct {
	EventID     string             `json:"event_id"`
	EventType   string             `json:"event_type"`
	Timestamp   time.Time          `json:"timestamp"`
	AlertID     string             `json:"alert_id"`
	ASIN        string             `json:"asin"`
	Marketplace models.Marketplace `json:"marketplace"`
	Title       string             `json:"title"`
	Currency    string             `json:"currency"`
	TargetPrice float64            `json:"target_price"`
	Price       float64            `json:"price"`
	URL         string             `json:"url"`
	Source      string             `json:"source"`
}

// Publisher writes events through the transactional outbox so they commit
// atomically with the state change that caused them.
type Publisher struct {
	outbox *database.OutboxRepository
	logger *slog.Logger
}

func NewPublisher(db *database.DB, logger *slog.Logger) *Publisher {
	return &Publisher{
		outbox: database.NewOutboxRepository(db),
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishPriceChangedTx enqueues a PRICE_CHANGED event inside the caller's
// transaction.
func (p *Publisher) PublishPriceChangedTx(ctx context.Context, tx pgx.Tx, payload *PriceChangedPayload) error {
	fillMeta(&payload.EventID, &payload.EventType, &payload.Timestamp, &payload.Source, EventTypePriceChanged)

	return p.publishTx(ctx, tx, EventTypePriceChanged,
		aggregateID(payload.ASIN, payload.Marketplace), payload, payload.EventID)
}

// PublishProductTrackedTx enqueues a PRODUCT_TRACKED event inside the
// caller's transaction.
func (p *Publisher) PublishProductTrackedTx(ctx context.Context, tx pgx.Tx, payload *ProductTrackedPayload) error {
	fillMeta(&payload.EventID, &payload.EventType, &payload.Timestamp, &payload.Source, EventTypeProductTracked)

	return p.publishTx(ctx, tx, EventTypeProductTracked,
		aggregateID(payload.ASIN, payload.Marketplace), payload, payload.EventID)
}

// PublishAlertTriggeredTx enqueues an ALERT_TRIGGERED event inside the
// caller's transaction.
func (p *Publisher) PublishAlertTriggeredTx(ctx context.Context, tx pgx.Tx, payload *AlertTriggeredPayload) error {
	fillMeta(&payload.EventID, &payload.EventType, &payload.Timestamp, &payload.Source, EventTypeAlertTriggered)

	return p.publishTx(ctx, tx, EventTypeAlertTriggered,
		aggregateID(payload.ASIN, payload.Marketplace), payload, payload.EventID)
}

func (p *Publisher) publishTx(ctx context.Context, tx pgx.Tx, eventType EventType, aggregateID string, payload any, eventID string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &database.OutboxEvent{
		AggregateType: "product",
		AggregateID:   aggregateID,
		EventType:     string(eventType),
		Payload:       data,
		TargetStream:  database.DefaultStream,
	}

	if err := p.outbox.InsertWithTx(ctx, tx, outboxEvent); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", eventType,
		"event_id", eventID,
		"aggregate_id", aggregateID,
		"outbox_id", outboxEvent.ID,
	)

	return nil
}

func aggregateID(asin string, marketplace models.Marketplace) string {
	return fmt.Sprintf("%s:%s", asin, marketplace)
}

func fillMeta(id *string, eventType *string, ts *time.Time, source *string, t EventType) {
	if *id == "" {
		*id = uuid.New().String()
	}
	if *eventType == "" {
		*eventType = string(t)
	}
	if ts.IsZero() {
		*ts = time.Now()
	}
	if *source == "" {
		*source = "price-tracker"
	}
}
