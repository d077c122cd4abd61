package updater

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/price-tracker/internal/database"
	"github.com/maltedev/price-tracker/internal/events"
	"github.com/maltedev/price-tracker/internal/history"
	"github.com/maltedev/price-tracker/internal/models"
)

// ProductScraper produces a fresh snapshot for one identifier.
type ProductScraper interface {
	Scrape(ctx context.Context, asin, marketplace string) (*models.ProductSnapshot, error)
}

// Store is the slice of the database layer ingestion needs.
type Store interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
	UpsertProductTx(ctx context.Context, tx pgx.Tx, s *models.ProductSnapshot) (*database.Product, error)
	GetProduct(ctx context.Context, asin string, marketplace models.Marketplace) (*database.Product, error)
	ListStaleProducts(ctx context.Context, limit int) ([]*database.Product, error)
	AppendHistoryTx(ctx context.Context, tx pgx.Tx, productID int64, price float64, recordedAt time.Time) error
	HasHistory(ctx context.Context, productID int64) (bool, error)
	GetActiveAlerts(ctx context.Context, productID int64) ([]*database.PriceAlert, error)
	TriggerAlertTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// EventPublisher enqueues domain events inside the ingestion transaction.
type EventPublisher interface {
	PublishProductTrackedTx(ctx context.Context, tx pgx.Tx, payload *events.ProductTrackedPayload) error
	PublishPriceChangedTx(ctx context.Context, tx pgx.Tx, payload *events.PriceChangedPayload) error
	PublishAlertTriggeredTx(ctx context.Context, tx pgx.Tx, payload *events.AlertTriggeredPayload) error
}

// Ingestor applies one scraped snapshot to storage: it upserts the product,
// records history per the ingestion policy, fires due alerts and enqueues
// events, all in a single transaction.
type Ingestor struct {
	store     Store
	publisher EventPublisher
	logger    *slog.Logger
}

func NewIngestor(store Store, publisher EventPublisher, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		store:     store,
		publisher: publisher,
		logger:    logger.With("component", "ingestor"),
	}
}

// Ingest persists a snapshot. previous is the product state before this
// scrape, or nil when the product is newly tracked.
func (i *Ingestor) Ingest(ctx context.Context, snapshot *models.ProductSnapshot, previous *database.Product) (*database.Product, error) {
	var (
		prevPrice  float64
		hasHistory bool
		alerts     []*database.PriceAlert
	)

	if previous != nil {
		prevPrice = previous.CurrentPrice

		var err error
		hasHistory, err = i.store.HasHistory(ctx, previous.ID)
		if err != nil {
			return nil, err
		}
		alerts, err = i.store.GetActiveAlerts(ctx, previous.ID)
		if err != nil {
			return nil, err
		}
	}

	decision := history.Decide(prevPrice, snapshot.Price, hasHistory)

	var stored *database.Product
	err := i.store.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		stored, err = i.store.UpsertProductTx(ctx, tx, snapshot)
		if err != nil {
			return err
		}

		if decision.AppendHistory {
			if err := i.store.AppendHistoryTx(ctx, tx, stored.ID, snapshot.Price, snapshot.ScrapedAt); err != nil {
				return err
			}
		}

		if previous == nil {
			return i.publisher.PublishProductTrackedTx(ctx, tx, &events.ProductTrackedPayload{
				ASIN:        snapshot.ASIN,
				Marketplace: snapshot.Marketplace,
				Title:       snapshot.Title,
				Currency:    snapshot.Currency,
				Price:       snapshot.Price,
				URL:         snapshot.URL,
			})
		}

		if hasHistory && history.IsSignificantChange(prevPrice, snapshot.Price) {
			changePct := 0.0
			if prevPrice > 0 {
				changePct = (snapshot.Price - prevPrice) / prevPrice * 100
			}
			err := i.publisher.PublishPriceChangedTx(ctx, tx, &events.PriceChangedPayload{
				ASIN:        snapshot.ASIN,
				Marketplace: snapshot.Marketplace,
				Title:       snapshot.Title,
				Currency:    snapshot.Currency,
				OldPrice:    prevPrice,
				NewPrice:    snapshot.Price,
				ChangePct:   changePct,
				URL:         snapshot.URL,
			})
			if err != nil {
				return err
			}
		}

		for _, alert := range alerts {
			if snapshot.Price > alert.TargetPrice {
				continue
			}
			if err := i.store.TriggerAlertTx(ctx, tx, alert.ID); err != nil {
				return err
			}
			err := i.publisher.PublishAlertTriggeredTx(ctx, tx, &events.AlertTriggeredPayload{
				AlertID:     alert.ID.String(),
				ASIN:        snapshot.ASIN,
				Marketplace: snapshot.Marketplace,
				Title:       snapshot.Title,
				Currency:    snapshot.Currency,
				TargetPrice: alert.TargetPrice,
				Price:       snapshot.Price,
				URL:         snapshot.URL,
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ingest snapshot for %s/%s: %w", snapshot.ASIN, snapshot.Marketplace, err)
	}

	i.logger.Info("snapshot ingested",
		"asin", snapshot.ASIN,
		"marketplace", snapshot.Marketplace,
		"price", snapshot.Price,
		"history_appended", decision.AppendHistory,
	)

	return stored, nil
}
