package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PriceAlert fires once when a product's price drops to or below the target.
type PriceAlert struct {
	ID          uuid.UUID  `db:"id"`
	ProductID   int64      `db:"product_id"`
	TargetPrice float64    `db:"target_price"`
	Active      bool       `db:"active"`
	TriggeredAt *time.Time `db:"triggered_at"`
	CreatedAt   time.Time  `db:"created_at"`
}

// CreateAlert registers a new active alert for a product.
func (db *DB) CreateAlert(ctx context.Context, productID int64, targetPrice float64) (*PriceAlert, error) {
	a := &PriceAlert{
		ID:          uuid.New(),
		ProductID:   productID,
		TargetPrice: targetPrice,
		Active:      true,
	}

	err := db.pool.QueryRow(ctx, `
		INSERT INTO price_alerts (id, product_id, target_price, active)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		a.ID, a.ProductID, a.TargetPrice, a.Active,
	).Scan(&a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	return a, nil
}

// GetActiveAlerts returns the active alerts for a product.
func (db *DB) GetActiveAlerts(ctx context.Context, productID int64) ([]*PriceAlert, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, product_id, target_price, active, triggered_at, created_at
		FROM price_alerts
		WHERE product_id = $1 AND active`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*PriceAlert
	for rows.Next() {
		a := &PriceAlert{}
		if err := rows.Scan(&a.ID, &a.ProductID, &a.TargetPrice, &a.Active, &a.TriggeredAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return alerts, nil
}

// TriggerAlertTx deactivates a fired alert inside an existing transaction.
func (db *DB) TriggerAlertTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE price_alerts
		SET active = FALSE, triggered_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND active`, id)
	if err != nil {
		return fmt.Errorf("failed to trigger alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert not found or already triggered: %s", id)
	}
	return nil
}
