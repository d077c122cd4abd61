package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/maltedev/price-tracker/internal/models"
)

// AppendHistoryTx records one price observation inside an existing
// transaction. History is append-only; rows are never updated or deleted
// except through product deletion.
func (db *DB) AppendHistoryTx(ctx context.Context, tx pgx.Tx, productID int64, price float64, recordedAt time.Time) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO price_history (product_id, price, recorded_at) VALUES ($1, $2, $3)`,
		productID, price, recordedAt)
	if err != nil {
		return fmt.Errorf("failed to append price history: %w", err)
	}
	return nil
}

// GetHistory returns the recorded price series for a product, oldest first.
func (db *DB) GetHistory(ctx context.Context, productID int64, limit int) ([]models.PriceHistoryPoint, error) {
	query := `
		SELECT product_id, price, recorded_at
		FROM price_history
		WHERE product_id = $1
		ORDER BY recorded_at ASC
		LIMIT $2`

	rows, err := db.pool.Query(ctx, query, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var points []models.PriceHistoryPoint
	for rows.Next() {
		var p models.PriceHistoryPoint
		if err := rows.Scan(&p.ProductID, &p.Price, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return points, nil
}

// HasHistory reports whether any history point exists for the product.
func (db *DB) HasHistory(ctx context.Context, productID int64) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM price_history WHERE product_id = $1)`, productID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check history: %w", err)
	}
	return exists, nil
}
