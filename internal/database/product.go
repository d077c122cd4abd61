package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/maltedev/price-tracker/internal/models"
)

// Product is one tracked (asin, marketplace) row together with its most
// recent successfully extracted state.
type Product struct {
	ID            int64               `db:"id"`
	ASIN          string              `db:"asin"`
	Marketplace   models.Marketplace  `db:"marketplace"`
	Title         string              `db:"title"`
	Brand         string              `db:"brand"`
	Currency      string              `db:"currency"`
	CurrentPrice  float64             `db:"current_price"`
	OriginalPrice *float64            `db:"original_price"`
	Discount      *int                `db:"discount"`
	Rating        *float64            `db:"rating"`
	ReviewCount   *int                `db:"review_count"`
	Availability  models.Availability `db:"availability"`
	Images        []string            `db:"images"`
	URL           string              `db:"url"`
	Strategy      string              `db:"strategy"`
	ScrapedAt     time.Time           `db:"scraped_at"`
	CreatedAt     time.Time           `db:"created_at"`
	UpdatedAt     time.Time           `db:"updated_at"`
}

const productColumns = `
	id, asin, marketplace, title, brand, currency,
	current_price, original_price, discount, rating, review_count,
	availability, images, url, strategy, scraped_at, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	p := &Product{}
	err := row.Scan(
		&p.ID, &p.ASIN, &p.Marketplace, &p.Title, &p.Brand, &p.Currency,
		&p.CurrentPrice, &p.OriginalPrice, &p.Discount, &p.Rating, &p.ReviewCount,
		&p.Availability, &p.Images, &p.URL, &p.Strategy, &p.ScrapedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpsertProductTx inserts or updates a product row from a snapshot inside an
// existing transaction and returns the stored row.
func (db *DB) UpsertProductTx(ctx context.Context, tx pgx.Tx, s *models.ProductSnapshot) (*Product, error) {
	query := `
		INSERT INTO products (
			asin, marketplace, title, brand, currency,
			current_price, original_price, discount, rating, review_count,
			availability, images, url, strategy, scraped_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (asin, marketplace) DO UPDATE SET
			title = EXCLUDED.title,
			brand = EXCLUDED.brand,
			currency = EXCLUDED.currency,
			current_price = EXCLUDED.current_price,
			original_price = EXCLUDED.original_price,
			discount = EXCLUDED.discount,
			rating = EXCLUDED.rating,
			review_count = EXCLUDED.review_count,
			availability = EXCLUDED.availability,
			images = EXCLUDED.images,
			url = EXCLUDED.url,
			strategy = EXCLUDED.strategy,
			scraped_at = EXCLUDED.scraped_at,
			updated_at = CURRENT_TIMESTAMP
		RETURNING ` + productColumns

	row := tx.QueryRow(ctx, query,
		s.ASIN, s.Marketplace, s.Title, s.Brand, s.Currency,
		s.Price, s.OriginalPrice, s.Discount, s.Rating, s.ReviewCount,
		s.Availability, s.Images, s.URL, s.Strategy, s.ScrapedAt,
	)

	p, err := scanProduct(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert product: %w", err)
	}
	return p, nil
}

// GetProduct retrieves a single product by ASIN and marketplace. Returns
// (nil, nil) when no row exists.
func (db *DB) GetProduct(ctx context.Context, asin string, marketplace models.Marketplace) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE asin = $1 AND marketplace = $2`

	p, err := scanProduct(db.pool.QueryRow(ctx, query, asin, marketplace))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// ListProducts returns tracked products ordered by most recently updated.
func (db *DB) ListProducts(ctx context.Context, limit, offset int) ([]*Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return products, nil
}

// ListStaleProducts returns products whose last scrape is oldest first,
// bounded by limit. The updater refreshes these in batches.
func (db *DB) ListStaleProducts(ctx context.Context, limit int) ([]*Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		ORDER BY scraped_at ASC
		LIMIT $1`

	rows, err := db.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return products, nil
}

// DeleteProduct removes a tracked product and its history.
func (db *DB) DeleteProduct(ctx context.Context, asin string, marketplace models.Marketplace) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM products WHERE asin = $1 AND marketplace = $2`, asin, marketplace)
	if err != nil {
		return false, fmt.Errorf("failed to delete product: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
