package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Marketplace identifies one of the regional storefronts we track.
type Marketplace string

const (
	MarketplaceIN Marketplace = "IN"
	MarketplaceUS Marketplace = "US"
	MarketplaceUK Marketplace = "UK"
)

type marketplaceInfo struct {
	Domain   string
	Currency string
}

var marketplaces = map[Marketplace]marketplaceInfo{
	MarketplaceIN: {Domain: "amazon.in", Currency: "INR"},
	MarketplaceUS: {Domain: "amazon.com", Currency: "USD"},
	MarketplaceUK: {Domain: "amazon.co.uk", Currency: "GBP"},
}

// ParseMarketplace returns the marketplace for a code like "IN" or "us".
func ParseMarketplace(code string) (Marketplace, error) {
	m := Marketplace(strings.ToUpper(strings.TrimSpace(code)))
	if _, ok := marketplaces[m]; !ok {
		return "", fmt.Errorf("unknown marketplace %q", code)
	}
	return m, nil
}

func (m Marketplace) Domain() string {
	return marketplaces[m].Domain
}

func (m Marketplace) Currency() string {
	return marketplaces[m].Currency
}

var asinPattern = regexp.MustCompile(`^[A-Z0-9]{10}$`)

// ProductIdentifier is the (catalog id, marketplace) pair supplied by callers.
// The ASIN is normalized to uppercase; both parts are validated on creation.
type ProductIdentifier struct {
	ASIN        string
	Marketplace Marketplace
}

// NewProductIdentifier validates and normalizes the raw caller input.
func NewProductIdentifier(asin, market string) (ProductIdentifier, error) {
	m, err := ParseMarketplace(market)
	if err != nil {
		return ProductIdentifier{}, err
	}

	normalized := strings.ToUpper(strings.TrimSpace(asin))
	if !asinPattern.MatchString(normalized) {
		return ProductIdentifier{}, fmt.Errorf("invalid ASIN %q: must be 10 alphanumeric characters", asin)
	}

	return ProductIdentifier{ASIN: normalized, Marketplace: m}, nil
}

// ProductURL is the canonical product page URL for this identifier.
func (id ProductIdentifier) ProductURL() string {
	return fmt.Sprintf("https://%s/dp/%s", id.Marketplace.Domain(), id.ASIN)
}

// Availability is the closed set of stock states we recognize.
type Availability string

const (
	AvailabilityInStock       Availability = "in_stock"
	AvailabilityOutOfStock    Availability = "out_of_stock"
	AvailabilityTemporarilyNA Availability = "temporarily_unavailable"
	AvailabilityUnknown       Availability = "unknown"
)

// MaxSnapshotImages caps the image list carried on a snapshot.
const MaxSnapshotImages = 8

// PriceSanityCeiling is the exclusive upper bound for any extracted price.
const PriceSanityCeiling = 10_000_000

// ProductSnapshot is one point-in-time extraction result. Title and Price are
// mandatory; everything else is best-effort and may be zero-valued.
type ProductSnapshot struct {
	ASIN          string       `json:"asin"`
	Marketplace   Marketplace  `json:"marketplace"`
	Title         string       `json:"title"`
	Price         float64      `json:"price"`
	Currency      string       `json:"currency"`
	OriginalPrice *float64     `json:"original_price,omitempty"`
	Discount      *int         `json:"discount,omitempty"`
	Rating        *float64     `json:"rating,omitempty"`
	ReviewCount   *int         `json:"review_count,omitempty"`
	Availability  Availability `json:"availability"`
	Brand         string       `json:"brand,omitempty"`
	Images        []string     `json:"images,omitempty"`
	URL           string       `json:"url"`
	Strategy      string       `json:"strategy"`
	ScrapedAt     time.Time    `json:"scraped_at"`
}

// IsAcceptable reports whether the snapshot satisfies the mandatory-field
// invariant: non-empty title and a positive price below the sanity ceiling.
func (s *ProductSnapshot) IsAcceptable() bool {
	return s.Title != "" && s.Price > 0 && s.Price < PriceSanityCeiling
}

// PriceHistoryPoint is one append-only price observation.
type PriceHistoryPoint struct {
	ProductID  int64     `json:"product_id"`
	Price      float64   `json:"price"`
	RecordedAt time.Time `json:"recorded_at"`
}
