package parser

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/price-tracker/internal/models"
)

// Extractor runs the full pattern library against one document and assembles
// a ProductSnapshot candidate. It is a pure transformation: no retries, no
// I/O. Rejection of a candidate is an expected outcome, not an error — most
// fetches against a hostile source yield partial or garbage content.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{
		logger: logger.With("component", "extractor"),
	}
}

// Extract builds a snapshot candidate from one document. The returned bool
// reports whether the candidate satisfies the mandatory-field invariant;
// callers must discard candidates it rejects.
func (e *Extractor) Extract(htmlBody string, id models.ProductIdentifier) (*models.ProductSnapshot, bool) {
	doc, err := NewDocument(htmlBody)
	if err != nil {
		e.logger.Warn("unparseable document", "asin", id.ASIN, "error", err)
		return nil, false
	}

	snapshot := &models.ProductSnapshot{
		ASIN:         id.ASIN,
		Marketplace:  id.Marketplace,
		Currency:     id.Marketplace.Currency(),
		Availability: models.AvailabilityUnknown,
		URL:          id.ProductURL(),
		ScrapedAt:    time.Now().UTC(),
	}

	if title, ok := firstMatch(doc, titleRules, normalizeTitle); ok {
		snapshot.Title = title
	}
	if price, ok := firstMatch(doc, priceRules, normalizePrice); ok {
		snapshot.Price = price
	}
	if original, ok := firstMatch(doc, originalPriceRules, normalizePrice); ok && original > snapshot.Price {
		snapshot.OriginalPrice = &original
	}
	if discount, ok := firstMatch(doc, discountRules, normalizeDiscount); ok {
		snapshot.Discount = &discount
	} else if snapshot.OriginalPrice != nil && snapshot.Price > 0 {
		derived := int(((*snapshot.OriginalPrice - snapshot.Price) / *snapshot.OriginalPrice) * 100)
		if derived > 0 {
			snapshot.Discount = &derived
		}
	}
	if rating, ok := firstMatch(doc, ratingRules, normalizeRating); ok {
		snapshot.Rating = &rating
	}
	if count, ok := firstMatch(doc, reviewCountRules, normalizeCount); ok {
		snapshot.ReviewCount = &count
	}
	if availability, ok := firstMatch(doc, availabilityRules, normalizeAvailability); ok {
		snapshot.Availability = availability
	}
	if brand, ok := firstMatch(doc, brandRules, normalizeBrand); ok {
		snapshot.Brand = brand
	}

	snapshot.Images = extractImages(doc)
	if len(snapshot.Images) == 0 {
		snapshot.Images = []string{defaultImageURL(id.ASIN)}
	}
	if len(snapshot.Images) > models.MaxSnapshotImages {
		snapshot.Images = snapshot.Images[:models.MaxSnapshotImages]
	}

	accepted := snapshot.IsAcceptable()
	if !accepted {
		e.logger.Debug("candidate rejected",
			"asin", id.ASIN,
			"has_title", snapshot.Title != "",
			"price", snapshot.Price)
	}

	return snapshot, accepted
}

// defaultImageURL is the standard catalog image location, used only when no
// image pattern matched. Mandatory fields are never defaulted this way.
func defaultImageURL(asin string) string {
	return fmt.Sprintf("https://images-na.ssl-images-amazon.com/images/P/%s.01.L.jpg", asin)
}
