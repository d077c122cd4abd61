package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/maltedev/price-tracker/internal/models"
)

var (
	nonPriceChars = regexp.MustCompile(`[^\d.,]`)
	titleSuffixes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*[-:]\s*Amazon\.(com|in|co\.uk).*$`),
		regexp.MustCompile(`(?i)\s*[-:]\s*Buy.*$`),
	}
)

// normalizePrice strips currency symbols and thousands separators and parses
// the remainder as a decimal. Non-finite or out-of-range values are rejected
// so a garbled pattern match can never produce a nonsense price.
func normalizePrice(raw string) (float64, bool) {
	cleaned := nonPriceChars.ReplaceAllString(raw, "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, false
	}

	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, false
	}
	if price <= 0 || price >= models.PriceSanityCeiling {
		return 0, false
	}

	// Two-decimal precision: patterns that split whole and fraction rejoin
	// as "whole.fraction" and must round-trip exactly.
	return math.Round(price*100) / 100, true
}

func normalizeTitle(raw string) (string, bool) {
	title := raw
	for _, re := range titleSuffixes {
		title = re.ReplaceAllString(title, "")
	}
	title = strings.TrimSpace(title)
	if len(title) < 3 {
		return "", false
	}
	return title, true
}

func normalizeRating(raw string) (float64, bool) {
	rating, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || rating < 1.0 || rating > 5.0 {
		return 0, false
	}
	return rating, true
}

func normalizeCount(raw string) (int, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	count, err := strconv.Atoi(cleaned)
	if err != nil || count < 0 {
		return 0, false
	}
	return count, true
}

func normalizeDiscount(raw string) (int, bool) {
	discount, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || discount <= 0 || discount >= 100 {
		return 0, false
	}
	return discount, true
}

func normalizeAvailability(raw string) (models.Availability, bool) {
	text := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case text == "":
		return "", false
	case strings.Contains(text, "temporarily unavailable"):
		return models.AvailabilityTemporarilyNA, true
	case strings.Contains(text, "out of stock"), strings.Contains(text, "currently unavailable"):
		return models.AvailabilityOutOfStock, true
	case strings.Contains(text, "in stock"):
		return models.AvailabilityInStock, true
	default:
		return models.AvailabilityUnknown, true
	}
}

func normalizeBrand(raw string) (string, bool) {
	brand := strings.TrimSpace(raw)
	brand = strings.TrimPrefix(brand, "Brand: ")
	brand = strings.TrimPrefix(brand, "Visit the ")
	brand = strings.TrimSuffix(brand, " Store")
	brand = strings.TrimSpace(brand)
	return brand, brand != ""
}
