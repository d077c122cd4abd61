package scraper

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/price-tracker/internal/fetch"
	"github.com/maltedev/price-tracker/internal/models"
	"github.com/maltedev/price-tracker/internal/parser"
)

const goodProductPage = `<html><body>
<span id="productTitle"> Skechers Men's Go Walk Running Shoe </span>
<span class="a-price"><span class="a-price-whole">2,794</span><span class="a-price-fraction">00</span></span>
<span class="a-icon-alt">4.3 out of 5 stars</span>
<span id="acrCustomerReviewText">1,204 ratings</span>
<div id="availability"><span>In Stock.</span></div>
</body></html>`

const noPricePage = `<html><body>
<span id="productTitle">Some Product Without Any Cost Shown</span>
<div id="availability"><span>Currently unavailable.</span></div>
</body></html>`

// fakeChain returns canned documents in order, offering each to accept the
// way the real chain does.
type fakeChain struct {
	docs  []*fetch.RawDocument
	calls int
}

func (c *fakeChain) Retrieve(ctx context.Context, url string, accept func(*fetch.RawDocument) bool) (*fetch.RawDocument, error) {
	c.calls++
	rejected := 0
	for _, doc := range c.docs {
		if accept == nil || accept(doc) {
			return doc, nil
		}
		rejected++
	}
	return nil, &fetch.ExhaustedError{Rejected: rejected, LastErr: errors.New("no more strategies")}
}

func newTestScraper(chain Retriever) *Scraper {
	logger := slog.Default()
	return New(chain, parser.NewExtractor(logger), logger)
}

func TestScrapeSucceedsOnFirstDocument(t *testing.T) {
	chain := &fakeChain{docs: []*fetch.RawDocument{{
		Body:       goodProductPage,
		StatusCode: 200,
		Strategy:   "direct",
		FetchedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}}}

	snapshot, err := newTestScraper(chain).Scrape(context.Background(), "B0BQHS5P9R", "IN")
	require.NoError(t, err)

	assert.Equal(t, "B0BQHS5P9R", snapshot.ASIN)
	assert.Equal(t, models.MarketplaceIN, snapshot.Marketplace)
	assert.Equal(t, "Skechers Men's Go Walk Running Shoe", snapshot.Title)
	assert.Equal(t, 2794.00, snapshot.Price)
	assert.Equal(t, "INR", snapshot.Currency)
	assert.Equal(t, "https://amazon.in/dp/B0BQHS5P9R", snapshot.URL)
	assert.Equal(t, "direct", snapshot.Strategy)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), snapshot.ScrapedAt)
}

func TestScrapeNormalizesIdentifier(t *testing.T) {
	chain := &fakeChain{docs: []*fetch.RawDocument{{
		Body: goodProductPage, StatusCode: 200, Strategy: "direct", FetchedAt: time.Now(),
	}}}

	snapshot, err := newTestScraper(chain).Scrape(context.Background(), "  b0bqhs5p9r ", "in")
	require.NoError(t, err)
	assert.Equal(t, "B0BQHS5P9R", snapshot.ASIN)
	assert.Equal(t, models.MarketplaceIN, snapshot.Marketplace)
}

func TestScrapeEscalatesPastUnusableDocument(t *testing.T) {
	chain := &fakeChain{docs: []*fetch.RawDocument{
		{Body: noPricePage, StatusCode: 200, Strategy: "direct", FetchedAt: time.Now()},
		{Body: goodProductPage, StatusCode: 200, Strategy: "relay", FetchedAt: time.Now()},
	}}

	snapshot, err := newTestScraper(chain).Scrape(context.Background(), "B0BQHS5P9R", "IN")
	require.NoError(t, err)
	assert.Equal(t, "relay", snapshot.Strategy)
	assert.Equal(t, 2794.00, snapshot.Price)
}

func TestScrapeInvalidIdentifier(t *testing.T) {
	tests := []struct {
		name   string
		asin   string
		market string
	}{
		{"too short", "abc", "IN"},
		{"too long", "B0BQHS5P9R1", "IN"},
		{"bad characters", "B0BQHS5P9-", "IN"},
		{"unknown marketplace", "B0BQHS5P9R", "DE"},
		{"empty", "", "IN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := &fakeChain{}
			_, err := newTestScraper(chain).Scrape(context.Background(), tt.asin, tt.market)
			require.Error(t, err)
			assert.Equal(t, FailureInvalidIdentifier, FailureKindOf(err))
			assert.Zero(t, chain.calls, "invalid identifiers must not reach the network")
		})
	}
}

func TestScrapeNoDocumentRetrieved(t *testing.T) {
	chain := &fakeChain{}

	_, err := newTestScraper(chain).Scrape(context.Background(), "B0BQHS5P9R", "IN")
	require.Error(t, err)
	assert.Equal(t, FailureNoDocument, FailureKindOf(err))
	assert.ErrorIs(t, err, fetch.ErrChainExhausted)
}

func TestScrapeDocumentRejected(t *testing.T) {
	chain := &fakeChain{docs: []*fetch.RawDocument{
		{Body: noPricePage, StatusCode: 200, Strategy: "direct", FetchedAt: time.Now()},
		{Body: noPricePage, StatusCode: 200, Strategy: "relay", FetchedAt: time.Now()},
	}}

	_, err := newTestScraper(chain).Scrape(context.Background(), "B0BQHS5P9R", "IN")
	require.Error(t, err)
	assert.Equal(t, FailureDocumentRejected, FailureKindOf(err))

	var failure *ScrapeFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "B0BQHS5P9R", failure.ASIN)
	assert.Equal(t, "IN", failure.Marketplace)
}

func TestScrapeNeverFabricatesSnapshot(t *testing.T) {
	chain := &fakeChain{docs: []*fetch.RawDocument{
		{Body: "<html><body>nothing useful</body></html>", StatusCode: 200, Strategy: "direct", FetchedAt: time.Now()},
	}}

	snapshot, err := newTestScraper(chain).Scrape(context.Background(), "B0BQHS5P9R", "IN")
	require.Error(t, err)
	assert.Nil(t, snapshot)
}
