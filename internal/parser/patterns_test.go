package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceRules(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected float64
		found    bool
	}{
		{
			name:     "split whole and fraction spans",
			html:     `<span class="a-price-whole">2,794</span><span class="a-price-fraction">00</span>`,
			expected: 2794.00,
			found:    true,
		},
		{
			name:     "split spans with nonzero fraction",
			html:     `<span class="a-price-whole">1,299</span><span class="a-price-fraction">99</span>`,
			expected: 1299.99,
			found:    true,
		},
		{
			name:     "offscreen price with rupee symbol",
			html:     `<span class="a-offscreen">₹ 4,599.00</span>`,
			expected: 4599.00,
			found:    true,
		},
		{
			name:     "deal price block",
			html:     `<span id="priceblock_dealprice">₹ 899</span>`,
			expected: 899,
			found:    true,
		},
		{
			name:     "embedded JSON price",
			html:     `<script>{"priceAmount": 1234.56}</script>`,
			expected: 1234.56,
			found:    true,
		},
		{
			name:     "plain text dollar fallback",
			html:     `<div>Now only $ 49.99 for a limited time</div>`,
			expected: 49.99,
			found:    true,
		},
		{
			name:  "no recognizable price",
			html:  `<div>Currently unavailable</div>`,
			found: false,
		},
		{
			name:  "price above sanity ceiling is rejected",
			html:  `<span class="a-offscreen">₹ 99,999,999.00</span>`,
			found: false,
		},
		{
			name:  "zero price is rejected",
			html:  `<span class="a-price-whole">0</span><span class="a-price-fraction">00</span>`,
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := NewDocument(tt.html)
			require.NoError(t, err)

			price, ok := firstMatch(doc, priceRules, normalizePrice)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.InDelta(t, tt.expected, price, 0.001)
			}
		})
	}
}

func TestPriceRuleOrderWins(t *testing.T) {
	// Both the split-span rule and the plain-text rupee rule match here; the
	// split-span rule is declared first so its value must win.
	html := `<span class="a-price-whole">2,794</span><span class="a-price-fraction">00</span>
		<div>M.R.P.: ₹ 3,499.00</div>`

	doc, err := NewDocument(html)
	require.NoError(t, err)

	price, ok := firstMatch(doc, priceRules, normalizePrice)
	require.True(t, ok)
	assert.InDelta(t, 2794.00, price, 0.001)
}

func TestExtractionIsDeterministic(t *testing.T) {
	html := `<span id="productTitle">Skechers Men's Running Shoes</span>
		<span class="a-price-whole">2,794</span><span class="a-price-fraction">00</span>
		<span class="a-icon-alt">4.3 out of 5 stars</span>
		<span id="acrCustomerReviewText">1,204 ratings</span>`

	doc, err := NewDocument(html)
	require.NoError(t, err)

	firstPrice, ok := firstMatch(doc, priceRules, normalizePrice)
	require.True(t, ok)
	firstTitle, ok := firstMatch(doc, titleRules, normalizeTitle)
	require.True(t, ok)

	for i := 0; i < 10; i++ {
		price, ok := firstMatch(doc, priceRules, normalizePrice)
		require.True(t, ok)
		assert.Equal(t, firstPrice, price)

		title, ok := firstMatch(doc, titleRules, normalizeTitle)
		require.True(t, ok)
		assert.Equal(t, firstTitle, title)
	}
}

func TestTitleRules(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
		found    bool
	}{
		{
			name:     "product title element",
			html:     `<span id="productTitle">  Apple AirPods Pro (2nd Generation)  </span>`,
			expected: "Apple AirPods Pro (2nd Generation)",
			found:    true,
		},
		{
			name:     "page title with marketplace suffix stripped",
			html:     `<title>Echo Dot (5th Gen) - Amazon.in: Electronics</title>`,
			expected: "Echo Dot (5th Gen)",
			found:    true,
		},
		{
			name:     "entity decoding",
			html:     `<span id="productTitle">Tom &amp; Jerry Mug</span>`,
			expected: "Tom & Jerry Mug",
			found:    true,
		},
		{
			name:  "no title",
			html:  `<div class="something"></div>`,
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := NewDocument(tt.html)
			require.NoError(t, err)

			title, ok := firstMatch(doc, titleRules, normalizeTitle)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.expected, title)
			}
		})
	}
}

func TestRatingRules(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected float64
		found    bool
	}{
		{"stars alt text", `<span class="a-icon-alt">4.3 out of 5 stars</span>`, 4.3, true},
		{"json rating value", `<script>{"ratingValue": "4.7"}</script>`, 4.7, true},
		{"rating above bound rejected", `<span class="a-icon-alt">5.8 out of 5 stars</span>`, 0, false},
		{"rating below bound rejected", `<script>{"ratingValue": "0.4"}</script>`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := NewDocument(tt.html)
			require.NoError(t, err)

			rating, ok := firstMatch(doc, ratingRules, normalizeRating)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.InDelta(t, tt.expected, rating, 0.001)
			}
		})
	}
}

func TestAvailabilityRules(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{"in stock", `<div id="availability"><span>In Stock</span></div>`, "in_stock"},
		{"out of stock", `<div id="availability"><span>Currently out of stock.</span></div>`, "out_of_stock"},
		{"temporarily unavailable", `<div id="availability"><span>Temporarily unavailable</span></div>`, "temporarily_unavailable"},
		{"unrecognized text", `<div id="availability"><span>Ships in 2 weeks</span></div>`, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := NewDocument(tt.html)
			require.NoError(t, err)

			availability, ok := firstMatch(doc, availabilityRules, normalizeAvailability)
			require.True(t, ok)
			assert.Equal(t, tt.expected, string(availability))
		})
	}
}

func TestBrandRules(t *testing.T) {
	doc, err := NewDocument(`<a id="bylineInfo">Visit the Skechers Store</a>`)
	require.NoError(t, err)

	brand, ok := firstMatch(doc, brandRules, normalizeBrand)
	require.True(t, ok)
	assert.Equal(t, "Skechers", brand)
}

func TestReviewCountRules(t *testing.T) {
	doc, err := NewDocument(`<span id="acrCustomerReviewText">12,483 ratings</span>`)
	require.NoError(t, err)

	count, ok := firstMatch(doc, reviewCountRules, normalizeCount)
	require.True(t, ok)
	assert.Equal(t, 12483, count)
}

func TestExtractImages(t *testing.T) {
	t.Run("structured image JSON preferred", func(t *testing.T) {
		html := `<script>"colorImages": { "initial": [
			{"large":"https://m.media-amazon.com/images/I/img1.jpg"},
			{"large":"https://m.media-amazon.com/images/I/img2.jpg"}
		]}</script>
		<img id="landingImage" src="https://m.media-amazon.com/images/I/landing.jpg">`

		doc, err := NewDocument(html)
		require.NoError(t, err)

		images := extractImages(doc)
		require.Len(t, images, 2)
		assert.Equal(t, "https://m.media-amazon.com/images/I/img1.jpg", images[0])
	})

	t.Run("thumbnail strip upgraded to full size", func(t *testing.T) {
		html := `<div id="altImages"><ul><li><img src="https://m.media-amazon.com/images/I/thumb._AC_US40_.jpg"></li></ul></div>`

		doc, err := NewDocument(html)
		require.NoError(t, err)

		images := extractImages(doc)
		require.Len(t, images, 1)
		assert.Equal(t, "https://m.media-amazon.com/images/I/thumb._AC_SL1500_.jpg", images[0])
	})

	t.Run("no images", func(t *testing.T) {
		doc, err := NewDocument(`<div>nothing here</div>`)
		require.NoError(t, err)
		assert.Empty(t, extractImages(doc))
	})
}
