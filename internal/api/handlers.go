package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/maltedev/price-tracker/internal/database"
	"github.com/maltedev/price-tracker/internal/models"
	"github.com/maltedev/price-tracker/internal/scraper"
)

// Scraper produces a fresh snapshot for one identifier.
type Scraper interface {
	Scrape(ctx context.Context, asin, marketplace string) (*models.ProductSnapshot, error)
}

// Store is the slice of the database layer the handlers read from.
type Store interface {
	GetProduct(ctx context.Context, asin string, marketplace models.Marketplace) (*database.Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]*database.Product, error)
	GetHistory(ctx context.Context, productID int64, limit int) ([]models.PriceHistoryPoint, error)
	CreateAlert(ctx context.Context, productID int64, targetPrice float64) (*database.PriceAlert, error)
	DeleteProduct(ctx context.Context, asin string, marketplace models.Marketplace) (bool, error)
}

// Ingestor persists a scraped snapshot.
type Ingestor interface {
	Ingest(ctx context.Context, snapshot *models.ProductSnapshot, previous *database.Product) (*database.Product, error)
}

type Handlers struct {
	scraper  Scraper
	store    Store
	ingestor Ingestor
	logger   *slog.Logger
}

func NewHandlers(s Scraper, store Store, ingestor Ingestor, logger *slog.Logger) *Handlers {
	return &Handlers{
		scraper:  s,
		store:    store,
		ingestor: ingestor,
		logger:   logger,
	}
}

// Routes mounts the product-tracking API onto r.
func (h *Handlers) Routes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.TrackProduct)
		r.Get("/", h.ListProducts)
		r.Post("/{asin}/refresh", h.RefreshProduct)
		r.Get("/{asin}", h.GetProduct)
		r.Get("/{asin}/history", h.GetHistory)
		r.Post("/{asin}/alerts", h.CreateAlert)
		r.Delete("/{asin}", h.DeleteProduct)
	})
}

// TrackRequest adds a product to tracking.
type TrackRequest struct {
	ASIN        string `json:"asin"`
	Marketplace string `json:"marketplace"`
}

// TrackProduct scrapes the product and stores it. A failed scrape is a hard
// failure: nothing is stored and no placeholder data is invented.
func (h *Handlers) TrackProduct(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ASIN == "" {
		h.respondError(w, http.StatusBadRequest, "asin is required")
		return
	}
	if req.Marketplace == "" {
		req.Marketplace = string(models.MarketplaceIN)
	}

	snapshot, err := h.scraper.Scrape(r.Context(), req.ASIN, req.Marketplace)
	if err != nil {
		h.respondScrapeError(w, err)
		return
	}

	previous, err := h.store.GetProduct(r.Context(), snapshot.ASIN, snapshot.Marketplace)
	if err != nil {
		h.logger.Error("failed to look up product", "error", err, "asin", snapshot.ASIN)
		h.respondError(w, http.StatusInternalServerError, "storage failure")
		return
	}

	product, err := h.ingestor.Ingest(r.Context(), snapshot, previous)
	if err != nil {
		h.logger.Error("failed to store product", "error", err, "asin", snapshot.ASIN)
		h.respondError(w, http.StatusInternalServerError, "storage failure")
		return
	}

	status := http.StatusCreated
	if previous != nil {
		status = http.StatusOK
	}
	h.respondJSON(w, status, product)
}

// RefreshProduct re-scrapes an already tracked product.
func (h *Handlers) RefreshProduct(w http.ResponseWriter, r *http.Request) {
	asin := chi.URLParam(r, "asin")
	marketplace, ok := h.marketplaceParam(w, r)
	if !ok {
		return
	}

	previous, err := h.store.GetProduct(r.Context(), normalizeASIN(asin), marketplace)
	if err != nil {
		h.logger.Error("failed to look up product", "error", err, "asin", asin)
		h.respondError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	if previous == nil {
		h.respondError(w, http.StatusNotFound, "product is not tracked")
		return
	}

	snapshot, err := h.scraper.Scrape(r.Context(), previous.ASIN, string(previous.Marketplace))
	if err != nil {
		h.respondScrapeError(w, err)
		return
	}

	product, err := h.ingestor.Ingest(r.Context(), snapshot, previous)
	if err != nil {
		h.logger.Error("failed to store refreshed product", "error", err, "asin", previous.ASIN)
		h.respondError(w, http.StatusInternalServerError, "storage failure")
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

// GetProduct returns the stored state for one product.
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	asin := chi.URLParam(r, "asin")
	marketplace, ok := h.marketplaceParam(w, r)
	if !ok {
		return
	}

	product, err := h.store.GetProduct(r.Context(), normalizeASIN(asin), marketplace)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "asin", asin)
		h.respondError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	if product == nil {
		h.respondError(w, http.StatusNotFound, "product is not tracked")
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

// ListProducts returns tracked products, most recently updated first.
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	products, err := h.store.ListProducts(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "storage failure")
		return
	}

	if products == nil {
		products = []*database.Product{}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"count":    len(products),
	})
}

// GetHistory returns the recorded price series for one product.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	asin := chi.URLParam(r, "asin")
	marketplace, ok := h.marketplaceParam(w, r)
	if !ok {
		return
	}

	product, err := h.store.GetProduct(r.Context(), normalizeASIN(asin), marketplace)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "asin", asin)
		h.respondError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	if product == nil {
		h.respondError(w, http.StatusNotFound, "product is not tracked")
		return
	}

	limit := queryInt(r, "limit", 500)
	points, err := h.store.GetHistory(r.Context(), product.ID, limit)
	if err != nil {
		h.logger.Error("failed to get history", "error", err, "asin", asin)
		h.respondError(w, http.StatusInternalServerError, "storage failure")
		return
	}

	if points == nil {
		points = []models.PriceHistoryPoint{}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"asin":        product.ASIN,
		"marketplace": product.Marketplace,
		"currency":    product.Currency,
		"history":     points,
	})
}

// AlertRequest registers a target-price alert.
type AlertRequest struct {
	TargetPrice float64 `json:"target_price"`
}

// CreateAlert registers a price alert for a tracked product.
func (h *Handlers) CreateAlert(w http.ResponseWriter, r *http.Request) {
	asin := chi.URLParam(r, "asin")
	marketplace, ok := h.marketplaceParam(w, r)
	if !ok {
		return
	}

	var req AlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TargetPrice <= 0 {
		h.respondError(w, http.StatusBadRequest, "target_price must be positive")
		return
	}

	product, err := h.store.GetProduct(r.Context(), normalizeASIN(asin), marketplace)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "asin", asin)
		h.respondError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	if product == nil {
		h.respondError(w, http.StatusNotFound, "product is not tracked")
		return
	}

	alert, err := h.store.CreateAlert(r.Context(), product.ID, req.TargetPrice)
	if err != nil {
		h.logger.Error("failed to create alert", "error", err, "asin", asin)
		h.respondError(w, http.StatusInternalServerError, "storage failure")
		return
	}

	h.respondJSON(w, http.StatusCreated, alert)
}

// DeleteProduct removes a product and its history from tracking.
func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	asin := chi.URLParam(r, "asin")
	marketplace, ok := h.marketplaceParam(w, r)
	if !ok {
		return
	}

	deleted, err := h.store.DeleteProduct(r.Context(), normalizeASIN(asin), marketplace)
	if err != nil {
		h.logger.Error("failed to delete product", "error", err, "asin", asin)
		h.respondError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	if !deleted {
		h.respondError(w, http.StatusNotFound, "product is not tracked")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// respondScrapeError maps the scrape failure taxonomy onto HTTP statuses.
func (h *Handlers) respondScrapeError(w http.ResponseWriter, err error) {
	switch scraper.FailureKindOf(err) {
	case scraper.FailureInvalidIdentifier:
		h.respondError(w, http.StatusBadRequest, err.Error())
	case scraper.FailureDocumentRejected:
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case scraper.FailureNoDocument:
		h.respondError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("unexpected scrape error", "error", err)
		h.respondError(w, http.StatusInternalServerError, "scrape failure")
	}
}

func (h *Handlers) marketplaceParam(w http.ResponseWriter, r *http.Request) (models.Marketplace, bool) {
	code := r.URL.Query().Get("marketplace")
	if code == "" {
		code = string(models.MarketplaceIN)
	}
	marketplace, err := models.ParseMarketplace(code)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return marketplace, true
}

func normalizeASIN(asin string) string {
	return strings.ToUpper(strings.TrimSpace(asin))
}

func queryInt(r *http.Request, key string, def int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return def
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
