package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/maltedev/competitor-price-scraper/internal/models"
	"github.com/maltedev/competitor-price-scraper/internal/scraper"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	store  scraper.RecordReader
	pinger Pinger
	logger *slog.Logger
}

func NewHandlers(store scraper.RecordReader, pinger Pinger, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		store:  store,
		pinger: pinger,
		logger: logger.With("component", "api"),
	}
}

// Router wires the read-only price endpoints.
func (h *Handlers) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api/prices", func(r chi.Router) {
		r.Get("/", h.ListPrices)
		r.Get("/{sku}", h.GetPrice)
	})

	return r
}

type ListResponse struct {
	Records []models.MergedRecord `json:"records"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{"status": "ok"}
	status := http.StatusOK

	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			h.logger.Warn("store unreachable", "error", err)
			health["status"] = "error"
			health["message"] = "store unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) ListPrices(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil || limit < 1 {
		h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		h.respondError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	records, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list prices", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list prices")
		return
	}

	h.respondJSON(w, http.StatusOK, ListResponse{Records: records, Limit: limit, Offset: offset})
}

func (h *Handlers) GetPrice(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	if sku == "" {
		h.respondError(w, http.StatusBadRequest, "sku is required")
		return
	}

	record, err := h.store.Get(r.Context(), sku)
	if err != nil {
		if errors.Is(err, scraper.ErrRecordNotFound) {
			h.respondError(w, http.StatusNotFound, "sku not found")
			return
		}
		h.logger.Error("failed to get price", "sku", sku, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get price")
		return
	}

	h.respondJSON(w, http.StatusOK, record)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// Helper methods
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
