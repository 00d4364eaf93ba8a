package inventory

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
	idem     *shared.IdempotencyStore
}

func NewHandler(logger *slog.Logger, service *Service, idem *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), idem: idem}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stocks", h.Stocks)
	r.Get("/audit", h.Audit)
	r.Post("/fix", h.Fix)
	r.Post("/movements", h.RecordMovement)
}

type movementRequest struct {
	ProductID   int64   `json:"product_id" validate:"required,gt=0"`
	WarehouseID int64   `json:"warehouse_id" validate:"required,gt=0"`
	RakID       *int64  `json:"rak_id,omitempty"`
	Type        string  `json:"type" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"required"`
	Date        string  `json:"date,omitempty"`
	SourceType  string  `json:"source_type" validate:"required"`
	SourceID    string  `json:"source_id" validate:"required,uuid"`
}

// RecordMovement inserts a manual stock movement and applies it to the cache.
func (h *Handler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				fields[fieldErr.Field()] = fieldErr.Tag()
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{"errors": fields})
		return
	}

	sourceID, err := uuid.Parse(req.SourceID)
	if err != nil {
		http.Error(w, "invalid source id", http.StatusBadRequest)
		return
	}
	date := time.Now()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" && h.idem != nil {
		if err := h.idem.CheckAndInsert(r.Context(), idemKey, "inventory.movement"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				http.Error(w, "duplicate request", http.StatusConflict)
				return
			}
			h.logger.Error("idempotency check", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}

	movement := StockMovement{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		RakID:       req.RakID,
		Type:        MovementType(req.Type),
		Quantity:    req.Quantity,
		Date:        date,
		SourceType:  req.SourceType,
		SourceID:    sourceID,
	}
	if err := h.service.Record(r.Context(), movement); err != nil {
		if idemKey != "" && h.idem != nil {
			// Free the key so the caller can retry after fixing the request.
			_ = h.idem.Delete(r.Context(), idemKey)
		}
		if errors.Is(err, ErrNegativeStock) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error("record movement", slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusCreated)
	h.writeJSON(w, map[string]any{"status": "recorded"})
}

func filterFromQuery(r *http.Request) AuditFilter {
	var filter AuditFilter
	if raw := r.URL.Query().Get("product"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.ProductID = id
		}
	}
	if raw := r.URL.Query().Get("warehouse"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.WarehouseID = id
		}
	}
	if raw := r.URL.Query().Get("rak"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.RakID = &id
		}
	}
	return filter
}

func (h *Handler) Stocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.service.Stocks(r.Context(), filterFromQuery(r))
	if err != nil {
		h.logger.Error("list stocks", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]any{"stocks": stocks})
}

func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Audit(r.Context(), filterFromQuery(r))
	if err != nil {
		h.logger.Error("inventory audit", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	issues := 0
	for _, row := range rows {
		if !row.OK {
			issues++
		}
	}
	h.writeJSON(w, map[string]any{"rows": rows, "issues": issues})
}

func (h *Handler) Fix(w http.ResponseWriter, r *http.Request) {
	fixed, err := h.service.Fix(r.Context(), filterFromQuery(r))
	if err != nil {
		h.logger.Error("inventory fix", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]any{"fixed": fixed})
}

func (h *Handler) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("encode response", slog.Any("error", err))
	}
}
