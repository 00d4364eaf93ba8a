package ledger

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	service *Service
	cache   *ReportCache
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service, cache *ReportCache) *Handler {
	return &Handler{logger: logger, service: service, cache: cache}
}

func (h *Handler) EntriesForSource(w http.ResponseWriter, r *http.Request) {
	sourceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid source id", http.StatusBadRequest)
		return
	}
	key := GroupKey{
		SourceType:  chi.URLParam(r, "type"),
		SourceID:    sourceID,
		JournalType: JournalType(r.URL.Query().Get("journal_type")),
	}
	lines, err := h.service.EntriesForSource(r.Context(), key)
	if err != nil {
		h.logger.Error("entries for source", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]any{"entries": lines})
}

func (h *Handler) EntriesForAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid account id", http.StatusBadRequest)
		return
	}
	from, err := parseDate(r.URL.Query().Get("from"), time.Time{})
	if err != nil {
		http.Error(w, "invalid from date", http.StatusBadRequest)
		return
	}
	to, err := parseDate(r.URL.Query().Get("to"), time.Now())
	if err != nil {
		http.Error(w, "invalid to date", http.StatusBadRequest)
		return
	}
	key := reportKey("entries", chi.URLParam(r, "id"), from.Format("2006-01-02"), to.Format("2006-01-02"))
	if h.serveCached(w, r, key) {
		return
	}
	lines, err := h.service.EntriesForAccount(r.Context(), accountID, from, to)
	if err != nil {
		h.logger.Error("entries for account", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.writeReport(w, r, key, map[string]any{"entries": lines})
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid account id", http.StatusBadRequest)
		return
	}
	asOf, err := parseDate(r.URL.Query().Get("as_of"), time.Now())
	if err != nil {
		http.Error(w, "invalid as_of date", http.StatusBadRequest)
		return
	}
	key := reportKey("balance", chi.URLParam(r, "id"), asOf.Format("2006-01-02"))
	if h.serveCached(w, r, key) {
		return
	}
	balance, err := h.service.BalanceAsOf(r.Context(), accountID, asOf)
	if err != nil {
		h.logger.Error("account balance", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.writeReport(w, r, key, map[string]any{"account_id": accountID, "as_of": asOf.Format("2006-01-02"), "balance": balance})
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDate(r.URL.Query().Get("as_of"), time.Now())
	if err != nil {
		http.Error(w, "invalid as_of date", http.StatusBadRequest)
		return
	}
	key := reportKey("trial-balance", asOf.Format("2006-01-02"))
	if h.serveCached(w, r, key) {
		return
	}
	rows, err := h.service.TrialBalance(r.Context(), asOf)
	if err != nil {
		h.logger.Error("trial balance", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.writeReport(w, r, key, map[string]any{"as_of": asOf.Format("2006-01-02"), "rows": rows})
}

func (h *Handler) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("encode response", slog.Any("error", err))
	}
}

func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, key string) bool {
	body, ok := h.cache.Get(r.Context(), key)
	if !ok {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
	return true
}

// writeReport renders the payload and stores the rendered bytes so the next
// pull of the same report serves straight from redis.
func (h *Handler) writeReport(w http.ResponseWriter, r *http.Request, key string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("encode response", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.cache.Set(r.Context(), key, body)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func parseDate(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.Parse("2006-01-02", raw)
}
