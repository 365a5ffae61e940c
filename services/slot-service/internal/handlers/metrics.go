package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/clinicware/slotengine/services/slot-service/internal/engine"
)

type MetricsHandler struct {
	service *engine.Service
	logger  *slog.Logger
}

func NewMetricsHandler(service *engine.Service, logger *slog.Logger) *MetricsHandler {
	return &MetricsHandler{service: service, logger: logger}
}

// Stats serves GET /api/v1/metrics/stats?days=7.
func (h *MetricsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := h.service.Stats(r.Context(), parseDays(r, 7))
	if err != nil {
		h.logger.Error("metrics stats failed", "err", err)
		http.Error(w, "failed to load stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Trend serves GET /api/v1/metrics/trend?days=7.
func (h *MetricsHandler) Trend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	trend, err := h.service.Trend(r.Context(), parseDays(r, 7))
	if err != nil {
		h.logger.Error("metrics trend failed", "err", err)
		http.Error(w, "failed to load trend", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

func parseDays(r *http.Request, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get("days"))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 90 {
		return fallback
	}
	return n
}
