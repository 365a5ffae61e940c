package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/clinicware/slotengine/services/slot-service/internal/engine"
	"github.com/clinicware/slotengine/services/slot-service/internal/metrics"
	"github.com/clinicware/slotengine/services/slot-service/internal/model"
	"github.com/clinicware/slotengine/services/slot-service/internal/outbox"
	"github.com/clinicware/slotengine/services/slot-service/internal/storage"
)

type ServiceTypeHandler struct {
	repo       *storage.ServiceTypeRepository
	bookings   *storage.BookingRepository
	outboxRepo *outbox.Repository
	service    *engine.Service
	ops        *metrics.Ops
	logger     *slog.Logger
}

func NewServiceTypeHandler(repo *storage.ServiceTypeRepository, bookings *storage.BookingRepository, outboxRepo *outbox.Repository, service *engine.Service, ops *metrics.Ops, logger *slog.Logger) *ServiceTypeHandler {
	return &ServiceTypeHandler{
		repo:       repo,
		bookings:   bookings,
		outboxRepo: outboxRepo,
		service:    service,
		ops:        ops,
		logger:     logger,
	}
}

type serviceTypeItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	BufferBefore    int    `json:"buffer_before_minutes"`
	BufferAfter     int    `json:"buffer_after_minutes"`
	CapacityPerSlot int    `json:"capacity_per_slot"`
	MinNoticeHours  int    `json:"min_notice_hours"`
	MaxDaysAhead    int    `json:"max_days_ahead"`
	AssignMode      string `json:"assign_mode"`
	Active          bool   `json:"active"`
}

func toServiceTypeItem(st model.ServiceType) serviceTypeItem {
	return serviceTypeItem{
		ID:              st.ID,
		Name:            st.Name,
		DurationMinutes: int(st.Duration / time.Minute),
		BufferBefore:    int(st.BufferBefore / time.Minute),
		BufferAfter:     int(st.BufferAfter / time.Minute),
		CapacityPerSlot: st.CapacityPerSlot,
		MinNoticeHours:  st.MinNoticeHours,
		MaxDaysAhead:    st.MaxDaysAhead,
		AssignMode:      st.AssignMode.String(),
		Active:          st.Active,
	}
}

// List serves GET /api/v1/service-types.
func (h *ServiceTypeHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	activeOnly := r.URL.Query().Get("active_only") == "true"
	serviceTypes, err := h.repo.List(r.Context(), activeOnly)
	if err != nil {
		http.Error(w, "failed to list service types", http.StatusInternalServerError)
		return
	}
	items := make([]serviceTypeItem, 0, len(serviceTypes))
	for _, st := range serviceTypes {
		items = append(items, toServiceTypeItem(st))
	}
	writeJSON(w, http.StatusOK, items)
}

type updateSchedulingRequest struct {
	ID              string `json:"id"`
	DurationMinutes int    `json:"duration_minutes"`
	BufferBefore    int    `json:"buffer_before_minutes"`
	BufferAfter     int    `json:"buffer_after_minutes"`
	CapacityPerSlot int    `json:"capacity_per_slot"`
	MinNoticeHours  int    `json:"min_notice_hours"`
	MaxDaysAhead    int    `json:"max_days_ahead"`
	AssignMode      string `json:"assign_mode"`
}

// UpdateScheduling serves POST /api/v1/service-types/scheduling.
func (h *ServiceTypeHandler) UpdateScheduling(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req updateSchedulingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	if req.DurationMinutes <= 0 {
		http.Error(w, "duration_minutes must be positive", http.StatusBadRequest)
		return
	}
	if req.BufferBefore < 0 || req.BufferAfter < 0 {
		http.Error(w, "buffers must not be negative", http.StatusBadRequest)
		return
	}
	if req.CapacityPerSlot <= 0 {
		http.Error(w, "capacity_per_slot must be positive", http.StatusBadRequest)
		return
	}
	if req.MinNoticeHours < 0 || req.MaxDaysAhead <= 0 {
		http.Error(w, "min_notice_hours must not be negative and max_days_ahead must be positive", http.StatusBadRequest)
		return
	}
	mode, err := model.ParseAssignMode(strings.TrimSpace(req.AssignMode))
	if err != nil {
		http.Error(w, "unknown assignment mode", http.StatusBadRequest)
		return
	}

	st := &model.ServiceType{
		ID:              req.ID,
		Duration:        time.Duration(req.DurationMinutes) * time.Minute,
		BufferBefore:    time.Duration(req.BufferBefore) * time.Minute,
		BufferAfter:     time.Duration(req.BufferAfter) * time.Minute,
		CapacityPerSlot: req.CapacityPerSlot,
		MinNoticeHours:  req.MinNoticeHours,
		MaxDaysAhead:    req.MaxDaysAhead,
		AssignMode:      mode,
	}

	ctx := r.Context()
	tx, err := h.bookings.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.UpdateScheduling(ctx, tx, st); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "service type not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update service type", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.ChangeEvent(outbox.ServiceTypeChanged, "service_type", st.ID, "updated")); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	if err := h.service.Invalidate(ctx); err != nil {
		h.logger.Error("post-commit invalidation failed", "err", err)
	} else {
		h.ops.ObserveInvalidation("http")
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": st.ID})
}
