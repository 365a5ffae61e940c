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

// BookingHandler owns the booking mutations. Every mutation commits with an
// outbox event in the same transaction, then clears the local slot cache
// before responding so the caller's next read reflects the change.
type BookingHandler struct {
	repo       *storage.BookingRepository
	outboxRepo *outbox.Repository
	service    *engine.Service
	ops        *metrics.Ops
	logger     *slog.Logger
}

func NewBookingHandler(repo *storage.BookingRepository, outboxRepo *outbox.Repository, service *engine.Service, ops *metrics.Ops, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		repo:       repo,
		outboxRepo: outboxRepo,
		service:    service,
		ops:        ops,
		logger:     logger,
	}
}

type createBookingRequest struct {
	ServiceTypeID string `json:"service_type_id"`
	StaffID       string `json:"staff_id"`
	Start         string `json:"start"`
	End           string `json:"end"`
	Status        string `json:"status,omitempty"`
}

type createBookingResponse struct {
	BookingID string `json:"booking_id"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ServiceTypeID = strings.TrimSpace(req.ServiceTypeID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	if req.ServiceTypeID == "" || req.StaffID == "" {
		http.Error(w, "service_type_id and staff_id are required", http.StatusBadRequest)
		return
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		http.Error(w, "invalid start", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		http.Error(w, "invalid end", http.StatusBadRequest)
		return
	}
	if !end.After(start) {
		http.Error(w, "end must be after start", http.StatusBadRequest)
		return
	}

	status := model.StatusConfirmed
	if req.Status != "" {
		status = model.BookingStatus(strings.TrimSpace(req.Status))
		if !status.Valid() {
			http.Error(w, "unknown booking status", http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.repo.Create(ctx, tx, &model.Booking{
		ServiceTypeID: req.ServiceTypeID,
		StaffID:       req.StaffID,
		Start:         start.UTC(),
		End:           end.UTC(),
		Status:        status,
	})
	if err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create booking", http.StatusInternalServerError)
		return
	}

	if err := h.outboxRepo.Insert(ctx, tx, outbox.ChangeEvent(outbox.BookingChanged, "booking", id, "created")); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.invalidate(r)
	writeJSON(w, http.StatusCreated, createBookingResponse{BookingID: id})
}

type updateStatusRequest struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

type updateStatusResponse struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	status := model.BookingStatus(strings.TrimSpace(req.Status))
	if req.BookingID == "" || !status.Valid() {
		http.Error(w, "booking_id and a valid status are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	booking, err := h.repo.GetForUpdate(ctx, tx, req.BookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "booking not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load booking", http.StatusInternalServerError)
		return
	}
	if booking.Status == status {
		writeJSON(w, http.StatusOK, updateStatusResponse{BookingID: booking.ID, Status: string(status)})
		return
	}

	if err := h.repo.UpdateStatus(ctx, tx, booking.ID, status); err != nil {
		http.Error(w, "failed to update booking", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.ChangeEvent(outbox.BookingChanged, "booking", booking.ID, string(status))); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.invalidate(r)
	writeJSON(w, http.StatusOK, updateStatusResponse{BookingID: booking.ID, Status: string(status)})
}

type cancelBookingRequest struct {
	BookingID string `json:"booking_id"`
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		http.Error(w, "booking_id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	booking, err := h.repo.GetForUpdate(ctx, tx, req.BookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "booking not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load booking", http.StatusInternalServerError)
		return
	}
	if booking.Status == model.StatusCancelled {
		writeJSON(w, http.StatusOK, updateStatusResponse{BookingID: booking.ID, Status: string(model.StatusCancelled)})
		return
	}
	if booking.Status == model.StatusDone {
		http.Error(w, "booking cannot be cancelled", http.StatusConflict)
		return
	}

	if err := h.repo.UpdateStatus(ctx, tx, booking.ID, model.StatusCancelled); err != nil {
		http.Error(w, "failed to cancel booking", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.ChangeEvent(outbox.BookingChanged, "booking", booking.ID, "cancelled")); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.invalidate(r)
	writeJSON(w, http.StatusOK, updateStatusResponse{BookingID: booking.ID, Status: string(model.StatusCancelled)})
}

// invalidate clears the local slot cache after a committed mutation. The
// outbox event handles the other replicas; a local failure is logged, not
// surfaced, since the data change is already durable.
func (h *BookingHandler) invalidate(r *http.Request) {
	if err := h.service.Invalidate(r.Context()); err != nil {
		h.logger.Error("post-commit invalidation failed", "err", err)
		return
	}
	h.ops.ObserveInvalidation("http")
}
