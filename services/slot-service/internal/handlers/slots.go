package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/clinicware/slotengine/services/slot-service/internal/engine"
	"github.com/clinicware/slotengine/services/slot-service/internal/model"
)

// maxRangeDays caps a single generation request. Longer calendars page.
const maxRangeDays = 92

type SlotHandler struct {
	service *engine.Service
	logger  *slog.Logger
}

func NewSlotHandler(service *engine.Service, logger *slog.Logger) *SlotHandler {
	return &SlotHandler{service: service, logger: logger}
}

// Slots serves GET /api/v1/slots.
func (h *SlotHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	serviceTypeID := strings.TrimSpace(q.Get("service_type_id"))
	fromStr := strings.TrimSpace(q.Get("from"))
	toStr := strings.TrimSpace(q.Get("to"))
	timezone := strings.TrimSpace(q.Get("timezone"))
	if timezone == "" {
		timezone = "UTC"
	}
	if serviceTypeID == "" || fromStr == "" || toStr == "" {
		http.Error(w, "service_type_id, from and to are required", http.StatusBadRequest)
		return
	}

	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		http.Error(w, "invalid from date", http.StatusBadRequest)
		return
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		http.Error(w, "invalid to date", http.StatusBadRequest)
		return
	}
	if to.Before(from) {
		http.Error(w, "to must not be before from", http.StatusBadRequest)
		return
	}
	if int(to.Sub(from).Hours()/24) > maxRangeDays {
		http.Error(w, "date range too large", http.StatusBadRequest)
		return
	}

	slots, err := h.service.Slots(r.Context(), engine.Request{
		ServiceTypeID: serviceTypeID,
		From:          from,
		To:            to,
		Timezone:      timezone,
		StaffID:       strings.TrimSpace(q.Get("staff_id")),
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

type nextSlotResponse struct {
	Slot *model.Slot `json:"slot"`
}

// Next serves GET /api/v1/slots/next.
func (h *SlotHandler) Next(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	serviceTypeID := strings.TrimSpace(q.Get("service_type_id"))
	if serviceTypeID == "" {
		http.Error(w, "service_type_id is required", http.StatusBadRequest)
		return
	}
	timezone := strings.TrimSpace(q.Get("timezone"))
	if timezone == "" {
		timezone = "UTC"
	}

	slot, err := h.service.NextAvailableSlot(r.Context(), serviceTypeID, timezone, strings.TrimSpace(q.Get("staff_id")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nextSlotResponse{Slot: slot})
}

type assignRequest struct {
	ServiceTypeID string `json:"service_type_id"`
	Start         string `json:"start"`
	End           string `json:"end"`
	Mode          string `json:"mode,omitempty"`
}

type assignResponse struct {
	StaffIDs []string `json:"staff_ids"`
}

// Assign serves POST /api/v1/slots/assign.
func (h *SlotHandler) Assign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ServiceTypeID = strings.TrimSpace(req.ServiceTypeID)
	if req.ServiceTypeID == "" {
		http.Error(w, "service_type_id is required", http.StatusBadRequest)
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

	var modeOverride *model.AssignMode
	if m := strings.TrimSpace(req.Mode); m != "" {
		mode, err := model.ParseAssignMode(m)
		if err != nil {
			http.Error(w, "unknown assignment mode", http.StatusBadRequest)
			return
		}
		modeOverride = &mode
	}

	assignment, err := h.service.AssignStaff(r.Context(), req.ServiceTypeID, start.UTC(), end.UTC(), modeOverride)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	staffIDs := assignment.StaffIDs
	if staffIDs == nil {
		staffIDs = []string{}
	}
	writeJSON(w, http.StatusOK, assignResponse{StaffIDs: staffIDs})
}

func (h *SlotHandler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownServiceType):
		http.Error(w, "service type not found", http.StatusNotFound)
	case errors.Is(err, engine.ErrUnknownTimezone):
		http.Error(w, "unknown timezone", http.StatusBadRequest)
	default:
		h.logger.Error("slot request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
