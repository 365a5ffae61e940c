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

type RuleHandler struct {
	repo       *storage.RuleRepository
	bookings   *storage.BookingRepository
	outboxRepo *outbox.Repository
	service    *engine.Service
	ops        *metrics.Ops
	logger     *slog.Logger
}

func NewRuleHandler(repo *storage.RuleRepository, bookings *storage.BookingRepository, outboxRepo *outbox.Repository, service *engine.Service, ops *metrics.Ops, logger *slog.Logger) *RuleHandler {
	return &RuleHandler{
		repo:       repo,
		bookings:   bookings,
		outboxRepo: outboxRepo,
		service:    service,
		ops:        ops,
		logger:     logger,
	}
}

type ruleBody struct {
	ID             string  `json:"id,omitempty"`
	ServiceTypeID  string  `json:"service_type_id"`
	StaffID        string  `json:"staff_id,omitempty"`
	Weekday        int     `json:"weekday"`
	HourFrom       float64 `json:"hour_from"`
	HourTo         float64 `json:"hour_to"`
	Timezone       string  `json:"timezone"`
	DateFrom       string  `json:"date_from,omitempty"`
	DateTo         string  `json:"date_to,omitempty"`
	ExclusionDates string  `json:"exclusion_dates,omitempty"`
	Sequence       int     `json:"sequence"`
	Active         bool    `json:"active"`
}

func (b ruleBody) toModel() (model.AvailabilityRule, string) {
	rule := model.AvailabilityRule{
		ID:             strings.TrimSpace(b.ID),
		ServiceTypeID:  strings.TrimSpace(b.ServiceTypeID),
		StaffID:        strings.TrimSpace(b.StaffID),
		Weekday:        b.Weekday,
		HourFrom:       b.HourFrom,
		HourTo:         b.HourTo,
		Timezone:       strings.TrimSpace(b.Timezone),
		ExclusionDates: strings.TrimSpace(b.ExclusionDates),
		Sequence:       b.Sequence,
		Active:         b.Active,
	}
	if rule.ServiceTypeID == "" {
		return rule, "service_type_id is required"
	}
	if rule.Weekday < 0 || rule.Weekday > 6 {
		return rule, "weekday must be 0 (Monday) through 6 (Sunday)"
	}
	if rule.HourFrom < 0 || rule.HourTo > 24 || rule.HourTo <= rule.HourFrom {
		return rule, "hour_from and hour_to must satisfy 0 <= from < to <= 24"
	}
	if rule.Timezone == "" {
		rule.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(rule.Timezone); err != nil {
		return rule, "unknown timezone"
	}
	if b.DateFrom != "" {
		d, err := time.Parse("2006-01-02", b.DateFrom)
		if err != nil {
			return rule, "invalid date_from"
		}
		rule.DateFrom = &d
	}
	if b.DateTo != "" {
		d, err := time.Parse("2006-01-02", b.DateTo)
		if err != nil {
			return rule, "invalid date_to"
		}
		rule.DateTo = &d
	}
	if rule.DateFrom != nil && rule.DateTo != nil && rule.DateTo.Before(*rule.DateFrom) {
		return rule, "date_to must not be before date_from"
	}
	return rule, ""
}

type ruleResponse struct {
	RuleID string `json:"rule_id"`
}

func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body ruleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	rule, problem := body.toModel()
	if problem != "" {
		http.Error(w, problem, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.bookings.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.repo.Create(ctx, tx, &rule)
	if err != nil {
		http.Error(w, "failed to create rule", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.ChangeEvent(outbox.RuleChanged, "availability_rule", id, "created")); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.invalidate(r)
	writeJSON(w, http.StatusCreated, ruleResponse{RuleID: id})
}

func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body ruleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	rule, problem := body.toModel()
	if problem != "" {
		http.Error(w, problem, http.StatusBadRequest)
		return
	}
	if rule.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.bookings.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.Update(ctx, tx, &rule); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "rule not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update rule", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.ChangeEvent(outbox.RuleChanged, "availability_rule", rule.ID, "updated")); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.invalidate(r)
	writeJSON(w, http.StatusOK, ruleResponse{RuleID: rule.ID})
}

type deleteRuleRequest struct {
	RuleID string `json:"rule_id"`
}

func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req deleteRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.RuleID = strings.TrimSpace(req.RuleID)
	if req.RuleID == "" {
		http.Error(w, "rule_id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.bookings.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.Delete(ctx, tx, req.RuleID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "rule not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete rule", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.ChangeEvent(outbox.RuleChanged, "availability_rule", req.RuleID, "deleted")); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.invalidate(r)
	writeJSON(w, http.StatusOK, ruleResponse{RuleID: req.RuleID})
}

// List serves GET /api/v1/rules?service_type_id=...
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	serviceTypeID := strings.TrimSpace(r.URL.Query().Get("service_type_id"))
	if serviceTypeID == "" {
		http.Error(w, "service_type_id is required", http.StatusBadRequest)
		return
	}
	activeOnly := r.URL.Query().Get("active_only") == "true"

	ruleSet, err := h.repo.FindRules(r.Context(), serviceTypeID, activeOnly)
	if err != nil {
		http.Error(w, "failed to list rules", http.StatusInternalServerError)
		return
	}

	out := make([]ruleBody, 0, len(ruleSet))
	for _, rule := range ruleSet {
		item := ruleBody{
			ID:             rule.ID,
			ServiceTypeID:  rule.ServiceTypeID,
			StaffID:        rule.StaffID,
			Weekday:        rule.Weekday,
			HourFrom:       rule.HourFrom,
			HourTo:         rule.HourTo,
			Timezone:       rule.Timezone,
			ExclusionDates: rule.ExclusionDates,
			Sequence:       rule.Sequence,
			Active:         rule.Active,
		}
		if rule.DateFrom != nil {
			item.DateFrom = rule.DateFrom.Format("2006-01-02")
		}
		if rule.DateTo != nil {
			item.DateTo = rule.DateTo.Format("2006-01-02")
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *RuleHandler) invalidate(r *http.Request) {
	if err := h.service.Invalidate(r.Context()); err != nil {
		h.logger.Error("post-commit invalidation failed", "err", err)
		return
	}
	h.ops.ObserveInvalidation("http")
}
