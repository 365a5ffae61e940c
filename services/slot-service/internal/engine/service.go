package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinicware/slotengine/services/slot-service/internal/assign"
	"github.com/clinicware/slotengine/services/slot-service/internal/metrics"
	"github.com/clinicware/slotengine/services/slot-service/internal/model"
	"github.com/clinicware/slotengine/services/slot-service/internal/slotcache"
)

// Service is the cached, metered front of the engine. Handlers and the next
// slot search go through it; only cache misses reach Engine.Generate.
type Service struct {
	engine   *Engine
	cache    slotcache.Cache
	recorder *metrics.Recorder
	assigner *assign.Assigner
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(e *Engine, cache slotcache.Cache, recorder *metrics.Recorder, assigner *assign.Assigner, logger *slog.Logger) *Service {
	return &Service{
		engine:   e,
		cache:    cache,
		recorder: recorder,
		assigner: assigner,
		logger:   logger,
		now:      time.Now,
	}
}

// Slots serves one generation request through the cache, timing it and
// recording the outcome.
func (s *Service) Slots(ctx context.Context, req Request) ([]model.Slot, error) {
	ctx, span := otel.Tracer("engine").Start(ctx, "slots.generate",
		trace.WithAttributes(
			attribute.String("slot.service_type_id", req.ServiceTypeID),
			attribute.String("slot.timezone", req.Timezone),
		),
	)
	defer span.End()

	key := slotcache.Key{
		ServiceTypeID: req.ServiceTypeID,
		StartDate:     req.From.Format("2006-01-02"),
		EndDate:       req.To.Format("2006-01-02"),
		Timezone:      req.Timezone,
		StaffID:       req.StaffID,
	}

	started := s.now()
	slots, hit, err := s.cache.GetOrCompute(ctx, key, func(ctx context.Context) ([]model.Slot, error) {
		return s.engine.Generate(ctx, req)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("slot.cache_hit", hit), attribute.Int("slot.count", len(slots)))

	s.recorder.Record(ctx, metrics.Request{
		ServiceTypeID: req.ServiceTypeID,
		StaffID:       req.StaffID,
		DateFrom:      key.StartDate,
		DateTo:        key.EndDate,
		Timezone:      req.Timezone,
		Duration:      s.now().Sub(started),
		SlotsReturned: len(slots),
		CacheHit:      hit,
	})
	return slots, nil
}

// NextAvailableSlot scans forward day by day from the minimum notice instant
// to the booking horizon and returns the first available slot, or nil when
// the whole horizon is booked out. Scanning in day windows keeps each lookup
// on the same cache entries the calendar views use.
func (s *Service) NextAvailableSlot(ctx context.Context, serviceTypeID, timezone, staffID string) (*model.Slot, error) {
	serviceType, err := s.engine.serviceTypes.GetServiceType(ctx, serviceTypeID)
	if err != nil {
		return nil, fmt.Errorf("load service type: %w", err)
	}
	if serviceType == nil || !serviceType.Active {
		return nil, ErrUnknownServiceType
	}

	now := s.now().UTC()
	earliest := now.Add(time.Duration(serviceType.MinNoticeHours) * time.Hour)
	horizon := now.AddDate(0, 0, serviceType.MaxDaysAhead)

	for day := dateOnly(earliest); !day.After(dateOnly(horizon)); day = day.AddDate(0, 0, 1) {
		slots, err := s.Slots(ctx, Request{
			ServiceTypeID: serviceTypeID,
			From:          day,
			To:            day,
			Timezone:      timezone,
			StaffID:       staffID,
		})
		if err != nil {
			return nil, err
		}
		for i := range slots {
			if slots[i].Available && !slots[i].Start.Before(earliest) && slots[i].Start.Before(horizon) {
				return &slots[i], nil
			}
		}
	}
	return nil, nil
}

// AssignStaff picks staff for a candidate slot using the service type's
// configured assignment mode, or an explicit mode override.
func (s *Service) AssignStaff(ctx context.Context, serviceTypeID string, start, end time.Time, modeOverride *model.AssignMode) (assign.Assignment, error) {
	serviceType, err := s.engine.serviceTypes.GetServiceType(ctx, serviceTypeID)
	if err != nil {
		return assign.Assignment{}, fmt.Errorf("load service type: %w", err)
	}
	if serviceType == nil || !serviceType.Active {
		return assign.Assignment{}, ErrUnknownServiceType
	}
	eligible, err := s.engine.staff.FindEligibleStaff(ctx, serviceTypeID, true)
	if err != nil {
		return assign.Assignment{}, fmt.Errorf("load staff: %w", err)
	}
	mode := serviceType.AssignMode
	if modeOverride != nil {
		mode = *modeOverride
	}
	return s.assigner.Assign(ctx, serviceType, start, end, mode, eligible)
}

// Invalidate clears the slot cache. Mutation handlers call it after commit;
// the kafka consumer calls it when another replica mutated.
func (s *Service) Invalidate(ctx context.Context) error {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		return fmt.Errorf("invalidate slot cache: %w", err)
	}
	s.logger.Info("slot cache invalidated")
	return nil
}

// Stats exposes the metrics read side to handlers.
func (s *Service) Stats(ctx context.Context, days int) (metrics.Stats, error) {
	return s.recorder.Stats(ctx, days)
}

// Trend exposes the day-bucketed request trend to handlers.
func (s *Service) Trend(ctx context.Context, days int) ([]metrics.TrendPoint, error) {
	return s.recorder.Trend(ctx, days)
}
