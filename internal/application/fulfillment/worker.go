package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/textile-storefront/internal/domain/fulfillment"
	domoutbox "github.com/Zhima-Mochi/textile-storefront/internal/domain/outbox"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability"
	workerpresentation "github.com/Zhima-Mochi/textile-storefront/internal/presentation/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	workerService       = "fulfillment_worker"
	useCaseJournalWrite = "fulfillment.worker.recorded"
)

// JournalWorker persists every finished fulfillment run so orders can be
// looked up and reconciled after the request that produced them is gone.
type JournalWorker struct {
	subscriber domoutbox.Subscriber
	journal    domain.Journal
	tel        observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewJournalWorker(subscriber domoutbox.Subscriber, journal domain.Journal, tel observability.Observability) *JournalWorker {
	if tel == nil {
		tel = observability.Nop()
	}
	metricsProvider := tel.Metrics()
	return &JournalWorker{
		subscriber:   subscriber,
		journal:      journal,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", workerService)),
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
	}
}

func (w *JournalWorker) Start() {
	if w.subscriber == nil || w.journal == nil {
		return
	}
	w.subscriber.Subscribe(domain.RecordedEvent{}.EventName(), w.handleRecorded)
}

func (w *JournalWorker) handleRecorded(ctx context.Context, e domoutbox.Event) (err error) {
	evt, ok := e.(domain.RecordedEvent)
	if !ok {
		w.observe("ignored", 0)
		return nil
	}

	ctx, span := w.tel.Tracer().Start(ctx, spanPrefix+"FulfillmentRecorded",
		attribute.String("use_case", useCaseJournalWrite),
		attribute.String("order.id", evt.Result.OrderID),
		attribute.String("fulfillment.status", string(evt.Result.Status)),
	)
	ctx, logger := workerpresentation.WithEventContext(ctx, w.log, map[string]string{
		"use_case":     useCaseJournalWrite,
		"event":        e.EventName(),
		"order_id":     evt.Result.OrderID,
		"status":       string(evt.Result.Status),
		"origin_trace": evt.TraceID,
	})
	start := time.Now()
	outcome := "success"

	defer func() {
		lat := time.Since(start).Seconds()
		w.observe(outcome, lat)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		} else {
			span.SetStatus(codes.Ok, outcome)
		}
		span.End()
		logger.Info("use_case_done",
			observability.F("outcome", outcome),
			observability.F("latency_seconds", lat),
		)
	}()

	rec := domain.NewRecord(evt)
	if err = w.journal.Record(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrRecordConflict) {
			return w.conflict(ctx, logger, rec, &outcome)
		}
		outcome = "error"
		return fmt.Errorf("worker: journal record: %w", err)
	}

	if evt.Result.Status == domain.StatusInsufficientInventory {
		logger.Warn("order_needs_reconciliation",
			observability.F("item_id", rec.ItemID),
			observability.F("requested", rec.Quantity),
			observability.F("available", rec.Available),
			observability.F("failure_reason", rec.InventoryReason),
			observability.F("notification", rec.NotificationResult),
		)
	}
	return nil
}

// conflict separates a redelivered event from a new order whose id wrapped
// onto an existing record. Only the latter is an error.
func (w *JournalWorker) conflict(ctx context.Context, logger observability.Logger, rec domain.Record, outcome *string) error {
	stored, err := w.journal.Get(ctx, rec.OrderID)
	if err != nil {
		*outcome = "error"
		return fmt.Errorf("worker: journal lookup after conflict: %w", err)
	}
	if stored.SameRun(rec) {
		*outcome = "duplicate"
		return nil
	}

	*outcome = "id_collision"
	logger.Error("order_id_collision",
		observability.F("stored_recorded_at", stored.RecordedAt),
		observability.F("stored_status", string(stored.Status)),
		observability.F("recorded_at", rec.RecordedAt),
		observability.F("customer_email", rec.CustomerEmail),
		observability.F("total", rec.Total.String()),
	)
	return fmt.Errorf("worker: order %s: %w", rec.OrderID, domain.ErrRecordConflict)
}

func (w *JournalWorker) observe(outcome string, latencySeconds float64) {
	w.reqCounter.Add(1,
		observability.L("use_case", useCaseJournalWrite),
		observability.L("outcome", outcome),
	)
	w.durHistogram.Observe(latencySeconds,
		observability.L("use_case", useCaseJournalWrite),
	)
}
