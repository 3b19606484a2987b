package inventory

import (
	"context"
	"time"

	dominv "github.com/Zhima-Mochi/textile-storefront/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/textile-storefront/internal/domain/outbox"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability"
	workerpresentation "github.com/Zhima-Mochi/textile-storefront/internal/presentation/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	workerService = "inventory_worker"

	// DefaultLowStockThreshold is the remaining length, in meters, below which
	// a granted decrement raises a restock warning.
	DefaultLowStockThreshold = 1000
)

// StockWorker watches stock events. It warns when an item runs low and flags
// rejected decrements that need manual reconciliation with the buyer.
type StockWorker struct {
	subscriber domoutbox.Subscriber
	threshold  int
	tel        observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewStockWorker(subscriber domoutbox.Subscriber, lowStockThreshold int, tel observability.Observability) *StockWorker {
	if tel == nil {
		tel = observability.Nop()
	}
	if lowStockThreshold <= 0 {
		lowStockThreshold = DefaultLowStockThreshold
	}
	metricsProvider := tel.Metrics()
	return &StockWorker{
		subscriber:   subscriber,
		threshold:    lowStockThreshold,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", workerService)),
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
	}
}

func (w *StockWorker) Start() {
	if w.subscriber == nil {
		return
	}
	w.subscriber.Subscribe(dominv.StockDecrementedEvent{}.EventName(), w.handleDecremented)
	w.subscriber.Subscribe(dominv.StockRejectedEvent{}.EventName(), w.handleRejected)
}

func (w *StockWorker) handleDecremented(ctx context.Context, e domoutbox.Event) error {
	const useCase = "inventory.worker.decremented"
	evt, ok := e.(dominv.StockDecrementedEvent)
	if !ok {
		w.count(useCase, "ignored")
		return nil
	}

	ctx, span := w.tel.Tracer().Start(ctx, spanPrefix+"StockDecremented",
		attribute.String("use_case", useCase),
		attribute.String("item.id", evt.ItemID),
	)
	_, logger := workerpresentation.WithEventContext(ctx, w.log, map[string]string{
		"use_case": useCase,
		"event":    e.EventName(),
		"order_id": evt.OrderID,
		"item_id":  evt.ItemID,
	})
	start := time.Now()
	outcome := "success"

	defer func() {
		w.observe(useCase, outcome, time.Since(start).Seconds())
		span.SetStatus(codes.Ok, outcome)
		span.End()
	}()

	if evt.Remaining < w.threshold {
		outcome = "low_stock"
		logger.Warn("stock_low",
			observability.F("remaining", evt.Remaining),
			observability.F("threshold", w.threshold),
		)
		return nil
	}
	logger.Debug("stock_decremented", observability.F("remaining", evt.Remaining))
	return nil
}

func (w *StockWorker) handleRejected(ctx context.Context, e domoutbox.Event) error {
	const useCase = "inventory.worker.rejected"
	evt, ok := e.(dominv.StockRejectedEvent)
	if !ok {
		w.count(useCase, "ignored")
		return nil
	}

	ctx, span := w.tel.Tracer().Start(ctx, spanPrefix+"StockRejected",
		attribute.String("use_case", useCase),
		attribute.String("item.id", evt.ItemID),
		attribute.String("inventory.reason", evt.Reason),
	)
	_, logger := workerpresentation.WithEventContext(ctx, w.log, map[string]string{
		"use_case": useCase,
		"event":    e.EventName(),
		"order_id": evt.OrderID,
		"item_id":  evt.ItemID,
		"reason":   evt.Reason,
	})
	start := time.Now()

	defer func() {
		w.observe(useCase, "success", time.Since(start).Seconds())
		span.SetStatus(codes.Ok, "OK")
		span.End()
	}()

	// Orders without an id are direct stock adjustments; nobody was billed.
	if evt.OrderID == "" {
		logger.Info("stock_adjustment_rejected",
			observability.F("requested", evt.Quantity),
			observability.F("available", evt.Available),
		)
		return nil
	}
	logger.Warn("stock_reconciliation_required",
		observability.F("requested", evt.Quantity),
		observability.F("available", evt.Available),
	)
	return nil
}

func (w *StockWorker) count(useCase, outcome string) {
	w.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
}

func (w *StockWorker) observe(useCase string, outcome string, latencySeconds float64) {
	w.count(useCase, outcome)
	w.durHistogram.Observe(latencySeconds,
		observability.L("use_case", useCase),
	)
}
