package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	dominv "github.com/Zhima-Mochi/textile-storefront/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/textile-storefront/internal/domain/outbox"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	inventoryService          = "inventory-service"
	useCaseDecrement          = "inventory.decrement"
	decrementSpanName         = "DecrementStock"
	spanPrefix                = "UC."
	publishPeer               = "outbox"
	endpointDecremented       = "inventory.decremented"
	endpointDecrementRejected = "inventory.decrement_rejected"
	publishTimeout            = 300 * time.Millisecond
)

// DecrementCommand asks for quantity units of an item on behalf of an order.
// OrderID may be empty for direct stock adjustments.
type DecrementCommand struct {
	OrderID  string
	ItemID   string
	Quantity int
}

// DecrementResult is always returned, also alongside an error.
type DecrementResult struct {
	Granted   bool
	Remaining int
	// Available is the stock on hand when a decrement was rejected for size.
	Available int
	Reason    string
}

type DecrementStockUseCase struct {
	ledger       dominv.Ledger
	publisher    domoutbox.Publisher
	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	extCounter   observability.Counter
	extHistogram observability.Histogram
	rejections   observability.Counter
}

func NewDecrementStockUseCase(ledger dominv.Ledger, publisher domoutbox.Publisher, tel observability.Observability) *DecrementStockUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	metricsProvider := tel.Metrics()

	return &DecrementStockUseCase{
		ledger:       ledger,
		publisher:    publisher,
		log:          tel.Logger().With(observability.F("service", inventoryService)),
		tracer:       tel.Tracer(),
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
		extCounter:   metricsProvider.Counter(observability.MExternalRequests),
		extHistogram: metricsProvider.Histogram(observability.MExternalRequestDuration),
		rejections:   metricsProvider.Counter(observability.MInventoryRejections),
	}
}

// Execute runs one conditional decrement and emits the matching stock event.
// Rejections come back as an error wrapping the ledger's sentinel together
// with a result whose Reason says why.
func (uc *DecrementStockUseCase) Execute(ctx context.Context, cmd DecrementCommand) (_ *DecrementResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseDecrement),
		observability.F("order_id", cmd.OrderID),
		observability.F("item_id", cmd.ItemID),
		observability.F("quantity", cmd.Quantity),
	)

	ctx, span := uc.tracer.Start(ctx, spanPrefix+decrementSpanName,
		attribute.String("use_case", useCaseDecrement),
		attribute.String("order.id", cmd.OrderID),
		attribute.String("item.id", cmd.ItemID),
		attribute.Int("order.quantity", cmd.Quantity),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var publishErr error
	result := &DecrementResult{}

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		latency := time.Since(start).Seconds()
		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseDecrement),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(latency,
			observability.L("use_case", useCaseDecrement),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", latency),
			observability.F("granted", result.Granted),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if result.Granted {
			fields = append(fields, observability.F("remaining", result.Remaining))
		}
		if result.Reason != "" {
			fields = append(fields,
				observability.F("failure_reason", result.Reason),
				observability.F("available", result.Available),
			)
		}
		if publishErr != nil {
			fields = append(fields, observability.F("event_error", publishErr.Error()))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}

		logger.Info("use_case_done", fields...)
	}()

	d, derr := uc.ledger.TryDecrement(ctx, cmd.ItemID, cmd.Quantity)
	if derr != nil {
		result.Reason = FailureReason(derr)
		result.Available, _ = dominv.Available(derr)
		outcome, statusText = "rejected", "DECREMENT_REJECTED"
		if result.Reason == dominv.FailureReasonPersistenceError {
			outcome, statusText = "error", "LEDGER_FAILED"
		}
		uc.rejections.Add(1, observability.L("reason", result.Reason))

		publishErr = uc.publish(ctx, endpointDecrementRejected,
			dominv.NewStockRejectedEvent(cmd.OrderID, cmd.ItemID, cmd.Quantity, result.Available, result.Reason))
		return result, fmt.Errorf("inventory: decrement: %w", derr)
	}

	result.Granted = true
	result.Remaining = d.Remaining
	span.AddEvent("inventory.decremented",
		trace.WithAttributes(
			attribute.String("item.id", cmd.ItemID),
			attribute.Int("inventory.remaining", d.Remaining),
		),
	)

	// The decrement is already durable; a lost event must not undo the sale.
	publishErr = uc.publish(ctx, endpointDecremented, dominv.NewStockDecrementedEvent(cmd.OrderID, d))
	return result, nil
}

func (uc *DecrementStockUseCase) publish(ctx context.Context, endpoint string, event domoutbox.Event) error {
	if uc.publisher == nil || event == nil {
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	start := time.Now()
	err := uc.publisher.Publish(pubCtx, event)
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else if pubCtx.Err() != nil {
		outcome = "canceled"
		err = pubCtx.Err()
	}
	cancel()

	uc.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	uc.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", endpoint),
	)

	return err
}

// FailureReason classifies a ledger error. Anything the ledger does not name
// is a storage failure.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, dominv.ErrInsufficientStock):
		return dominv.FailureReasonInsufficientStock
	case errors.Is(err, dominv.ErrNotFound):
		return dominv.FailureReasonNotFound
	case errors.Is(err, dominv.ErrUnavailable):
		return dominv.FailureReasonUnavailable
	case errors.Is(err, dominv.ErrInvalidQuantity):
		return dominv.FailureReasonInvalidQuantity
	default:
		return dominv.FailureReasonPersistenceError
	}
}
