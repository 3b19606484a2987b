// Package fulfillment runs the order pipeline: bill, notification, stock.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/textile-storefront/internal/application"
	appinv "github.com/Zhima-Mochi/textile-storefront/internal/application/inventory"
	"github.com/Zhima-Mochi/textile-storefront/internal/domain/bill"
	domain "github.com/Zhima-Mochi/textile-storefront/internal/domain/fulfillment"
	dominv "github.com/Zhima-Mochi/textile-storefront/internal/domain/inventory"
	"github.com/Zhima-Mochi/textile-storefront/internal/domain/notification"
	"github.com/Zhima-Mochi/textile-storefront/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/textile-storefront/internal/domain/outbox"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	fulfillmentService = "fulfillment-service"
	useCaseSubmitOrder = "fulfillment.submit_order"
	submitSpanName     = "SubmitOrder"
	spanPrefix         = "UC."
	publishPeer        = "outbox"
	endpointRecorded   = "fulfillment.recorded"
	publishTimeout     = 300 * time.Millisecond

	// DefaultNotifyTimeout bounds the bill mail so a slow relay cannot hold the sale.
	DefaultNotifyTimeout = 20 * time.Second
	// DefaultStockTimeout bounds the decrement once the bill is out.
	DefaultStockTimeout = 5 * time.Second
)

type Config struct {
	NotifyTimeout time.Duration
	StockTimeout  time.Duration
	Brand         string
}

type SubmitOrderUseCase struct {
	bills     bill.Generator
	channel   notification.Channel
	decrement application.UseCase[appinv.DecrementCommand, *appinv.DecrementResult]
	publisher domoutbox.Publisher
	composer  BillComposer
	timeout   time.Duration
	stockTTL  time.Duration
	now       func() time.Time

	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	extCounter   observability.Counter
	extHistogram observability.Histogram
	results      observability.Counter
}

func NewSubmitOrderUseCase(
	bills bill.Generator,
	channel notification.Channel,
	decrement application.UseCase[appinv.DecrementCommand, *appinv.DecrementResult],
	publisher domoutbox.Publisher,
	cfg Config,
	tel observability.Observability,
) *SubmitOrderUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = DefaultNotifyTimeout
	}
	if cfg.StockTimeout <= 0 {
		cfg.StockTimeout = DefaultStockTimeout
	}
	metricsProvider := tel.Metrics()

	return &SubmitOrderUseCase{
		bills:        bills,
		channel:      channel,
		decrement:    decrement,
		publisher:    publisher,
		composer:     BillComposer{Brand: cfg.Brand},
		timeout:      cfg.NotifyTimeout,
		stockTTL:     cfg.StockTimeout,
		now:          time.Now,
		log:          tel.Logger().With(observability.F("service", fulfillmentService)),
		tracer:       tel.Tracer(),
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
		extCounter:   metricsProvider.Counter(observability.MExternalRequests),
		extHistogram: metricsProvider.Histogram(observability.MExternalRequestDuration),
		results:      metricsProvider.Counter(observability.MFulfillmentResults),
	}
}

// Execute fulfills one order: render the bill, mail it, then take the stock.
//
// Only a bill that cannot be rendered stops the run; it returns
// StatusDocumentGenerationFailed with the render error and nothing else is
// touched. Mail and stock failures are folded into the returned result.
func (uc *SubmitOrderUseCase) Execute(ctx context.Context, req order.Request) (_ *domain.Result, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseSubmitOrder),
		observability.F("order_id", req.ID),
		observability.F("item_id", req.Item.ItemID),
		observability.F("quantity", req.Item.Quantity),
	)

	ctx, span := uc.tracer.Start(ctx, spanPrefix+submitSpanName,
		attribute.String("use_case", useCaseSubmitOrder),
		attribute.String("order.id", req.ID),
		attribute.String("item.id", req.Item.ItemID),
		attribute.Int("order.quantity", req.Item.Quantity),
	)
	start := time.Now()
	result := &domain.Result{OrderID: req.ID, Summary: req.Summary()}
	var publishErr error

	defer func() {
		outcome := outcomeFor(result.Status)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(result.Status))
		} else {
			span.SetStatus(codes.Ok, string(result.Status))
		}
		span.SetAttributes(attribute.String("fulfillment.status", string(result.Status)))
		span.End()

		latency := time.Since(start).Seconds()
		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseSubmitOrder),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(latency,
			observability.L("use_case", useCaseSubmitOrder),
		)
		uc.results.Add(1, observability.L("status", string(result.Status)))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", string(result.Status)),
			observability.F("latency_seconds", latency),
			observability.F("total", result.Summary.Total.String()),
			observability.F("notification", result.Notification.Label()),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if result.Inventory.Attempted {
			fields = append(fields, observability.F("inventory_granted", result.Inventory.Granted))
		}
		if result.Inventory.Reason != "" {
			fields = append(fields, observability.F("failure_reason", result.Inventory.Reason))
		}
		if result.MissingField != "" {
			fields = append(fields, observability.F("missing_field", result.MissingField))
		}
		if publishErr != nil {
			fields = append(fields, observability.F("event_error", publishErr.Error()))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}

		logger.Info("use_case_done", fields...)
	}()

	doc, gerr := uc.bills.Generate(req)
	if gerr != nil {
		result.Status = domain.StatusDocumentGenerationFailed
		var rerr *bill.RenderError
		if errors.As(gerr, &rerr) {
			result.MissingField = rerr.Field
		}
		result.Error = gerr.Error()
		result.FinishedAt = uc.now().UTC()
		publishErr = uc.record(ctx, result, req.Buyer.Email)
		return result, fmt.Errorf("fulfillment: generate bill: %w", gerr)
	}
	span.AddEvent("bill.generated", trace.WithAttributes(attribute.Int("bill.bytes", len(doc.Data))))

	// The bill exists from here on; a dropped caller must not leave the order
	// mailed but unstocked. Each stage keeps its own timeout.
	sctx := context.WithoutCancel(ctx)

	result.Notification = uc.notify(sctx, req, doc)

	if req.HasInventoryReference() {
		result.Inventory = uc.takeStock(sctx, req)
	}

	result.Status = domain.Compose(result.Notification, result.Inventory)
	result.FinishedAt = uc.now().UTC()
	publishErr = uc.record(sctx, result, req.Buyer.Email)
	return result, nil
}

func (uc *SubmitOrderUseCase) notify(ctx context.Context, req order.Request, doc bill.Document) domain.NotificationOutcome {
	out := domain.NotificationOutcome{Attempted: true}

	msg, err := uc.composer.Compose(req, doc)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	nctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	res := uc.channel.Send(nctx, msg)

	out.Delivered = res.OK
	out.Skipped = res.Skipped
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

func (uc *SubmitOrderUseCase) takeStock(ctx context.Context, req order.Request) domain.InventoryOutcome {
	out := domain.InventoryOutcome{
		Attempted: true,
		ItemID:    req.Item.ItemID,
		Requested: req.Item.Quantity,
	}

	dctx, cancel := context.WithTimeout(ctx, uc.stockTTL)
	defer cancel()

	res, err := uc.decrement.Execute(dctx, appinv.DecrementCommand{
		OrderID:  req.ID,
		ItemID:   req.Item.ItemID,
		Quantity: req.Item.Quantity,
	})
	if res != nil {
		out.Granted = res.Granted
		out.Remaining = res.Remaining
		out.Available = res.Available
		out.Reason = res.Reason
	}
	if err != nil {
		out.Granted = false
		if out.Reason == "" {
			out.Reason = dominv.FailureReasonPersistenceError
		}
	}
	return out
}

// record hands the result to the reconciliation side. It is best effort: the
// caller already has the result.
func (uc *SubmitOrderUseCase) record(ctx context.Context, res *domain.Result, email string) error {
	if uc.publisher == nil {
		return nil
	}
	var traceID string
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		traceID = sc.TraceID().String()
	}
	event := domain.NewRecordedEvent(*res, email, traceID)

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
		observability.L("endpoint", endpointRecorded),
		observability.L("outcome", outcome),
	)
	uc.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", endpointRecorded),
	)
	return err
}

func outcomeFor(s domain.Status) string {
	switch s {
	case domain.StatusCompleted:
		return "success"
	case domain.StatusCompletedNotificationDegraded:
		return "degraded"
	case domain.StatusInsufficientInventory:
		return "rejected"
	default:
		return "error"
	}
}
