// Package outbox is the in-process event bus between use cases and workers.
package outbox

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	domoutbox "github.com/Zhima-Mochi/textile-storefront/internal/domain/outbox"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability/logctx"
)

const (
	componentOutbox = "outbox"
	handlerPeer     = "outbox_handler"

	defaultQueueSize      = 1024
	defaultConcurrency    = 8
	defaultHandlerTimeout = 30 * time.Second
)

// Bus fans events out to subscribers on a background loop. It is not durable:
// events still queued when the process dies are lost, which is why
// fulfillment results are also returned synchronously to the caller.
type Bus struct {
	mu          sync.RWMutex
	subs        map[string][]domoutbox.Handler
	queue       chan domoutbox.Event
	closeMu     sync.RWMutex
	closed      bool
	startOnce   sync.Once
	stopOnce    sync.Once
	loop        sync.WaitGroup
	concurrency int
	timeout     time.Duration

	log          observability.Logger
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

var (
	_ domoutbox.Publisher  = (*Bus)(nil)
	_ domoutbox.Subscriber = (*Bus)(nil)
)

func NewBus(tel observability.Observability) *Bus {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Bus{
		subs:         make(map[string][]domoutbox.Handler),
		queue:        make(chan domoutbox.Event, defaultQueueSize),
		concurrency:  defaultConcurrency,
		timeout:      defaultHandlerTimeout,
		log:          tel.Logger().With(observability.F("component", componentOutbox)),
		extCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		extHistogram: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

func (b *Bus) Subscribe(eventName string, h domoutbox.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

// Start launches the dispatch loop. Handlers receive contexts detached from ctx.
func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		b.loop.Add(1)
		go b.dispatchLoop(context.WithoutCancel(ctx))
		logctx.FromOr(ctx, b.log).Info("event_bus_started")
	})
}

// Stop closes the queue and waits for queued events to be handled, or for ctx.
func (b *Bus) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		b.closeMu.Lock()
		b.closed = true
		close(b.queue)
		b.closeMu.Unlock()

		drained := make(chan struct{})
		go func() {
			b.loop.Wait()
			close(drained)
		}()

		logger := logctx.FromOr(ctx, b.log)
		select {
		case <-drained:
			logger.Info("event_bus_stopped")
		case <-ctx.Done():
			logger.Warn("event_bus_stop_timeout", observability.F("pending", len(b.queue)))
		}
	})
}

// ErrClosed is returned by Publish after Stop.
var ErrClosed = errors.New("outbox: bus closed")

func (b *Bus) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}
	logger := logctx.FromOr(ctx, b.log).With(observability.F("event", e.EventName()))

	// The read lock keeps Stop from closing the queue mid-send.
	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	if b.closed {
		logger.Warn("event_enqueue_after_stop")
		return ErrClosed
	}

	select {
	case b.queue <- e:
		logger.Debug("event_enqueued")
		return nil
	case <-ctx.Done():
		logger.Warn("event_enqueue_aborted", observability.F("error", ctx.Err()))
		return ctx.Err()
	}
}

func (b *Bus) dispatchLoop(ctx context.Context) {
	defer b.loop.Done()
	for e := range b.queue {
		b.fanout(ctx, e)
	}
}

func (b *Bus) fanout(ctx context.Context, e domoutbox.Event) {
	name := e.EventName()

	b.mu.RLock()
	handlers := append([]domoutbox.Handler(nil), b.subs[name]...)
	b.mu.RUnlock()

	logger := b.log.With(observability.F("event", name))
	if len(handlers) == 0 {
		logger.Debug("event_dropped_no_subscriber")
		return
	}

	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for _, h := range handlers {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			start := time.Now()
			outcome := "success"
			defer func() {
				if r := recover(); r != nil {
					outcome = "panic"
					logger.Error("event_handler_panic",
						observability.F("panic", r),
						observability.F("stack", string(debug.Stack())),
					)
				}
				b.observe(name, outcome, start)
				<-sem
				wg.Done()
			}()

			hctx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()
			hctx = logctx.With(hctx, logger)
			if err := h(hctx, e); err != nil {
				outcome = "error"
				logger.Warn("event_handler_error", observability.F("error", err))
			}
		}()
	}

	wg.Wait()
	logger.Debug("event_fanned_out", observability.F("handlers", len(handlers)))
}

func (b *Bus) observe(endpoint, outcome string, start time.Time) {
	b.extCounter.Add(1,
		observability.L("peer", handlerPeer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	b.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", handlerPeer),
		observability.L("endpoint", endpoint),
	)
}
