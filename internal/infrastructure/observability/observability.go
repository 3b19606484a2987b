package observability

import (
	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
)

type provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

// instruments maps metric keys to the service's registered instruments.
// Unknown keys resolve to a no-op so callers never nil-check.
type instruments struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

func lookup[T comparable](m map[observability.MetricKey]T, key observability.MetricKey, fallback func() T) T {
	var zero T
	if v, ok := m[key]; ok && v != zero {
		return v
	}
	return fallback()
}

func (m *instruments) Counter(name observability.MetricKey) observability.Counter {
	return lookup(m.counters, name, observability.NopCounter)
}

func (m *instruments) Histogram(name observability.MetricKey) observability.Histogram {
	return lookup(m.histograms, name, observability.NopHistogram)
}

// New assembles an Observability provider. Nil parts become no-ops, and with
// no instruments at all Metrics is the no-op provider.
func New(
	tracer observability.Tracer,
	logger observability.Logger,
	counters map[observability.MetricKey]observability.Counter,
	histograms map[observability.MetricKey]observability.Histogram,
) observability.Observability {
	p := &provider{
		tracer:  tracer,
		logger:  logger,
		metrics: observability.NopMetrics(),
	}
	if p.tracer == nil {
		p.tracer = observability.NopTracer()
	}
	if p.logger == nil {
		p.logger = observability.NopLogger()
	}

	counters = lo.OmitBy(counters, func(_ observability.MetricKey, c observability.Counter) bool { return c == nil })
	histograms = lo.OmitBy(histograms, func(_ observability.MetricKey, h observability.Histogram) bool { return h == nil })
	if len(counters) > 0 || len(histograms) > 0 {
		p.metrics = &instruments{counters: counters, histograms: histograms}
	}
	return p
}

// NewPrometheus registers the service's standard instrument set on reg and wraps it in a provider.
func NewPrometheus(tracer observability.Tracer, logger observability.Logger, reg prometrics.Registry) observability.Observability {
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: reg.Counter(string(observability.MUsecaseRequests),
			"Total number of use case invocations.", "use_case", "outcome"),
		observability.MExternalRequests: reg.Counter(string(observability.MExternalRequests),
			"Calls to external peers (mail relay, ledger storage, outbox).", "peer", "endpoint", "outcome"),
		observability.MHTTPRequests: reg.Counter(string(observability.MHTTPRequests),
			"HTTP requests served.", "method", "route", "status"),
		observability.MFulfillmentResults: reg.Counter(string(observability.MFulfillmentResults),
			"Fulfillment results by status.", "status"),
		observability.MInventoryRejections: reg.Counter(string(observability.MInventoryRejections),
			"Stock decrements that were not granted.", "reason"),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: reg.Histogram(string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.", prometheus.DefBuckets, "use_case"),
		observability.MExternalRequestDuration: reg.Histogram(string(observability.MExternalRequestDuration),
			"Duration of external calls in seconds.", prometheus.DefBuckets, "peer", "endpoint"),
		observability.MHTTPRequestDuration: reg.Histogram(string(observability.MHTTPRequestDuration),
			"Duration of HTTP requests in seconds.", prometheus.DefBuckets, "method", "route", "status"),
	}
	return New(tracer, logger, counters, histograms)
}

func (p *provider) Tracer() observability.Tracer   { return p.tracer }
func (p *provider) Logger() observability.Logger   { return p.logger }
func (p *provider) Metrics() observability.Metrics { return p.metrics }
