package workerpresentation_test

import (
	"testing"

	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability/logctx"
	workerpresentation "github.com/Zhima-Mochi/textile-storefront/internal/presentation/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithEventContext(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zaplogger.Wrap(zap.New(core))

	ctx, logger := workerpresentation.WithEventContext(t.Context(), base, map[string]string{
		"event":    "fulfillment.recorded",
		"order_id": "PTM12345678",
		"empty":    "",
	})
	require.Same(t, logger, logctx.From(ctx))

	logger.Info("handled")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "fulfillment.recorded", fields["event"])
	assert.Equal(t, "PTM12345678", fields["order_id"])
	assert.NotEmpty(t, fields["event_id"])
	assert.NotContains(t, fields, "empty")
	assert.NotContains(t, fields, "trace_id")
}

func TestWithEventContext_ExtendsContextLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zaplogger.Wrap(zap.New(core))
	outer := base.With(observability.F("worker", "journal"))

	_, logger := workerpresentation.WithEventContext(logctx.With(t.Context(), outer), base, map[string]string{
		"event_id": "evt-1",
	})
	logger.Info("handled")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "journal", fields["worker"])
	assert.Equal(t, "evt-1", fields["event_id"])
}
