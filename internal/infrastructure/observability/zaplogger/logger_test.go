package zaplogger_test

import (
	"errors"
	"testing"

	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_WithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zaplogger.Wrap(zap.New(core))

	log.With(observability.F("order_id", "PTM00000001")).
		Warn("notification_degraded", observability.F("error", errors.New("dial tcp: timeout")))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "notification_degraded", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "PTM00000001", fields["order_id"])
	assert.Equal(t, "dial tcp: timeout", fields["error"])
}

func TestLogger_System(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	zaplogger.Wrap(zap.New(core)).System().Info("http_server_start")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, zaplogger.SystemTraceID, fields["trace_id"])
	assert.Equal(t, zaplogger.SystemSpanID, fields["span_id"])
}
