package tracing

import (
	"context"
	"fmt"
	"testing"

	"promosms/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestInitializeDisabled(t *testing.T) {
	m := NewManager(models.TracingSettings{Enabled: false}, quietLogger())

	require.NoError(t, m.Initialize(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestInitializeStdoutExporter(t *testing.T) {
	m := NewManager(models.TracingSettings{
		Enabled:     true,
		UseStdout:   true,
		ServiceName: "promosms-test",
		SampleRate:  1.0,
	}, quietLogger())

	require.NoError(t, m.Initialize(context.Background()))
	defer func() {
		assert.NoError(t, m.Shutdown(context.Background()))
	}()

	ctx, span := StartSpan(context.Background(), "test-span")
	defer span.End()

	assert.NotEmpty(t, TraceID(ctx))
}

func TestRecordErrorOutsideSpanIsNoop(t *testing.T) {
	RecordError(context.Background(), fmt.Errorf("boom"))
}

func TestTraceIDOutsideSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
}

func TestShutdownWithoutInitialize(t *testing.T) {
	m := NewManager(models.TracingSettings{}, quietLogger())
	require.NoError(t, m.Shutdown(context.Background()))
}
