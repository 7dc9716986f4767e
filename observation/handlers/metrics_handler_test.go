package handlers_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-observations-go/observation"
	"github.com/AntonStoeckl/dynamic-observations-go/observation/handlers"
	"github.com/AntonStoeckl/dynamic-observations-go/testutil/observation/testdoubles"
)

// plainMetricsCollector hides the contextual methods of the wrapped spy.
type plainMetricsCollector struct {
	spy *testdoubles.MetricsCollectorSpy
}

func (c plainMetricsCollector) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	c.spy.RecordDuration(metric, duration, labels)
}

func (c plainMetricsCollector) IncrementCounter(metric string, labels map[string]string) {
	c.spy.IncrementCounter(metric, labels)
}

func (c plainMetricsCollector) RecordValue(metric string, value float64, labels map[string]string) {
	c.spy.RecordValue(metric, value, labels)
}

func Test_NewMetricsHandler_RejectsNilCollector(t *testing.T) {
	handler, err := handlers.NewMetricsHandler(nil)

	assert.ErrorIs(t, err, handlers.ErrNilMetricsCollector)
	assert.Nil(t, handler)
}

func Test_MetricsHandler_CountsStartedFailedAndActive(t *testing.T) {
	metrics := testdoubles.NewMetricsCollectorSpy(true)
	handler, err := handlers.NewMetricsHandler(metrics)
	require.NoError(t, err)

	reg := newRegistry(t, testdoubles.NewManualClock(0), handler)

	first := observation.Start("svc.call", reg)
	second := observation.Start("svc.call", reg)
	assert.Equal(t, int64(2), handler.Active("svc.call"))

	second.Error(io.ErrUnexpectedEOF)
	second.Stop()
	first.Stop()

	assert.Equal(t, int64(0), handler.Active("svc.call"))
	assert.Equal(t, 2, metrics.CountRecordsForMetric(testdoubles.MetricKindCounter, "observation_started_total"))
	assert.True(t,
		metrics.HasRecordForMetric(testdoubles.MetricKindCounter, "observation_errors_total").
			WithLabel("observation", "svc.call").
			WithLabel("error_type", "*errors.errorString").
			Assert(),
	)

	gauge := metrics.GetValueRecords()
	require.Len(t, gauge, 4)
	values := make([]float64, 0, len(gauge))
	for _, record := range gauge {
		assert.Equal(t, "observation_active", record.Metric)
		values = append(values, record.Value)
	}
	assert.Equal(t, []float64{1, 2, 1, 0}, values)
}

func Test_MetricsHandler_UsesContextualCollectorWithParentContext(t *testing.T) {
	type requestKey struct{}

	metrics := testdoubles.NewMetricsCollectorSpy(true)
	handler, err := handlers.NewMetricsHandler(metrics)
	require.NoError(t, err)

	ctx := observation.NewContext()
	observation.Put[context.Context](ctx, context.WithValue(context.Background(), requestKey{}, "r-9"))

	observation.StartWithContext("svc.call", newRegistry(t, testdoubles.NewManualClock(0), handler), ctx).Stop()

	counters := metrics.GetCounterRecords()
	require.Len(t, counters, 1)
	require.NotNil(t, counters[0].Context)
	assert.Equal(t, "r-9", counters[0].Context.Value(requestKey{}))
}

func Test_MetricsHandler_FallsBackToPlainCollector(t *testing.T) {
	metrics := testdoubles.NewMetricsCollectorSpy(true)
	handler, err := handlers.NewMetricsHandler(plainMetricsCollector{spy: metrics})
	require.NoError(t, err)

	o := observation.Start("svc.call", newRegistry(t, testdoubles.NewManualClock(0), handler))
	o.Error(errors.New("boom"))
	o.Stop()

	assert.False(t, metrics.HasRecordForMetric(testdoubles.MetricKindCounter, "observation_started_total").WithContext().Assert())
	assert.True(t, metrics.HasRecordForMetric(testdoubles.MetricKindCounter, "observation_errors_total").Assert())
}

func Test_MetricsHandler_RepeatedStopDoesNotGoNegative(t *testing.T) {
	handler, err := handlers.NewMetricsHandler(testdoubles.NewMetricsCollectorSpy(false))
	require.NoError(t, err)

	o := observation.Start("svc.call", newRegistry(t, testdoubles.NewManualClock(0), handler))
	o.Stop()
	o.Stop()

	assert.Equal(t, int64(0), handler.Active("svc.call"))
}
