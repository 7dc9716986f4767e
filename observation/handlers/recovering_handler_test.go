package handlers_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-observations-go/observation"
	"github.com/AntonStoeckl/dynamic-observations-go/observation/handlers"
	"github.com/AntonStoeckl/dynamic-observations-go/testutil/observation/testdoubles"
)

func Test_NewRecoveringHandler_RejectsNilDelegate(t *testing.T) {
	handler, err := handlers.NewRecoveringHandler(nil)

	assert.ErrorIs(t, err, handlers.ErrNilDelegateHandler)
	assert.Nil(t, handler)
}

func Test_RecoveringHandler_IsolatesPanickingDelegate(t *testing.T) {
	log := testdoubles.NewHandlerEventLog()
	panicking := testdoubles.NewHandlerSpy("panicking", true, log).PanicOn(testdoubles.EventStop)
	healthy := testdoubles.NewHandlerSpy("healthy", true, log)

	logSpy := testdoubles.NewLogHandlerSpy(false)
	metrics := testdoubles.NewMetricsCollectorSpy(true)
	recovering, err := handlers.NewRecoveringHandler(
		panicking,
		handlers.WithRecoveryLogger(slog.New(logSpy)),
		handlers.WithRecoveryMetrics(metrics),
	)
	require.NoError(t, err)
	assert.Same(t, panicking, recovering.Delegate())

	o := observation.Start("svc.call", newRegistry(t, testdoubles.NewManualClock(0), recovering, healthy))

	assert.NotPanics(t, o.Stop)
	assert.Equal(t, []string{"panicking", "healthy"}, log.HandlerNamesFor(testdoubles.EventStop),
		"handlers after the recovered one are still called")

	record, found := logSpy.FindLog(slog.LevelError, "observation handler panicked")
	require.True(t, found)
	event, _ := testdoubles.AttrValue(record, "event")
	assert.Equal(t, "stop", event.String())
	panicValue, _ := testdoubles.AttrValue(record, "panic")
	assert.Equal(t, "panicking", panicValue.String())
	handlerName, _ := testdoubles.AttrValue(record, "handler")
	assert.Equal(t, "*testdoubles.HandlerSpy", handlerName.String())

	assert.True(t,
		metrics.HasRecordForMetric(testdoubles.MetricKindCounter, "observation_handler_panics_total").
			WithLabel("event", "stop").
			Assert(),
	)
}

func Test_RecoveringHandler_ForwardsEveryEvent(t *testing.T) {
	delegate := testdoubles.NewHandlerSpy("delegate", true, nil)
	recovering, err := handlers.NewRecoveringHandler(delegate)
	require.NoError(t, err)

	o := observation.Start("svc.call", newRegistry(t, testdoubles.NewManualClock(0), recovering))
	o.Error(errors.New("boom"))
	o.MakeCurrent(observation.NewSlot()).Close()
	o.Stop()

	assert.Equal(t,
		[]string{
			testdoubles.EventStart,
			testdoubles.EventError,
			testdoubles.EventScopeOpened,
			testdoubles.EventScopeClosed,
			testdoubles.EventStop,
		},
		delegate.Log().Kinds(),
	)
}

func Test_RecoveringHandler_PanickingSupportsContextMeansUnsupported(t *testing.T) {
	delegate := testdoubles.NewHandlerSpyWithPredicate("delegate", func(*observation.Context) bool {
		panic("predicate failed")
	}, nil)
	recovering, err := handlers.NewRecoveringHandler(delegate)
	require.NoError(t, err)

	var supported bool
	assert.NotPanics(t, func() {
		supported = recovering.SupportsContext(observation.NewContext())
	})
	assert.False(t, supported)
}

func Test_RecoveringHandler_WithoutLoggerOrMetricsStillRecovers(t *testing.T) {
	delegate := testdoubles.NewHandlerSpy("delegate", true, nil).PanicOn(testdoubles.EventStart)
	recovering, err := handlers.NewRecoveringHandler(delegate)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		observation.Start("svc.call", newRegistry(t, testdoubles.NewManualClock(0), recovering)).Stop()
	})
	assert.Equal(t, 1, delegate.Count(testdoubles.EventStop))
}
