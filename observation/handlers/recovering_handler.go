package handlers

import (
	"fmt"
	"time"

	"github.com/AntonStoeckl/dynamic-observations-go/observation"
)

const (
	metricHandlerPanics   = "observation_handler_panics_total"
	logMsgHandlerPanicked = "observation handler panicked"
)

// RecoveringOption defines a functional option for configuring a RecoveringHandler.
type RecoveringOption func(*RecoveringHandler) error

// WithRecoveryLogger sets the logger recovered panics are reported to.
func WithRecoveryLogger(logger observation.Logger) RecoveringOption {
	return func(h *RecoveringHandler) error {
		h.logger = logger
		return nil
	}
}

// WithRecoveryMetrics sets the collector recovered panics are counted in.
func WithRecoveryMetrics(collector observation.MetricsCollector) RecoveringOption {
	return func(h *RecoveringHandler) error {
		h.metricsCollector = collector
		return nil
	}
}

// RecoveringHandler isolates the observed code from a misbehaving handler.
//
// Observations do not recover handler panics. Wrapping a handler in a RecoveringHandler
// recovers panics of the wrapped handler instead, reports them as an error log and as
// observation_handler_panics_total{handler, event}, and lets the observation continue.
// A panicking SupportsContext counts as not supporting the context.
type RecoveringHandler struct {
	delegate         observation.Handler
	name             string
	logger           observation.Logger
	metricsCollector observation.MetricsCollector
}

// NewRecoveringHandler wraps delegate.
func NewRecoveringHandler(delegate observation.Handler, options ...RecoveringOption) (*RecoveringHandler, error) {
	if delegate == nil {
		return nil, ErrNilDelegateHandler
	}

	h := &RecoveringHandler{
		delegate: delegate,
		name:     fmt.Sprintf("%T", delegate),
	}

	for _, option := range options {
		if err := option(h); err != nil {
			return nil, err
		}
	}

	return h, nil
}

// Delegate returns the wrapped handler.
func (h *RecoveringHandler) Delegate() observation.Handler {
	return h.delegate
}

// SupportsContext implements observation.Handler.
func (h *RecoveringHandler) SupportsContext(ctx *observation.Context) (supported bool) {
	defer h.recoverFrom(eventSupportsContext, ctx)

	return h.delegate.SupportsContext(ctx)
}

// OnStart implements observation.Handler.
func (h *RecoveringHandler) OnStart(o *observation.Observation, ctx *observation.Context) {
	defer h.recoverFrom(eventStart, ctx)

	h.delegate.OnStart(o, ctx)
}

// OnError implements observation.Handler.
func (h *RecoveringHandler) OnError(o *observation.Observation, ctx *observation.Context, err error) {
	defer h.recoverFrom(eventError, ctx)

	h.delegate.OnError(o, ctx, err)
}

// OnScopeOpened implements observation.Handler.
func (h *RecoveringHandler) OnScopeOpened(o *observation.Observation, ctx *observation.Context) {
	defer h.recoverFrom(eventScopeOpened, ctx)

	h.delegate.OnScopeOpened(o, ctx)
}

// OnScopeClosed implements observation.Handler.
func (h *RecoveringHandler) OnScopeClosed(o *observation.Observation, ctx *observation.Context) {
	defer h.recoverFrom(eventScopeClosed, ctx)

	h.delegate.OnScopeClosed(o, ctx)
}

// OnStop implements observation.Handler.
func (h *RecoveringHandler) OnStop(o *observation.Observation, ctx *observation.Context, timer observation.Timer, duration time.Duration) {
	defer h.recoverFrom(eventStop, ctx)

	h.delegate.OnStop(o, ctx, timer, duration)
}

// recoverFrom must be deferred directly by the handler method.
func (h *RecoveringHandler) recoverFrom(event string, ctx *observation.Context) {
	recovered := recover()
	if recovered == nil {
		return
	}

	if h.logger != nil {
		h.logger.Error(
			logMsgHandlerPanicked,
			attrHandler, h.name,
			attrEvent, event,
			attrObservation, ctx.Name(),
			attrPanic, fmt.Sprint(recovered),
		)
	}

	if h.metricsCollector != nil {
		h.metricsCollector.IncrementCounter(metricHandlerPanics, map[string]string{
			attrHandler: h.name,
			attrEvent:   event,
		})
	}
}

var _ observation.Handler = (*RecoveringHandler)(nil)
