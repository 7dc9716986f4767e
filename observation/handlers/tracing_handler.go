package handlers

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/AntonStoeckl/dynamic-observations-go/observation"
)

// tracingState is the span of one observation, kept in its handler Context between OnStart and OnStop,
// together with the parent context.Context the span replaced.
type tracingState struct {
	span      observation.SpanContext
	spanCtx   context.Context
	parent    context.Context
	hasParent bool
}

// TracingHandler emits one span per observation through an observation.TracingCollector.
//
// The span is named by the observation's display name and started under the parent context.Context
// stored in the handler Context. The span's context replaces that parent, so handlers registered after
// the TracingHandler log and record with trace correlation. Errors set the span status; Stop finishes
// the span with the high cardinality tags and the duration and restores the parent context.
type TracingHandler struct {
	observation.BaseHandler
	collector observation.TracingCollector
}

// NewTracingHandler creates a TracingHandler writing to collector.
func NewTracingHandler(collector observation.TracingCollector) (*TracingHandler, error) {
	if collector == nil {
		return nil, ErrNilTracingCollector
	}

	return &TracingHandler{collector: collector}, nil
}

// SupportsContext implements observation.Handler. Every observation is traced.
func (h *TracingHandler) SupportsContext(*observation.Context) bool {
	return true
}

// OnStart implements observation.Handler.
func (h *TracingHandler) OnStart(_ *observation.Observation, ctx *observation.Context) {
	observation.Remove[stoppedSpanContext](ctx)

	attrs := ctx.LowCardinalityTags()
	attrs[attrObservation] = ctx.Name()

	parent, hasParent := observation.Get[context.Context](ctx)

	spanCtx, span := h.collector.StartSpan(parentContext(ctx), ctx.DisplayName(), attrs)
	if span == nil {
		return
	}

	observation.Put(ctx, &tracingState{span: span, spanCtx: spanCtx, parent: parent, hasParent: hasParent})
	if spanCtx != nil {
		observation.Put[context.Context](ctx, spanCtx)
	}
}

// OnError implements observation.Handler.
func (h *TracingHandler) OnError(_ *observation.Observation, ctx *observation.Context, err error) {
	state, found := observation.Get[*tracingState](ctx)
	if !found {
		return
	}

	state.span.SetStatus(statusError)
	state.span.AddAttribute(attrErrorType, errorType(err))
	state.span.AddAttribute(attrError, errorMessage(err))
}

// OnStop implements observation.Handler.
func (h *TracingHandler) OnStop(_ *observation.Observation, ctx *observation.Context, _ observation.Timer, duration time.Duration) {
	state, found := observation.Remove[*tracingState](ctx)
	if !found {
		return
	}

	attrs := make(map[string]string)
	maps.Copy(attrs, ctx.HighCardinalityTags())
	attrs[attrDurationMS] = fmt.Sprintf("%.2f", toMilliseconds(duration))

	if contextualName := ctx.ContextualName(); contextualName != "" {
		attrs[attrContextualName] = contextualName
	}

	status := statusSuccess
	if err := ctx.Error(); err != nil {
		status = statusError
		attrs[attrErrorType] = errorType(err)
	}

	h.collector.FinishSpan(state.span, status, attrs)
	h.restoreParent(ctx, state)
}

func (h *TracingHandler) restoreParent(ctx *observation.Context, state *tracingState) {
	if state.spanCtx == nil {
		return
	}

	observation.Put(ctx, stoppedSpanContext{ctx: state.spanCtx})

	if state.hasParent {
		observation.Put[context.Context](ctx, state.parent)
		return
	}

	observation.Remove[context.Context](ctx)
}

var _ observation.Handler = (*TracingHandler)(nil)
