package observation

import "time"

// Handler reacts to the lifecycle events of observations.
//
// SupportsContext must not mutate the Context. It is evaluated once per observation,
// when the observation is started, to decide whether the handler takes part in it.
// The remaining methods are called synchronously, in registration order, on the goroutine
// that triggered the event. A panicking handler is not recovered; the panic reaches
// the caller of Start, Error, Stop, MakeCurrent or Scope.Close.
type Handler interface {
	SupportsContext(ctx *Context) bool
	OnStart(o *Observation, ctx *Context)
	OnError(o *Observation, ctx *Context, err error)
	OnScopeOpened(o *Observation, ctx *Context)
	OnScopeClosed(o *Observation, ctx *Context)
	OnStop(o *Observation, ctx *Context, timer Timer, duration time.Duration)
}

// BaseHandler can be embedded to get no-op OnError, OnScopeOpened and OnScopeClosed.
type BaseHandler struct{}

// OnError does nothing.
func (BaseHandler) OnError(*Observation, *Context, error) {}

// OnScopeOpened does nothing.
func (BaseHandler) OnScopeOpened(*Observation, *Context) {}

// OnScopeClosed does nothing.
func (BaseHandler) OnScopeClosed(*Observation, *Context) {}

// FirstMatchingCompositeHandler forwards every event to the first child that supports the context.
// Children are re-evaluated on every call; if none matches, the event is dropped.
type FirstMatchingCompositeHandler struct {
	handlers []Handler
}

// NewFirstMatchingCompositeHandler creates a composite over handlers, in the given order.
func NewFirstMatchingCompositeHandler(handlers ...Handler) *FirstMatchingCompositeHandler {
	return &FirstMatchingCompositeHandler{handlers: append([]Handler(nil), handlers...)}
}

// Handlers returns a copy of the children.
func (h *FirstMatchingCompositeHandler) Handlers() []Handler {
	return append([]Handler(nil), h.handlers...)
}

// SupportsContext reports whether any child supports ctx.
func (h *FirstMatchingCompositeHandler) SupportsContext(ctx *Context) bool {
	_, found := h.firstMatching(ctx)
	return found
}

// OnStart forwards to the first matching child.
func (h *FirstMatchingCompositeHandler) OnStart(o *Observation, ctx *Context) {
	if handler, found := h.firstMatching(ctx); found {
		handler.OnStart(o, ctx)
	}
}

// OnError forwards to the first matching child.
func (h *FirstMatchingCompositeHandler) OnError(o *Observation, ctx *Context, err error) {
	if handler, found := h.firstMatching(ctx); found {
		handler.OnError(o, ctx, err)
	}
}

// OnScopeOpened forwards to the first matching child.
func (h *FirstMatchingCompositeHandler) OnScopeOpened(o *Observation, ctx *Context) {
	if handler, found := h.firstMatching(ctx); found {
		handler.OnScopeOpened(o, ctx)
	}
}

// OnScopeClosed forwards to the first matching child.
func (h *FirstMatchingCompositeHandler) OnScopeClosed(o *Observation, ctx *Context) {
	if handler, found := h.firstMatching(ctx); found {
		handler.OnScopeClosed(o, ctx)
	}
}

// OnStop forwards to the first matching child.
func (h *FirstMatchingCompositeHandler) OnStop(o *Observation, ctx *Context, timer Timer, duration time.Duration) {
	if handler, found := h.firstMatching(ctx); found {
		handler.OnStop(o, ctx, timer, duration)
	}
}

func (h *FirstMatchingCompositeHandler) firstMatching(ctx *Context) (Handler, bool) {
	for _, handler := range h.handlers {
		if handler.SupportsContext(ctx) {
			return handler, true
		}
	}

	return nil, false
}

// AllMatchingCompositeHandler forwards every event to all children that support the context,
// in registration order. Children are re-evaluated on every call.
type AllMatchingCompositeHandler struct {
	handlers []Handler
}

// NewAllMatchingCompositeHandler creates a composite over handlers, in the given order.
func NewAllMatchingCompositeHandler(handlers ...Handler) *AllMatchingCompositeHandler {
	return &AllMatchingCompositeHandler{handlers: append([]Handler(nil), handlers...)}
}

// Handlers returns a copy of the children.
func (h *AllMatchingCompositeHandler) Handlers() []Handler {
	return append([]Handler(nil), h.handlers...)
}

// SupportsContext reports whether any child supports ctx.
func (h *AllMatchingCompositeHandler) SupportsContext(ctx *Context) bool {
	for _, handler := range h.handlers {
		if handler.SupportsContext(ctx) {
			return true
		}
	}

	return false
}

// OnStart forwards to every matching child.
func (h *AllMatchingCompositeHandler) OnStart(o *Observation, ctx *Context) {
	h.forEachMatching(ctx, func(handler Handler) { handler.OnStart(o, ctx) })
}

// OnError forwards to every matching child.
func (h *AllMatchingCompositeHandler) OnError(o *Observation, ctx *Context, err error) {
	h.forEachMatching(ctx, func(handler Handler) { handler.OnError(o, ctx, err) })
}

// OnScopeOpened forwards to every matching child.
func (h *AllMatchingCompositeHandler) OnScopeOpened(o *Observation, ctx *Context) {
	h.forEachMatching(ctx, func(handler Handler) { handler.OnScopeOpened(o, ctx) })
}

// OnScopeClosed forwards to every matching child.
func (h *AllMatchingCompositeHandler) OnScopeClosed(o *Observation, ctx *Context) {
	h.forEachMatching(ctx, func(handler Handler) { handler.OnScopeClosed(o, ctx) })
}

// OnStop forwards to every matching child.
func (h *AllMatchingCompositeHandler) OnStop(o *Observation, ctx *Context, timer Timer, duration time.Duration) {
	h.forEachMatching(ctx, func(handler Handler) { handler.OnStop(o, ctx, timer, duration) })
}

func (h *AllMatchingCompositeHandler) forEachMatching(ctx *Context, call func(Handler)) {
	for _, handler := range h.handlers {
		if handler.SupportsContext(ctx) {
			call(handler)
		}
	}
}

// Ensure the composites implement Handler.
var (
	_ Handler = (*FirstMatchingCompositeHandler)(nil)
	_ Handler = (*AllMatchingCompositeHandler)(nil)
)
