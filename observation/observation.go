package observation

import (
	"fmt"
	"time"
)

// Observation records one logical unit of work: its name, its monotonic start time, the handler
// Context, and the handlers that were applicable when it started.
//
// The handler set is computed once by Start and never re-filtered, even if handlers are registered
// or removed later. Stop must be called exactly once; a second call records the duration again.
//
// An Observation may be handed to another goroutine, but it does not synchronize itself:
// the hand-off (channel, WaitGroup, ...) must establish the happens-before relationship.
type Observation struct {
	name      string
	registry  Registry
	clock     Clock
	startTime time.Duration
	context   *Context
	handlers  []Handler
}

// noop is the shared disabled observation. It has no registry and no handlers.
var noop = &Observation{}

// Noop returns the observation returned for disabled names. All of its methods are safe no-ops,
// except MakeCurrent, which still opens a working Scope.
func Noop() *Observation {
	return noop
}

// Start starts an observation with a new, empty Context.
func Start(name string, registry Registry) *Observation {
	return StartWithContext(name, registry, NewContext())
}

// StartWithContext starts an observation that owns ctx.
//
// If registry is nil, ctx is nil, or the registry reports the name as disabled, Noop is returned
// and no handler is called. Otherwise the start time is read from the registry's clock, the
// registered handlers that support ctx are kept in registration order, and OnStart is called on each.
func StartWithContext(name string, registry Registry, ctx *Context) *Observation {
	if registry == nil || ctx == nil || !registry.IsObservationEnabled(name) {
		return noop
	}

	ctx.name = name
	clock := registry.Clock()

	o := &Observation{
		name:      name,
		registry:  registry,
		clock:     clock,
		startTime: clock.Now(),
		context:   ctx,
	}

	for _, handler := range registry.Handlers() {
		if handler.SupportsContext(ctx) {
			o.handlers = append(o.handlers, handler)
		}
	}

	for _, handler := range o.handlers {
		handler.OnStart(o, ctx)
	}

	return o
}

// IsNoop reports whether o is the disabled observation. A nil *Observation counts as disabled.
func (o *Observation) IsNoop() bool {
	return o == nil || o.registry == nil
}

// Name returns the observation name. It is empty for Noop.
func (o *Observation) Name() string {
	if o.IsNoop() {
		return ""
	}

	return o.name
}

// StartTime returns the clock reading taken when the observation started.
func (o *Observation) StartTime() time.Duration {
	if o.IsNoop() {
		return 0
	}

	return o.startTime
}

// Context returns the handler Context. Noop hands out a fresh, detached Context on every call.
func (o *Observation) Context() *Context {
	if o.IsNoop() {
		return NewContext()
	}

	return o.context
}

// Handlers returns a copy of the handlers kept at start.
func (o *Observation) Handlers() []Handler {
	if o.IsNoop() {
		return nil
	}

	return append([]Handler(nil), o.handlers...)
}

// LowCardinalityTag adds a tag that becomes a dimension of the timer recorded on Stop.
func (o *Observation) LowCardinalityTag(key, value string) *Observation {
	if !o.IsNoop() {
		o.context.AddLowCardinalityTag(key, value)
	}

	return o
}

// HighCardinalityTag adds a tag that only handlers see.
func (o *Observation) HighCardinalityTag(key, value string) *Observation {
	if !o.IsNoop() {
		o.context.AddHighCardinalityTag(key, value)
	}

	return o
}

// ContextualName sets the name override on the Context.
func (o *Observation) ContextualName(name string) *Observation {
	if !o.IsNoop() {
		o.context.SetContextualName(name)
	}

	return o
}

// Error reports err to every kept handler. The observation keeps running; Error may be called
// any number of times before Stop.
func (o *Observation) Error(err error) {
	if o.IsNoop() {
		return
	}

	o.context.err = err

	for _, handler := range o.handlers {
		handler.OnError(o, o.context, err)
	}
}

// Stop computes the elapsed time, records it into the timer the registry materializes for the
// observation name and its low cardinality tags, and calls OnStop on every kept handler.
//
// Stop is not guarded against repeated calls: each call records one more data point.
func (o *Observation) Stop() {
	if o.IsNoop() {
		return
	}

	duration := o.clock.Now() - o.startTime

	timer := o.registry.Timer(o.name, o.context.LowCardinalityTags())
	timer.Record(duration)

	for _, handler := range o.handlers {
		handler.OnStop(o, o.context, timer, duration)
	}
}

// MakeCurrent calls OnScopeOpened on every kept handler and then publishes o as the current
// observation of slot. The returned Scope must be closed on the same goroutine, in reverse
// order of opening, typically with defer.
//
// A nil slot opens a Scope without publishing anything.
func (o *Observation) MakeCurrent(slot *Slot) *Scope {
	if o == nil {
		o = noop
	}

	for _, handler := range o.handlers {
		handler.OnScopeOpened(o, o.context)
	}

	return openScope(o, slot)
}

// Observe runs fn with o as the current observation of slot and stops o afterwards.
// An error returned by fn is reported through Error and returned. A panic in fn is reported
// through Error and re-raised after the scope was closed and the observation stopped.
func (o *Observation) Observe(slot *Slot, fn func() error) (err error) {
	scope := o.MakeCurrent(slot)

	defer func() {
		recovered := recover()
		if recovered != nil {
			o.Error(fmt.Errorf("%w: %v", ErrObservedFunctionPanicked, recovered))
		}

		scope.Close()
		o.Stop()

		if recovered != nil {
			panic(recovered)
		}
	}()

	if err = fn(); err != nil {
		o.Error(err)
	}

	return err
}

// String returns the observation name for logging.
func (o *Observation) String() string {
	if o.IsNoop() {
		return "noop"
	}

	return o.name
}
