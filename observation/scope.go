package observation

import "context"

// Slot holds the current observation of one goroutine.
//
// Every goroutine that opens scopes needs its own Slot; a Slot must never be used by two
// goroutines. Slots are mutated only by opening and closing a Scope.
type Slot struct {
	current *Observation
}

// NewSlot creates an empty Slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Current returns the innermost observation made current on this slot, or nil if there is none.
func (s *Slot) Current() *Observation {
	if s == nil {
		return nil
	}

	return s.current
}

// Scope marks an observation as the current one of a Slot until Close is called.
type Scope struct {
	observation *Observation
	previous    *Observation
	slot        *Slot
}

func openScope(o *Observation, slot *Slot) *Scope {
	scope := &Scope{
		observation: o,
		slot:        slot,
	}

	if slot != nil {
		scope.previous = slot.current
		slot.current = o
	}

	return scope
}

// Observation returns the observation this scope made current.
func (s *Scope) Observation() *Observation {
	return s.observation
}

// Previous returns the observation that was current when the scope was opened, or nil.
func (s *Scope) Previous() *Observation {
	return s.previous
}

// Close calls OnScopeClosed on the observation's kept handlers and restores the slot to the
// observation that was current when the scope was opened.
//
// The slot is restored unconditionally. Closing scopes out of order leaves the slot pointing at
// whatever the closing scope had captured; if the slot does not hold this scope's observation at
// close time and the registry implements ScopeMisuseReporter, the misuse is reported first.
func (s *Scope) Close() {
	o := s.observation

	for _, handler := range o.handlers {
		handler.OnScopeClosed(o, o.context)
	}

	if s.slot == nil {
		return
	}

	if current := s.slot.current; current != o {
		if reporter, ok := o.registry.(ScopeMisuseReporter); ok {
			reporter.ScopeClosedOutOfOrder(o, current)
		}
	}

	s.slot.current = s.previous
}

type slotContextKey struct{}

// ContextWithSlot returns a copy of ctx that carries slot.
func ContextWithSlot(ctx context.Context, slot *Slot) context.Context {
	return context.WithValue(ctx, slotContextKey{}, slot)
}

// ContextWithNewSlot returns a copy of ctx carrying a fresh, empty Slot.
// Use it before handing a context to a new goroutine that will open scopes of its own.
func ContextWithNewSlot(ctx context.Context) (context.Context, *Slot) {
	slot := NewSlot()
	return ContextWithSlot(ctx, slot), slot
}

// SlotFromContext returns the Slot carried by ctx, or nil.
func SlotFromContext(ctx context.Context) *Slot {
	slot, _ := ctx.Value(slotContextKey{}).(*Slot)
	return slot
}

// CurrentFromContext returns the current observation of the Slot carried by ctx, or nil.
func CurrentFromContext(ctx context.Context) *Observation {
	return SlotFromContext(ctx).Current()
}
