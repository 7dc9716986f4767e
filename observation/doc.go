// Package observation provides the core of the instrumentation-context propagation engine.
//
// An Observation marks the start and the end of a logical unit of work. Handlers registered on a
// Registry react to its lifecycle events (start, scope opened, scope closed, error, stop), and
// a Scope publishes it as the current observation of a goroutine's Slot so that code further
// down the call chain can find it.
//
// Key types:
//   - Observation: the unit of work; started with Start or StartWithContext
//   - Context: per-observation, type-keyed data shared between handlers
//   - Handler: pluggable reaction to lifecycle events, plus the first-matching and
//     all-matching composite handlers
//   - Scope and Slot: save/restore of the goroutine-local current observation
//   - Registry, Clock, Timer: the collaborators an Observation is started against
//
// Common usage pattern:
//
//	o := observation.Start("svc.call", registry).
//		LowCardinalityTag("method", "GET")
//
//	scope := o.MakeCurrent(slot)
//	err := doWork(ctx)
//	scope.Close()
//
//	if err != nil {
//		o.Error(err)
//	}
//	o.Stop()
//
// Disabled observations are represented by Noop, which absorbs every call, so call sites never
// branch on enablement.
package observation
