package observation

import "time"

// Registry is the collaborator an Observation is started against.
// It answers whether an observation is enabled, supplies the clock and the registered
// handlers, and materializes the timer a stopped observation records into.
type Registry interface {
	IsObservationEnabled(name string) bool
	Clock() Clock
	Handlers() []Handler
	Timer(name string, tags map[string]string) Timer
}

// ScopeMisuseReporter is an optional extension of Registry.
// When the Registry of an observation implements it, a Scope that is closed while the slot
// holds a different observation reports that before restoring the slot.
type ScopeMisuseReporter interface {
	ScopeClosedOutOfOrder(closing *Observation, current *Observation)
}

// Timer receives the durations of stopped observations.
// Every Record call adds one data point, so recording the same timer repeatedly is safe.
type Timer interface {
	Name() string
	Tags() map[string]string
	Record(duration time.Duration)
}
