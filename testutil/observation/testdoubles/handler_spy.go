package testdoubles

import (
	"sync"
	"time"

	"github.com/AntonStoeckl/dynamic-observations-go/observation"
)

// Handler event kinds recorded by HandlerSpy.
const (
	EventStart       = "start"
	EventError       = "error"
	EventScopeOpened = "scope_opened"
	EventScopeClosed = "scope_closed"
	EventStop        = "stop"
)

// HandlerEvent is one recorded handler call.
type HandlerEvent struct {
	Handler     string
	Kind        string
	Observation *observation.Observation
	Err         error
	Timer       observation.Timer
	Duration    time.Duration
	// Current is the current observation of the spy's watched slot at call time, if one is watched.
	Current *observation.Observation
}

// HandlerEventLog collects the events of several HandlerSpy instances in call order.
type HandlerEventLog struct {
	events []HandlerEvent
	mu     sync.Mutex
}

// NewHandlerEventLog creates an empty HandlerEventLog.
func NewHandlerEventLog() *HandlerEventLog {
	return &HandlerEventLog{}
}

func (l *HandlerEventLog) append(event HandlerEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, event)
}

// Events returns a copy of all recorded events.
func (l *HandlerEventLog) Events() []HandlerEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]HandlerEvent(nil), l.events...)
}

// HandlerNamesFor returns the names of the handlers that recorded an event of kind, in call order.
func (l *HandlerEventLog) HandlerNamesFor(kind string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	names := make([]string, 0)
	for _, event := range l.events {
		if event.Kind == kind {
			names = append(names, event.Handler)
		}
	}

	return names
}

// Kinds returns the kinds of all recorded events, in call order.
func (l *HandlerEventLog) Kinds() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	kinds := make([]string, 0, len(l.events))
	for _, event := range l.events {
		kinds = append(kinds, event.Kind)
	}

	return kinds
}

// Reset clears all recorded events.
func (l *HandlerEventLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = l.events[:0]
}

// HandlerSpy is an observation.Handler that records its calls into a HandlerEventLog.
type HandlerSpy struct {
	name          string
	supports      func(ctx *observation.Context) bool
	log           *HandlerEventLog
	panicOn       string
	watchedSlot   *observation.Slot
	supportsCalls int
	mu            sync.Mutex
}

// NewHandlerSpy creates a spy whose SupportsContext always returns supports.
// A nil log gives the spy a log of its own.
func NewHandlerSpy(name string, supports bool, log *HandlerEventLog) *HandlerSpy {
	return NewHandlerSpyWithPredicate(name, func(*observation.Context) bool { return supports }, log)
}

// NewHandlerSpyWithPredicate creates a spy whose SupportsContext delegates to predicate.
func NewHandlerSpyWithPredicate(name string, predicate func(ctx *observation.Context) bool, log *HandlerEventLog) *HandlerSpy {
	if log == nil {
		log = NewHandlerEventLog()
	}

	return &HandlerSpy{
		name:     name,
		supports: predicate,
		log:      log,
	}
}

// PanicOn makes the spy panic with its name after recording an event of kind.
func (s *HandlerSpy) PanicOn(kind string) *HandlerSpy {
	s.panicOn = kind
	return s
}

// WatchSlot makes the spy capture slot's current observation with every event.
func (s *HandlerSpy) WatchSlot(slot *observation.Slot) *HandlerSpy {
	s.watchedSlot = slot
	return s
}

// Name returns the spy's name.
func (s *HandlerSpy) Name() string {
	return s.name
}

// Log returns the log the spy records into.
func (s *HandlerSpy) Log() *HandlerEventLog {
	return s.log
}

// SupportsContext implements observation.Handler.
func (s *HandlerSpy) SupportsContext(ctx *observation.Context) bool {
	s.mu.Lock()
	s.supportsCalls++
	s.mu.Unlock()

	return s.supports(ctx)
}

// SupportsContextCalls returns how often SupportsContext was called.
func (s *HandlerSpy) SupportsContextCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.supportsCalls
}

// OnStart implements observation.Handler.
func (s *HandlerSpy) OnStart(o *observation.Observation, _ *observation.Context) {
	s.record(HandlerEvent{Kind: EventStart, Observation: o})
}

// OnError implements observation.Handler.
func (s *HandlerSpy) OnError(o *observation.Observation, _ *observation.Context, err error) {
	s.record(HandlerEvent{Kind: EventError, Observation: o, Err: err})
}

// OnScopeOpened implements observation.Handler.
func (s *HandlerSpy) OnScopeOpened(o *observation.Observation, _ *observation.Context) {
	s.record(HandlerEvent{Kind: EventScopeOpened, Observation: o})
}

// OnScopeClosed implements observation.Handler.
func (s *HandlerSpy) OnScopeClosed(o *observation.Observation, _ *observation.Context) {
	s.record(HandlerEvent{Kind: EventScopeClosed, Observation: o})
}

// OnStop implements observation.Handler.
func (s *HandlerSpy) OnStop(o *observation.Observation, _ *observation.Context, timer observation.Timer, duration time.Duration) {
	s.record(HandlerEvent{Kind: EventStop, Observation: o, Timer: timer, Duration: duration})
}

// Events returns a copy of the events this spy recorded.
func (s *HandlerSpy) Events() []HandlerEvent {
	own := make([]HandlerEvent, 0)
	for _, event := range s.log.Events() {
		if event.Handler == s.name {
			own = append(own, event)
		}
	}

	return own
}

// EventsOfKind returns the events of kind this spy recorded.
func (s *HandlerSpy) EventsOfKind(kind string) []HandlerEvent {
	matching := make([]HandlerEvent, 0)
	for _, event := range s.Events() {
		if event.Kind == kind {
			matching = append(matching, event)
		}
	}

	return matching
}

// Count returns how many events of kind this spy recorded.
func (s *HandlerSpy) Count(kind string) int {
	return len(s.EventsOfKind(kind))
}

func (s *HandlerSpy) record(event HandlerEvent) {
	event.Handler = s.name
	if s.watchedSlot != nil {
		event.Current = s.watchedSlot.Current()
	}

	s.log.append(event)

	if s.panicOn == event.Kind {
		panic(s.name)
	}
}

var _ observation.Handler = (*HandlerSpy)(nil)
