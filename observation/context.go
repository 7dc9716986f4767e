package observation

import "maps"

// Context carries the auxiliary data handlers share during one observation.
//
// Values are keyed by their Go type: there is at most one value per type, and the
// generic functions Put, Get, Remove, GetOrDefault, ComputeIfAbsent and Has are
// the typed accessors. Call sites that need a richer context store additional typed
// values, for example the incoming *http.Request or the parent context.Context.
//
// A Context is owned by exactly one Observation and is not safe for concurrent mutation.
type Context struct {
	name                string
	contextualName      string
	err                 error
	values              map[any]any
	lowCardinalityTags  map[string]string
	highCardinalityTags map[string]string
}

// typeKey is the map key for values of type T. Two keys are equal iff their type arguments are identical.
type typeKey[T any] struct{}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{}
}

// Put stores value as the single value of type T, replacing any previous one.
func Put[T any](c *Context, value T) {
	if c.values == nil {
		c.values = make(map[any]any)
	}

	c.values[typeKey[T]{}] = value
}

// Get returns the value of type T and whether one was stored.
func Get[T any](c *Context) (T, bool) {
	value, ok := c.values[typeKey[T]{}]
	if !ok {
		var zero T
		return zero, false
	}

	typed, _ := value.(T) // nil stored for an interface type T
	return typed, true
}

// Has reports whether a value of type T is stored.
func Has[T any](c *Context) bool {
	_, ok := c.values[typeKey[T]{}]
	return ok
}

// Remove deletes the value of type T and returns it.
func Remove[T any](c *Context) (T, bool) {
	value, ok := Get[T](c)
	if ok {
		delete(c.values, typeKey[T]{})
	}

	return value, ok
}

// GetOrDefault returns the value of type T, or fallback if none was stored.
func GetOrDefault[T any](c *Context, fallback T) T {
	if value, ok := Get[T](c); ok {
		return value
	}

	return fallback
}

// ComputeIfAbsent returns the stored value of type T. If there is none, supplier is called
// once, its result is stored and returned.
func ComputeIfAbsent[T any](c *Context, supplier func() T) T {
	if value, ok := Get[T](c); ok {
		return value
	}

	value := supplier()
	Put(c, value)

	return value
}

// Clear removes all typed values. Name, tags and the recorded error are kept.
func (c *Context) Clear() {
	clear(c.values)
}

// Name returns the name of the observation that owns this Context.
func (c *Context) Name() string {
	return c.name
}

// ContextualName returns the name override, or the empty string if none was set.
func (c *Context) ContextualName() string {
	return c.contextualName
}

// SetContextualName overrides the name handlers should display, e.g. as a span name.
func (c *Context) SetContextualName(name string) {
	c.contextualName = name
}

// DisplayName returns the contextual name if set, otherwise the observation name.
func (c *Context) DisplayName() string {
	if c.contextualName != "" {
		return c.contextualName
	}

	return c.name
}

// Error returns the last error reported through Observation.Error.
func (c *Context) Error() error {
	return c.err
}

// AddLowCardinalityTag adds a tag with a small, bounded value space. These tags identify the timer.
func (c *Context) AddLowCardinalityTag(key, value string) {
	if c.lowCardinalityTags == nil {
		c.lowCardinalityTags = make(map[string]string)
	}

	c.lowCardinalityTags[key] = value
}

// AddHighCardinalityTag adds a tag that is handed to handlers but never used as a timer dimension.
func (c *Context) AddHighCardinalityTag(key, value string) {
	if c.highCardinalityTags == nil {
		c.highCardinalityTags = make(map[string]string)
	}

	c.highCardinalityTags[key] = value
}

// LowCardinalityTags returns a copy of the low cardinality tags.
func (c *Context) LowCardinalityTags() map[string]string {
	return copyTags(c.lowCardinalityTags)
}

// HighCardinalityTags returns a copy of the high cardinality tags.
func (c *Context) HighCardinalityTags() map[string]string {
	return copyTags(c.highCardinalityTags)
}

// AllTags returns low and high cardinality tags merged. High cardinality values win on key collisions.
func (c *Context) AllTags() map[string]string {
	all := copyTags(c.lowCardinalityTags)
	maps.Copy(all, c.highCardinalityTags)

	return all
}

func copyTags(tags map[string]string) map[string]string {
	tagsCopy := make(map[string]string, len(tags))
	maps.Copy(tagsCopy, tags)

	return tagsCopy
}
