// Package testdoubles provides spies, stubs and fakes for testing observation handlers,
// registries and the observability sinks they write into.
//
// The spies record every call under a mutex and hand out copies of what they recorded,
// so they can be shared with goroutines started by a test.
package testdoubles
