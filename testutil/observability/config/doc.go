// Package config provides OpenTelemetry provider setup for testing the observation adapters.
//
// NewInMemoryProviders creates tracer and meter providers that keep finished spans and
// collected metrics in memory, so tests can verify what the adapters emitted without any
// external observability infrastructure.
package config
