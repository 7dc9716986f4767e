// Package redisengine aggregates observation samples in Redis so that several processes can share
// timer statistics.
//
// TimerAggregator implements observation.MetricsCollector. Each metric name and label set maps to
// one hash:
//
//	<prefix>duration:"<metric>"{"k"="v",...}  count, total_seconds, max_seconds
//	<prefix>counter:"<metric>"{"k"="v",...}   count
//	<prefix>value:"<metric>"{"k"="v",...}     value
//
// Metric names, label names and label values are quoted with strconv.Quote.
//
// Duration updates run as one Lua script, so concurrent writers never lose a maximum. Keys expire
// after the configured TTL of inactivity when WithTTL is set.
package redisengine
