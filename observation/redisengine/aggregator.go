package redisengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AntonStoeckl/dynamic-observations-go/observation"
)

const (
	defaultPrefix = "observation:"

	kindDuration = "duration"
	kindCounter  = "counter"
	kindValue    = "value"

	fieldCount        = "count"
	fieldTotalSeconds = "total_seconds"
	fieldMaxSeconds   = "max_seconds"
	fieldValue        = "value"

	logMsgUpdateFailed = "redis aggregate update failed"
	logAttrMetric      = "metric"
	logAttrKind        = "kind"
	logAttrError       = "error"
)

// ErrNilClient is returned when NewTimerAggregator is called without a client.
var ErrNilClient = errors.New("redis client must not be nil")

// ErrEmptyPrefix is returned when WithPrefix is given an empty prefix.
var ErrEmptyPrefix = errors.New("key prefix must not be empty")

// ErrAggregateNotFound is returned when no samples were recorded for a metric and label set.
var ErrAggregateNotFound = errors.New("aggregate not found")

// recordDurationScript updates a duration hash atomically.
// KEYS[1] = aggregate key
// ARGV[1] = duration in seconds
// ARGV[2] = ttl in milliseconds, 0 for no expiry
var recordDurationScript = redis.NewScript(`
local key = KEYS[1]
local seconds = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

redis.call("HINCRBY", key, "count", 1)
redis.call("HINCRBYFLOAT", key, "total_seconds", ARGV[1])

local max = tonumber(redis.call("HGET", key, "max_seconds"))
if not max or seconds > max then
    redis.call("HSET", key, "max_seconds", ARGV[1])
end

if ttl > 0 then
    redis.call("PEXPIRE", key, ttl)
end

return 1
`)

// Aggregate is the shared state of one duration metric and label set.
type Aggregate struct {
	Count int64
	Total time.Duration
	Max   time.Duration
}

// Mean returns Total divided by Count, or zero without samples.
func (a Aggregate) Mean() time.Duration {
	if a.Count == 0 {
		return 0
	}

	return a.Total / time.Duration(a.Count)
}

// Option defines a functional option for configuring a TimerAggregator.
type Option func(*TimerAggregator) error

// WithPrefix sets the key prefix. The default is "observation:".
func WithPrefix(prefix string) Option {
	return func(a *TimerAggregator) error {
		if prefix == "" {
			return ErrEmptyPrefix
		}

		a.prefix = prefix

		return nil
	}
}

// WithTTL makes aggregates expire after ttl without updates.
func WithTTL(ttl time.Duration) Option {
	return func(a *TimerAggregator) error {
		a.ttl = ttl

		return nil
	}
}

// WithLogger sets the logger that receives failed updates.
func WithLogger(logger observation.Logger) Option {
	return func(a *TimerAggregator) error {
		a.logger = logger

		return nil
	}
}

// WithContextualLogger sets a context-aware logger that takes precedence over the plain logger.
func WithContextualLogger(logger observation.ContextualLogger) Option {
	return func(a *TimerAggregator) error {
		a.contextualLogger = logger

		return nil
	}
}

// TimerAggregator implements observation.ContextualMetricsCollector on Redis hashes.
// Write errors are logged, never returned.
type TimerAggregator struct {
	client           redis.UniversalClient
	prefix           string
	ttl              time.Duration
	logger           observation.Logger
	contextualLogger observation.ContextualLogger
}

// NewTimerAggregator creates a TimerAggregator on client.
func NewTimerAggregator(client redis.UniversalClient, options ...Option) (*TimerAggregator, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	a := &TimerAggregator{
		client: client,
		prefix: defaultPrefix,
	}

	for _, option := range options {
		if err := option(a); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// RecordDuration implements observation.MetricsCollector.
func (a *TimerAggregator) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	a.RecordDurationContext(context.Background(), metric, duration, labels)
}

// RecordDurationContext implements observation.ContextualMetricsCollector.
func (a *TimerAggregator) RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	key := a.key(kindDuration, metric, labels)
	seconds := strconv.FormatFloat(duration.Seconds(), 'f', -1, 64)

	err := recordDurationScript.Run(ctx, a.client, []string{key}, seconds, a.ttl.Milliseconds()).Err()
	if err != nil {
		a.logUpdateFailed(ctx, kindDuration, metric, err)
	}
}

// IncrementCounter implements observation.MetricsCollector.
func (a *TimerAggregator) IncrementCounter(metric string, labels map[string]string) {
	a.IncrementCounterContext(context.Background(), metric, labels)
}

// IncrementCounterContext implements observation.ContextualMetricsCollector.
func (a *TimerAggregator) IncrementCounterContext(ctx context.Context, metric string, labels map[string]string) {
	key := a.key(kindCounter, metric, labels)

	_, err := a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, fieldCount, 1)
		a.expire(ctx, pipe, key)
		return nil
	})
	if err != nil {
		a.logUpdateFailed(ctx, kindCounter, metric, err)
	}
}

// RecordValue implements observation.MetricsCollector.
func (a *TimerAggregator) RecordValue(metric string, value float64, labels map[string]string) {
	a.RecordValueContext(context.Background(), metric, value, labels)
}

// RecordValueContext implements observation.ContextualMetricsCollector.
func (a *TimerAggregator) RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string) {
	key := a.key(kindValue, metric, labels)

	_, err := a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldValue, strconv.FormatFloat(value, 'f', -1, 64))
		a.expire(ctx, pipe, key)
		return nil
	})
	if err != nil {
		a.logUpdateFailed(ctx, kindValue, metric, err)
	}
}

// Aggregate reads the duration aggregate of metric and labels.
func (a *TimerAggregator) Aggregate(ctx context.Context, metric string, labels map[string]string) (Aggregate, error) {
	fields, err := a.read(ctx, kindDuration, metric, labels)
	if err != nil {
		return Aggregate{}, err
	}

	count, err := strconv.ParseInt(fields[fieldCount], 10, 64)
	if err != nil {
		return Aggregate{}, fmt.Errorf("parse %s: %w", fieldCount, err)
	}

	total, err := parseSeconds(fields[fieldTotalSeconds])
	if err != nil {
		return Aggregate{}, fmt.Errorf("parse %s: %w", fieldTotalSeconds, err)
	}

	maxDuration, err := parseSeconds(fields[fieldMaxSeconds])
	if err != nil {
		return Aggregate{}, fmt.Errorf("parse %s: %w", fieldMaxSeconds, err)
	}

	return Aggregate{Count: count, Total: total, Max: maxDuration}, nil
}

// Counter reads the counter of metric and labels.
func (a *TimerAggregator) Counter(ctx context.Context, metric string, labels map[string]string) (int64, error) {
	fields, err := a.read(ctx, kindCounter, metric, labels)
	if err != nil {
		return 0, err
	}

	return strconv.ParseInt(fields[fieldCount], 10, 64)
}

// Value reads the last value recorded for metric and labels.
func (a *TimerAggregator) Value(ctx context.Context, metric string, labels map[string]string) (float64, error) {
	fields, err := a.read(ctx, kindValue, metric, labels)
	if err != nil {
		return 0, err
	}

	return strconv.ParseFloat(fields[fieldValue], 64)
}

func (a *TimerAggregator) read(ctx context.Context, kind, metric string, labels map[string]string) (map[string]string, error) {
	fields, err := a.client.HGetAll(ctx, a.key(kind, metric, labels)).Result()
	if err != nil {
		return nil, err
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%s %s: %w", kind, formatIdentity(metric, labels), ErrAggregateNotFound)
	}

	return fields, nil
}

func (a *TimerAggregator) expire(ctx context.Context, pipe redis.Pipeliner, key string) {
	if a.ttl > 0 {
		pipe.PExpire(ctx, key, a.ttl)
	}
}

// key returns <prefix><kind>:"<metric>"{"k"="v",...} with labels sorted by key.
func (a *TimerAggregator) key(kind, metric string, labels map[string]string) string {
	return a.prefix + kind + ":" + formatIdentity(metric, labels)
}

func (a *TimerAggregator) logUpdateFailed(ctx context.Context, kind, metric string, err error) {
	args := []any{logAttrKind, kind, logAttrMetric, metric, logAttrError, err.Error()}

	if a.contextualLogger != nil {
		a.contextualLogger.ErrorContext(ctx, logMsgUpdateFailed, args...)
		return
	}

	if a.logger != nil {
		a.logger.Error(logMsgUpdateFailed, args...)
	}
}

// formatIdentity quotes metric, label names and values, so separators inside them cannot make two
// label sets share a key.
func formatIdentity(metric string, labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, strconv.Quote(key)+"="+strconv.Quote(labels[key]))
	}

	return strconv.Quote(metric) + "{" + strings.Join(pairs, ",") + "}"
}

func parseSeconds(s string) (time.Duration, error) {
	seconds, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}

	return time.Duration(math.Round(seconds * float64(time.Second))), nil
}

var _ observation.ContextualMetricsCollector = (*TimerAggregator)(nil)
