package handlers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/AntonStoeckl/dynamic-observations-go/observation"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	attrObservation    = "observation"
	attrContextualName = "contextual_name"
	attrErrorType      = "error_type"
	attrError          = "error"
	attrDurationMS     = "duration_ms"
	attrEvent          = "event"
	attrHandler        = "handler"
	attrPanic          = "panic"

	eventSupportsContext = "supports_context"
	eventStart           = "start"
	eventError           = "error"
	eventScopeOpened     = "scope_opened"
	eventScopeClosed     = "scope_closed"
	eventStop            = "stop"
)

var (
	ErrNoLoggerConfigured  = errors.New("neither logger nor contextual logger configured")
	ErrNilTracingCollector = errors.New("nil tracing collector supplied")
	ErrNilMetricsCollector = errors.New("nil metrics collector supplied")
	ErrNilDelegateHandler  = errors.New("nil delegate handler supplied")
)

// parentContext returns the context.Context stored in the handler context, or context.Background().
func parentContext(ctx *observation.Context) context.Context {
	return observation.GetOrDefault[context.Context](ctx, context.Background())
}

// stoppedSpanContext is the context.Context of a span the TracingHandler has finished. The parent
// context is restored at that point; handlers stopping later still correlate with the span through it.
type stoppedSpanContext struct {
	ctx context.Context
}

// eventContext returns the context.Context handlers log and record with: the finished span's context
// once the TracingHandler has stopped, otherwise the parent context.
func eventContext(ctx *observation.Context) context.Context {
	if stopped, found := observation.Get[stoppedSpanContext](ctx); found {
		return stopped.ctx
	}

	return parentContext(ctx)
}

// errorType names the dynamic type of err, e.g. "*net.OpError".
func errorType(err error) string {
	return fmt.Sprintf("%T", err)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// tagsAsArgs flattens tags into slog-style key/value args.
// Keys are sorted, so attribute order is stable.
func tagsAsArgs(tags map[string]string) []any {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(tags)*2)
	for _, key := range keys {
		args = append(args, key, tags[key])
	}

	return args
}

// errorMessage returns err.Error(), or the empty string for a nil error.
func errorMessage(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
