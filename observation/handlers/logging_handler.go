package handlers

import (
	"context"
	"time"

	"github.com/AntonStoeckl/dynamic-observations-go/observation"
)

const (
	logMsgObservationStarted = "observation started"
	logMsgObservationFailed  = "observation failed"
	logMsgScopeOpened        = "observation scope opened"
	logMsgScopeClosed        = "observation scope closed"
	logMsgObservationStopped = "observation stopped"
)

// LoggingOption defines a functional option for configuring a LoggingHandler.
type LoggingOption func(*LoggingHandler) error

// WithLogger sets the plain logger.
func WithLogger(logger observation.Logger) LoggingOption {
	return func(h *LoggingHandler) error {
		h.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger. It takes precedence over the plain logger and
// receives the parent context.Context stored in the observation's handler Context.
func WithContextualLogger(logger observation.ContextualLogger) LoggingOption {
	return func(h *LoggingHandler) error {
		h.contextualLogger = logger
		return nil
	}
}

// WithScopeLogging enables debug logs for opened and closed scopes.
func WithScopeLogging() LoggingOption {
	return func(h *LoggingHandler) error {
		h.logScopes = true
		return nil
	}
}

// LoggingHandler logs the lifecycle of every observation.
//
// Debug level: started observations, and opened/closed scopes if enabled
// Info level: stopped observations with duration and all tags
// Error level: reported errors.
type LoggingHandler struct {
	observation.BaseHandler
	logger           observation.Logger
	contextualLogger observation.ContextualLogger
	logScopes        bool
}

// NewLoggingHandler creates a LoggingHandler. At least one of WithLogger or WithContextualLogger is required.
func NewLoggingHandler(options ...LoggingOption) (*LoggingHandler, error) {
	h := &LoggingHandler{}

	for _, option := range options {
		if err := option(h); err != nil {
			return nil, err
		}
	}

	if h.logger == nil && h.contextualLogger == nil {
		return nil, ErrNoLoggerConfigured
	}

	return h, nil
}

// SupportsContext implements observation.Handler. Every observation is logged.
func (h *LoggingHandler) SupportsContext(*observation.Context) bool {
	return true
}

// OnStart implements observation.Handler.
func (h *LoggingHandler) OnStart(_ *observation.Observation, ctx *observation.Context) {
	h.logDebug(eventContext(ctx), logMsgObservationStarted, h.identify(ctx)...)
}

// OnError implements observation.Handler.
func (h *LoggingHandler) OnError(_ *observation.Observation, ctx *observation.Context, err error) {
	args := h.identify(ctx)
	args = append(args, attrError, errorMessage(err), attrErrorType, errorType(err))

	h.logError(eventContext(ctx), logMsgObservationFailed, args...)
}

// OnScopeOpened implements observation.Handler.
func (h *LoggingHandler) OnScopeOpened(_ *observation.Observation, ctx *observation.Context) {
	if h.logScopes {
		h.logDebug(eventContext(ctx), logMsgScopeOpened, h.identify(ctx)...)
	}
}

// OnScopeClosed implements observation.Handler.
func (h *LoggingHandler) OnScopeClosed(_ *observation.Observation, ctx *observation.Context) {
	if h.logScopes {
		h.logDebug(eventContext(ctx), logMsgScopeClosed, h.identify(ctx)...)
	}
}

// OnStop implements observation.Handler.
func (h *LoggingHandler) OnStop(_ *observation.Observation, ctx *observation.Context, _ observation.Timer, duration time.Duration) {
	args := h.identify(ctx)
	args = append(args, attrDurationMS, toMilliseconds(duration))
	args = append(args, tagsAsArgs(ctx.AllTags())...)

	h.logInfo(eventContext(ctx), logMsgObservationStopped, args...)
}

func (h *LoggingHandler) identify(ctx *observation.Context) []any {
	args := []any{attrObservation, ctx.Name()}
	if contextualName := ctx.ContextualName(); contextualName != "" {
		args = append(args, attrContextualName, contextualName)
	}

	return args
}

func (h *LoggingHandler) logDebug(ctx context.Context, msg string, args ...any) {
	if h.contextualLogger != nil {
		h.contextualLogger.DebugContext(ctx, msg, args...)
		return
	}

	h.logger.Debug(msg, args...)
}

func (h *LoggingHandler) logInfo(ctx context.Context, msg string, args ...any) {
	if h.contextualLogger != nil {
		h.contextualLogger.InfoContext(ctx, msg, args...)
		return
	}

	h.logger.Info(msg, args...)
}

func (h *LoggingHandler) logError(ctx context.Context, msg string, args ...any) {
	if h.contextualLogger != nil {
		h.contextualLogger.ErrorContext(ctx, msg, args...)
		return
	}

	h.logger.Error(msg, args...)
}

var _ observation.Handler = (*LoggingHandler)(nil)
