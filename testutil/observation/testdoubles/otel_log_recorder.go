package testdoubles

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/embedded"
)

// OTelLogRecord is one record emitted on a logger created by OTelLogRecorder.
type OTelLogRecord struct {
	LoggerName string
	Record     log.Record
	Context    context.Context
}

// Attr returns the value of the record attribute key.
func (r OTelLogRecord) Attr(key string) (log.Value, bool) {
	var found log.Value
	var exists bool

	r.Record.WalkAttributes(func(kv log.KeyValue) bool {
		if kv.Key == key {
			found, exists = kv.Value, true
			return false
		}

		return true
	})

	return found, exists
}

// OTelLogRecorder is a log.LoggerProvider whose loggers record every emitted record.
type OTelLogRecorder struct {
	embedded.LoggerProvider
	records []OTelLogRecord
	mu      sync.Mutex
}

// NewOTelLogRecorder creates an empty OTelLogRecorder.
func NewOTelLogRecorder() *OTelLogRecorder {
	return &OTelLogRecorder{}
}

// Logger implements log.LoggerProvider.
func (r *OTelLogRecorder) Logger(name string, _ ...log.LoggerOption) log.Logger {
	return &otelRecordingLogger{name: name, recorder: r}
}

// GetRecords returns a copy of all recorded records.
func (r *OTelLogRecorder) GetRecords() []OTelLogRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]OTelLogRecord(nil), r.records...)
}

// FindRecord returns the first record whose body is body.
func (r *OTelLogRecorder) FindRecord(body string) (OTelLogRecord, bool) {
	for _, record := range r.GetRecords() {
		if record.Record.Body().AsString() == body {
			return record, true
		}
	}

	return OTelLogRecord{}, false
}

func (r *OTelLogRecorder) append(record OTelLogRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, record)
}

type otelRecordingLogger struct {
	embedded.Logger
	name     string
	recorder *OTelLogRecorder
}

func (l *otelRecordingLogger) Emit(ctx context.Context, record log.Record) {
	l.recorder.append(OTelLogRecord{LoggerName: l.name, Record: record.Clone(), Context: ctx})
}

func (l *otelRecordingLogger) Enabled(context.Context, log.EnabledParameters) bool {
	return true
}

var _ log.LoggerProvider = (*OTelLogRecorder)(nil)
