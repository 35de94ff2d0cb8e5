package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds request/job-scoped logging context that is threaded
// through controller, scheduler and entry-processor calls so every log
// line from a single upload operation can be correlated.
type LogContext struct {
	TraceID   string // OpenTelemetry trace ID
	SpanID    string // OpenTelemetry span ID
	Operation string // controller operation name: publish, reprocess, ...
	UploadID  string
	EntryID   string
	UserID    string
	StartTime time.Time
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext scoped to an upload.
func NewLogContext(uploadID string) *LogContext {
	return &LogContext{
		UploadID:  uploadID,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	cp := *lc
	return &cp
}

// WithEntry returns a copy of lc scoped to a specific entry.
func (lc *LogContext) WithEntry(entryID string) *LogContext {
	cp := lc.Clone()
	if cp == nil {
		cp = &LogContext{}
	}
	cp.EntryID = entryID
	return cp
}
