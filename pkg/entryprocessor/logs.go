package entryprocessor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// captureLogRecord is one log line produced during steps 2-5 of the entry
// pipeline (§4.6 step 6), shaped for storage in the archive's
// processing_logs list.
type captureLogRecord struct {
	Level   string         `json:"level" msgpack:"level"`
	Message string         `json:"message" msgpack:"message"`
	Time    time.Time      `json:"time" msgpack:"time"`
	Attrs   map[string]any `json:"attrs,omitempty" msgpack:"attrs,omitempty"`
}

// maxProcessingLogs bounds the archive's processing_logs list (§4.6 step
// 6: "If the log list exceeds 100 entries, debug-level records are
// filtered out on write").
const maxProcessingLogs = 100

// captureHandler is a slog.Handler, grounded on internal/logger's
// ColorTextHandler shape, that accumulates records in memory instead of
// writing them out, so they can be embedded into the archive.
type captureHandler struct {
	mu      *sync.Mutex
	records *[]captureLogRecord
	attrs   []slog.Attr
}

func newCaptureHandler() (*captureHandler, *[]captureLogRecord) {
	records := &[]captureLogRecord{}
	return &captureHandler{mu: &sync.Mutex{}, records: records}, records
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	rec := captureLogRecord{
		Level:   r.Level.String(),
		Message: r.Message,
		Time:    r.Time,
		Attrs:   attrs,
	}

	h.mu.Lock()
	*h.records = append(*h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &captureHandler{mu: h.mu, records: h.records, attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
}

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

// newEntryLogger returns a logger scoped to one EntryOp invocation plus the
// backing slice its records land in.
func newEntryLogger(uploadID, entryID string) (*slog.Logger, *[]captureLogRecord) {
	h, records := newCaptureHandler()
	l := slog.New(h).With("upload_id", uploadID, "entry_id", entryID)
	return l, records
}

// finalizeLogs implements §4.6 step 6's size cap and error-copy rule:
// returns the (possibly filtered) log list for the archive, plus the
// error-level messages to also copy into the entry's errors[].
func finalizeLogs(records []captureLogRecord) (archiveLogs []map[string]any, errorMessages []string) {
	filtered := records
	if len(records) > maxProcessingLogs {
		filtered = filtered[:0]
		for _, r := range records {
			if r.Level == slog.LevelDebug.String() {
				continue
			}
			filtered = append(filtered, r)
		}
	}

	archiveLogs = make([]map[string]any, 0, len(filtered))
	for _, r := range filtered {
		archiveLogs = append(archiveLogs, map[string]any{
			"level":   r.Level,
			"message": r.Message,
			"time":    r.Time,
			"attrs":   r.Attrs,
		})
		if r.Level == slog.LevelError.String() {
			errorMessages = append(errorMessages, r.Message)
		}
	}
	return archiveLogs, errorMessages
}
