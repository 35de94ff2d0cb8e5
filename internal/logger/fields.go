package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the upload processing
// pipeline. Use these consistently so log lines stay greppable/aggregatable.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	KeyUploadID  = "upload_id"
	KeyEntryID   = "entry_id"
	KeyMainfile  = "mainfile"
	KeyParser    = "parser_name"
	KeyOperation = "operation"
	KeyStatus    = "process_status"
	KeyUserID    = "user_id"

	KeyPath       = "path"
	KeyTargetDir  = "target_dir"
	KeyAccess     = "access"
	KeySize       = "size"
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorKind  = "error_kind"
	KeyAttempt    = "attempt"
	KeyCount      = "count"
)

func UploadID(id string) slog.Attr  { return slog.String(KeyUploadID, id) }
func EntryID(id string) slog.Attr   { return slog.String(KeyEntryID, id) }
func Mainfile(p string) slog.Attr   { return slog.String(KeyMainfile, p) }
func Parser(name string) slog.Attr { return slog.String(KeyParser, name) }
func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }
func Status(s string) slog.Attr     { return slog.String(KeyStatus, s) }
func UserID(id string) slog.Attr    { return slog.String(KeyUserID, id) }

func Path(p string) slog.Attr      { return slog.String(KeyPath, p) }
func TargetDir(p string) slog.Attr { return slog.String(KeyTargetDir, p) }
func Access(a string) slog.Attr    { return slog.String(KeyAccess, a) }
func Size(n int64) slog.Attr       { return slog.Int64(KeySize, n) }
func Count(n int) slog.Attr        { return slog.Int(KeyCount, n) }
func Attempt(n int) slog.Attr      { return slog.Int(KeyAttempt, n) }

func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error, or a no-op attribute if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorKind tags the log line with the apperr.Kind string, so operators can
// filter on `error_kind=process_already_running` etc. without parsing text.
func ErrorKind(kind string) slog.Attr {
	return slog.String(KeyErrorKind, kind)
}
