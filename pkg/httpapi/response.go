package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/BlackLotus/nomad/internal/apperr"
	"github.com/BlackLotus/nomad/internal/logger"
)

// envelope is the uniform JSON wrapper every handler responds with,
// grounded on dittofs's handlers.Response shape.
type envelope struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Status: "ok", Timestamp: time.Now().UTC(), Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Status: "error", Timestamp: time.Now().UTC(), Error: msg})
}

// writeAppErr maps apperr.Kind onto an HTTP status code (the one place the
// adapter is allowed to know about transport status codes; §7 keeps the
// core itself transport-agnostic).
func writeAppErr(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindUnauthorized:
		status = http.StatusForbidden
	case apperr.KindBadRequest:
		status = http.StatusBadRequest
	case apperr.KindProcessAlreadyRunning:
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		logger.ErrorCtx(ctx, "unhandled httpapi error", logger.Err(err))
	}
	writeError(w, status, err.Error())
}
