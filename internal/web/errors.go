package web

// errors.go writes error responses.
//
// The technical error is logged with the request ID; the client gets the
// mapped UserMessage, as JSON for API routes and plain text elsewhere.

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bsipocz/gammapy/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// Request errors raised by handlers. Their text feeds MapError's patterns.
var (
	errNoFile     = errors.New("no file provided")
	errInvalidID  = errors.New("invalid id")
	errBadRequest = errors.New("invalid request")
)

// respondError logs err and writes the mapped message with its status.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg := MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", msg.Status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if msg.Status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if wantsJSON(r) {
		respondErrorJSON(w, msg)
		return
	}
	http.Error(w, msg.Message+" ("+msg.Code+")", msg.Status)
}

func respondErrorJSON(w http.ResponseWriter, msg UserMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(msg.Status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
