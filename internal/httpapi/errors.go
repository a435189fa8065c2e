package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"jobwatch-engine/internal/poll"
	"jobwatch-engine/internal/state"
)

// Code is the machine-readable half of an error response.
type Code string

const (
	CodeInvalidJSON       Code = "invalid_json"
	CodeMethodNotAllowed  Code = "method_not_allowed"
	CodeNoRuns            Code = "no_runs"
	CodeRunInProgress     Code = "run_in_progress"
	CodeStateLocked       Code = "state_locked"
	CodeRunFailed         Code = "run_failed"
	CodeStateUnreadable   Code = "state_unreadable"
	CodeNotSupported      Code = "not_supported"
	CodeHistoryFailed     Code = "history_failed"
	CodeSaveFailed        Code = "save_failed"
	CodeReloadFailed      Code = "reload_failed"
	CodeKeyring           Code = "keyring_error"
	CodeStreamUnsupported Code = "stream_unsupported"
	CodeInternal          Code = "internal_error"
)

type errorBody struct {
	Error struct {
		Code      Code   `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError answers with an error body carrying the request's ID, so a
// client report can be matched to the access log line.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code Code, message string) {
	var e errorBody
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// writeRunError maps a failed run to its status and code.
func writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, poll.ErrRunning):
		WriteError(w, r, http.StatusConflict, CodeRunInProgress, err.Error())
	case errors.Is(err, state.ErrLocked):
		WriteError(w, r, http.StatusConflict, CodeStateLocked, err.Error())
	default:
		WriteError(w, r, http.StatusInternalServerError, CodeRunFailed, err.Error())
	}
}
