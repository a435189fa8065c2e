package httpapi

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"jobwatch-engine/internal/poll"
	"jobwatch-engine/internal/state"
)

type RunsHandler struct {
	Runner  *poll.Runner
	Store   state.Store
	BaseCtx context.Context
}

func (h RunsHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Runner.Status())
}

func (h RunsHandler) Last(w http.ResponseWriter, r *http.Request) {
	sum, ok := h.Runner.Last()
	if !ok {
		WriteError(w, r, http.StatusNotFound, CodeNoRuns, "no run has completed since the engine started")
		return
	}
	writeJSON(w, sum)
}

// Trigger starts a run. By default it returns 202 at once; with ?wait=1 it
// blocks and returns the summary.
func (h RunsHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.Runner.Running() {
		WriteError(w, r, http.StatusConflict, CodeRunInProgress, poll.ErrRunning.Error())
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		sum, err := h.Runner.Run(r.Context())
		if err != nil {
			writeRunError(w, r, err)
			return
		}
		writeJSON(w, sum)
		return
	}

	ctx := h.BaseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	reqID := RequestIDFrom(r.Context())
	go func() {
		if _, err := h.Runner.Run(ctx); err != nil {
			log.Printf("[api] request_id=%s triggered run: %v", reqID, err)
		}
	}()
	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (h RunsHandler) History(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.Store.(state.RunRecorder)
	if !ok {
		WriteError(w, r, http.StatusNotImplemented, CodeNotSupported, "run history needs the sqlite state backend")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := rec.Runs(r.Context(), limit)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, CodeHistoryFailed, err.Error())
		return
	}
	writeJSON(w, map[string]any{"runs": runs})
}
