package httpapi

import (
	"net/http"
	"time"

	"jobwatch-engine/internal/state"
)

type StateHandler struct {
	Store state.Store
}

type stateView struct {
	Seen             int        `json:"seen"`
	Excluded         int        `json:"excluded"`
	LastRunTimestamp *time.Time `json:"lastRunTimestamp"`
}

// Get reports set sizes, not contents; the sets only grow.
func (h StateHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.Store.Load(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, CodeStateUnreadable, err.Error())
		return
	}
	v := stateView{Seen: len(st.SeenIdentities), Excluded: len(st.ExcludedIdentities)}
	if !st.LastRunTimestamp.IsZero() {
		ts := st.LastRunTimestamp
		v.LastRunTimestamp = &ts
	}
	writeJSON(w, v)
}
