package httpapi

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"sync/atomic"

	"jobwatch-engine/internal/classify"
	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/events"
)

type ConfigHandler struct {
	CfgVal      *atomic.Value // stores config.Config
	UserCfgPath string
	LoadCfg     func() (config.Config, error)
	Hub         *events.Hub
}

func (h ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	cur := h.CfgVal.Load().(config.Config)
	writeJSON(w, cur)
}

// decodeChecked reads a full config from the body and runs every check a
// save would. ok is false when a bad body was already answered.
func decodeChecked(w http.ResponseWriter, r *http.Request) (cfg config.Config, vr config.Validation, ok bool) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()

	var incoming config.Config
	if err := dec.Decode(&incoming); err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidJSON, err.Error())
		return cfg, vr, false
	}
	if dec.More() {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidJSON, "trailing data")
		return cfg, vr, false
	}

	cfg, vr = config.NormalizeAndValidate(incoming)
	if vr.OK() {
		if _, err := classify.New(cfg.Rules); err != nil {
			vr.Errors = append(vr.Errors, err.Error())
		}
	}
	return cfg, vr, true
}

// Put replaces the whole config. The next run picks it up; a run already in
// progress keeps the rules it started with. The state store stays the one
// opened at startup.
func (h ConfigHandler) Put(w http.ResponseWriter, r *http.Request) {
	normalized, vr, ok := decodeChecked(w, r)
	if !ok {
		return
	}
	if !vr.OK() {
		// structured errors so a UI can show them per field
		WriteJSON(w, http.StatusBadRequest, vr)
		return
	}

	if err := config.SaveAtomic(h.UserCfgPath, normalized); err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeSaveFailed, err.Error())
		return
	}

	saved, err := h.LoadCfg()
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, CodeReloadFailed, "saved but reload failed: "+err.Error())
		return
	}
	h.CfgVal.Store(saved)
	h.Hub.Publish(events.MakeEvent(RequestIDFrom(r.Context()), events.TypeConfigSaved, 1, map[string]any{"warnings": vr.Warnings}))
	writeJSON(w, saved)
}

func (h ConfigHandler) Path(w http.ResponseWriter, r *http.Request) {
	abs, _ := filepath.Abs(h.UserCfgPath)
	writeJSON(w, map[string]any{"path": abs})
}

// Validate checks the config in the body without saving it. GET checks the
// config currently in use.
func (h ConfigHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var vr config.Validation
	if r.Method == http.MethodGet {
		cur := h.CfgVal.Load().(config.Config)
		_, vr = config.NormalizeAndValidate(cur)
	} else {
		var ok bool
		if _, vr, ok = decodeChecked(w, r); !ok {
			return
		}
	}
	if vr.Errors == nil {
		vr.Errors = []string{}
	}
	if vr.Warnings == nil {
		vr.Warnings = []string{}
	}
	writeJSON(w, vr)
}
