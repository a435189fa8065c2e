package httpapi

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

type setIMAPPasswordReq struct {
	Password string `json:"password"`
}

func (h SecretsHandler) SetIMAPPassword(w http.ResponseWriter, r *http.Request) {
	var req setIMAPPasswordReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidJSON, "invalid json")
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	if err := secrets.SetIMAPPassword(cfg, req.Password); err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeKeyring, "failed to store password: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SecretsHandler) DeleteIMAPPassword(w http.ResponseWriter, r *http.Request) {
	cfg := h.CfgVal.Load().(config.Config)
	if err := secrets.DeleteIMAPPassword(cfg); err != nil {
		WriteError(w, r, http.StatusInternalServerError, CodeKeyring, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
