package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

type SecretsHandler struct {
	SetAPIKey    func(source, key string) error
	DeleteAPIKey func(source string) error
}

type setAPIKeyReq struct {
	Key string `json:"key"`
}

func (h SecretsHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req setAPIKeyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if err := h.SetAPIKey(mux.Vars(r)["source"], req.Key); err != nil {
		WriteError(w, r, http.StatusBadRequest, "store_failed", "failed to store key: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SecretsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.DeleteAPIKey(mux.Vars(r)["source"]); err != nil {
		WriteError(w, r, http.StatusBadRequest, "delete_failed", "failed to delete key: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
