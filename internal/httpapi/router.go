package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestID, AccessLog, Recover)

	r.HandleFunc("/health", HealthHandler{}.Health).Methods(http.MethodGet)

	rh := RunsHandler{DB: d.DB, Runner: d.Runner, BaseCtx: d.BaseCtx}
	r.HandleFunc("/status", rh.Status).Methods(http.MethodGet)
	r.HandleFunc("/runs", rh.List).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}", rh.Get).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}/units", rh.Units).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}/availability", rh.Availability).Methods(http.MethodGet)
	r.HandleFunc("/runs/{pipeline}", rh.Start).Methods(http.MethodPost)

	eh := EventsHandler{Hub: d.Hub}
	r.HandleFunc("/events", eh.ServeSSE).Methods(http.MethodGet)

	oh := OutputsHandler{CfgVal: d.CfgVal}
	r.HandleFunc("/outputs/{name}", oh.Get).Methods(http.MethodGet)

	ch := ConfigHandler{CfgVal: d.CfgVal, UserCfgPath: d.UserCfgPath, LoadCfg: d.LoadCfg}
	r.HandleFunc("/config", ch.Get).Methods(http.MethodGet)
	r.HandleFunc("/config", ch.Put).Methods(http.MethodPut)
	r.HandleFunc("/config/validate", ch.Validate).Methods(http.MethodGet)

	sh := SecretsHandler{SetAPIKey: d.SetAPIKey, DeleteAPIKey: d.DeleteAPIKey}
	r.HandleFunc("/secrets/{source}", sh.Set).Methods(http.MethodPut)
	r.HandleFunc("/secrets/{source}", sh.Delete).Methods(http.MethodDelete)

	return r
}
