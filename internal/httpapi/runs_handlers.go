package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"econstats-engine/internal/pipeline"
	"econstats-engine/internal/store"

	"github.com/gorilla/mux"
)

type RunsHandler struct {
	DB      *store.DB
	Runner  Runner
	BaseCtx context.Context
}

func (h RunsHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Runner.Status())
}

func (h RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			WriteError(w, r, http.StatusBadRequest, "bad_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := h.DB.ListRuns(r.Context(), r.URL.Query().Get("pipeline"), limit)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	WriteJSON(w, http.StatusOK, runs)
}

func (h RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.DB.GetRun(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrRunNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", "run not found")
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

func (h RunsHandler) Units(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.DB.GetRun(r.Context(), id); errors.Is(err, store.ErrRunNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", "run not found")
		return
	}
	units, err := h.DB.ListUnits(r.Context(), id)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, units)
}

// Availability returns the year -> metro codes map a discovery run found.
func (h RunsHandler) Availability(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.DB.GetRun(r.Context(), id); errors.Is(err, store.ErrRunNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", "run not found")
		return
	}
	avail, err := h.DB.Availability(r.Context(), id)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, avail)
}

// Start launches a pipeline in the background and answers 202 with the new
// run. Only one pipeline runs at a time.
func (h RunsHandler) Start(w http.ResponseWriter, r *http.Request) {
	name, err := pipeline.Parse(mux.Vars(r)["pipeline"])
	if err != nil {
		WriteError(w, r, http.StatusNotFound, "unknown_pipeline", err.Error())
		return
	}
	ctx := h.BaseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	run, err := h.Runner.Start(ctx, name)
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		WriteError(w, r, http.StatusConflict, "busy", err.Error())
	case err != nil:
		WriteError(w, r, http.StatusInternalServerError, "start_failed", err.Error())
	default:
		WriteJSON(w, http.StatusAccepted, run)
	}
}
