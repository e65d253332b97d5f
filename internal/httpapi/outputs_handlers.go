package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"econstats-engine/internal/config"

	"github.com/gorilla/mux"
)

type OutputsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

// Get serves a CSV or PDF from the output dir. Names are plain file names;
// anything with a path component is rejected.
func (h OutputsHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ext := strings.ToLower(filepath.Ext(name))
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") || (ext != ".csv" && ext != ".pdf") {
		WriteError(w, r, http.StatusBadRequest, "bad_name", "expected a .csv or .pdf file name")
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	p := filepath.Join(cfg.Path(cfg.Output.Dir), name)
	if st, err := os.Stat(p); err != nil || st.IsDir() {
		WriteError(w, r, http.StatusNotFound, "not_found", "no such output")
		return
	}
	http.ServeFile(w, r, p)
}
