package handle

import (
	"encoding/json"
	"net/http"

	"snap-solve/api/internal/pipeline"
	"snap-solve/api/internal/solver"
	"snap-solve/api/internal/store"
)

// Handle wires the REST surface to the pipeline and the store.
type Handle struct {
	pipe  *pipeline.Pipeline
	solve *solver.Orchestrator
	store store.QuestionStore
}

func New(pipe *pipeline.Pipeline, solve *solver.Orchestrator, st store.QuestionStore) *Handle {
	return &Handle{pipe: pipe, solve: solve, store: st}
}

// NewMux registers all question routes.
func NewMux(h *Handle) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/questions/process", h.Process)
	mux.HandleFunc("POST /api/questions/recognize", h.Recognize)
	mux.HandleFunc("GET /api/questions/recent", h.Recent)
	mux.HandleFunc("GET /api/questions/saved", h.Saved)
	mux.HandleFunc("PATCH /api/questions/{id}/toggle-save", h.ToggleSave)
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}
