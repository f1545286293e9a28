package handle

import (
	"encoding/json"
	"net/http"

	"workflow-architect/api/internal/analysis"
	"workflow-architect/api/internal/engine"
	"workflow-architect/api/internal/logger"
)

type Handle struct {
	engs     *engine.Engines
	svc      *analysis.Service
	def      string
	maxBytes int64
	log      *logger.Logger
}

// New wires the handlers. defaultEngine is used when a request carries no
// llm_name; maxBytes caps each decoded file.
func New(engs *engine.Engines, svc *analysis.Service, defaultEngine string, maxBytes int64, log *logger.Logger) *Handle {
	if log == nil {
		log = logger.Discard()
	}
	return &Handle{
		engs:     engs,
		svc:      svc,
		def:      defaultEngine,
		maxBytes: maxBytes,
		log:      log,
	}
}

func (h *Handle) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type errorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
