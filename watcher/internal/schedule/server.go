package schedule

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/relwatch/shield"
)

// Handler returns the status router:
//
//	GET  /healthz  liveness
//	GET  /status   last run
//	POST /run      run now and return the resulting status; the run is
//	               not cancelled when the client goes away
func (s *Scheduler) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(s.config.Logger) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.Status())
	})

	r.Post("/run", func(w http.ResponseWriter, r *http.Request) {
		shield.GetLogger(r.Context()).Info("schedule: manual run requested")
		// The run outlives the client: a disconnect after the post must not
		// cancel the cursor write.
		st := s.Trigger(context.WithoutCancel(r.Context()))
		code := http.StatusOK
		if st.Error != "" {
			code = http.StatusBadGateway
		}
		writeJSON(w, code, st)
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
