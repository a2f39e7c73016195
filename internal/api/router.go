package api

import "net/http"

// NewRouter wires the handler's endpoints onto a mux.
func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/scan", requireMethod(http.MethodPost, h.Scan))
	mux.HandleFunc("/v1/healthz", requireMethod(http.MethodGet, h.Healthz))
	return mux
}

func requireMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		next(w, r)
	}
}
