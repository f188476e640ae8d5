package api

import "net/http"

// Routes wires every endpoint into a ServeMux behind the CORS middleware.
func Routes(h *Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /participants", h.ListParticipants)
	mux.HandleFunc("POST /participants", h.Join)
	mux.HandleFunc("GET /messages", h.ListMessages)
	mux.HandleFunc("GET /messages/search", h.SearchMessages)
	mux.HandleFunc("POST /messages", h.PostMessage)
	mux.HandleFunc("PUT /messages/{id}", h.EditMessage)
	mux.HandleFunc("DELETE /messages/{id}", h.DeleteMessage)
	mux.HandleFunc("POST /status", h.Status)
	return CORS(mux)
}

// CORS allows any origin and answers preflight requests itself.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", "*")
		header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Content-Type, "+CallerHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
