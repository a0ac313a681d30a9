package http

import "net/http"

// NotFoundHandler returns a JSON 404 response for unknown routes. The mux
// sends every unmatched path here, including the bare root.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "no route for "+r.Method+" "+r.URL.Path)
	})
}
