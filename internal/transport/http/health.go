package http

import (
	"context"
	stdhttp "net/http"
	"sort"
	"time"
)

// HealthHandler reports basic liveness for the service.
func HealthHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(stdhttp.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Check probes one backing dependency.
type Check func(ctx context.Context) error

const readyTimeout = 2 * time.Second

// ReadyHandler runs every check and answers 503 if any fails. The body maps
// each check name to "ok" or its error.
func ReadyHandler(checks map[string]Check) stdhttp.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		status := stdhttp.StatusOK
		report := make(map[string]string, len(names))
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				report[name] = err.Error()
				status = stdhttp.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}
		writeJSON(w, status, report)
	}
}
