package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const readyCheckTimeout = 2 * time.Second

// ReadyCheck is a named dependency probe run by the readiness endpoint.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// NewBaseMuxWithReady returns a mux pre-wired with liveness and readiness
// endpoints. /healthz always returns 200; /readyz runs every check with a
// short timeout and reports per-dependency status, returning 503 when any
// check fails.
func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, check := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
			err := check.Check(ctx)
			cancel()
			if err != nil {
				status = http.StatusServiceUnavailable
				results[check.Name] = err.Error()
				continue
			}
			results[check.Name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(results)
	})
	return mux
}
