package httpserver

import (
	"context"
	"net/http"

	"github.com/bytedance/sonic"
)

// ReadinessCheck reports whether one dependency is ready to serve.
type ReadinessCheck func(ctx context.Context) error

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LivenessRoute always reports the process as alive.
func LivenessRoute() Route {
	return Route{
		Method: http.MethodGet,
		Path:   "/health",
		Handler: func(w http.ResponseWriter, _ *http.Request) {
			writeHealth(w, http.StatusOK, healthResponse{Status: "ok"})
		},
	}
}

// ReadinessRoute reports ready only when every named check passes.
func ReadinessRoute(checks map[string]ReadinessCheck) Route {
	return Route{
		Method: http.MethodGet,
		Path:   "/ready",
		Handler: func(w http.ResponseWriter, r *http.Request) {
			resp := healthResponse{Status: "ok", Checks: map[string]string{}}
			status := http.StatusOK
			for name, check := range checks {
				if err := check(r.Context()); err != nil {
					resp.Status = "unavailable"
					resp.Checks[name] = err.Error()
					status = http.StatusServiceUnavailable
					continue
				}
				resp.Checks[name] = "ok"
			}
			writeHealth(w, status, resp)
		},
	}
}

func writeHealth(w http.ResponseWriter, status int, resp healthResponse) {
	body, err := sonic.Marshal(resp)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
