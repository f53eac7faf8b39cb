package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// Response is the JSON body of the HTTP health endpoints.
type Response struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks,omitempty"`
	Message   string                 `json:"message,omitempty"`
}

// CheckStatus is one check inside Response.
type CheckStatus struct {
	Status  string `json:"status"` // "ok" | "error"
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// LivenessHandler answers 200 while the process is alive, 503 otherwise.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := c.CheckLiveness(r.Context())
		c.write(w, status, err)
	}
}

// ReadinessHandler answers 200 when the service can take traffic, 503 otherwise.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := c.CheckReadiness(r.Context())
		c.write(w, status, err)
	}
}

// CombinedHandler runs liveness and readiness checks together.
func (c *Checker) CombinedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		live, liveErr := c.CheckLiveness(r.Context())
		ready, readyErr := c.CheckReadiness(r.Context())

		merged := &Status{
			Healthy: live.Healthy && ready.Healthy,
			Checks:  append(append([]CheckResult(nil), live.Checks...), ready.Checks...),
		}
		err := liveErr
		if err == nil {
			err = readyErr
		}
		c.write(w, merged, err)
	}
}

func (c *Checker) write(w http.ResponseWriter, status *Status, err error) {
	response := Response{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]CheckStatus, len(status.Checks)),
	}

	for _, result := range status.Checks {
		cs := CheckStatus{Status: "ok", Latency: result.Latency.String()}
		if !result.Healthy {
			cs.Status = "error"
			cs.Error = result.Error
		}
		response.Checks[result.Name] = cs
	}

	w.Header().Set("Content-Type", "application/json")
	if status.Healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		response.Status = "unhealthy"
		if err != nil {
			response.Message = err.Error()
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		c.logger.Error("Failed to encode health response", logger.ErrorField(err))
	}
}
