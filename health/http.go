package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// Response is the JSON body of Handler.
type Response struct {
	Status    Status                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Checks    map[string]CheckResponse `json:"checks,omitempty"`
}

// CheckResponse is one checker in Response.
type CheckResponse struct {
	Status   Status         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Duration string         `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// NewCheckResponse renders one Result.
func NewCheckResponse(res Result) CheckResponse {
	cr := CheckResponse{
		Status:   res.Status,
		Message:  res.Message,
		Duration: res.Duration.String(),
		Details:  res.Details,
	}
	if res.Error != nil {
		cr.Error = res.Error.Error()
	}
	return cr
}

// HTTPStatus maps a status to 200, or 503 when unhealthy.
func HTTPStatus(s Status) int {
	if s == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// LivenessHandler always answers 200 OK.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadinessHandler answers 200 while the aggregate is healthy or degraded and
// 503 otherwise, with the status name as the body.
func ReadinessHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := agg.Run(r.Context())
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(HTTPStatus(report.Status))
		_, _ = w.Write([]byte(report.Status.String()))
	}
}

// Handler answers with a JSON Response for every checker.
func Handler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := agg.Run(r.Context())

		resp := Response{
			Status:    report.Status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    make(map[string]CheckResponse, len(report.Results)),
		}
		for name, res := range report.Results {
			resp.Checks[name] = NewCheckResponse(res)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(HTTPStatus(report.Status))
		_ = json.NewEncoder(w).Encode(resp)
	}
}
