package health

import (
	"encoding/json"
	"net/http"
)

// HTTPHandler serves the full health report. DEGRADED still answers
// 200 so load balancers keep routing while capacity recovers.
func HTTPHandler(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := service.GetHealthResponse(r.Context())

		statusCode := http.StatusOK
		if response.Status == StatusDown {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(response)
	}
}

// ReadinessHandler is strict: only UP is ready. Kubernetes stops
// routing to the instance on anything else.
func ReadinessHandler(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := service.GetHealthResponse(r.Context())

		if response.Status == StatusUp {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("NOT READY"))
		}
	}
}

// LivenessHandler only proves the process responds. Dependency state
// is deliberately ignored so a broken redis does not restart the pod.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

// DetailedHealthHandler returns the per-provider breakdown including
// latency and pool details.
func DetailedHealthHandler(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := service.GetHealthResponse(r.Context())

		if response.Details == nil {
			response.Details = make(map[string]interface{})
		}

		statusCode := http.StatusOK
		if response.Status == StatusDown {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(response)
	}
}
