package handlers

import (
	"net/http"

	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/internal/usecases/queries"
)

const msgHealthError = "health check failed"

func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	report, err := h.app.Queries.FetchLiveness.Execute(r.Context(), queries.FetchLivenessQuery{})
	if err != nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, codeServiceUnavailable, msgHealthError, nil)

		return
	}

	writeJSONResponse(w, healthStatusCode(report.Status), report)
}

func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	report, err := h.app.Queries.FetchReadiness.Execute(r.Context(), queries.FetchReadinessQuery{})
	if err != nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, codeServiceUnavailable, msgHealthError, nil)

		return
	}

	writeJSONResponse(w, healthStatusCode(report.Status), report)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report, err := h.app.Queries.FetchHealthReport.Execute(r.Context(), queries.FetchHealthReportQuery{})
	if err != nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, codeServiceUnavailable, msgHealthError, nil)

		return
	}

	writeJSONResponse(w, healthStatusCode(report.Status), report)
}

// healthStatusCode keeps a degraded service in rotation.
func healthStatusCode(status model.HealthStatus) int {
	if status == model.HealthStatusDown {
		return http.StatusServiceUnavailable
	}

	return http.StatusOK
}
