package correlation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/nourish-clinic/platform/pkg/common/logger"
	"github.com/nourish-clinic/platform/pkg/common/tenant"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/patients/{patientId}/correlation-report", h.handleReport).Methods(http.MethodGet)
	router.HandleFunc("/patients/{patientId}/correlations/backfill", h.handleBackfill).Methods(http.MethodPost)
	router.HandleFunc("/symptoms/{symptomEventId}/correlations", h.handleRun).Methods(http.MethodPost)
	router.HandleFunc("/symptoms/{symptomEventId}/correlations", h.handleList).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleReport(w http.ResponseWriter, r *http.Request) {
	scope, _ := tenant.FromContext(r.Context())
	report, err := h.service.GetCorrelationReport(r.Context(), scope, mux.Vars(r)["patientId"])
	if err != nil {
		writeError(w, err, "failed to build correlation report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *HTTPHandler) handleRun(w http.ResponseWriter, r *http.Request) {
	scope, _ := tenant.FromContext(r.Context())
	result, err := h.service.RunCorrelation(r.Context(), scope, mux.Vars(r)["symptomEventId"])
	if err != nil {
		writeError(w, err, "failed to correlate symptom event")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	scope, _ := tenant.FromContext(r.Context())
	rows, err := h.service.ListCorrelations(r.Context(), scope, mux.Vars(r)["symptomEventId"])
	if err != nil {
		writeError(w, err, "failed to list correlations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": rows})
}

func (h *HTTPHandler) handleBackfill(w http.ResponseWriter, r *http.Request) {
	scope, _ := tenant.FromContext(r.Context())
	result, err := h.service.Backfill(r.Context(), scope, mux.Vars(r)["patientId"])
	if err != nil {
		writeError(w, err, "failed to backfill correlations")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeError maps engine errors to status codes. Unexpected failures get an
// opaque body and are logged here.
func writeError(w http.ResponseWriter, err error, msg string) {
	switch {
	case IsValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrPatientNotFound):
		http.Error(w, "patient not found", http.StatusNotFound)
	case errors.Is(err, ErrSymptomEventNotFound):
		http.Error(w, "symptom event not found", http.StatusNotFound)
	default:
		logger.Log.WithError(err).Error(msg)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Warn("failed to encode response")
	}
}
