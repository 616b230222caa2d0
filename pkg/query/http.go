package query

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clinisync/fhir-sync/pkg/common/logger"
	"github.com/clinisync/fhir-sync/pkg/storage"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/patients/{term}", h.handleGetPatient).Methods(http.MethodGet)
	router.HandleFunc("/patients/{id}/observations", h.handleListObservations).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	term := mux.Vars(r)["term"]

	patient, err := h.service.GetPatient(r.Context(), term)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "patient not found with id or name: "+term, http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch patient")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, patient)
}

func (h *HTTPHandler) handleListObservations(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["id"]

	observations, err := h.service.ListObservations(r.Context(), patientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "no observations found for patient: "+patientID, http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to list observations")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"items": observations})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
