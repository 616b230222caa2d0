package sync

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/clinisync/fhir-sync/pkg/common/logger"
	"github.com/clinisync/fhir-sync/pkg/fhir"
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
	router.HandleFunc("/populate/{postal_code}", h.handlePopulate).Methods(http.MethodPost)
	router.HandleFunc("/sync/runs", h.handleListRuns).Methods(http.MethodGet)
	router.HandleFunc("/sync/runs/{id}", h.handleGetRun).Methods(http.MethodGet)
}

func (h *HTTPHandler) handlePopulate(w http.ResponseWriter, r *http.Request) {
	postalCode := mux.Vars(r)["postal_code"]
	if postalCode == "" {
		http.Error(w, "postal code is required", http.StatusBadRequest)
		return
	}

	summary, err := h.service.Populate(r.Context(), postalCode)
	if err != nil {
		switch {
		case errors.Is(err, fhir.ErrNoResults):
			http.Error(w, "no patients found for postal code "+postalCode, http.StatusNotFound)
		case errors.Is(err, fhir.ErrRemoteTimeout), errors.Is(err, fhir.ErrRemoteUnavailable):
			logger.Log.WithError(err).Error("remote FHIR server failure")
			http.Error(w, "fhir server unavailable", http.StatusServiceUnavailable)
		case errors.Is(err, storage.ErrPersistence):
			logger.Log.WithError(err).Error("failed to persist sync batch")
			http.Error(w, "failed to save data", http.StatusInternalServerError)
		default:
			logger.Log.WithError(err).Error("sync run failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *HTTPHandler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	run, err := h.service.Run(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "sync run not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch sync run")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func (h *HTTPHandler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := h.service.RecentRuns(r.Context(), limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list sync runs")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"items": runs})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
