package sync

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clinisync/fhir-sync/pkg/common/models"
	"github.com/gorilla/mux"
)

func newTestRouter(service *Service) *mux.Router {
	router := mux.NewRouter()
	NewHTTPHandler(service).Register(router)
	return router
}

func TestPopulateEndpointReturnsSummary(t *testing.T) {
	server := fakeFHIRServer(t, patientBundleWithObservation, nil)
	defer server.Close()

	store := newTestStore(t)
	router := newTestRouter(newTestService(t, server, store))

	req := httptest.NewRequest(http.MethodPost, "/populate/1000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var summary models.SyncSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}
	if summary.PatientsInserted != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.PostalCode != "1000" {
		t.Fatalf("expected postal code echoed, got %q", summary.PostalCode)
	}
}

func TestPopulateEndpointNoResultsIs404(t *testing.T) {
	server := fakeFHIRServer(t, `{"resourceType":"Bundle","type":"searchset"}`, nil)
	defer server.Close()

	store := newTestStore(t)
	router := newTestRouter(newTestService(t, server, store))

	req := httptest.NewRequest(http.MethodPost, "/populate/9999", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPopulateEndpointRemoteDownIs503(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	store := newTestStore(t)
	router := newTestRouter(newTestService(t, server, store))

	req := httptest.NewRequest(http.MethodPost, "/populate/1000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestSyncRunEndpoints(t *testing.T) {
	server := fakeFHIRServer(t, patientBundleWithObservation, nil)
	defer server.Close()

	store := newTestStore(t)
	service := newTestService(t, server, store)
	router := newTestRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/populate/1000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("populate failed with %d", rec.Code)
	}

	var summary models.SyncSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sync/runs/"+summary.RunID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for run lookup, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sync/runs/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown run, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sync/runs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for run list, got %d", rec.Code)
	}
}
