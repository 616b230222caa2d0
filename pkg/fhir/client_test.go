package fhir

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSearchPatientsByPostalCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Patient" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("address-postalcode"); got != "1000" {
			t.Errorf("unexpected postal code query %q", got)
		}
		w.Header().Set("Content-Type", "application/fhir+json")
		w.Write([]byte(`{"resourceType":"Bundle","type":"searchset","entry":[{"resource":{"resourceType":"Patient","id":"p1"}}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: 5 * time.Second})

	bundle, err := client.SearchPatientsByPostalCode(context.Background(), "1000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bundle.Entry) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(bundle.Entry))
	}
}

func TestSearchObservationsByPatientQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Observation" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("subject"); got != "Patient/p1" {
			t.Errorf("unexpected subject query %q", got)
		}
		w.Write([]byte(`{"resourceType":"Bundle","type":"searchset"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: 5 * time.Second})

	if _, err := client.SearchObservationsByPatient(context.Background(), "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSearchServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: 5 * time.Second})

	if _, err := client.SearchPatientsByPostalCode(context.Background(), "1000"); !errors.Is(err, ErrRemoteUnavailable) {
		t.Fatalf("expected ErrRemoteUnavailable, got %v", err)
	}
}

func TestSearchConnectionRefusedIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: 5 * time.Second})

	if _, err := client.SearchPatientsByPostalCode(context.Background(), "1000"); !errors.Is(err, ErrRemoteUnavailable) {
		t.Fatalf("expected ErrRemoteUnavailable, got %v", err)
	}
}

func TestSearchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond})

	if _, err := client.SearchPatientsByPostalCode(context.Background(), "1000"); !errors.Is(err, ErrRemoteTimeout) {
		t.Fatalf("expected ErrRemoteTimeout, got %v", err)
	}
}

func TestBatchObservationsCollectsPerPatientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("subject") == "Patient/bad" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"resourceType":"Bundle","entry":[{"resource":{"resourceType":"Observation","id":"o1"}}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: 5 * time.Second})

	results := client.BatchObservations(context.Background(), []string{"p1", "bad", "p2"}, 2)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results["bad"].Err == nil {
		t.Fatal("expected error for patient bad")
	}
	if results["p1"].Err != nil || results["p2"].Err != nil {
		t.Fatalf("unexpected errors: %v %v", results["p1"].Err, results["p2"].Err)
	}
	if len(results["p1"].Bundle.Entry) != 1 {
		t.Fatalf("expected 1 entry for p1, got %d", len(results["p1"].Bundle.Entry))
	}
}
