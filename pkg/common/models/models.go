package models

import "time"

// PatientRecord is the flat patient shape produced by the normalizer and
// served on the read path. BirthDate is nil when the source omits it.
type PatientRecord struct {
	ExternalID string                 `json:"external_id"`
	FirstName  string                 `json:"first_name"`
	Gender     string                 `json:"gender,omitempty"`
	BirthDate  *time.Time             `json:"birth_date,omitempty"`
	Raw        map[string]interface{} `json:"-"`
}

// ObservationRecord is the flat observation shape. PatientExternalID is the
// owning patient's external identifier, resolved from the subject reference.
type ObservationRecord struct {
	ExternalID        string                 `json:"external_id"`
	ResourceType      string                 `json:"resource_type"`
	Status            string                 `json:"status,omitempty"`
	PatientExternalID string                 `json:"patient_external_id"`
	Raw               map[string]interface{} `json:"-"`
}

// SyncSummary reports the outcome of one ingestion run.
type SyncSummary struct {
	RunID                string    `json:"run_id"`
	PostalCode           string    `json:"postal_code"`
	PatientsInserted     int       `json:"patients_inserted"`
	PatientsUpdated      int       `json:"patients_updated"`
	ObservationsInserted int       `json:"observations_inserted"`
	ObservationsUpdated  int       `json:"observations_updated"`
	Skipped              int       `json:"skipped"`
	Orphaned             int       `json:"orphaned"`
	Malformed            int       `json:"malformed"`
	StartedAt            time.Time `json:"started_at"`
	FinishedAt           time.Time `json:"finished_at"`
}

// Event is the kafka envelope shared by all publishers.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // sync.completed, observation.orphaned
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}
