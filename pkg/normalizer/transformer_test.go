package normalizer

import (
	"errors"
	"testing"
)

func newTestTransformer() *Transformer {
	return NewTransformer(DefaultRules())
}

func TestNormalizePatientFullResource(t *testing.T) {
	raw := map[string]interface{}{
		"resourceType": "Patient",
		"id":           "p1",
		"name": []interface{}{
			map[string]interface{}{"given": []interface{}{"Jo", "Ann"}},
		},
		"gender":    "female",
		"birthDate": "1990-01-01",
	}

	record, err := newTestTransformer().NormalizePatient(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.ExternalID != "p1" {
		t.Fatalf("expected external id p1, got %q", record.ExternalID)
	}
	if record.FirstName != "Jo" {
		t.Fatalf("expected first name Jo, got %q", record.FirstName)
	}
	if record.Gender != "female" {
		t.Fatalf("expected gender female, got %q", record.Gender)
	}
	if record.BirthDate == nil {
		t.Fatal("expected birth date to be set")
	}
	if got := record.BirthDate.Format("2006-01-02"); got != "1990-01-01" {
		t.Fatalf("expected birth date 1990-01-01, got %s", got)
	}
}

func TestNormalizePatientDefaults(t *testing.T) {
	record, err := newTestTransformer().NormalizePatient(map[string]interface{}{
		"resourceType": "Patient",
		"id":           "p2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.FirstName != "" {
		t.Fatalf("expected placeholder first name, got %q", record.FirstName)
	}
	if record.Gender != "" {
		t.Fatalf("expected empty gender, got %q", record.Gender)
	}
	if record.BirthDate != nil {
		t.Fatalf("expected nil birth date, got %v", record.BirthDate)
	}
}

func TestNormalizePatientRejectsMissingID(t *testing.T) {
	_, err := newTestTransformer().NormalizePatient(map[string]interface{}{
		"resourceType": "Patient",
		"name":         []interface{}{map[string]interface{}{"given": []interface{}{"Jo"}}},
	})
	if !errors.Is(err, ErrMissingIdentifier) {
		t.Fatalf("expected ErrMissingIdentifier, got %v", err)
	}
}

func TestNormalizePatientUnparseableBirthDate(t *testing.T) {
	record, err := newTestTransformer().NormalizePatient(map[string]interface{}{
		"resourceType": "Patient",
		"id":           "p3",
		"birthDate":    "01/02/1990",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.BirthDate != nil {
		t.Fatalf("expected nil birth date for bad layout, got %v", record.BirthDate)
	}
}

func TestNormalizeObservation(t *testing.T) {
	record, err := newTestTransformer().NormalizeObservation(map[string]interface{}{
		"resourceType": "Observation",
		"id":           "o1",
		"status":       "final",
		"subject":      map[string]interface{}{"reference": "Patient/p1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.ExternalID != "o1" {
		t.Fatalf("expected external id o1, got %q", record.ExternalID)
	}
	if record.Status != "final" {
		t.Fatalf("expected status final, got %q", record.Status)
	}
	if record.PatientExternalID != "p1" {
		t.Fatalf("expected patient link p1, got %q", record.PatientExternalID)
	}
}

func TestNormalizeObservationUnresolvableReference(t *testing.T) {
	tr := newTestTransformer()

	for _, ref := range []string{"urn:uuid:abc-123", "Group/g1", ""} {
		raw := map[string]interface{}{
			"resourceType": "Observation",
			"id":           "o2",
			"status":       "final",
		}
		if ref != "" {
			raw["subject"] = map[string]interface{}{"reference": ref}
		}
		record, err := tr.NormalizeObservation(raw)
		if err != nil {
			t.Fatalf("unexpected error for ref %q: %v", ref, err)
		}
		if record.PatientExternalID != "" {
			t.Fatalf("expected empty patient link for ref %q, got %q", ref, record.PatientExternalID)
		}
	}
}

func TestNormalizeObservationRejectsMissingID(t *testing.T) {
	_, err := newTestTransformer().NormalizeObservation(map[string]interface{}{
		"resourceType": "Observation",
		"status":       "final",
	})
	if !errors.Is(err, ErrMissingIdentifier) {
		t.Fatalf("expected ErrMissingIdentifier, got %v", err)
	}
}

func TestNormalizePatientsFoldSkipsAndContinues(t *testing.T) {
	raws := []map[string]interface{}{
		{"resourceType": "Patient", "id": "p1"},
		{"resourceType": "Patient"}, // no id
		{"resourceType": "Patient", "id": "p2"},
	}

	records, skipped, reasons := newTestTransformer().NormalizePatients(raws)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if skipped != 1 {
		t.Fatalf("expected 1 skipped, got %d", skipped)
	}
	if len(reasons) != 1 {
		t.Fatalf("expected 1 reason, got %d", len(reasons))
	}
}
