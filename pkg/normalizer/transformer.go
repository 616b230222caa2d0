package normalizer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clinisync/fhir-sync/pkg/common/logger"
	"github.com/clinisync/fhir-sync/pkg/common/models"
)

// ErrMissingIdentifier rejects a resource without an id; such a record
// cannot be deduplicated and is skipped rather than stored.
var ErrMissingIdentifier = errors.New("resource missing identifier")

type Transformer struct {
	rules   Rules
	allowed map[string]struct{}
}

func NewTransformer(rules Rules) *Transformer {
	allowedSet := make(map[string]struct{})
	for _, r := range rules.AllowedResources {
		allowedSet[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}
	return &Transformer{rules: rules, allowed: allowedSet}
}

// NormalizePatient maps a raw Patient resource into the flat record.
// Only the id is mandatory; every other field has a defined default.
func (t *Transformer) NormalizePatient(data map[string]interface{}) (models.PatientRecord, error) {
	if data == nil {
		return models.PatientRecord{}, fmt.Errorf("nil payload: %w", ErrMissingIdentifier)
	}

	id := getString(data["id"])
	if id == "" {
		return models.PatientRecord{}, fmt.Errorf("patient: %w", ErrMissingIdentifier)
	}

	record := models.PatientRecord{
		ExternalID: id,
		FirstName:  t.rules.NamePlaceholder,
		Gender:     getString(data["gender"]),
		Raw:        data,
	}

	names := extractList(data["name"])
	if len(names) > 0 {
		given := extractList(extractMap(names[0])["given"])
		if len(given) > 0 {
			if first := getString(given[0]); first != "" {
				record.FirstName = first
			}
		}
	}

	if birthDate := getString(data["birthDate"]); birthDate != "" {
		parsed, err := time.Parse(t.rules.BirthDateLayout, birthDate)
		if err != nil {
			logger.Log.WithField("patient_id", id).WithField("birth_date", birthDate).
				Debug("unparseable birth date, storing null")
		} else {
			record.BirthDate = &parsed
		}
	}

	return record, nil
}

// NormalizeObservation maps a raw Observation resource into the flat
// record. The patient linkage comes from subject.reference with the
// configured prefix stripped; an unresolvable reference leaves
// PatientExternalID empty and the caller decides the orphan policy.
func (t *Transformer) NormalizeObservation(data map[string]interface{}) (models.ObservationRecord, error) {
	if data == nil {
		return models.ObservationRecord{}, fmt.Errorf("nil payload: %w", ErrMissingIdentifier)
	}

	id := getString(data["id"])
	if id == "" {
		return models.ObservationRecord{}, fmt.Errorf("observation: %w", ErrMissingIdentifier)
	}

	return models.ObservationRecord{
		ExternalID:        id,
		ResourceType:      getString(data["resourceType"]),
		Status:            getString(data["status"]),
		PatientExternalID: t.extractPatientReference(data),
		Raw:               data,
	}, nil
}

// NormalizePatients folds the candidate list into accepted records plus a
// skip count with reasons. A malformed resource never aborts the batch.
func (t *Transformer) NormalizePatients(raws []map[string]interface{}) ([]models.PatientRecord, int, []string) {
	var records []models.PatientRecord
	var reasons []string
	skipped := 0

	for _, raw := range raws {
		if !t.resourceAllowed(raw, "patient") {
			skipped++
			reasons = append(reasons, "patient: resource type not allowed")
			continue
		}
		record, err := t.NormalizePatient(raw)
		if err != nil {
			skipped++
			reasons = append(reasons, err.Error())
			continue
		}
		records = append(records, record)
	}

	return records, skipped, reasons
}

func (t *Transformer) NormalizeObservations(raws []map[string]interface{}) ([]models.ObservationRecord, int, []string) {
	var records []models.ObservationRecord
	var reasons []string
	skipped := 0

	for _, raw := range raws {
		if !t.resourceAllowed(raw, "observation") {
			skipped++
			reasons = append(reasons, "observation: resource type not allowed")
			continue
		}
		record, err := t.NormalizeObservation(raw)
		if err != nil {
			skipped++
			reasons = append(reasons, err.Error())
			continue
		}
		records = append(records, record)
	}

	return records, skipped, reasons
}

func (t *Transformer) resourceAllowed(data map[string]interface{}, fallback string) bool {
	if len(t.allowed) == 0 {
		return true
	}
	resourceType := strings.ToLower(getString(data["resourceType"]))
	if resourceType == "" {
		resourceType = fallback
	}
	_, ok := t.allowed[resourceType]
	return ok
}

func (t *Transformer) extractPatientReference(data map[string]interface{}) string {
	subject := extractMap(data["subject"])
	ref := getString(subject["reference"])
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, t.rules.SubjectPrefix) {
		return strings.TrimPrefix(ref, t.rules.SubjectPrefix)
	}
	// urn:uuid and foreign-type references are not resolvable here
	return ""
}

func extractMap(value interface{}) map[string]interface{} {
	if m, ok := value.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func extractList(value interface{}) []interface{} {
	if l, ok := value.([]interface{}); ok {
		return l
	}
	return nil
}

func getString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		return ""
	}
}
