package fhir

import "errors"

// ErrNoResults signals a valid search with zero matching entries. It is not
// a remote failure; callers map it to a not-found condition.
var ErrNoResults = errors.New("no matching entries in search result")

const (
	ResourceTypePatient     = "Patient"
	ResourceTypeObservation = "Observation"
)

// Bundle is the search response envelope.
type Bundle struct {
	ResourceType string  `json:"resourceType"`
	ID           string  `json:"id,omitempty"`
	Type         string  `json:"type,omitempty"`
	Total        int     `json:"total,omitempty"`
	Entry        []Entry `json:"entry,omitempty"`
}

// Entry wraps one raw resource plus its inclusion mode.
type Entry struct {
	FullURL  string                 `json:"fullUrl,omitempty"`
	Resource map[string]interface{} `json:"resource,omitempty"`
	Search   *SearchInfo            `json:"search,omitempty"`
}

type SearchInfo struct {
	Mode string `json:"mode,omitempty"`
}

// Partition holds the resources extracted from a bundle, keyed by type.
// Malformed counts entries that carried no resource object.
type Partition struct {
	Patients     []map[string]interface{}
	Observations []map[string]interface{}
	Malformed    int
}

// PartitionBundle extracts resources from the envelope and splits them by
// resourceType. Patient candidates must be primary results (mode "match" or
// absent); Observation candidates may also arrive as "include" entries.
// Entries lacking a resource are counted and skipped, never fatal. A bundle
// with no entries at all yields ErrNoResults.
func PartitionBundle(bundle *Bundle) (*Partition, error) {
	if bundle == nil || len(bundle.Entry) == 0 {
		return nil, ErrNoResults
	}

	part := &Partition{}
	for _, entry := range bundle.Entry {
		if entry.Resource == nil {
			part.Malformed++
			continue
		}

		mode := ""
		if entry.Search != nil {
			mode = entry.Search.Mode
		}
		if mode == "outcome" {
			continue
		}

		resourceType, _ := entry.Resource["resourceType"].(string)
		switch resourceType {
		case ResourceTypePatient:
			if mode == "" || mode == "match" {
				part.Patients = append(part.Patients, entry.Resource)
			}
		case ResourceTypeObservation:
			part.Observations = append(part.Observations, entry.Resource)
		default:
			// unrecognized resource types are ignored
		}
	}

	return part, nil
}
