package fhir

import (
	"context"
	"net/url"
	"sync"

	"github.com/clinisync/fhir-sync/pkg/common/logger"
)

// SearchPatientsByPostalCode queries the server for patients whose address
// carries the given postal code and returns the raw envelope.
func (c *Client) SearchPatientsByPostalCode(ctx context.Context, postalCode string) (*Bundle, error) {
	query := url.Values{}
	query.Set("address-postalcode", postalCode)
	return c.search(ctx, "/Patient", query)
}

// SearchObservationsByPatient queries the server for observations whose
// subject is the given patient.
func (c *Client) SearchObservationsByPatient(ctx context.Context, patientID string) (*Bundle, error) {
	query := url.Values{}
	query.Set("subject", "Patient/"+patientID)
	return c.search(ctx, "/Observation", query)
}

// BundleResult pairs a fetched bundle with the error that produced it, for
// batch fetches where per-patient failures must not abort the run.
type BundleResult struct {
	Bundle *Bundle
	Err    error
}

// BatchObservations fetches observations for each patient concurrently with
// a bounded number of workers. Individual failures are recorded per patient
// and logged; the batch itself never fails.
func (c *Client) BatchObservations(ctx context.Context, patientIDs []string, fanout int) map[string]BundleResult {
	if fanout <= 0 {
		fanout = 1
	}

	results := make(map[string]BundleResult, len(patientIDs))
	var mu sync.Mutex
	var wg sync.WaitGroup

	ids := make(chan string)
	for i := 0; i < fanout; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				bundle, err := c.SearchObservationsByPatient(ctx, id)
				if err != nil {
					logger.Log.WithError(err).WithField("patient_id", id).Warn("observation fetch failed")
				}
				mu.Lock()
				results[id] = BundleResult{Bundle: bundle, Err: err}
				mu.Unlock()
			}
		}()
	}

	for _, id := range patientIDs {
		ids <- id
	}
	close(ids)
	wg.Wait()

	return results
}
