package sync

import (
	"context"
	"errors"
	"time"

	"github.com/clinisync/fhir-sync/pkg/common/kafka"
	"github.com/clinisync/fhir-sync/pkg/common/logger"
	"github.com/clinisync/fhir-sync/pkg/common/models"
	"github.com/clinisync/fhir-sync/pkg/fhir"
	"github.com/clinisync/fhir-sync/pkg/normalizer"
	"github.com/clinisync/fhir-sync/pkg/observability/metrics"
	"github.com/clinisync/fhir-sync/pkg/storage"
	"github.com/google/uuid"
)

// Service drives one ingestion run: remote search, bundle interpretation,
// normalization, and the atomic upsert. Producers are optional; a nil
// producer disables event publishing.
type Service struct {
	client      *fhir.Client
	transformer *normalizer.Transformer
	store       *storage.Store
	producer    *kafka.Producer
	dlq         *kafka.Producer
	fanout      int
}

func NewService(client *fhir.Client, transformer *normalizer.Transformer, store *storage.Store, producer, dlq *kafka.Producer, fanout int) *Service {
	return &Service{
		client:      client,
		transformer: transformer,
		store:       store,
		producer:    producer,
		dlq:         dlq,
		fanout:      fanout,
	}
}

// Populate ingests every patient the remote server returns for the postal
// code, plus their observations. Per-resource malformation is skipped and
// counted; remote and storage failures abort the run and propagate.
func (s *Service) Populate(ctx context.Context, postalCode string) (*models.SyncSummary, error) {
	runID := uuid.New().String()
	startedAt := time.Now().UTC()

	// the audit row is best effort; a failed insert never blocks ingestion
	if err := s.store.CreateRun(ctx, runID, postalCode); err != nil {
		logger.Log.WithError(err).Warn("failed to record sync run")
	}

	searchStart := time.Now()
	bundle, err := s.client.SearchPatientsByPostalCode(ctx, postalCode)
	metrics.RemoteRequestDuration.WithLabelValues("patient_search").Observe(time.Since(searchStart).Seconds())
	if err != nil {
		s.finishRun(ctx, runID, storage.RunStatusFailed, err.Error(), nil)
		metrics.SyncRunsTotal.WithLabelValues("remote_error").Inc()
		return nil, err
	}

	part, err := fhir.PartitionBundle(bundle)
	if err != nil {
		if errors.Is(err, fhir.ErrNoResults) {
			s.finishRun(ctx, runID, storage.RunStatusCompleted, "no matching patients", nil)
			metrics.SyncRunsTotal.WithLabelValues("no_results").Inc()
		}
		return nil, err
	}

	patients, skippedPatients, patientReasons := s.transformer.NormalizePatients(part.Patients)
	logSkips("patient", patientReasons)

	observationCandidates := part.Observations
	malformed := part.Malformed

	patientIDs := make([]string, 0, len(patients))
	for _, p := range patients {
		patientIDs = append(patientIDs, p.ExternalID)
	}

	obsStart := time.Now()
	for _, result := range s.client.BatchObservations(ctx, patientIDs, s.fanout) {
		if result.Err != nil {
			continue
		}
		obsPart, err := fhir.PartitionBundle(result.Bundle)
		if err != nil {
			continue
		}
		observationCandidates = append(observationCandidates, obsPart.Observations...)
		malformed += obsPart.Malformed
	}
	metrics.RemoteRequestDuration.WithLabelValues("observation_search").Observe(time.Since(obsStart).Seconds())

	observations, skippedObservations, observationReasons := s.transformer.NormalizeObservations(observationCandidates)
	logSkips("observation", observationReasons)

	skipped := skippedPatients + skippedObservations
	metrics.RecordsSkipped.WithLabelValues("malformed").Add(float64(malformed))
	metrics.RecordsSkipped.WithLabelValues("missing_identifier").Add(float64(skipped))

	result, err := s.store.UpsertBatch(ctx, patients, observations)
	if err != nil {
		s.finishRun(ctx, runID, storage.RunStatusFailed, err.Error(), nil)
		metrics.SyncRunsTotal.WithLabelValues("persistence_error").Inc()
		return nil, err
	}

	s.reportOrphans(ctx, postalCode, result.Orphans)

	summary := &models.SyncSummary{
		RunID:                runID,
		PostalCode:           postalCode,
		PatientsInserted:     result.PatientsInserted,
		PatientsUpdated:      result.PatientsUpdated,
		ObservationsInserted: result.ObservationsInserted,
		ObservationsUpdated:  result.ObservationsUpdated,
		Skipped:              skipped,
		Orphaned:             len(result.Orphans),
		Malformed:            malformed,
		StartedAt:            startedAt,
		FinishedAt:           time.Now().UTC(),
	}

	counts := map[string]interface{}{
		"patients_inserted":     summary.PatientsInserted,
		"patients_updated":      summary.PatientsUpdated,
		"observations_inserted": summary.ObservationsInserted,
		"observations_updated":  summary.ObservationsUpdated,
		"skipped":               summary.Skipped,
		"orphaned":              summary.Orphaned,
		"malformed":             summary.Malformed,
	}
	s.finishRun(ctx, runID, storage.RunStatusCompleted, "", counts)

	metrics.SyncRunsTotal.WithLabelValues("completed").Inc()
	metrics.PatientsUpserted.Add(float64(summary.PatientsInserted + summary.PatientsUpdated))
	metrics.ObservationsUpserted.Add(float64(summary.ObservationsInserted + summary.ObservationsUpdated))

	if s.producer != nil {
		counts["run_id"] = runID
		counts["postal_code"] = postalCode
		if err := s.producer.PublishEvent(ctx, "sync.completed", "sync-service", counts); err != nil {
			logger.Log.WithError(err).Error("failed to publish sync event")
		}
	}

	return summary, nil
}

// Run returns one sync run audit row.
func (s *Service) Run(ctx context.Context, id string) (*storage.SyncRunModel, error) {
	return s.store.GetRun(ctx, id)
}

// RecentRuns returns the latest sync run audit rows.
func (s *Service) RecentRuns(ctx context.Context, limit int) ([]storage.SyncRunModel, error) {
	return s.store.RecentRuns(ctx, limit)
}

func (s *Service) finishRun(ctx context.Context, id, status, errMsg string, counts map[string]interface{}) {
	if err := s.store.FinishRun(ctx, id, status, errMsg, counts); err != nil {
		logger.Log.WithError(err).Warn("failed to finish sync run")
	}
}

// reportOrphans logs each unresolvable observation and forwards it to the
// DLQ topic when one is configured. Orphans never fail the run.
func (s *Service) reportOrphans(ctx context.Context, postalCode string, orphans []models.ObservationRecord) {
	if len(orphans) == 0 {
		return
	}
	metrics.RecordsSkipped.WithLabelValues("orphaned").Add(float64(len(orphans)))

	for _, orphan := range orphans {
		logger.Log.WithFields(map[string]interface{}{
			"observation_id": orphan.ExternalID,
			"patient_ref":    orphan.PatientExternalID,
			"postal_code":    postalCode,
		}).Warn("orphaned observation skipped")

		if s.dlq == nil {
			continue
		}
		payload := map[string]interface{}{
			"observation_id": orphan.ExternalID,
			"patient_ref":    orphan.PatientExternalID,
			"postal_code":    postalCode,
			"resource":       orphan.Raw,
		}
		if err := s.dlq.PublishEvent(ctx, "observation.orphaned", "sync-service", payload); err != nil {
			logger.Log.WithError(err).Error("failed to push orphan to DLQ")
		}
	}
}

func logSkips(kind string, reasons []string) {
	for _, reason := range reasons {
		logger.Log.WithFields(map[string]interface{}{
			"kind":   kind,
			"reason": reason,
		}).Debug("resource skipped")
	}
}
