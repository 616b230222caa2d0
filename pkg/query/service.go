package query

import (
	"context"
	"encoding/json"
	"time"

	"github.com/clinisync/fhir-sync/pkg/common/logger"
	"github.com/clinisync/fhir-sync/pkg/common/models"
	"github.com/clinisync/fhir-sync/pkg/storage"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "fhirsync:patient:"

// Service serves the read paths. The redis client is optional; with a nil
// client every lookup goes straight to the store. Cache failures degrade to
// database reads.
type Service struct {
	store    *storage.Store
	cache    *redis.Client
	cacheTTL time.Duration
}

func NewService(store *storage.Store, cache *redis.Client, cacheTTL time.Duration) *Service {
	return &Service{store: store, cache: cache, cacheTTL: cacheTTL}
}

// GetPatient resolves the term as an external identifier or an exact first
// name. Misses return storage.ErrNotFound.
func (s *Service) GetPatient(ctx context.Context, term string) (models.PatientRecord, error) {
	if cached, ok := s.cachedPatient(ctx, term); ok {
		return cached, nil
	}

	record, err := s.store.GetPatient(ctx, term)
	if err != nil {
		return models.PatientRecord{}, err
	}

	s.cachePatient(ctx, term, record)
	return record, nil
}

// ListObservations returns the patient's observations; an empty result is a
// storage.ErrNotFound by explicit product decision.
func (s *Service) ListObservations(ctx context.Context, patientExternalID string) ([]models.ObservationRecord, error) {
	return s.store.ListObservations(ctx, patientExternalID)
}

func (s *Service) cachedPatient(ctx context.Context, term string) (models.PatientRecord, bool) {
	if s.cache == nil {
		return models.PatientRecord{}, false
	}

	raw, err := s.cache.Get(ctx, cacheKeyPrefix+term).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Log.WithError(err).Debug("patient cache read failed")
		}
		return models.PatientRecord{}, false
	}

	var record models.PatientRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return models.PatientRecord{}, false
	}
	return record, true
}

func (s *Service) cachePatient(ctx context.Context, term string, record models.PatientRecord) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKeyPrefix+term, raw, s.cacheTTL).Err(); err != nil {
		logger.Log.WithError(err).Debug("patient cache write failed")
	}
}
