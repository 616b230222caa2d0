package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clinisync/fhir-sync/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrPersistence wraps any storage error inside an upsert batch; the
	// whole transaction has been rolled back when it surfaces.
	ErrPersistence = errors.New("persistence failure")
)

// Store owns all reads and writes against the relational schema. The
// database handle is injected; the store keeps no other state.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&PatientModel{}, &ObservationModel{}, &SyncRunModel{})
}

// UpsertResult reports what one batch did, including the observations held
// back because their owning patient could not be resolved.
type UpsertResult struct {
	PatientsInserted     int
	PatientsUpdated      int
	ObservationsInserted int
	ObservationsUpdated  int
	Orphans              []models.ObservationRecord
}

// UpsertBatch writes the normalized records as one atomic unit. Patients
// conflict on external_id and update mutable fields in place; observations
// are persisted only when their owning patient exists in this batch or in
// storage already. Any error rolls the whole batch back.
func (s *Store) UpsertBatch(ctx context.Context, patients []models.PatientRecord, observations []models.ObservationRecord) (UpsertResult, error) {
	var res UpsertResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batchPatients := make(map[string]struct{}, len(patients))
		patientIDs := make([]string, 0, len(patients))
		for _, p := range patients {
			if _, ok := batchPatients[p.ExternalID]; ok {
				continue
			}
			batchPatients[p.ExternalID] = struct{}{}
			patientIDs = append(patientIDs, p.ExternalID)
		}

		existingPatients, err := existingIDs(tx, &PatientModel{}, patientIDs)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		written := make(map[string]struct{}, len(patients))
		for _, p := range patients {
			if _, dup := written[p.ExternalID]; dup {
				continue
			}
			written[p.ExternalID] = struct{}{}

			model := PatientModel{
				ExternalID: p.ExternalID,
				FirstName:  p.FirstName,
				Gender:     p.Gender,
				BirthDate:  p.BirthDate,
				Raw:        datatypes.JSONMap(p.Raw),
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "external_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"first_name", "gender", "birth_date", "raw", "updated_at"}),
			}).Create(&model).Error
			if err != nil {
				return err
			}

			if _, ok := existingPatients[p.ExternalID]; ok {
				res.PatientsUpdated++
			} else {
				res.PatientsInserted++
			}
		}

		// resolve observation owners against the batch first, then storage
		var unresolved []string
		for _, o := range observations {
			if o.PatientExternalID == "" {
				continue
			}
			if _, ok := batchPatients[o.PatientExternalID]; !ok {
				unresolved = append(unresolved, o.PatientExternalID)
			}
		}
		storedPatients, err := existingIDs(tx, &PatientModel{}, unresolved)
		if err != nil {
			return err
		}

		obsIDs := make([]string, 0, len(observations))
		for _, o := range observations {
			obsIDs = append(obsIDs, o.ExternalID)
		}
		existingObs, err := existingIDs(tx, &ObservationModel{}, obsIDs)
		if err != nil {
			return err
		}

		writtenObs := make(map[string]struct{}, len(observations))
		for _, o := range observations {
			_, inBatch := batchPatients[o.PatientExternalID]
			_, inStore := storedPatients[o.PatientExternalID]
			if o.PatientExternalID == "" || (!inBatch && !inStore) {
				res.Orphans = append(res.Orphans, o)
				continue
			}
			if _, dup := writtenObs[o.ExternalID]; dup {
				continue
			}
			writtenObs[o.ExternalID] = struct{}{}

			model := ObservationModel{
				ExternalID:        o.ExternalID,
				ResourceType:      o.ResourceType,
				Status:            o.Status,
				PatientExternalID: o.PatientExternalID,
				Raw:               datatypes.JSONMap(o.Raw),
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "external_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"resource_type", "status", "patient_external_id", "raw", "updated_at"}),
			}).Create(&model).Error
			if err != nil {
				return err
			}

			if _, ok := existingObs[o.ExternalID]; ok {
				res.ObservationsUpdated++
			} else {
				res.ObservationsInserted++
			}
		}

		return nil
	})
	if err != nil {
		return UpsertResult{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return res, nil
}

// GetPatient looks a patient up by external identifier or exact first name.
// Ambiguous name matches resolve to the lowest row id, i.e. insertion order.
func (s *Store) GetPatient(ctx context.Context, term string) (models.PatientRecord, error) {
	var model PatientModel
	err := s.db.WithContext(ctx).
		Where("external_id = ? OR first_name = ?", term, term).
		Order("id ASC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.PatientRecord{}, ErrNotFound
	}
	if err != nil {
		return models.PatientRecord{}, err
	}
	return toPatientRecord(model), nil
}

// ListObservations returns the observations owned by the patient. An empty
// result collapses to ErrNotFound; callers do not distinguish "patient
// unknown" from "patient has no observations".
func (s *Store) ListObservations(ctx context.Context, patientExternalID string) ([]models.ObservationRecord, error) {
	var rows []ObservationModel
	err := s.db.WithContext(ctx).
		Where("patient_external_id = ?", patientExternalID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	records := make([]models.ObservationRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, toObservationRecord(row))
	}
	return records, nil
}

func existingIDs(tx *gorm.DB, model interface{}, ids []string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	if len(ids) == 0 {
		return set, nil
	}
	var found []string
	if err := tx.Model(model).Where("external_id IN ?", ids).Pluck("external_id", &found).Error; err != nil {
		return nil, err
	}
	for _, id := range found {
		set[id] = struct{}{}
	}
	return set, nil
}

func toPatientRecord(model PatientModel) models.PatientRecord {
	return models.PatientRecord{
		ExternalID: model.ExternalID,
		FirstName:  model.FirstName,
		Gender:     model.Gender,
		BirthDate:  model.BirthDate,
		Raw:        model.Raw,
	}
}

func toObservationRecord(model ObservationModel) models.ObservationRecord {
	return models.ObservationRecord{
		ExternalID:        model.ExternalID,
		ResourceType:      model.ResourceType,
		Status:            model.Status,
		PatientExternalID: model.PatientExternalID,
		Raw:               model.Raw,
	}
}
