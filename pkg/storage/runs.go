package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func (s *Store) CreateRun(ctx context.Context, id, postalCode string) error {
	run := SyncRunModel{
		ID:         id,
		PostalCode: postalCode,
		Status:     RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Create(&run).Error
}

func (s *Store) FinishRun(ctx context.Context, id, status, errMsg string, counts map[string]interface{}) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Model(&SyncRunModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"error":       errMsg,
			"counts":      datatypes.JSONMap(counts),
			"finished_at": now,
		}).Error
}

func (s *Store) GetRun(ctx context.Context, id string) (*SyncRunModel, error) {
	var run SyncRunModel
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// RecentRuns returns the most recent sync runs up to limit.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]SyncRunModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []SyncRunModel
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
