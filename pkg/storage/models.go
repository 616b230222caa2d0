package storage

import (
	"time"

	"gorm.io/datatypes"
)

type PatientModel struct {
	ID         uint              `gorm:"primaryKey;column:id"`
	ExternalID string            `gorm:"uniqueIndex;column:external_id"`
	FirstName  string            `gorm:"column:first_name"`
	Gender     string            `gorm:"column:gender"`
	BirthDate  *time.Time        `gorm:"column:birth_date"`
	Raw        datatypes.JSONMap `gorm:"column:raw"`
	CreatedAt  time.Time         `gorm:"column:created_at"`
	UpdatedAt  time.Time         `gorm:"column:updated_at"`
}

func (PatientModel) TableName() string {
	return "patients"
}

type ObservationModel struct {
	ID                uint              `gorm:"primaryKey;column:id"`
	ExternalID        string            `gorm:"uniqueIndex;column:external_id"`
	ResourceType      string            `gorm:"column:resource_type"`
	Status            string            `gorm:"column:status"`
	PatientExternalID string            `gorm:"index;column:patient_external_id"`
	Raw               datatypes.JSONMap `gorm:"column:raw"`
	CreatedAt         time.Time         `gorm:"column:created_at"`
	UpdatedAt         time.Time         `gorm:"column:updated_at"`

	Patient PatientModel `gorm:"foreignKey:PatientExternalID;references:ExternalID"`
}

func (ObservationModel) TableName() string {
	return "observations"
}

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// SyncRunModel is the audit row written for every ingestion run.
type SyncRunModel struct {
	ID         string            `gorm:"primaryKey;column:id"`
	PostalCode string            `gorm:"column:postal_code"`
	Status     string            `gorm:"column:status"`
	Error      string            `gorm:"column:error"`
	Counts     datatypes.JSONMap `gorm:"column:counts"`
	StartedAt  time.Time         `gorm:"column:started_at"`
	FinishedAt *time.Time        `gorm:"column:finished_at"`
}

func (SyncRunModel) TableName() string {
	return "sync_runs"
}
