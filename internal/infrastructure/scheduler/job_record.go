package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus represents the execution state of a sweep job
type JobStatus string

const (
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// SweepJobRecord is the persisted audit trail of one sweep execution.
// CompanyID is nil for platform-wide sweeps (quote expiry runs across all
// companies in one pass).
type SweepJobRecord struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	CompanyID   *uuid.UUID `gorm:"column:company_id;type:uuid"`
	JobName     string     `gorm:"column:job_name;size:50;not null"`
	Status      string     `gorm:"column:status;size:20"`
	Error       string     `gorm:"column:error;type:text"`
	StartedAt   *time.Time `gorm:"column:started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

// TableName returns the table name for GORM
func (SweepJobRecord) TableName() string {
	return "sweep_job_records"
}

// JobRecordRepository handles persistence of sweep job records
type JobRecordRepository struct {
	db *gorm.DB
}

// NewJobRecordRepository creates a new JobRecordRepository
func NewJobRecordRepository(db *gorm.DB) *JobRecordRepository {
	return &JobRecordRepository{db: db}
}

// RecordJobStart records the start of a sweep execution
func (r *JobRecordRepository) RecordJobStart(ctx context.Context, companyID *uuid.UUID, jobName string) (uuid.UUID, error) {
	now := time.Now()
	record := &SweepJobRecord{
		ID:        uuid.New(),
		CompanyID: companyID,
		JobName:   jobName,
		Status:    string(JobStatusRunning),
		StartedAt: &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return uuid.Nil, err
	}
	return record.ID, nil
}

// RecordJobComplete records the completion of a sweep
func (r *JobRecordRepository) RecordJobComplete(ctx context.Context, jobID uuid.UUID, success bool, errMsg string) error {
	now := time.Now()
	status := string(JobStatusSuccess)
	if !success {
		status = string(JobStatusFailed)
	}
	return r.db.WithContext(ctx).
		Model(&SweepJobRecord{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":       status,
			"error":        errMsg,
			"completed_at": now,
			"updated_at":   now,
		}).Error
}

// LastRun returns the most recent record for a job name
func (r *JobRecordRepository) LastRun(ctx context.Context, jobName string) (*SweepJobRecord, error) {
	var record SweepJobRecord
	if err := r.db.WithContext(ctx).
		Where("job_name = ?", jobName).
		Order("started_at DESC").
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}
