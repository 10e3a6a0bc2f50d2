// Package scheduler runs the engine's periodic sweeps: quote expiry and the
// daily AR/collections pass. Both sweeps are idempotent, so overlapping or
// repeated runs after a crash are safe.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/application/finance"
	"github.com/rentworks/backend/internal/infrastructure/config"
	"github.com/rentworks/backend/internal/infrastructure/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	jobNameQuoteExpiry      = "quote_expiry"
	jobNameCollectionsSweep = "collections_sweep"
)

// QuoteExpirer expires overdue quotes in batches. Implemented by the booking
// application's QuoteService.
type QuoteExpirer interface {
	ExpireQuotes(ctx context.Context) (int, error)
}

// CollectionsSweeper runs the receivables sweep for one company. Implemented
// by the finance application's CollectionsService.
type CollectionsSweeper interface {
	RunCollectionsSweep(ctx context.Context, companyID uuid.UUID) (*finance.SweepResult, error)
}

// CompanySource lists the companies the collections sweep iterates
type CompanySource interface {
	ActiveCompanyIDs(ctx context.Context) ([]uuid.UUID, error)
}

// SweepScheduler wires the two sweeps onto cron schedules
type SweepScheduler struct {
	cfg         config.SchedulerConfig
	cron        *cron.Cron
	quotes      QuoteExpirer
	collections CollectionsSweeper
	companies   CompanySource
	jobRecords  *JobRecordRepository
	logger      *zap.Logger

	mu        sync.Mutex
	isRunning bool
}

// NewSweepScheduler creates a sweep scheduler. jobRecords may be nil to skip
// the persisted audit trail.
func NewSweepScheduler(
	cfg config.SchedulerConfig,
	quotes QuoteExpirer,
	collections CollectionsSweeper,
	companies CompanySource,
	jobRecords *JobRecordRepository,
	logger *zap.Logger,
) (*SweepScheduler, error) {
	s := &SweepScheduler{
		cfg:         cfg,
		cron:        cron.New(cron.WithLocation(time.UTC)),
		quotes:      quotes,
		collections: collections,
		companies:   companies,
		jobRecords:  jobRecords,
		logger:      logger,
	}

	if _, err := s.cron.AddFunc(cfg.QuoteExpirySchedule, s.runQuoteExpiry); err != nil {
		return nil, ErrInvalidConfig
	}
	if _, err := s.cron.AddFunc(cfg.CollectionsSchedule, s.runCollectionsSweep); err != nil {
		return nil, ErrInvalidConfig
	}
	return s, nil
}

// Start begins the cron scheduler. No-op when disabled by configuration.
func (s *SweepScheduler) Start() {
	if !s.cfg.Enabled {
		s.logger.Info("Sweep scheduler disabled by configuration")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.cron.Start()

	s.logger.Info("Sweep scheduler started",
		zap.String("quote_expiry_schedule", s.cfg.QuoteExpirySchedule),
		zap.String("collections_schedule", s.cfg.CollectionsSchedule),
		zap.Duration("job_timeout", s.cfg.JobTimeout),
	)
}

// Stop stops the scheduler and waits for in-flight sweeps to finish
func (s *SweepScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("Sweep scheduler stopped")
}

// TriggerQuoteExpiry runs the quote expiry sweep outside its schedule
func (s *SweepScheduler) TriggerQuoteExpiry() error {
	s.mu.Lock()
	running := s.isRunning
	s.mu.Unlock()
	if !running {
		return ErrSchedulerNotRunning
	}
	go s.runQuoteExpiry()
	return nil
}

// TriggerCollectionsSweep runs the collections sweep outside its schedule
func (s *SweepScheduler) TriggerCollectionsSweep() error {
	s.mu.Lock()
	running := s.isRunning
	s.mu.Unlock()
	if !running {
		return ErrSchedulerNotRunning
	}
	go s.runCollectionsSweep()
	return nil
}

func (s *SweepScheduler) runQuoteExpiry() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()
	ctx, log := logger.WithSweepJob(ctx, s.logger, jobNameQuoteExpiry)

	jobID := s.recordStart(ctx, nil, jobNameQuoteExpiry)

	expired, err := s.quotes.ExpireQuotes(ctx)
	if err != nil {
		log.Error("Quote expiry sweep failed", zap.Error(err))
		s.recordComplete(ctx, jobID, false, err.Error())
		return
	}

	if expired > 0 {
		log.Info("Quote expiry sweep completed", zap.Int("expired", expired))
	}
	s.recordComplete(ctx, jobID, true, "")
}

func (s *SweepScheduler) runCollectionsSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()
	ctx, log := logger.WithSweepJob(ctx, s.logger, jobNameCollectionsSweep)

	companyIDs, err := s.companies.ActiveCompanyIDs(ctx)
	if err != nil {
		log.Error("Failed to list companies for collections sweep", zap.Error(err))
		return
	}

	// One failing company must not starve the rest of the sweep
	for _, companyID := range companyIDs {
		cid := companyID
		cctx, clog := logger.WithCompanyID(ctx, log, cid)
		jobID := s.recordStart(cctx, &cid, jobNameCollectionsSweep)

		result, err := s.collections.RunCollectionsSweep(cctx, companyID)
		if err != nil {
			clog.Error("Collections sweep failed for company", zap.Error(err))
			s.recordComplete(cctx, jobID, false, err.Error())
			continue
		}
		clog.Debug("Collections sweep completed for company",
			zap.Int("examined", result.Examined),
			zap.Int("escalated", result.Escalated),
			zap.Int("reminded", result.Reminded),
		)
		s.recordComplete(cctx, jobID, true, "")
	}
}

func (s *SweepScheduler) recordStart(ctx context.Context, companyID *uuid.UUID, jobName string) uuid.UUID {
	if s.jobRecords == nil {
		return uuid.Nil
	}
	jobID, err := s.jobRecords.RecordJobStart(ctx, companyID, jobName)
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to record sweep start",
			zap.String("job_name", jobName),
			zap.Error(err),
		)
	}
	return jobID
}

func (s *SweepScheduler) recordComplete(ctx context.Context, jobID uuid.UUID, success bool, errMsg string) {
	if s.jobRecords == nil || jobID == uuid.Nil {
		return
	}
	if err := s.jobRecords.RecordJobComplete(ctx, jobID, success, errMsg); err != nil {
		logger.FromContext(ctx).Warn("Failed to record sweep completion", zap.Error(err))
	}
}
