package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/kisaan/internal/domain/models"
)

// ReportRunner produces and delivers an inventory report.
type ReportRunner interface {
	Run(ctx context.Context, now time.Time) (models.InventoryReport, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	reports  ReportRunner
	schedule string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewScheduler creates a scheduler that runs the inventory report on a
// standard five-field cron schedule evaluated in timezone.
func NewScheduler(schedule, timezone string, reports ReportRunner, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", timezone, err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		reports:  reports,
		schedule: schedule,
		timeout:  2 * time.Minute,
		logger:   logger,
	}, nil
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("report_schedule", s.schedule))

	if _, err := s.cron.AddFunc(s.schedule, s.runInventoryReport); err != nil {
		return fmt.Errorf("schedule inventory report: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runInventoryReport() {
	s.logger.Info("generating inventory report")
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.reports.Run(ctx, time.Now()); err != nil {
		s.logger.Error("failed to generate inventory report", zap.Error(err))
		return
	}
	s.logger.Info("inventory report completed")
}
