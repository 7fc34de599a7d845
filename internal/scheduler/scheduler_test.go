package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mamadbah2/kisaan/internal/domain/models"
)

type countingRunner struct {
	calls int
	err   error
}

func (r *countingRunner) Run(context.Context, time.Time) (models.InventoryReport, error) {
	r.calls++
	return models.InventoryReport{}, r.err
}

func TestNewSchedulerRejectsUnknownTimezone(t *testing.T) {
	if _, err := NewScheduler("0 20 * * *", "Nowhere/Land", &countingRunner{}, nil); err == nil {
		t.Fatal("expected timezone error")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s, err := NewScheduler("not a schedule", "UTC", &countingRunner{}, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatal("expected schedule error")
	}
}

func TestRunInventoryReportSurvivesErrors(t *testing.T) {
	runner := &countingRunner{err: errors.New("mongo unavailable")}
	s, err := NewScheduler("0 20 * * *", "Asia/Kolkata", runner, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	s.runInventoryReport()
	runner.err = nil
	s.runInventoryReport()

	if runner.calls != 2 {
		t.Errorf("expected 2 runs, got %d", runner.calls)
	}
}

func TestStartAndStop(t *testing.T) {
	s, err := NewScheduler("0 20 * * *", "UTC", &countingRunner{}, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if entries := s.cron.Entries(); len(entries) != 1 {
		t.Errorf("expected one scheduled entry, got %d", len(entries))
	}
	s.Stop()
}
