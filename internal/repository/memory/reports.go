package memory

import (
	"context"
	"sync"

	"github.com/mamadbah2/kisaan/internal/domain/models"
)

// ReportStore keeps generated inventory reports in insertion order.
type ReportStore struct {
	mu      sync.Mutex
	reports []models.InventoryReport
}

// NewReportStore returns an empty store.
func NewReportStore() *ReportStore {
	return &ReportStore{}
}

// SaveInventoryReport appends report.
func (s *ReportStore) SaveInventoryReport(_ context.Context, report models.InventoryReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return nil
}

// Reports returns the saved reports.
func (s *ReportStore) Reports() []models.InventoryReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.InventoryReport(nil), s.reports...)
}
