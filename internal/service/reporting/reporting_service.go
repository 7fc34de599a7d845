package reporting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/kisaan/internal/domain/models"
)

const dateLayout = "2006-01-02"

// ListingSource lists every stored listing.
type ListingSource interface {
	Find(ctx context.Context, query models.ListingQuery) ([]*models.Listing, int64, error)
}

// ReportStore persists generated reports.
type ReportStore interface {
	SaveInventoryReport(ctx context.Context, report models.InventoryReport) error
}

// Publisher delivers a report outside the service, e.g. a webhook or a spreadsheet.
type Publisher interface {
	PublishInventoryReport(ctx context.Context, report models.InventoryReport, summary string) error
}

// Service computes marketplace inventory reports.
type Service struct {
	listings   ListingSource
	store      ReportStore
	publishers []Publisher
	logger     *zap.Logger
}

// NewService wires a new reporting service instance.
func NewService(listings ListingSource, store ReportStore, logger *zap.Logger, publishers ...Publisher) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{listings: listings, store: store, publishers: publishers, logger: logger}
}

// GenerateInventoryReport aggregates every listing into a snapshot taken at now.
func (s *Service) GenerateInventoryReport(ctx context.Context, now time.Time) (models.InventoryReport, error) {
	listings, _, err := s.listings.Find(ctx, models.ListingQuery{})
	if err != nil {
		return models.InventoryReport{}, fmt.Errorf("load listings: %w", err)
	}

	report := models.InventoryReport{
		GeneratedAt:   now.UTC(),
		TotalListings: len(listings),
		GrainTypes:    []string{},
		ByStatus:      map[string]int{},
	}
	if len(listings) == 0 {
		return report, nil
	}

	var (
		totalQty     = decimal.Zero
		availableQty = decimal.Zero
		value        = decimal.Zero
		priceSum     = decimal.Zero
		minPrice     = decimal.NewFromFloat(listings[0].PricePerQuintal)
		maxPrice     = minPrice
		grainTypes   = map[string]struct{}{}
	)

	for _, l := range listings {
		price := decimal.NewFromFloat(l.PricePerQuintal)
		qty := decimal.NewFromFloat(l.Quantity)

		totalQty = totalQty.Add(qty)
		availableQty = availableQty.Add(decimal.NewFromFloat(l.AvailableQuantity))
		value = value.Add(qty.Mul(price))
		priceSum = priceSum.Add(price)
		if price.LessThan(minPrice) {
			minPrice = price
		}
		if price.GreaterThan(maxPrice) {
			maxPrice = price
		}

		if l.IsOrganic {
			report.OrganicListings++
		}
		if l.Status == models.StatusApproved && l.ExpiresAt.After(now) {
			report.ActiveListings++
		}
		report.ByStatus[string(l.Status)]++
		grainTypes[string(l.GrainType)] = struct{}{}
	}

	count := decimal.NewFromInt(int64(len(listings)))
	report.TotalQuantity = totalQty.Round(2).InexactFloat64()
	report.AvailableQuantity = availableQty.Round(2).InexactFloat64()
	report.InventoryValue = value.Round(2).InexactFloat64()
	report.AveragePrice = priceSum.Div(count).Round(2).InexactFloat64()
	report.MinPrice = minPrice.InexactFloat64()
	report.MaxPrice = maxPrice.InexactFloat64()
	report.OrganicShare = decimal.NewFromInt(int64(report.OrganicListings)).
		Mul(decimal.NewFromInt(100)).
		Div(count).
		Round(2).
		InexactFloat64()

	for g := range grainTypes {
		report.GrainTypes = append(report.GrainTypes, g)
	}
	sort.Strings(report.GrainTypes)

	return report, nil
}

// Run generates, stores and publishes a report. Publishing failures are
// logged and do not fail the run.
func (s *Service) Run(ctx context.Context, now time.Time) (models.InventoryReport, error) {
	report, err := s.GenerateInventoryReport(ctx, now)
	if err != nil {
		return report, err
	}

	if err := s.store.SaveInventoryReport(ctx, report); err != nil {
		return report, fmt.Errorf("save inventory report: %w", err)
	}

	summary := FormatSummary(report)
	for _, p := range s.publishers {
		if err := p.PublishInventoryReport(ctx, report, summary); err != nil {
			s.logger.Error("failed to publish inventory report", zap.String("publisher", fmt.Sprintf("%T", p)), zap.Error(err))
		}
	}

	s.logger.Info("inventory report generated",
		zap.Int("total_listings", report.TotalListings),
		zap.Int("active_listings", report.ActiveListings),
		zap.Float64("inventory_value", report.InventoryValue))
	return report, nil
}

// FormatSummary renders a short human-readable digest of the report.
func FormatSummary(r models.InventoryReport) string {
	day := r.GeneratedAt.Format(dateLayout)
	if r.TotalListings == 0 {
		return fmt.Sprintf("Inventory (%s): no listings yet.", day)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Inventory (%s): %d listings, %d active.", day, r.TotalListings, r.ActiveListings)
	fmt.Fprintf(&b, " %s of %s quintals available, worth %s.",
		formatAmount(r.AvailableQuantity), formatAmount(r.TotalQuantity), formatAmount(r.InventoryValue))
	fmt.Fprintf(&b, " Price %s-%s per quintal (avg %s).",
		formatAmount(r.MinPrice), formatAmount(r.MaxPrice), formatAmount(r.AveragePrice))
	fmt.Fprintf(&b, " Organic %d/%d (%s%%).", r.OrganicListings, r.TotalListings, formatAmount(r.OrganicShare))
	fmt.Fprintf(&b, " Grains: %s.", strings.Join(r.GrainTypes, ", "))
	return b.String()
}

func formatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixedBank(2)
}
