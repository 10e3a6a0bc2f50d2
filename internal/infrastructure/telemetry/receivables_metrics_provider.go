// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormReceivablesMetricsProvider implements ReceivablesMetricsProvider by
// querying the bookings table directly for aggregated receivables state.
type GormReceivablesMetricsProvider struct {
	db *gorm.DB
}

// NewGormReceivablesMetricsProvider creates a new GormReceivablesMetricsProvider.
func NewGormReceivablesMetricsProvider(db *gorm.DB) *GormReceivablesMetricsProvider {
	return &GormReceivablesMetricsProvider{db: db}
}

// GetOutstandingBalance returns the total unpaid balance across
// non-cancelled bookings for a company.
func (p *GormReceivablesMetricsProvider) GetOutstandingBalance(ctx context.Context, companyID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := p.db.WithContext(ctx).
		Table("bookings").
		Select("COALESCE(SUM(grand_total - amount_paid), 0)").
		Where("company_id = ? AND status NOT IN ? AND grand_total - amount_paid > 0 AND deleted_at IS NULL",
			companyID, []string{"DRAFT", "PENDING", "CANCELLED"}).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// GetOverdueCount returns the number of bookings past their payment due
// date with money still owed.
func (p *GormReceivablesMetricsProvider) GetOverdueCount(ctx context.Context, companyID uuid.UUID) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("bookings").
		Where("company_id = ? AND days_past_due > 0 AND grand_total - amount_paid > 0 AND deleted_at IS NULL", companyID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
