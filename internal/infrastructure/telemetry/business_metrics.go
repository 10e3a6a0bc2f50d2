// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics tracks booking lifecycle and receivables health: bookings
// confirmed, reservation conflicts lost to races, payments received, bad
// debt written off, and the outstanding-receivable gauge refreshed by the
// collections sweep.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	bookingConfirmedTotal    *Counter
	bookingAmountTotal       *Counter
	reservationConflictTotal *Counter
	paymentReceivedTotal     *Counter
	paymentAmountTotal       *Counter
	badDebtWriteOffTotal     *Counter

	// Gauge metrics (point-in-time values)
	outstandingReceivable *FloatGauge
	overdueBookingCount   *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	receivablesProvider ReceivablesMetricsProvider
}

// ReceivablesMetricsProvider supplies receivables data for periodic gauge
// collection without the telemetry layer depending on the booking domain.
type ReceivablesMetricsProvider interface {
	// GetOutstandingBalance returns the total unpaid balance for a company
	GetOutstandingBalance(ctx context.Context, companyID uuid.UUID) (decimal.Decimal, error)

	// GetOverdueCount returns the number of bookings past their payment due date
	GetOverdueCount(ctx context.Context, companyID uuid.UUID) (int64, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter               metric.Meter
	Logger              *zap.Logger
	CollectInterval     time.Duration // Default: 5 minutes
	ReceivablesProvider ReceivablesMetricsProvider
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:               cfg.Meter,
		logger:              logger,
		stopChan:            make(chan struct{}),
		receivablesProvider: cfg.ReceivablesProvider,
	}

	var err error

	bm.bookingConfirmedTotal, err = NewCounter(
		cfg.Meter,
		"rental_booking_confirmed_total",
		"Total number of bookings confirmed",
		"{bookings}",
	)
	if err != nil {
		return nil, err
	}

	bm.bookingAmountTotal, err = NewCounter(
		cfg.Meter,
		"rental_booking_amount_total",
		"Total confirmed booking amount in cents",
		"{cents}",
	)
	if err != nil {
		return nil, err
	}

	bm.reservationConflictTotal, err = NewCounter(
		cfg.Meter,
		"rental_reservation_conflict_total",
		"Confirmations rejected because capacity was taken by a racing booking",
		"{conflicts}",
	)
	if err != nil {
		return nil, err
	}

	bm.paymentReceivedTotal, err = NewCounter(
		cfg.Meter,
		"rental_payment_received_total",
		"Total number of payments recorded",
		"{payments}",
	)
	if err != nil {
		return nil, err
	}

	bm.paymentAmountTotal, err = NewCounter(
		cfg.Meter,
		"rental_payment_amount_total",
		"Total payment amount received in cents",
		"{cents}",
	)
	if err != nil {
		return nil, err
	}

	bm.badDebtWriteOffTotal, err = NewCounter(
		cfg.Meter,
		"rental_bad_debt_writeoff_total",
		"Total amount written off as bad debt in cents",
		"{cents}",
	)
	if err != nil {
		return nil, err
	}

	bm.outstandingReceivable, err = NewFloatGauge(
		cfg.Meter,
		"rental_outstanding_receivable",
		"Current total unpaid balance across non-cancelled bookings",
		"{usd}",
	)
	if err != nil {
		return nil, err
	}

	bm.overdueBookingCount, err = NewGauge(
		cfg.Meter,
		"rental_overdue_booking_count",
		"Number of bookings past their payment due date",
		"{bookings}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// RecordBookingConfirmed records a successful confirmation and its amount.
func (bm *BusinessMetrics) RecordBookingConfirmed(ctx context.Context, companyID uuid.UUID, amount decimal.Decimal) {
	bm.bookingConfirmedTotal.Inc(ctx,
		AttrCompanyID.String(companyID.String()),
	)
	amountCents := amount.Mul(decimal.NewFromInt(100)).IntPart()
	bm.bookingAmountTotal.Add(ctx, amountCents,
		AttrCompanyID.String(companyID.String()),
	)
}

// RecordReservationConflict records a confirmation lost to a capacity race.
func (bm *BusinessMetrics) RecordReservationConflict(ctx context.Context, companyID uuid.UUID) {
	bm.reservationConflictTotal.Inc(ctx,
		AttrCompanyID.String(companyID.String()),
	)
}

// RecordPaymentReceived records one payment against a booking.
func (bm *BusinessMetrics) RecordPaymentReceived(ctx context.Context, companyID uuid.UUID, amount decimal.Decimal) {
	bm.paymentReceivedTotal.Inc(ctx,
		AttrCompanyID.String(companyID.String()),
	)
	amountCents := amount.Mul(decimal.NewFromInt(100)).IntPart()
	bm.paymentAmountTotal.Add(ctx, amountCents,
		AttrCompanyID.String(companyID.String()),
	)
}

// RecordBadDebtWriteOff records a balance abandoned as uncollectible.
func (bm *BusinessMetrics) RecordBadDebtWriteOff(ctx context.Context, companyID uuid.UUID, amount decimal.Decimal) {
	amountCents := amount.Mul(decimal.NewFromInt(100)).IntPart()
	bm.badDebtWriteOffTotal.Add(ctx, amountCents,
		AttrCompanyID.String(companyID.String()),
	)
}

// SetOutstandingReceivable refreshes the outstanding-receivable gauge.
// Called by the collections sweep after recomputing balances.
func (bm *BusinessMetrics) SetOutstandingReceivable(ctx context.Context, companyID uuid.UUID, balance decimal.Decimal) {
	f, _ := balance.Float64()
	bm.outstandingReceivable.Record(ctx, f,
		AttrCompanyID.String(companyID.String()),
	)
}

// SetOverdueBookingCount refreshes the overdue-booking gauge.
func (bm *BusinessMetrics) SetOverdueBookingCount(ctx context.Context, companyID uuid.UUID, count int64) {
	bm.overdueBookingCount.Record(ctx, count,
		AttrCompanyID.String(companyID.String()),
	)
}

// CompanyProvider supplies company IDs for periodic metrics collection.
type CompanyProvider interface {
	GetActiveCompanyIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StartPeriodicCollection starts periodic collection of the receivables
// gauges. Non-blocking; use Stop() to stop collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, companies CompanyProvider, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go bm.runPeriodicCollection(ctx, companies, interval)
	})
}

func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, companies CompanyProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bm.collectReceivablesMetrics(ctx, companies)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectReceivablesMetrics(ctx, companies)
		}
	}
}

func (bm *BusinessMetrics) collectReceivablesMetrics(ctx context.Context, companies CompanyProvider) {
	if bm.receivablesProvider == nil {
		bm.logger.Debug("No receivables provider configured, skipping collection")
		return
	}

	companyIDs, err := companies.GetActiveCompanyIDs(ctx)
	if err != nil {
		bm.logger.Error("Failed to get company IDs for metrics collection", zap.Error(err))
		return
	}

	for _, companyID := range companyIDs {
		bm.collectCompanyReceivables(ctx, companyID)
	}
}

func (bm *BusinessMetrics) collectCompanyReceivables(ctx context.Context, companyID uuid.UUID) {
	balance, err := bm.receivablesProvider.GetOutstandingBalance(ctx, companyID)
	if err != nil {
		bm.logger.Warn("Failed to get outstanding balance for company",
			zap.String("company_id", companyID.String()),
			zap.Error(err),
		)
	} else {
		bm.SetOutstandingReceivable(ctx, companyID, balance)
	}

	overdue, err := bm.receivablesProvider.GetOverdueCount(ctx, companyID)
	if err != nil {
		bm.logger.Warn("Failed to get overdue count for company",
			zap.String("company_id", companyID.String()),
			zap.Error(err),
		)
	} else {
		bm.SetOverdueBookingCount(ctx, companyID, overdue)
	}
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
