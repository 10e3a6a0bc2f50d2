package telemetry_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*telemetry.BusinessMetrics, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter: provider.Meter("test"),
	})
	require.NoError(t, err)
	return bm, reader
}

func collect(t *testing.T, reader *metric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestBusinessMetrics(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()

	t.Run("rejects nil meter", func(t *testing.T) {
		_, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{})
		require.Error(t, err)
	})

	t.Run("records confirmed bookings with amount in cents", func(t *testing.T) {
		bm, reader := newTestMetrics(t)

		bm.RecordBookingConfirmed(ctx, companyID, decimal.RequireFromString("1072.50"))
		bm.RecordBookingConfirmed(ctx, companyID, decimal.RequireFromString("500"))

		rm := collect(t, reader)

		confirmed, ok := findMetric(rm, "rental_booking_confirmed_total")
		require.True(t, ok)
		sum := confirmed.Data.(metricdata.Sum[int64])
		require.Len(t, sum.DataPoints, 1)
		assert.Equal(t, int64(2), sum.DataPoints[0].Value)

		amount, ok := findMetric(rm, "rental_booking_amount_total")
		require.True(t, ok)
		amountSum := amount.Data.(metricdata.Sum[int64])
		require.Len(t, amountSum.DataPoints, 1)
		assert.Equal(t, int64(157250), amountSum.DataPoints[0].Value)
	})

	t.Run("counts reservation conflicts", func(t *testing.T) {
		bm, reader := newTestMetrics(t)

		bm.RecordReservationConflict(ctx, companyID)
		bm.RecordReservationConflict(ctx, companyID)
		bm.RecordReservationConflict(ctx, companyID)

		rm := collect(t, reader)
		conflicts, ok := findMetric(rm, "rental_reservation_conflict_total")
		require.True(t, ok)
		sum := conflicts.Data.(metricdata.Sum[int64])
		require.Len(t, sum.DataPoints, 1)
		assert.Equal(t, int64(3), sum.DataPoints[0].Value)
	})

	t.Run("gauges report latest receivable balance", func(t *testing.T) {
		bm, reader := newTestMetrics(t)

		bm.SetOutstandingReceivable(ctx, companyID, decimal.RequireFromString("9000"))
		bm.SetOutstandingReceivable(ctx, companyID, decimal.RequireFromString("7500.25"))

		rm := collect(t, reader)
		gauge, ok := findMetric(rm, "rental_outstanding_receivable")
		require.True(t, ok)
		data := gauge.Data.(metricdata.Gauge[float64])
		require.Len(t, data.DataPoints, 1)
		assert.InDelta(t, 7500.25, data.DataPoints[0].Value, 0.001)
	})

	t.Run("records bad debt write offs", func(t *testing.T) {
		bm, reader := newTestMetrics(t)

		bm.RecordBadDebtWriteOff(ctx, companyID, decimal.RequireFromString("500"))

		rm := collect(t, reader)
		writeOffs, ok := findMetric(rm, "rental_bad_debt_writeoff_total")
		require.True(t, ok)
		sum := writeOffs.Data.(metricdata.Sum[int64])
		require.Len(t, sum.DataPoints, 1)
		assert.Equal(t, int64(50000), sum.DataPoints[0].Value)
	})
}
