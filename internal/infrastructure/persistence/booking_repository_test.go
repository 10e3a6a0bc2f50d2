package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/booking"
	"github.com/rentworks/backend/internal/domain/catalog"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newSQLiteBookingRepository(t *testing.T) (*GormBookingRepository, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&booking.Booking{},
		&booking.LineItem{},
		&catalog.RentalAsset{},
		&catalog.ServiceItem{},
	))
	return NewGormBookingRepository(db), db
}

func newMockBookingRepository(t *testing.T) (*GormBookingRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormBookingRepository(gormDB), mock, mockDB
}

func storedPeriod(t *testing.T, startDay, endDay int) valueobject.DateRange {
	t.Helper()
	r, err := valueobject.NewDateRange(
		time.Date(2025, 7, startDay, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 7, endDay, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return r
}

func storedBooking(t *testing.T, companyID uuid.UUID, number string, startDay, endDay int) *booking.Booking {
	t.Helper()
	b, err := booking.NewBooking(
		companyID, number, uuid.New(), "Meridian Events",
		storedPeriod(t, startDay, endDay), booking.PolicyModerate,
		time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return b
}

func storedAsset(t *testing.T, companyID uuid.UUID, quantity int) *catalog.RentalAsset {
	t.Helper()
	asset, err := catalog.NewRentalAsset(
		companyID, "PA Speaker", "SPK-001", catalog.BookableKindEquipment,
		quantity, valueobject.NewMoneyUSDFromCents(10000),
	)
	require.NoError(t, err)
	return asset
}

func TestBookingRepositoryRoundTrip(t *testing.T) {
	repo, db := newSQLiteBookingRepository(t)
	ctx := context.Background()
	companyID := uuid.New()

	asset := storedAsset(t, companyID, 3)
	require.NoError(t, db.Create(asset).Error)

	b := storedBooking(t, companyID, "BK-20250601-0001", 4, 8)
	_, err := b.AddLineItem(asset, 2, true, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, b))

	t.Run("finds by id within company", func(t *testing.T) {
		found, err := repo.FindByIDForCompany(ctx, companyID, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "BK-20250601-0001", found.BookingNumber)
		require.Len(t, found.LineItems, 1)
		assert.Equal(t, 2, found.LineItems[0].Quantity)
		// Period is rebuilt from the raw date columns
		assert.Equal(t, int64(5), found.RentalDays())
	})

	t.Run("company scoping hides other tenants", func(t *testing.T) {
		_, err := repo.FindByIDForCompany(ctx, uuid.New(), b.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("finds by booking number", func(t *testing.T) {
		found, err := repo.FindByNumber(ctx, companyID, "BK-20250601-0001")
		require.NoError(t, err)
		assert.Equal(t, b.ID, found.ID)
	})

	t.Run("removed line items disappear on save", func(t *testing.T) {
		loaded, err := repo.FindByIDForCompany(ctx, companyID, b.ID)
		require.NoError(t, err)
		require.NoError(t, loaded.RemoveLineItem(loaded.LineItems[0].ID))
		require.NoError(t, repo.Save(ctx, loaded))

		found, err := repo.FindByIDForCompany(ctx, companyID, b.ID)
		require.NoError(t, err)
		assert.Empty(t, found.LineItems)
	})
}

func TestBookingRepositoryReservations(t *testing.T) {
	repo, db := newSQLiteBookingRepository(t)
	ctx := context.Background()
	companyID := uuid.New()

	asset := storedAsset(t, companyID, 3)
	require.NoError(t, db.Create(asset).Error)

	confirmed := storedBooking(t, companyID, "BK-20250601-0002", 4, 8)
	_, err := confirmed.AddLineItem(asset, 2, true, time.Now())
	require.NoError(t, err)
	require.NoError(t, confirmed.Confirm(time.Now()))
	require.NoError(t, repo.Save(ctx, confirmed))

	draft := storedBooking(t, companyID, "BK-20250601-0003", 4, 8)
	_, err = draft.AddLineItem(asset, 1, true, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, draft))

	t.Run("only inventory-holding bookings count", func(t *testing.T) {
		usages, err := repo.FindActiveReservations(ctx, companyID, asset.ID, storedPeriod(t, 4, 8))
		require.NoError(t, err)
		require.Len(t, usages, 1)
		assert.Equal(t, confirmed.ID, usages[0].BookingID)
		assert.Equal(t, 2, usages[0].Quantity)
	})

	t.Run("same day turnover does not overlap", func(t *testing.T) {
		usages, err := repo.FindActiveReservations(ctx, companyID, asset.ID, storedPeriod(t, 8, 12))
		require.NoError(t, err)
		assert.Empty(t, usages)
	})

	t.Run("disjoint window sees nothing", func(t *testing.T) {
		usages, err := repo.FindActiveReservations(ctx, companyID, asset.ID, storedPeriod(t, 20, 25))
		require.NoError(t, err)
		assert.Empty(t, usages)
	})
}

func TestBookingRepositoryQuoteExpiry(t *testing.T) {
	repo, _ := newSQLiteBookingRepository(t)
	ctx := context.Background()
	companyID := uuid.New()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	expired := storedBooking(t, companyID, "BK-20250601-0004", 4, 8)
	past := now.Add(-time.Hour)
	require.NoError(t, expired.ConvertToQuote("Q-20250601-0001", "Net 30", &past, now.Add(-48*time.Hour)))
	require.NoError(t, repo.Save(ctx, expired))

	live := storedBooking(t, companyID, "BK-20250601-0005", 4, 8)
	future := now.Add(72 * time.Hour)
	require.NoError(t, live.ConvertToQuote("Q-20250601-0002", "Net 30", &future, now))
	require.NoError(t, repo.Save(ctx, live))

	candidates, err := repo.FindQuotesToExpire(ctx, now, 100)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, expired.ID, candidates[0].ID)
}

func TestBookingRepositoryNumberGeneration(t *testing.T) {
	repo, _ := newSQLiteBookingRepository(t)
	ctx := context.Background()
	companyID := uuid.New()

	first, err := repo.GenerateBookingNumber(ctx, companyID)
	require.NoError(t, err)
	prefix := "BK-" + time.Now().Format("20060102") + "-"
	assert.Equal(t, prefix+"0001", first)

	b := storedBooking(t, companyID, first, 4, 8)
	require.NoError(t, repo.Save(ctx, b))

	second, err := repo.GenerateBookingNumber(ctx, companyID)
	require.NoError(t, err)
	assert.Equal(t, prefix+"0002", second)

	// Quote numbers run on their own sequence
	quote, err := repo.GenerateQuoteNumber(ctx, companyID)
	require.NoError(t, err)
	assert.Equal(t, "Q-"+time.Now().Format("20060102")+"-0001", quote)
}

func TestSaveWithVersionConflict(t *testing.T) {
	t.Run("stale version returns concurrency conflict", func(t *testing.T) {
		repo, mock, mockDB := newMockBookingRepository(t)
		defer mockDB.Close()

		b := storedBooking(t, uuid.New(), "BK-20250601-0006", 4, 8)
		b.Version = 3

		mock.ExpectBegin()
		// Another writer moved the row past version 3: zero rows match
		mock.ExpectExec(`UPDATE "bookings" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.SaveWithVersion(context.Background(), b, 3)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.True(t, shared.IsRetryable(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
