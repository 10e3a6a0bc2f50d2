package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/booking"
	"github.com/rentworks/backend/internal/domain/catalog"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBookingRepository implements booking.BookingRepository using GORM
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID finds a booking by its ID
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	var b booking.Booking
	if err := r.db.WithContext(ctx).
		Preload("LineItems").
		Where("id = ? AND deleted_at IS NULL", id).
		First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	b.RestorePeriod()
	return &b, nil
}

// FindByIDForCompany finds a booking by ID within a company
func (r *GormBookingRepository) FindByIDForCompany(ctx context.Context, companyID, id uuid.UUID) (*booking.Booking, error) {
	var b booking.Booking
	if err := r.db.WithContext(ctx).
		Preload("LineItems").
		Where("company_id = ? AND id = ? AND deleted_at IS NULL", companyID, id).
		First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	b.RestorePeriod()
	return &b, nil
}

// FindByNumber finds a booking by booking number for a company
func (r *GormBookingRepository) FindByNumber(ctx context.Context, companyID uuid.UUID, bookingNumber string) (*booking.Booking, error) {
	var b booking.Booking
	if err := r.db.WithContext(ctx).
		Preload("LineItems").
		Where("company_id = ? AND booking_number = ? AND deleted_at IS NULL", companyID, bookingNumber).
		First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	b.RestorePeriod()
	return &b, nil
}

// FindByCompany finds bookings for a company with pagination
func (r *GormBookingRepository) FindByCompany(ctx context.Context, companyID uuid.UUID, filter shared.Filter) (shared.Paginated[booking.Booking], error) {
	query := r.db.WithContext(ctx).
		Model(&booking.Booking{}).
		Where("company_id = ? AND deleted_at IS NULL", companyID)

	if status, ok := filter.Filters["status"]; ok {
		query = query.Where("status = ?", status)
	}
	if clientID, ok := filter.Filters["client_id"]; ok {
		query = query.Where("client_id = ?", clientID)
	}
	if quoteStatus, ok := filter.Filters["quote_status"]; ok {
		query = query.Where("quote_status = ?", quoteStatus)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return shared.Paginated[booking.Booking]{}, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	orderBy := ValidateSortField(filter.OrderBy, BookingSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)

	var items []booking.Booking
	if err := query.
		Preload("LineItems").
		Order(fmt.Sprintf("%s %s", orderBy, orderDir)).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error; err != nil {
		return shared.Paginated[booking.Booking]{}, err
	}

	for idx := range items {
		items[idx].RestorePeriod()
	}
	return shared.NewPaginated(items, total, page, pageSize), nil
}

// Save creates or updates a booking with its line items
func (r *GormBookingRepository) Save(ctx context.Context, b *booking.Booking) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("LineItems").Save(b).Error; err != nil {
			return err
		}
		return r.saveLineItems(tx, b)
	})
}

// SaveWithVersion persists the booking with an optimistic concurrency check.
// The aggregate mutates its own Version through IncrementVersion; the update
// predicate uses the version the caller loaded, so a concurrent writer makes
// RowsAffected zero.
func (r *GormBookingRepository) SaveWithVersion(ctx context.Context, b *booking.Booking, expectedVersion int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.updateWithVersionCheck(tx, b, expectedVersion); err != nil {
			return err
		}
		return r.saveLineItems(tx, b)
	})
}

// ConfirmWithReservation re-validates availability for every capacity
// constrained line inside the transaction that persists the CONFIRMED
// transition. Resource rows are locked FOR UPDATE first, so two racing
// confirmations of the same resource serialize and the loser sees the
// winner's committed reservation in its re-check.
func (r *GormBookingRepository) ConfirmWithReservation(ctx context.Context, b *booking.Booking) error {
	expectedVersion := b.GetVersion()
	b.IncrementVersion()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for idx := range b.LineItems {
			item := &b.LineItems[idx]
			if item.Kind == catalog.BookableKindService {
				continue
			}

			var owned int
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Table("rental_assets").
				Select("quantity").
				Where("company_id = ? AND id = ?", b.CompanyID, item.BookableID).
				Scan(&owned).Error; err != nil {
				return err
			}
			if owned <= 0 {
				continue // unconstrained by convention
			}

			booked, err := r.worstDayUsage(tx, b.CompanyID, item.BookableID, b.Period, b.ID)
			if err != nil {
				return err
			}
			if booked+item.Quantity > owned {
				return shared.NewCapacityError(fmt.Sprintf(
					"Insufficient availability for %s: %d requested, %d free",
					item.BookableName, item.Quantity, owned-booked))
			}
		}

		if err := r.updateWithVersionCheck(tx, b, expectedVersion); err != nil {
			return err
		}
		return r.saveLineItems(tx, b)
	})
	if err != nil {
		b.Version = expectedVersion
		return err
	}
	return nil
}

// worstDayUsage returns the peak committed quantity for one resource across
// the window, counting only inventory-holding bookings and excluding the
// booking being confirmed.
func (r *GormBookingRepository) worstDayUsage(tx *gorm.DB, companyID, bookableID uuid.UUID, window valueobject.DateRange, excludeBookingID uuid.UUID) (int, error) {
	usages, err := r.findActiveReservations(tx, companyID, bookableID, window, excludeBookingID)
	if err != nil {
		return 0, err
	}

	worst := 0
	window.EachOccupiedDay(func(day time.Time) {
		used := 0
		for _, u := range usages {
			if u.Period.Occupies(day) {
				used += u.Quantity
			}
		}
		if used > worst {
			worst = used
		}
	})
	return worst, nil
}

// FindActiveReservations returns the committed line quantities of
// inventory-holding bookings for one resource within the window
func (r *GormBookingRepository) FindActiveReservations(ctx context.Context, companyID, bookableID uuid.UUID, window valueobject.DateRange) ([]booking.ReservationUsage, error) {
	return r.findActiveReservations(r.db.WithContext(ctx), companyID, bookableID, window, uuid.Nil)
}

func (r *GormBookingRepository) findActiveReservations(tx *gorm.DB, companyID, bookableID uuid.UUID, window valueobject.DateRange, excludeBookingID uuid.UUID) ([]booking.ReservationUsage, error) {
	type row struct {
		BookingID uuid.UUID
		Quantity  int
		StartDate time.Time
		EndDate   time.Time
	}

	// Overlap is half-open: a booking ending the day another starts does
	// not collide (same-day turnover).
	query := tx.
		Table("booking_line_items").
		Select("bookings.id AS booking_id, booking_line_items.quantity, bookings.start_date, bookings.end_date").
		Joins("JOIN bookings ON bookings.id = booking_line_items.booking_id").
		Where("bookings.company_id = ?", companyID).
		Where("booking_line_items.bookable_id = ?", bookableID).
		Where("bookings.status IN ?", []string{
			booking.BookingStatusConfirmed.String(),
			booking.BookingStatusPaid.String(),
		}).
		Where("bookings.deleted_at IS NULL").
		Where("bookings.start_date < ? AND bookings.end_date > ?", window.End(), window.Start())
	if excludeBookingID != uuid.Nil {
		query = query.Where("bookings.id <> ?", excludeBookingID)
	}

	var rows []row
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	usages := make([]booking.ReservationUsage, 0, len(rows))
	for _, row := range rows {
		period, err := valueobject.NewDateRange(row.StartDate, row.EndDate)
		if err != nil {
			continue
		}
		usages = append(usages, booking.ReservationUsage{
			BookingID:  row.BookingID,
			BookableID: bookableID,
			Quantity:   row.Quantity,
			Period:     period,
		})
	}
	return usages, nil
}

// FindQuotesToExpire returns bookings whose quote is still expirable but
// whose expiry instant has passed
func (r *GormBookingRepository) FindQuotesToExpire(ctx context.Context, now time.Time, limit int) ([]booking.Booking, error) {
	var items []booking.Booking
	err := r.db.WithContext(ctx).
		Preload("LineItems").
		Where("quote_status IN ?", []string{
			booking.QuoteStatusDraft.String(),
			booking.QuoteStatusSent.String(),
			booking.QuoteStatusViewed.String(),
		}).
		Where("quote_expires_at IS NOT NULL AND quote_expires_at <= ?", now).
		Where("deleted_at IS NULL").
		Order("quote_expires_at ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	for idx := range items {
		items[idx].RestorePeriod()
	}
	return items, nil
}

// FindOutstandingForCompany returns non-cancelled bookings with a positive
// balance due, for the collections sweep and aging report
func (r *GormBookingRepository) FindOutstandingForCompany(ctx context.Context, companyID uuid.UUID) ([]booking.Booking, error) {
	var items []booking.Booking
	err := r.db.WithContext(ctx).
		Preload("LineItems").
		Where("company_id = ?", companyID).
		Where("status NOT IN ?", []string{
			booking.BookingStatusDraft.String(),
			booking.BookingStatusPending.String(),
			booking.BookingStatusCancelled.String(),
		}).
		Where("grand_total - amount_paid > 0").
		Where("deleted_at IS NULL").
		Order("payment_due_date ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	for idx := range items {
		items[idx].RestorePeriod()
	}
	return items, nil
}

// AgingSummary aggregates count and balance per aging bucket
func (r *GormBookingRepository) AgingSummary(ctx context.Context, companyID uuid.UUID) ([]booking.AgingSummaryRow, error) {
	type row struct {
		Bucket  string
		Count   int
		Balance decimal.Decimal
	}

	var rows []row
	err := r.db.WithContext(ctx).
		Table("bookings").
		Select("aging_bucket AS bucket, COUNT(*) AS count, COALESCE(SUM(grand_total - amount_paid), 0) AS balance").
		Where("company_id = ?", companyID).
		Where("status NOT IN ?", []string{
			booking.BookingStatusDraft.String(),
			booking.BookingStatusPending.String(),
			booking.BookingStatusCancelled.String(),
		}).
		Where("grand_total - amount_paid > 0").
		Where("deleted_at IS NULL").
		Group("aging_bucket").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make([]booking.AgingSummaryRow, 0, len(rows))
	for _, row := range rows {
		result = append(result, booking.AgingSummaryRow{
			Bucket:  booking.AgingBucket(row.Bucket),
			Count:   row.Count,
			Balance: row.Balance,
		})
	}
	return result, nil
}

// Delete soft-deletes a booking
func (r *GormBookingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&booking.Booking{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", time.Now())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GenerateBookingNumber generates a unique booking number for a company.
// Format: BK-YYYYMMDD-NNNN (e.g., BK-20260115-0001)
func (r *GormBookingRepository) GenerateBookingNumber(ctx context.Context, companyID uuid.UUID) (string, error) {
	return r.generateNumber(ctx, companyID, "BK", "booking_number")
}

// GenerateQuoteNumber generates a unique quote number for a company.
// Format: Q-YYYYMMDD-NNNN
func (r *GormBookingRepository) GenerateQuoteNumber(ctx context.Context, companyID uuid.UUID) (string, error) {
	return r.generateNumber(ctx, companyID, "Q", "quote_number")
}

func (r *GormBookingRepository) generateNumber(ctx context.Context, companyID uuid.UUID, kind, column string) (string, error) {
	prefix := fmt.Sprintf("%s-%s-", kind, time.Now().Format("20060102"))

	var last string
	err := r.db.WithContext(ctx).
		Model(&booking.Booking{}).
		Select(column).
		Where("company_id = ? AND "+column+" LIKE ?", companyID, prefix+"%").
		Order(column + " DESC").
		Limit(1).
		Scan(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	var nextNum int64 = 1
	if last != "" {
		parts := strings.Split(last, "-")
		if len(parts) == 3 {
			var num int64
			if _, parseErr := fmt.Sscanf(parts[2], "%d", &num); parseErr == nil {
				nextNum = num + 1
			}
		}
	}

	return fmt.Sprintf("%s%04d", prefix, nextNum), nil
}

// updateWithVersionCheck performs the optimistic-concurrency guarded column
// update. Callers must have already bumped the in-memory version past
// expectedVersion.
func (r *GormBookingRepository) updateWithVersionCheck(tx *gorm.DB, b *booking.Booking, expectedVersion int) error {
	if b.GetVersion() == expectedVersion {
		b.IncrementVersion()
	}
	b.UpdatedAt = time.Now()

	result := tx.Model(&booking.Booking{}).
		Where("id = ? AND version = ?", b.ID, expectedVersion).
		Updates(map[string]interface{}{
			"client_id":                   b.ClientID,
			"client_name":                 b.ClientName,
			"client_tax_id":               b.ClientTaxID,
			"payment_terms_days":          b.PaymentTermsDays,
			"start_date":                  b.StartDate,
			"end_date":                    b.EndDate,
			"venue_country":               b.VenueCountry,
			"venue_state":                 b.VenueState,
			"venue_city":                  b.VenueCity,
			"status":                      b.Status,
			"subtotal":                    b.Subtotal,
			"tax_total":                   b.TaxTotal,
			"grand_total":                 b.GrandTotal,
			"amount_paid":                 b.AmountPaid,
			"default_discount_percent":    b.DefaultDiscountPercent,
			"default_tax_rate_id":         b.DefaultTaxRateID,
			"tax_exempt":                  b.TaxExempt,
			"tax_exempt_reason":           b.TaxExemptReason,
			"tax_exempt_cert":             b.TaxExemptCert,
			"tax_override":                b.TaxOverride,
			"tax_override_amount":         b.TaxOverrideAmount,
			"tax_override_reason":         b.TaxOverrideReason,
			"tax_override_actor":          b.TaxOverrideActor,
			"reverse_charged":             b.ReverseCharged,
			"quote_number":                b.QuoteNumber,
			"quote_status":                b.QuoteStatus,
			"quote_terms":                 b.QuoteTerms,
			"quote_expires_at":            b.QuoteExpiresAt,
			"quote_sent_at":               b.QuoteSentAt,
			"quote_viewed_at":             b.QuoteViewedAt,
			"quote_approved_at":           b.QuoteApprovedAt,
			"quote_approved_by":           b.QuoteApprovedBy,
			"quote_declined_at":           b.QuoteDeclinedAt,
			"quote_decline_reason":        b.QuoteDeclineReason,
			"converted_from_quote":        b.ConvertedFromQuote,
			"cancellation_policy":         b.CancellationPolicy,
			"cancellation_deadline_hours": b.CancellationDeadlineHours,
			"cancellation_fee_percent":    b.CancellationFeePercent,
			"cancelled_at":                b.CancelledAt,
			"cancelled_by":                b.CancelledBy,
			"cancel_reason":               b.CancelReason,
			"refund_amount":               b.RefundAmount,
			"refund_status":               b.RefundStatus,
			"refund_processed_at":         b.RefundProcessedAt,
			"payment_due_date":            b.PaymentDueDate,
			"days_past_due":               b.DaysPastDue,
			"aging_bucket":                b.AgingBucket,
			"collection_status":           b.CollectionStatus,
			"reminder_count":              b.ReminderCount,
			"last_reminder_sent_at":       b.LastReminderSentAt,
			"notes":                       b.Notes,
			"payments":                    b.Payments,
			"version":                     b.Version,
			"updated_at":                  b.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// saveLineItems reconciles the persisted line items with the aggregate's
// current list: removed lines are deleted, the rest upserted.
func (r *GormBookingRepository) saveLineItems(tx *gorm.DB, b *booking.Booking) error {
	currentItemIDs := make([]uuid.UUID, len(b.LineItems))
	for i, item := range b.LineItems {
		currentItemIDs[i] = item.ID
	}

	if len(currentItemIDs) > 0 {
		if err := tx.Where("booking_id = ? AND id NOT IN ?", b.ID, currentItemIDs).
			Delete(&booking.LineItem{}).Error; err != nil {
			return err
		}
	} else {
		if err := tx.Where("booking_id = ?", b.ID).
			Delete(&booking.LineItem{}).Error; err != nil {
			return err
		}
	}

	for i := range b.LineItems {
		b.LineItems[i].BookingID = b.ID
		if err := tx.Save(&b.LineItems[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
