package booking

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/catalog"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// LineItem is a reservation of one bookable resource within a booking. The
// date range is inherited from the parent booking; the daily rate is a
// snapshot taken when the line is added. Quantity and dates are immutable
// once the booking is confirmed - changes require cancellation and rebooking.
type LineItem struct {
	ID           uuid.UUID            `gorm:"type:uuid;primary_key"`
	BookingID    uuid.UUID            `gorm:"type:uuid;not null;index"`
	BookableID   uuid.UUID            `gorm:"type:uuid;not null;index"`
	BookableName string               `gorm:"type:varchar(200);not null"`
	Kind         catalog.BookableKind `gorm:"type:varchar(20);not null"`
	Quantity     int                  `gorm:"not null"`
	DailyRate    decimal.Decimal      `gorm:"type:decimal(18,4);not null"` // price snapshot per day
	// DiscountPercent overrides the booking's default discount when set
	DiscountPercent *decimal.Decimal `gorm:"type:decimal(8,4)"`
	Taxable         bool             `gorm:"not null;default:true"`
	TaxRateID       *uuid.UUID       `gorm:"type:uuid"` // explicit line-level tax rate
	// Derived pricing/tax fields, recomputed by the aggregate
	Subtotal    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"` // post-discount line total
	TaxAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxRateUsed decimal.Decimal `gorm:"type:decimal(8,6);not null;default:0"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LineItem) TableName() string {
	return "booking_line_items"
}

// NewLineItem creates a line item from a catalog resource, snapshotting its
// current daily rate
func NewLineItem(bookingID uuid.UUID, resource catalog.Bookable, quantity int, taxable bool, now time.Time) (*LineItem, error) {
	if resource == nil {
		return nil, shared.NewValidationError("Bookable resource is required")
	}
	if quantity <= 0 {
		return nil, shared.NewValidationError("Quantity must be positive")
	}

	return &LineItem{
		ID:           uuid.New(),
		BookingID:    bookingID,
		BookableID:   resource.BookableID(),
		BookableName: resource.BookableName(),
		Kind:         resource.Kind(),
		Quantity:     quantity,
		DailyRate:    resource.DailyRate().Amount(),
		Taxable:      taxable,
		Subtotal:     decimal.Zero,
		TaxAmount:    decimal.Zero,
		TaxRateUsed:  decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// DailyRateMoney returns the snapshotted per-day rate as Money
func (i *LineItem) DailyRateMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(i.DailyRate)
}

// SubtotalMoney returns the post-discount line total as Money
func (i *LineItem) SubtotalMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(i.Subtotal)
}

// TaxAmountMoney returns the line tax as Money
func (i *LineItem) TaxAmountMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(i.TaxAmount)
}

// SetDiscountPercent sets the line-level discount (nil clears it so the
// booking default applies again)
func (i *LineItem) SetDiscountPercent(percent *decimal.Decimal) error {
	if percent != nil && (percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100))) {
		return shared.NewValidationError("Discount percent must be between 0 and 100")
	}
	i.DiscountPercent = percent
	i.UpdatedAt = time.Now()
	return nil
}

// SetTaxRate sets an explicit line-level tax rate reference
func (i *LineItem) SetTaxRate(rateID *uuid.UUID) {
	i.TaxRateID = rateID
	i.UpdatedAt = time.Now()
}

// reprice recomputes the post-discount subtotal for the given rental length.
// The day count is inclusive of both endpoints; the effective discount is the
// line discount when set, otherwise the booking default.
func (i *LineItem) reprice(rentalDays int64, defaultDiscountPercent decimal.Decimal) {
	base := i.DailyRate.
		Mul(decimal.NewFromInt(int64(i.Quantity))).
		Mul(decimal.NewFromInt(rentalDays))

	discount := defaultDiscountPercent
	if i.DiscountPercent != nil {
		discount = *i.DiscountPercent
	}

	i.Subtotal = valueobject.NewMoneyUSD(base).ApplyDiscountPercent(discount).Amount()
}
