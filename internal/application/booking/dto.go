package booking

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/booking"
	"github.com/shopspring/decimal"
)

// ==================== Booking DTOs ====================

// CreateBookingRequest creates a draft booking
type CreateBookingRequest struct {
	ClientID           uuid.UUID        `json:"client_id" validate:"required"`
	ClientName         string           `json:"client_name" validate:"required,min=1,max=200"`
	ClientTaxID        string           `json:"client_tax_id" validate:"max=30"`
	PaymentTermsDays   int              `json:"payment_terms_days" validate:"min=0,max=365"`
	StartDate          time.Time        `json:"start_date" validate:"required"`
	EndDate            time.Time        `json:"end_date" validate:"required"`
	VenueCountry       string           `json:"venue_country" validate:"max=2"`
	VenueState         string           `json:"venue_state" validate:"max=50"`
	VenueCity          string           `json:"venue_city" validate:"max=100"`
	CancellationPolicy string           `json:"cancellation_policy" validate:"omitempty,oneof=FLEXIBLE MODERATE STRICT NO_REFUND CUSTOM"`
	CustomDeadlineHrs  int              `json:"custom_deadline_hours" validate:"min=0"`
	CustomFeePercent   *decimal.Decimal `json:"custom_fee_percent"`
	DefaultTaxRateID   *uuid.UUID       `json:"default_tax_rate_id"`
}

// AddLineItemRequest reserves a resource on a booking
type AddLineItemRequest struct {
	BookableID uuid.UUID `json:"bookable_id" validate:"required"`
	Quantity   int       `json:"quantity" validate:"required,min=1"`
	Taxable    bool      `json:"taxable"`
}

// UpdateLineItemRequest changes quantity or discount on a line
type UpdateLineItemRequest struct {
	Quantity        *int             `json:"quantity" validate:"omitempty,min=1"`
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
}

// RecordPaymentRequest appends a ledger entry
type RecordPaymentRequest struct {
	Type      string          `json:"type" validate:"required,oneof=PAYMENT_RECEIVED SUBHIRE_COST STAFF_COST"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Reference string          `json:"reference" validate:"max=100"`
}

// TaxExemptRequest marks a booking tax exempt
type TaxExemptRequest struct {
	Reason      string `json:"reason" validate:"required,min=1,max=500"`
	Certificate string `json:"certificate" validate:"max=100"`
}

// TaxOverrideRequest forces a manual tax total
type TaxOverrideRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Reason string          `json:"reason" validate:"required,min=1,max=500"`
	Actor  string          `json:"actor" validate:"required,min=1,max=100"`
}

// CheckAvailabilityRequest queries capacity for a resource and window
type CheckAvailabilityRequest struct {
	BookableID uuid.UUID `json:"bookable_id" validate:"required"`
	StartDate  time.Time `json:"start_date" validate:"required"`
	EndDate    time.Time `json:"end_date" validate:"required"`
	Quantity   int       `json:"quantity" validate:"required,min=1"`
}

// ==================== Quote DTOs ====================

// ConvertToQuoteRequest starts the quote lifecycle
type ConvertToQuoteRequest struct {
	Terms     string `json:"terms" validate:"max=2000"`
	ValidDays int    `json:"valid_days" validate:"min=0,max=365"`
}

// ApproveQuoteRequest accepts a quote
type ApproveQuoteRequest struct {
	ApprovedBy string `json:"approved_by" validate:"required,min=1,max=200"`
}

// DeclineQuoteRequest declines a quote
type DeclineQuoteRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// DuplicateQuoteRequest clones a booking into a fresh quote
type DuplicateQuoteRequest struct {
	StartDate  *time.Time `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
	ClientName *string    `json:"client_name" validate:"omitempty,min=1,max=200"`
	ValidDays  int        `json:"valid_days" validate:"min=0,max=365"`
}

// ==================== Cancellation DTOs ====================

// CancelBookingRequest cancels a booking
type CancelBookingRequest struct {
	Actor  string `json:"actor" validate:"required,min=1,max=100"`
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

// CancellationResult reports the outcome of a cancellation
type CancellationResult struct {
	Status       string          `json:"status"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	RefundStatus string          `json:"refund_status"`
}

// ==================== Responses ====================

// LineItemResponse is one booking line
type LineItemResponse struct {
	ID              uuid.UUID        `json:"id"`
	BookableID      uuid.UUID        `json:"bookable_id"`
	BookableName    string           `json:"bookable_name"`
	Kind            string           `json:"kind"`
	Quantity        int              `json:"quantity"`
	DailyRate       decimal.Decimal  `json:"daily_rate"`
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
	Taxable         bool             `json:"taxable"`
	Subtotal        decimal.Decimal  `json:"subtotal"`
	TaxAmount       decimal.Decimal  `json:"tax_amount"`
}

// BookingResponse is the full booking view returned by every mutation
type BookingResponse struct {
	ID                 uuid.UUID          `json:"id"`
	BookingNumber      string             `json:"booking_number"`
	ClientID           uuid.UUID          `json:"client_id"`
	ClientName         string             `json:"client_name"`
	StartDate          time.Time          `json:"start_date"`
	EndDate            time.Time          `json:"end_date"`
	RentalDays         int64              `json:"rental_days"`
	Status             string             `json:"status"`
	QuoteNumber        string             `json:"quote_number,omitempty"`
	QuoteStatus        string             `json:"quote_status"`
	QuoteExpiresAt     *time.Time         `json:"quote_expires_at,omitempty"`
	Subtotal           decimal.Decimal    `json:"subtotal"`
	TaxTotal           decimal.Decimal    `json:"tax_total"`
	GrandTotal         decimal.Decimal    `json:"grand_total"`
	BalanceDue         decimal.Decimal    `json:"balance_due"`
	TaxExempt          bool               `json:"tax_exempt"`
	TaxOverride        bool               `json:"tax_override"`
	ReverseCharged     bool               `json:"reverse_charged"`
	CancellationPolicy string             `json:"cancellation_policy"`
	RefundAmount       decimal.Decimal    `json:"refund_amount"`
	RefundStatus       string             `json:"refund_status"`
	PaymentDueDate     *time.Time         `json:"payment_due_date,omitempty"`
	DaysPastDue        int                `json:"days_past_due"`
	AgingBucket        string             `json:"aging_bucket"`
	CollectionStatus   string             `json:"collection_status"`
	ReminderCount      int                `json:"reminder_count"`
	LineItems          []LineItemResponse `json:"line_items"`
	Version            int                `json:"version"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// TotalsResponse reports the recomputed money totals
type TotalsResponse struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxTotal   decimal.Decimal `json:"tax_total"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// ToLineItemResponse converts a domain line item to its response DTO
func ToLineItemResponse(item *booking.LineItem) LineItemResponse {
	return LineItemResponse{
		ID:              item.ID,
		BookableID:      item.BookableID,
		BookableName:    item.BookableName,
		Kind:            string(item.Kind),
		Quantity:        item.Quantity,
		DailyRate:       item.DailyRate,
		DiscountPercent: item.DiscountPercent,
		Taxable:         item.Taxable,
		Subtotal:        item.Subtotal,
		TaxAmount:       item.TaxAmount,
	}
}

// ToBookingResponse converts a domain booking to its response DTO
func ToBookingResponse(b *booking.Booking) BookingResponse {
	items := make([]LineItemResponse, 0, len(b.LineItems))
	for idx := range b.LineItems {
		items = append(items, ToLineItemResponse(&b.LineItems[idx]))
	}

	return BookingResponse{
		ID:                 b.ID,
		BookingNumber:      b.BookingNumber,
		ClientID:           b.ClientID,
		ClientName:         b.ClientName,
		StartDate:          b.StartDate,
		EndDate:            b.EndDate,
		RentalDays:         b.RentalDays(),
		Status:             b.Status.String(),
		QuoteNumber:        b.QuoteNumber,
		QuoteStatus:        b.QuoteStatus.String(),
		QuoteExpiresAt:     b.QuoteExpiresAt,
		Subtotal:           b.Subtotal,
		TaxTotal:           b.TaxTotal,
		GrandTotal:         b.GrandTotal,
		BalanceDue:         b.BalanceDue().Amount(),
		TaxExempt:          b.TaxExempt,
		TaxOverride:        b.TaxOverride,
		ReverseCharged:     b.ReverseCharged,
		CancellationPolicy: b.CancellationPolicy.String(),
		RefundAmount:       b.RefundAmount,
		RefundStatus:       string(b.RefundStatus),
		PaymentDueDate:     b.PaymentDueDate,
		DaysPastDue:        b.DaysPastDue,
		AgingBucket:        b.AgingBucket.String(),
		CollectionStatus:   b.CollectionStatus.String(),
		ReminderCount:      b.ReminderCount,
		LineItems:          items,
		Version:            b.GetVersion(),
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}
