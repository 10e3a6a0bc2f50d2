package booking

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/booking"
	"github.com/rentworks/backend/internal/domain/catalog"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/domain/shared/valueobject"
	"github.com/rentworks/backend/internal/domain/tax"
	"github.com/rentworks/backend/internal/infrastructure/telemetry"
)

// BookingService orchestrates the reservation and financial lifecycle of a
// booking: line mutation with availability checks, pricing and tax
// recomputation, confirmation with the atomic reservation commit, payments
// and completion.
type BookingService struct {
	bookings        booking.BookingRepository
	bookables       catalog.BookableRepository
	taxRates        tax.TaxRateRepository
	companyProfiles tax.CompanyProfileRepository
	availability    *booking.AvailabilityService
	taxEngine       *tax.Engine
	clock           shared.Clock
	validate        *validator.Validate
	eventPublisher  shared.EventPublisher
	businessMetrics *telemetry.BusinessMetrics
}

// NewBookingService creates a new BookingService
func NewBookingService(
	bookings booking.BookingRepository,
	bookables catalog.BookableRepository,
	taxRates tax.TaxRateRepository,
	companyProfiles tax.CompanyProfileRepository,
	clock shared.Clock,
) *BookingService {
	return &BookingService{
		bookings:        bookings,
		bookables:       bookables,
		taxRates:        taxRates,
		companyProfiles: companyProfiles,
		availability:    booking.NewAvailabilityService(bookings, bookables),
		taxEngine:       tax.NewEngine(),
		clock:           clock,
		validate:        validator.New(),
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *BookingService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetBusinessMetrics sets the business metrics collector
func (s *BookingService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// Create creates a draft booking
func (s *BookingService) Create(ctx context.Context, companyID uuid.UUID, req CreateBookingRequest) (*BookingResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewValidationError(err.Error())
	}

	period, err := valueobject.NewDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, shared.ErrInvalidDateRange
	}

	number, err := s.bookings.GenerateBookingNumber(ctx, companyID)
	if err != nil {
		return nil, err
	}

	b, err := booking.NewBooking(companyID, number, req.ClientID, req.ClientName, period,
		booking.CancellationPolicy(req.CancellationPolicy), s.clock.Now())
	if err != nil {
		return nil, err
	}

	b.ClientTaxID = req.ClientTaxID
	b.PaymentTermsDays = req.PaymentTermsDays
	b.DefaultTaxRateID = req.DefaultTaxRateID
	b.SetVenue(req.VenueCountry, req.VenueState, req.VenueCity)

	if b.CancellationPolicy == booking.PolicyCustom && req.CustomFeePercent != nil {
		if err := b.SetCustomCancellationTerms(req.CustomDeadlineHrs, *req.CustomFeePercent); err != nil {
			return nil, err
		}
	}

	if err := s.bookings.Save(ctx, b); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, b)
	response := ToBookingResponse(b)
	return &response, nil
}

// GetByID retrieves a booking by ID
func (s *BookingService) GetByID(ctx context.Context, companyID, bookingID uuid.UUID) (*BookingResponse, error) {
	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}
	response := ToBookingResponse(b)
	return &response, nil
}

// List returns a page of the company's bookings
func (s *BookingService) List(ctx context.Context, companyID uuid.UUID, filter shared.Filter) (*shared.Paginated[BookingResponse], error) {
	page, err := s.bookings.FindByCompany(ctx, companyID, filter)
	if err != nil {
		return nil, err
	}

	items := make([]BookingResponse, 0, len(page.Items))
	for idx := range page.Items {
		page.Items[idx].RestorePeriod()
		items = append(items, ToBookingResponse(&page.Items[idx]))
	}
	result := shared.Paginated[BookingResponse]{
		Items:      items,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}
	return &result, nil
}

// CheckAvailability answers a capacity query for one resource and window
func (s *BookingService) CheckAvailability(ctx context.Context, companyID uuid.UUID, req CheckAvailabilityRequest) (*booking.AvailabilityResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewValidationError(err.Error())
	}
	window, err := valueobject.NewDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, shared.ErrInvalidDateRange
	}
	return s.availability.CheckAvailability(ctx, companyID, req.BookableID, window, req.Quantity)
}

// AddLineItem reserves a resource on a draft booking. The check here is
// advisory; the authoritative re-check runs inside the confirmation
// transaction.
func (s *BookingService) AddLineItem(ctx context.Context, companyID, bookingID uuid.UUID, req AddLineItemRequest) (*BookingResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewValidationError(err.Error())
	}

	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}

	resource, err := s.bookables.FindBookable(ctx, companyID, req.BookableID)
	if err != nil {
		return nil, err
	}

	if resource.CapacityConstrained() {
		result, err := s.availability.CheckAvailability(ctx, companyID, req.BookableID, b.Period, req.Quantity)
		if err != nil {
			return nil, err
		}
		if !result.Available {
			return nil, shared.NewCapacityError(fmt.Sprintf(
				"Requested %d of %q but only %d available for the booking period",
				req.Quantity, resource.BookableName(), result.AvailableQuantity))
		}
	}

	if _, err := b.AddLineItem(resource, req.Quantity, req.Taxable, s.clock.Now()); err != nil {
		return nil, err
	}

	return s.recalculateAndSave(ctx, b)
}

// UpdateLineItem changes a line's quantity or discount and reprices
func (s *BookingService) UpdateLineItem(ctx context.Context, companyID, bookingID, itemID uuid.UUID, req UpdateLineItemRequest) (*BookingResponse, error) {
	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}

	if req.Quantity != nil {
		item := b.GetLineItem(itemID)
		if item == nil {
			return nil, shared.ErrNotFound
		}
		if *req.Quantity > item.Quantity && item.Kind != catalog.BookableKindService {
			// Draft lines hold no inventory, so the whole target quantity
			// must fit the fleet, not just the increase.
			result, err := s.availability.CheckAvailability(ctx, companyID, item.BookableID, b.Period, *req.Quantity)
			if err != nil {
				return nil, err
			}
			if !result.Available {
				return nil, shared.NewCapacityError(fmt.Sprintf(
					"Cannot increase %q to %d: only %d available",
					item.BookableName, *req.Quantity, result.AvailableQuantity))
			}
		}
		if err := b.UpdateLineItemQuantity(itemID, *req.Quantity); err != nil {
			return nil, err
		}
	}

	if req.DiscountPercent != nil {
		if err := b.SetLineItemDiscount(itemID, req.DiscountPercent); err != nil {
			return nil, err
		}
	}

	return s.recalculateAndSave(ctx, b)
}

// RemoveLineItem removes a line and reprices
func (s *BookingService) RemoveLineItem(ctx context.Context, companyID, bookingID, itemID uuid.UUID) (*BookingResponse, error) {
	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}
	if err := b.RemoveLineItem(itemID); err != nil {
		return nil, err
	}
	return s.recalculateAndSave(ctx, b)
}

// RecalculateTotals reprices and re-taxes the booking, returning the totals
func (s *BookingService) RecalculateTotals(ctx context.Context, companyID, bookingID uuid.UUID) (*TotalsResponse, error) {
	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}

	b.RecalculatePricing()
	if _, err := s.recalculateAndSave(ctx, b); err != nil {
		return nil, err
	}

	return &TotalsResponse{Subtotal: b.Subtotal, TaxTotal: b.TaxTotal, GrandTotal: b.GrandTotal}, nil
}

// SetTaxExempt marks the booking exempt and recomputes totals
func (s *BookingService) SetTaxExempt(ctx context.Context, companyID, bookingID uuid.UUID, req TaxExemptRequest) (*BookingResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewValidationError(err.Error())
	}
	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}
	if err := b.SetTaxExempt(req.Reason, req.Certificate); err != nil {
		return nil, err
	}
	return s.recalculateAndSave(ctx, b)
}

// SetTaxOverride forces a manual tax total and recomputes
func (s *BookingService) SetTaxOverride(ctx context.Context, companyID, bookingID uuid.UUID, req TaxOverrideRequest) (*BookingResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewValidationError(err.Error())
	}
	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}
	if err := b.SetTaxOverride(valueobject.NewMoneyUSD(req.Amount), req.Reason, req.Actor); err != nil {
		return nil, err
	}
	return s.recalculateAndSave(ctx, b)
}

// Confirm commits the booking to the calendar. The availability re-check and
// the status write share one transaction inside the repository, so two
// racing confirmations cannot both pass the capacity check.
func (s *BookingService) Confirm(ctx context.Context, companyID, bookingID uuid.UUID) (*BookingResponse, error) {
	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}

	if err := b.Confirm(s.clock.Now()); err != nil {
		return nil, err
	}

	if err := s.bookings.ConfirmWithReservation(ctx, b); err != nil {
		if s.businessMetrics != nil && !shared.IsRetryable(err) {
			s.businessMetrics.RecordReservationConflict(ctx, companyID)
		}
		return nil, err
	}

	if s.businessMetrics != nil {
		s.businessMetrics.RecordBookingConfirmed(ctx, companyID, b.GrandTotal)
	}

	s.publishEvents(ctx, b)
	response := ToBookingResponse(b)
	return &response, nil
}

// Complete marks the booking completed after the rental returns
func (s *BookingService) Complete(ctx context.Context, companyID, bookingID uuid.UUID) (*BookingResponse, error) {
	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}
	if err := b.Complete(s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.bookings.SaveWithVersion(ctx, b, b.GetVersion()); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, b)
	response := ToBookingResponse(b)
	return &response, nil
}

// RecordPayment appends a payment ledger entry
func (s *BookingService) RecordPayment(ctx context.Context, companyID, bookingID uuid.UUID, req RecordPaymentRequest) (*BookingResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewValidationError(err.Error())
	}

	b, err := s.loadBooking(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}

	expected := b.GetVersion()
	if err := b.RecordPayment(booking.PaymentType(req.Type), valueobject.NewMoneyUSD(req.Amount), req.Reference, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.bookings.SaveWithVersion(ctx, b, expected); err != nil {
		return nil, err
	}

	if s.businessMetrics != nil && booking.PaymentType(req.Type) == booking.PaymentTypeReceived {
		s.businessMetrics.RecordPaymentReceived(ctx, companyID, req.Amount)
	}

	s.publishEvents(ctx, b)
	response := ToBookingResponse(b)
	return &response, nil
}

// loadBooking fetches a booking scoped to the company and restores its
// derived value objects
func (s *BookingService) loadBooking(ctx context.Context, companyID, bookingID uuid.UUID) (*booking.Booking, error) {
	b, err := s.bookings.FindByIDForCompany(ctx, companyID, bookingID)
	if err != nil {
		return nil, err
	}
	b.RestorePeriod()
	return b, nil
}

// recalculateAndSave runs the tax engine over the booking's current pricing
// and persists pricing, tax and line detail in one optimistic write
func (s *BookingService) recalculateAndSave(ctx context.Context, b *booking.Booking) (*BookingResponse, error) {
	if err := s.applyTax(ctx, b); err != nil {
		return nil, err
	}
	if err := s.bookings.SaveWithVersion(ctx, b, b.GetVersion()); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, b)
	response := ToBookingResponse(b)
	return &response, nil
}

// applyTax composes the tax engine input from the booking and the company's
// configured rates and writes the result back onto the aggregate
func (s *BookingService) applyTax(ctx context.Context, b *booking.Booking) error {
	rates, err := s.taxRates.FindAllForCompany(ctx, b.CompanyID)
	if err != nil {
		return err
	}

	ratesByID := make(map[uuid.UUID]*tax.TaxRate, len(rates))
	for idx := range rates {
		ratesByID[rates[idx].ID] = &rates[idx]
	}

	var defaultRate *tax.TaxRate
	if b.DefaultTaxRateID != nil {
		defaultRate = ratesByID[*b.DefaultTaxRateID]
	}

	home := tax.Jurisdiction{}
	if s.companyProfiles != nil {
		if home, err = s.companyProfiles.HomeJurisdiction(ctx, b.CompanyID); err != nil {
			return err
		}
	}

	lines := make([]tax.LineInput, 0, len(b.LineItems))
	for idx := range b.LineItems {
		item := &b.LineItems[idx]
		line := tax.LineInput{
			LineID:      item.ID,
			Description: item.BookableName,
			Subtotal:    item.SubtotalMoney(),
			Taxable:     item.Taxable,
		}
		if item.TaxRateID != nil {
			line.ExplicitRate = ratesByID[*item.TaxRateID]
		}
		lines = append(lines, line)
	}

	breakdown, err := s.taxEngine.Calculate(tax.CalculationInput{
		Lines:           lines,
		DefaultRate:     defaultRate,
		ConfiguredRates: rates,
		Venue:           tax.Jurisdiction{Country: b.VenueCountry, State: b.VenueState, City: b.VenueCity},
		CompanyHome:     home,
		ClientTaxID:     b.ClientTaxID,

		Exempt:            b.TaxExempt,
		ExemptReason:      b.TaxExemptReason,
		ExemptCertificate: b.TaxExemptCert,

		Override:       b.TaxOverride,
		OverrideAmount: valueobject.NewMoneyUSD(b.TaxOverrideAmount),
		OverrideReason: b.TaxOverrideReason,
		OverrideActor:  b.TaxOverrideActor,
	})
	if err != nil {
		return err
	}

	perLine := make(map[uuid.UUID]booking.LineTaxResult, len(breakdown.Lines))
	for _, lt := range breakdown.Lines {
		perLine[lt.LineID] = booking.LineTaxResult{
			Amount: lt.Amount.Amount(),
			Rate:   lt.RateApplied,
		}
	}

	b.ApplyTaxResult(breakdown.TaxTotal, perLine, breakdown.ReverseCharged)
	return nil
}

// publishEvents drains and publishes the aggregate's pending domain events.
// Publishing is best effort after commit; handlers own their retries.
func (s *BookingService) publishEvents(ctx context.Context, b *booking.Booking) {
	if s.eventPublisher == nil {
		b.ClearDomainEvents()
		return
	}
	for _, event := range b.GetDomainEvents() {
		_ = s.eventPublisher.Publish(ctx, event)
	}
	b.ClearDomainEvents()
}
