package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/catalog"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/domain/shared/valueobject"
)

// AvailabilityService answers capacity questions for one resource and date
// window. Occupancy is half-open: a reservation returning on day D and
// another picking up on day D share no capacity.
//
// The binding constraint over a window is the worst single day: the
// available quantity for [start, end) is owned quantity minus the maximum
// daily sum of overlapping committed reservations. This read path is
// advisory; the authoritative check happens inside
// BookingRepository.ConfirmWithReservation's transaction.
type AvailabilityService struct {
	bookings  BookingRepository
	bookables catalog.BookableRepository
}

// NewAvailabilityService creates an availability service
func NewAvailabilityService(bookings BookingRepository, bookables catalog.BookableRepository) *AvailabilityService {
	return &AvailabilityService{bookings: bookings, bookables: bookables}
}

// DayAvailability is one day of the per-date breakdown
type DayAvailability struct {
	Day       time.Time `json:"day"`
	Total     int       `json:"total"`
	Booked    int       `json:"booked"`
	Available int       `json:"available"`
}

// AvailabilityResult answers one availability query
type AvailabilityResult struct {
	Available         bool              `json:"available"`
	AvailableQuantity int               `json:"available_quantity"`
	ByDate            []DayAvailability `json:"by_date"`
}

// CheckAvailability reports whether quantity units of the resource are free
// for every day of the window, with a per-day breakdown
func (s *AvailabilityService) CheckAvailability(ctx context.Context, companyID, bookableID uuid.UUID, window valueobject.DateRange, quantity int) (*AvailabilityResult, error) {
	if window.IsZero() {
		return nil, shared.ErrInvalidDateRange
	}
	if quantity <= 0 {
		return nil, shared.NewValidationError("Quantity must be positive")
	}

	resource, err := s.bookables.FindBookable(ctx, companyID, bookableID)
	if err != nil {
		return nil, err
	}

	// Unconstrained resources (services, labor) are always available
	if !resource.CapacityConstrained() {
		return &AvailabilityResult{
			Available:         true,
			AvailableQuantity: resource.OwnedQuantity(),
			ByDate:            s.unconstrainedByDate(window, resource.OwnedQuantity()),
		}, nil
	}

	usages, err := s.bookings.FindActiveReservations(ctx, companyID, bookableID, window)
	if err != nil {
		return nil, err
	}

	owned := resource.OwnedQuantity()
	byDate := make([]DayAvailability, 0)
	worst := 0

	window.EachOccupiedDay(func(day time.Time) {
		booked := 0
		for _, u := range usages {
			if u.Period.Occupies(day) {
				booked += u.Quantity
			}
		}
		if booked > worst {
			worst = booked
		}
		avail := owned - booked
		if avail < 0 {
			avail = 0
		}
		byDate = append(byDate, DayAvailability{
			Day:       day,
			Total:     owned,
			Booked:    booked,
			Available: avail,
		})
	})

	availableQty := owned - worst
	if availableQty < 0 {
		availableQty = 0
	}

	return &AvailabilityResult{
		Available:         availableQty >= quantity,
		AvailableQuantity: availableQty,
		ByDate:            byDate,
	}, nil
}

// AvailableQuantity returns the worst-single-day free quantity for the window
func (s *AvailabilityService) AvailableQuantity(ctx context.Context, companyID, bookableID uuid.UUID, window valueobject.DateRange) (int, error) {
	result, err := s.CheckAvailability(ctx, companyID, bookableID, window, 1)
	if err != nil {
		return 0, err
	}
	return result.AvailableQuantity, nil
}

// IsAvailable reports whether quantity units are free for the whole window
func (s *AvailabilityService) IsAvailable(ctx context.Context, companyID, bookableID uuid.UUID, window valueobject.DateRange, quantity int) (bool, error) {
	result, err := s.CheckAvailability(ctx, companyID, bookableID, window, quantity)
	if err != nil {
		return false, err
	}
	return result.Available, nil
}

func (s *AvailabilityService) unconstrainedByDate(window valueobject.DateRange, owned int) []DayAvailability {
	byDate := make([]DayAvailability, 0)
	window.EachOccupiedDay(func(day time.Time) {
		byDate = append(byDate, DayAvailability{Day: day, Total: owned, Booked: 0, Available: owned})
	})
	return byDate
}
