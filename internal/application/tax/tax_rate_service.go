package tax

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/domain/tax"
	"github.com/shopspring/decimal"
)

// TaxRateService manages a company's configured tax-rate tree. All
// structural invariants (component exclusivity, no nesting) are enforced at
// configuration time here, so the calculation path never re-validates them.
type TaxRateService struct {
	rates          tax.TaxRateRepository
	validate       *validator.Validate
	eventPublisher shared.EventPublisher
}

// NewTaxRateService creates a new TaxRateService
func NewTaxRateService(rates tax.TaxRateRepository) *TaxRateService {
	return &TaxRateService{
		rates:    rates,
		validate: validator.New(),
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *TaxRateService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// CreateTaxRateRequest configures one leaf tax rate
type CreateTaxRateRequest struct {
	Name          string          `json:"name" validate:"required,min=1,max=100"`
	Rate          decimal.Decimal `json:"rate" validate:"required"`
	ComponentType string          `json:"component_type" validate:"required,oneof=STATE COUNTY CITY"`
	Country       string          `json:"country" validate:"max=100"`
	State         string          `json:"state" validate:"max=100"`
	City          string          `json:"city" validate:"max=100"`
}

// CreateCompositeTaxRateRequest groups existing leaf rates under one parent
type CreateCompositeTaxRateRequest struct {
	Name         string      `json:"name" validate:"required,min=1,max=100"`
	Country      string      `json:"country" validate:"max=100"`
	State        string      `json:"state" validate:"max=100"`
	City         string      `json:"city" validate:"max=100"`
	ComponentIDs []uuid.UUID `json:"component_ids" validate:"required,min=1,dive,required"`
}

// TaxRateResponse is the outward view of one tax-rate node
type TaxRateResponse struct {
	ID            uuid.UUID         `json:"id"`
	Name          string            `json:"name"`
	Rate          decimal.Decimal   `json:"rate"`
	EffectiveRate decimal.Decimal   `json:"effective_rate"`
	ComponentType string            `json:"component_type"`
	Scope         tax.Jurisdiction  `json:"scope"`
	Components    []TaxRateResponse `json:"components,omitempty"`
}

// Create configures a leaf tax rate for a company
func (s *TaxRateService) Create(ctx context.Context, companyID uuid.UUID, req CreateTaxRateRequest) (*TaxRateResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewValidationError(err.Error())
	}

	rate, err := tax.NewTaxRate(companyID, req.Name, req.Rate,
		tax.ComponentType(req.ComponentType),
		tax.Jurisdiction{Country: req.Country, State: req.State, City: req.City})
	if err != nil {
		return nil, err
	}

	if err := s.rates.Save(ctx, rate); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, rate)
	response := ToTaxRateResponse(rate)
	return &response, nil
}

// CreateComposite groups existing leaf rates into a composite node whose
// effective rate is the additive sum of its components
func (s *TaxRateService) CreateComposite(ctx context.Context, companyID uuid.UUID, req CreateCompositeTaxRateRequest) (*TaxRateResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewValidationError(err.Error())
	}

	components := make([]tax.TaxRate, 0, len(req.ComponentIDs))
	for _, id := range req.ComponentIDs {
		leaf, err := s.rates.FindByIDForCompany(ctx, companyID, id)
		if err != nil {
			return nil, err
		}
		components = append(components, *leaf)
	}

	composite, err := tax.NewCompositeTaxRate(companyID, req.Name,
		tax.Jurisdiction{Country: req.Country, State: req.State, City: req.City},
		components)
	if err != nil {
		return nil, err
	}

	if err := s.rates.Save(ctx, composite); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, composite)
	response := ToTaxRateResponse(composite)
	return &response, nil
}

// GetByID returns one configured rate
func (s *TaxRateService) GetByID(ctx context.Context, companyID, rateID uuid.UUID) (*TaxRateResponse, error) {
	rate, err := s.rates.FindByIDForCompany(ctx, companyID, rateID)
	if err != nil {
		return nil, err
	}
	response := ToTaxRateResponse(rate)
	return &response, nil
}

// List returns all of a company's configured rates
func (s *TaxRateService) List(ctx context.Context, companyID uuid.UUID) ([]TaxRateResponse, error) {
	rates, err := s.rates.FindAllForCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	responses := make([]TaxRateResponse, 0, len(rates))
	for i := range rates {
		responses = append(responses, ToTaxRateResponse(&rates[i]))
	}
	return responses, nil
}

// Delete removes a configured rate. Bookings that already captured the rate
// keep their stored amounts; only future calculations are affected.
func (s *TaxRateService) Delete(ctx context.Context, companyID, rateID uuid.UUID) error {
	rate, err := s.rates.FindByIDForCompany(ctx, companyID, rateID)
	if err != nil {
		return err
	}
	if rate.ParentID != nil {
		return shared.NewDomainError("COMPONENT_ATTACHED",
			"Cannot delete a tax component while it belongs to a composite rate")
	}
	return s.rates.Delete(ctx, rateID)
}

// ToTaxRateResponse converts a tax rate to its response DTO
func ToTaxRateResponse(rate *tax.TaxRate) TaxRateResponse {
	resp := TaxRateResponse{
		ID:            rate.ID,
		Name:          rate.Name,
		Rate:          rate.Rate,
		EffectiveRate: rate.EffectiveRate(),
		ComponentType: string(rate.ComponentType),
		Scope:         rate.Scope,
	}
	for i := range rate.Components {
		resp.Components = append(resp.Components, ToTaxRateResponse(&rate.Components[i]))
	}
	return resp
}

func (s *TaxRateService) publishEvents(ctx context.Context, rate *tax.TaxRate) {
	if s.eventPublisher == nil {
		rate.ClearDomainEvents()
		return
	}
	_ = s.eventPublisher.Publish(ctx, rate.GetDomainEvents()...)
	rate.ClearDomainEvents()
}
