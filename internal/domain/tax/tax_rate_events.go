package tax

import (
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event types for the tax-rate aggregate
const (
	EventTypeTaxRateCreated = "tax.rate.created"
)

// TaxRateCreatedEvent is emitted when a tax rate is configured
type TaxRateCreatedEvent struct {
	shared.BaseDomainEvent
	Name           string          `json:"name"`
	ComponentType  ComponentType   `json:"component_type"`
	EffectiveRate  decimal.Decimal `json:"effective_rate"`
	ComponentCount int             `json:"component_count"`
}

// NewTaxRateCreatedEvent creates a TaxRateCreatedEvent
func NewTaxRateCreatedEvent(tr *TaxRate) *TaxRateCreatedEvent {
	return &TaxRateCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTaxRateCreated, "TaxRate", tr.ID, tr.CompanyID),
		Name:            tr.Name,
		ComponentType:   tr.ComponentType,
		EffectiveRate:   tr.EffectiveRate(),
		ComponentCount:  len(tr.Components),
	}
}
