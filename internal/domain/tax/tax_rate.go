package tax

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ComponentType distinguishes nodes in the tax-rate tree
type ComponentType string

const (
	ComponentTypeState     ComponentType = "STATE"
	ComponentTypeCounty    ComponentType = "COUNTY"
	ComponentTypeCity      ComponentType = "CITY"
	ComponentTypeComposite ComponentType = "COMPOSITE" // parent node, rate = sum of children
)

// IsValid checks if the component type is valid
func (t ComponentType) IsValid() bool {
	switch t {
	case ComponentTypeState, ComponentTypeCounty, ComponentTypeCity, ComponentTypeComposite:
		return true
	}
	return false
}

// TaxRate is a node in a company's tax-rate tree. Leaf nodes carry a rate
// fraction; composite nodes carry no rate of their own - their effective rate
// is the sum of their children's rates, reported per component but summed for
// the amount owed.
type TaxRate struct {
	shared.CompanyAggregateRoot
	Name          string          `gorm:"type:varchar(100);not null"`
	Rate          decimal.Decimal `gorm:"type:decimal(8,6);not null;default:0"` // fraction, e.g. 0.0725 for 7.25%; zero for composite nodes
	ComponentType ComponentType   `gorm:"type:varchar(20);not null"`
	Scope         Jurisdiction    `gorm:"embedded;embeddedPrefix:scope_"`
	ParentID      *uuid.UUID      `gorm:"type:uuid;index"`
	Components    []TaxRate       `gorm:"-"` // children, populated by the repository for composite nodes
}

// TableName returns the table name for GORM
func (TaxRate) TableName() string {
	return "tax_rates"
}

// NewTaxRate creates a leaf tax rate
func NewTaxRate(companyID uuid.UUID, name string, rate decimal.Decimal, componentType ComponentType, scope Jurisdiction) (*TaxRate, error) {
	if name == "" {
		return nil, shared.NewValidationError("Tax rate name cannot be empty")
	}
	if !componentType.IsValid() || componentType == ComponentTypeComposite {
		return nil, shared.NewValidationError("Component type must be STATE, COUNTY or CITY")
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, shared.NewValidationError("Rate must be a fraction in [0, 1)")
	}

	tr := &TaxRate{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Name:                 name,
		Rate:                 rate,
		ComponentType:        componentType,
		Scope:                scope,
	}
	tr.AddDomainEvent(NewTaxRateCreatedEvent(tr))
	return tr, nil
}

// NewCompositeTaxRate creates a composite node over the given components.
// Component exclusivity is a configuration-time invariant: a component that
// already belongs to another parent is rejected here, never re-checked at
// calculation time.
func NewCompositeTaxRate(companyID uuid.UUID, name string, scope Jurisdiction, components []TaxRate) (*TaxRate, error) {
	if name == "" {
		return nil, shared.NewValidationError("Tax rate name cannot be empty")
	}
	if len(components) == 0 {
		return nil, shared.NewValidationError("Composite tax rate requires at least one component")
	}

	tr := &TaxRate{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Name:                 name,
		Rate:                 decimal.Zero,
		ComponentType:        ComponentTypeComposite,
		Scope:                scope,
	}

	for _, c := range components {
		if c.ComponentType == ComponentTypeComposite {
			return nil, shared.NewValidationError("Composite tax rates cannot nest")
		}
		if c.ParentID != nil {
			return nil, shared.NewDomainError("COMPONENT_ALREADY_ATTACHED",
				fmt.Sprintf("Tax component %q already belongs to another composite rate", c.Name))
		}
		if c.CompanyID != companyID {
			return nil, shared.NewValidationError("Tax components must belong to the same company")
		}
		attached := c
		parentID := tr.ID
		attached.ParentID = &parentID
		tr.Components = append(tr.Components, attached)
	}

	tr.AddDomainEvent(NewTaxRateCreatedEvent(tr))
	return tr, nil
}

// IsComposite reports whether this node expands to components
func (t *TaxRate) IsComposite() bool {
	return t.ComponentType == ComponentTypeComposite
}

// EffectiveRate returns the rate applied to a taxable amount: the node's own
// rate for leaves, the additive sum of component rates for composites.
func (t *TaxRate) EffectiveRate() decimal.Decimal {
	if !t.IsComposite() {
		return t.Rate
	}
	sum := decimal.Zero
	for _, c := range t.Components {
		sum = sum.Add(c.Rate)
	}
	return sum
}

// ComponentBreakdown returns the individual components a composite expands
// to; leaves report themselves as their only component.
func (t *TaxRate) ComponentBreakdown() []TaxRate {
	if !t.IsComposite() {
		return []TaxRate{*t}
	}
	return t.Components
}

// ResolveLocationRate picks the applicable rate for a venue location from a
// company's configured rates: the most specific matching scope wins
// (city > state > country). Returns nil when nothing matches.
func ResolveLocationRate(rates []TaxRate, venue Jurisdiction) *TaxRate {
	var best *TaxRate
	bestScore := 0
	for i := range rates {
		r := &rates[i]
		if !r.Scope.Covers(venue) {
			continue
		}
		if score := r.Scope.Specificity(); score > bestScore {
			best = r
			bestScore = score
		}
	}
	return best
}
