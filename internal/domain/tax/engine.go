package tax

import (
	"unicode"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Engine computes booking tax from line subtotals. It is a stateless domain
// service: the application layer loads the configured rates and the booking's
// pricing output, and the engine returns a full breakdown.
//
// Rate resolution per line, most specific first:
//  1. the line's explicit rate
//  2. the booking's default rate
//  3. location lookup against the company's configured rates (city > state > country)
type Engine struct{}

// NewEngine creates a tax engine
func NewEngine() *Engine {
	return &Engine{}
}

// LineInput is one taxable (or non-taxable) booking line
type LineInput struct {
	LineID       uuid.UUID
	Description  string
	Subtotal     valueobject.Money // post-discount line total
	Taxable      bool
	ExplicitRate *TaxRate // optional line-level rate
}

// CalculationInput carries everything the engine needs for one booking
type CalculationInput struct {
	Lines           []LineInput
	DefaultRate     *TaxRate // optional booking-level default
	ConfiguredRates []TaxRate
	Venue           Jurisdiction
	CompanyHome     Jurisdiction
	ClientTaxID     string // VAT-style identification number, if on file

	Exempt            bool
	ExemptReason      string
	ExemptCertificate string

	Override       bool
	OverrideAmount valueobject.Money
	OverrideReason string
	OverrideActor  string
}

// ComponentAmount is the reported share of one tax component on a line
type ComponentAmount struct {
	Name          string            `json:"name"`
	ComponentType ComponentType     `json:"component_type"`
	Rate          decimal.Decimal   `json:"rate"`
	Amount        valueobject.Money `json:"amount"`
}

// LineTax is the per-line tax detail retained for audit even when the
// booking-level total is overridden
type LineTax struct {
	LineID      uuid.UUID         `json:"line_id"`
	Description string            `json:"description"`
	Taxable     bool              `json:"taxable"`
	RateApplied decimal.Decimal   `json:"rate_applied"`
	Amount      valueobject.Money `json:"amount"`
	Components  []ComponentAmount `json:"components,omitempty"`
}

// Breakdown is the engine's full output for reporting
type Breakdown struct {
	Subtotal       valueobject.Money `json:"subtotal"`
	TaxTotal       valueobject.Money `json:"tax_total"`
	GrandTotal     valueobject.Money `json:"grand_total"`
	Lines          []LineTax         `json:"lines"`
	Exempt         bool              `json:"exempt"`
	ExemptReason   string            `json:"exempt_reason,omitempty"`
	Overridden     bool              `json:"overridden"`
	OverrideReason string            `json:"override_reason,omitempty"`
	OverrideActor  string            `json:"override_actor,omitempty"`
	ReverseCharged bool              `json:"reverse_charged"`
}

// Calculate resolves rates and computes per-line and booking tax.
// Precedence among the special regimes: manual override beats exemption
// beats reverse charge; line detail is always computed and retained.
func (e *Engine) Calculate(input CalculationInput) (*Breakdown, error) {
	if input.Override {
		if input.OverrideReason == "" {
			return nil, shared.NewValidationError("Tax override requires a reason")
		}
		if input.OverrideActor == "" {
			return nil, shared.NewValidationError("Tax override requires the acting user")
		}
		if input.OverrideAmount.IsNegative() {
			return nil, shared.NewValidationError("Tax override amount cannot be negative")
		}
	}
	if input.Exempt && input.ExemptReason == "" {
		return nil, shared.NewValidationError("Tax exemption requires a reason")
	}

	currency := valueobject.DefaultCurrency
	if len(input.Lines) > 0 {
		currency = input.Lines[0].Subtotal.Currency()
	}
	subtotal := valueobject.Zero(currency)
	taxTotal := valueobject.Zero(currency)
	lines := make([]LineTax, 0, len(input.Lines))

	for _, line := range input.Lines {
		subtotal = subtotal.MustAdd(line.Subtotal)

		lt := LineTax{
			LineID:      line.LineID,
			Description: line.Description,
			Taxable:     line.Taxable,
			RateApplied: decimal.Zero,
			Amount:      valueobject.Zero(line.Subtotal.Currency()),
		}

		if line.Taxable {
			rate := e.resolveRate(line, input)
			if rate != nil {
				effective := rate.EffectiveRate()
				lt.RateApplied = effective
				// Component rates are additive: the line amount is computed
				// once from the summed rate so components never double count.
				lt.Amount = line.Subtotal.Multiply(effective).RoundToCents()
				for _, c := range rate.ComponentBreakdown() {
					lt.Components = append(lt.Components, ComponentAmount{
						Name:          c.Name,
						ComponentType: c.ComponentType,
						Rate:          c.Rate,
						Amount:        line.Subtotal.Multiply(c.Rate).RoundToCents(),
					})
				}
			}
		}

		taxTotal = taxTotal.MustAdd(lt.Amount)
		lines = append(lines, lt)
	}

	breakdown := &Breakdown{
		Subtotal: subtotal.RoundToCents(),
		TaxTotal: taxTotal.RoundToCents(),
		Lines:    lines,
	}

	switch {
	case input.Override:
		breakdown.Overridden = true
		breakdown.OverrideReason = input.OverrideReason
		breakdown.OverrideActor = input.OverrideActor
		breakdown.TaxTotal = input.OverrideAmount.RoundToCents()
	case input.Exempt:
		breakdown.Exempt = true
		breakdown.ExemptReason = input.ExemptReason
		breakdown.TaxTotal = valueobject.Zero(subtotal.Currency())
	case e.reverseChargeApplies(input):
		breakdown.ReverseCharged = true
		breakdown.TaxTotal = valueobject.Zero(subtotal.Currency())
	}

	breakdown.GrandTotal = breakdown.Subtotal.MustAdd(breakdown.TaxTotal)
	return breakdown, nil
}

// resolveRate applies the precedence rules for a single line
func (e *Engine) resolveRate(line LineInput, input CalculationInput) *TaxRate {
	if line.ExplicitRate != nil {
		return line.ExplicitRate
	}
	if input.DefaultRate != nil {
		return input.DefaultRate
	}
	if input.Venue.IsZero() {
		return nil
	}
	return ResolveLocationRate(input.ConfiguredRates, input.Venue)
}

// reverseChargeApplies implements the cross-border rule: the venue's tax
// jurisdiction must differ from the company's home jurisdiction AND the
// client must have a plausible VAT-style number on file.
func (e *Engine) reverseChargeApplies(input CalculationInput) bool {
	if input.Venue.IsZero() || input.CompanyHome.IsZero() {
		return false
	}
	if input.Venue.SameCountry(input.CompanyHome) {
		return false
	}
	return IsPlausibleTaxID(input.ClientTaxID)
}

// IsPlausibleTaxID performs the format-level check used for reverse charge:
// a two-letter country prefix followed by at least six characters. Registry
// verification belongs to an external service.
func IsPlausibleTaxID(id string) bool {
	if len(id) < 8 {
		return false
	}
	for _, r := range id[:2] {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
