package tax

import (
	"context"

	"github.com/google/uuid"
)

// CompanyProfileRepository resolves the company's home jurisdiction, the
// anchor of the cross-border reverse-charge rule
type CompanyProfileRepository interface {
	HomeJurisdiction(ctx context.Context, companyID uuid.UUID) (Jurisdiction, error)
}

// TaxRateRepository persists the tax-rate tree
type TaxRateRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*TaxRate, error)
	FindByIDForCompany(ctx context.Context, companyID, id uuid.UUID) (*TaxRate, error)
	// FindAllForCompany returns all configured rates with composite
	// components populated.
	FindAllForCompany(ctx context.Context, companyID uuid.UUID) ([]TaxRate, error)
	Save(ctx context.Context, rate *TaxRate) error
	Delete(ctx context.Context, id uuid.UUID) error
}
