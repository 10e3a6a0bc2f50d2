// Package company holds the per-tenant profile of a rental company: its
// name, home jurisdiction, and engine-level defaults.
package company

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/shared"
)

// Profile is the engine-level record of one rental company. The home
// jurisdiction anchors the cross-border reverse-charge rule: a booking whose
// venue country differs from the company's home country is cross-border.
type Profile struct {
	shared.BaseAggregateRoot
	CompanyID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Name        string    `gorm:"type:varchar(200);not null"`
	HomeCountry string    `gorm:"type:varchar(100);not null"`
	HomeState   string    `gorm:"type:varchar(100)"`
	HomeCity    string    `gorm:"type:varchar(100)"`
	// DefaultPaymentTermsDays seeds new bookings that carry no client terms
	DefaultPaymentTermsDays int `gorm:"not null;default:30"`
}

// TableName returns the table name for GORM
func (Profile) TableName() string {
	return "company_profiles"
}

// NewProfile creates a company profile
func NewProfile(companyID uuid.UUID, name, homeCountry string) (*Profile, error) {
	if companyID == uuid.Nil {
		return nil, shared.NewValidationError("Company ID cannot be empty")
	}
	if name == "" {
		return nil, shared.NewValidationError("Company name cannot be empty")
	}
	if homeCountry == "" {
		return nil, shared.NewValidationError("Home country cannot be empty")
	}
	return &Profile{
		BaseAggregateRoot:       shared.NewBaseAggregateRoot(),
		CompanyID:               companyID,
		Name:                    name,
		HomeCountry:             homeCountry,
		DefaultPaymentTermsDays: 30,
	}, nil
}

// SetHomeLocation updates the home jurisdiction
func (p *Profile) SetHomeLocation(country, state, city string) error {
	if country == "" {
		return shared.NewValidationError("Home country cannot be empty")
	}
	p.HomeCountry = country
	p.HomeState = state
	p.HomeCity = city
	p.UpdatedAt = time.Now()
	return nil
}
