package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/company"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/domain/tax"
	"gorm.io/gorm"
)

// GormCompanyProfileRepository implements company.ProfileRepository and the
// tax module's read-only CompanyProfileRepository port.
type GormCompanyProfileRepository struct {
	db *gorm.DB
}

// NewGormCompanyProfileRepository creates a new GormCompanyProfileRepository
func NewGormCompanyProfileRepository(db *gorm.DB) *GormCompanyProfileRepository {
	return &GormCompanyProfileRepository{db: db}
}

// FindByCompanyID finds a company profile
func (r *GormCompanyProfileRepository) FindByCompanyID(ctx context.Context, companyID uuid.UUID) (*company.Profile, error) {
	var profile company.Profile
	if err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// Save persists a company profile
func (r *GormCompanyProfileRepository) Save(ctx context.Context, profile *company.Profile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

// ActiveCompanyIDs lists every company with a profile
func (r *GormCompanyProfileRepository) ActiveCompanyIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&company.Profile{}).
		Pluck("company_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// HomeJurisdiction resolves the company's home jurisdiction for the tax
// engine. A company without a profile has no home base; cross-border
// detection then never fires.
func (r *GormCompanyProfileRepository) HomeJurisdiction(ctx context.Context, companyID uuid.UUID) (tax.Jurisdiction, error) {
	profile, err := r.FindByCompanyID(ctx, companyID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return tax.Jurisdiction{}, nil
		}
		return tax.Jurisdiction{}, err
	}
	return tax.Jurisdiction{
		Country: profile.HomeCountry,
		State:   profile.HomeState,
		City:    profile.HomeCity,
	}, nil
}
