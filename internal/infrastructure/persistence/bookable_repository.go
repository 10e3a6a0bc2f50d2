package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/catalog"
	"github.com/rentworks/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormBookableRepository implements catalog.BookableRepository using GORM.
// Counted assets and service items live in separate tables; lookup tries
// assets first.
type GormBookableRepository struct {
	db *gorm.DB
}

// NewGormBookableRepository creates a new GormBookableRepository
func NewGormBookableRepository(db *gorm.DB) *GormBookableRepository {
	return &GormBookableRepository{db: db}
}

// FindBookable resolves a catalog entry by ID for a company
func (r *GormBookableRepository) FindBookable(ctx context.Context, companyID, id uuid.UUID) (catalog.Bookable, error) {
	var asset catalog.RentalAsset
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&asset).Error
	if err == nil {
		return &asset, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var service catalog.ServiceItem
	err = r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&service).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &service, nil
}

// SaveAsset persists a counted rental asset
func (r *GormBookableRepository) SaveAsset(ctx context.Context, asset *catalog.RentalAsset) error {
	return r.db.WithContext(ctx).Save(asset).Error
}

// SaveService persists a service catalog entry
func (r *GormBookableRepository) SaveService(ctx context.Context, service *catalog.ServiceItem) error {
	return r.db.WithContext(ctx).Save(service).Error
}
