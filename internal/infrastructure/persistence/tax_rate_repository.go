package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/domain/tax"
	"gorm.io/gorm"
)

// GormTaxRateRepository implements tax.TaxRateRepository using GORM. The
// composite tree is stored flat with a parent_id column; components are
// stitched back onto their parents on read.
type GormTaxRateRepository struct {
	db *gorm.DB
}

// NewGormTaxRateRepository creates a new GormTaxRateRepository
func NewGormTaxRateRepository(db *gorm.DB) *GormTaxRateRepository {
	return &GormTaxRateRepository{db: db}
}

// FindByID finds a tax rate by ID
func (r *GormTaxRateRepository) FindByID(ctx context.Context, id uuid.UUID) (*tax.TaxRate, error) {
	var rate tax.TaxRate
	if err := r.db.WithContext(ctx).First(&rate, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if err := r.loadComponents(ctx, &rate); err != nil {
		return nil, err
	}
	return &rate, nil
}

// FindByIDForCompany finds a tax rate by ID within a company
func (r *GormTaxRateRepository) FindByIDForCompany(ctx context.Context, companyID, id uuid.UUID) (*tax.TaxRate, error) {
	var rate tax.TaxRate
	if err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&rate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if err := r.loadComponents(ctx, &rate); err != nil {
		return nil, err
	}
	return &rate, nil
}

// FindAllForCompany returns all configured rates with composite components
// populated
func (r *GormTaxRateRepository) FindAllForCompany(ctx context.Context, companyID uuid.UUID) ([]tax.TaxRate, error) {
	var rates []tax.TaxRate
	if err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("name ASC").
		Find(&rates).Error; err != nil {
		return nil, err
	}

	// Stitch children onto their composite parents in one pass
	byParent := make(map[uuid.UUID][]tax.TaxRate)
	for _, rate := range rates {
		if rate.ParentID != nil {
			byParent[*rate.ParentID] = append(byParent[*rate.ParentID], rate)
		}
	}
	for idx := range rates {
		if rates[idx].IsComposite() {
			rates[idx].Components = byParent[rates[idx].ID]
		}
	}
	return rates, nil
}

// Save persists a tax rate and, for composites, its component links
func (r *GormTaxRateRepository) Save(ctx context.Context, rate *tax.TaxRate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(rate).Error; err != nil {
			return err
		}
		// Attaching to a composite sets parent_id on existing leaf rows
		for idx := range rate.Components {
			if err := tx.Model(&tax.TaxRate{}).
				Where("id = ?", rate.Components[idx].ID).
				Update("parent_id", rate.ID).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes a tax rate; deleting a composite releases its components
func (r *GormTaxRateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&tax.TaxRate{}).
			Where("parent_id = ?", id).
			Update("parent_id", nil).Error; err != nil {
			return err
		}
		result := tx.Delete(&tax.TaxRate{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func (r *GormTaxRateRepository) loadComponents(ctx context.Context, rate *tax.TaxRate) error {
	if !rate.IsComposite() {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("parent_id = ?", rate.ID).
		Order("name ASC").
		Find(&rate.Components).Error
}
