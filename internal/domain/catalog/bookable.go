package catalog

import (
	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/domain/shared/valueobject"
)

// BookableKind distinguishes the concrete resource kinds that can be reserved
type BookableKind string

const (
	BookableKindEquipment BookableKind = "EQUIPMENT" // counted inventory unit
	BookableKindKit       BookableKind = "KIT"       // pre-assembled bundle tracked as its own unit
	BookableKindService   BookableKind = "SERVICE"   // labor/service line, not capacity constrained
)

// IsValid checks if the kind is a valid BookableKind
func (k BookableKind) IsValid() bool {
	switch k {
	case BookableKindEquipment, BookableKindKit, BookableKindService:
		return true
	}
	return false
}

// Bookable is the capability every reservable catalog entry exposes to the
// booking engine. The engine never sees concrete catalog types - availability
// and pricing operate only against this interface. Catalog data is owned by
// the catalog module and read-only here.
type Bookable interface {
	BookableID() uuid.UUID
	BookableName() string
	Kind() BookableKind
	// OwnedQuantity is the total owned stock. Zero-quantity resources
	// (services) are unconstrained by convention.
	OwnedQuantity() int
	DailyRate() valueobject.Money
	// CapacityConstrained reports whether reservations against this
	// resource consume counted inventory.
	CapacityConstrained() bool
}

// RentalAsset is a counted piece of rental inventory (an equipment line or an
// assembled kit). Kits are tracked as their own units: the assembled count is
// the bookable quantity, so kit availability never reaches across component
// assets.
type RentalAsset struct {
	shared.CompanyAggregateRoot
	Name         string            `gorm:"type:varchar(200);not null"`
	SKU          string            `gorm:"type:varchar(50);uniqueIndex:idx_rental_asset_company_sku,priority:2"`
	AssetKind    BookableKind      `gorm:"type:varchar(20);not null"`
	Quantity     int               `gorm:"not null;default:0"`
	DailyRateAmt valueobject.Money `gorm:"type:decimal(18,4);not null;default:0"`
	Active       bool              `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (RentalAsset) TableName() string {
	return "rental_assets"
}

// NewRentalAsset creates a new counted rental asset
func NewRentalAsset(companyID uuid.UUID, name, sku string, kind BookableKind, quantity int, dailyRate valueobject.Money) (*RentalAsset, error) {
	if name == "" {
		return nil, shared.NewValidationError("Asset name cannot be empty")
	}
	if !kind.IsValid() || kind == BookableKindService {
		return nil, shared.NewValidationError("Asset kind must be EQUIPMENT or KIT")
	}
	if quantity < 0 {
		return nil, shared.NewValidationError("Owned quantity cannot be negative")
	}
	if dailyRate.IsNegative() {
		return nil, shared.NewValidationError("Daily rate cannot be negative")
	}

	return &RentalAsset{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Name:                 name,
		SKU:                  sku,
		AssetKind:            kind,
		Quantity:             quantity,
		DailyRateAmt:         dailyRate,
		Active:               true,
	}, nil
}

// BookableID returns the asset ID
func (a *RentalAsset) BookableID() uuid.UUID { return a.ID }

// BookableName returns the asset name
func (a *RentalAsset) BookableName() string { return a.Name }

// Kind returns the concrete resource kind
func (a *RentalAsset) Kind() BookableKind { return a.AssetKind }

// OwnedQuantity returns the total owned stock
func (a *RentalAsset) OwnedQuantity() int { return a.Quantity }

// DailyRate returns the per-day rental rate
func (a *RentalAsset) DailyRate() valueobject.Money { return a.DailyRateAmt }

// CapacityConstrained is true for counted assets
func (a *RentalAsset) CapacityConstrained() bool { return a.Quantity > 0 }

// ServiceItem is a pure service line (delivery, crew, setup). It owns no
// counted stock, so any quantity can be booked for any range.
type ServiceItem struct {
	shared.CompanyAggregateRoot
	Name         string            `gorm:"type:varchar(200);not null"`
	DailyRateAmt valueobject.Money `gorm:"type:decimal(18,4);not null;default:0"`
	Active       bool              `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (ServiceItem) TableName() string {
	return "service_items"
}

// NewServiceItem creates a new service catalog entry
func NewServiceItem(companyID uuid.UUID, name string, dailyRate valueobject.Money) (*ServiceItem, error) {
	if name == "" {
		return nil, shared.NewValidationError("Service name cannot be empty")
	}
	if dailyRate.IsNegative() {
		return nil, shared.NewValidationError("Daily rate cannot be negative")
	}
	return &ServiceItem{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Name:                 name,
		DailyRateAmt:         dailyRate,
		Active:               true,
	}, nil
}

// BookableID returns the service ID
func (s *ServiceItem) BookableID() uuid.UUID { return s.ID }

// BookableName returns the service name
func (s *ServiceItem) BookableName() string { return s.Name }

// Kind returns BookableKindService
func (s *ServiceItem) Kind() BookableKind { return BookableKindService }

// OwnedQuantity is always zero for services
func (s *ServiceItem) OwnedQuantity() int { return 0 }

// DailyRate returns the per-day service rate
func (s *ServiceItem) DailyRate() valueobject.Money { return s.DailyRateAmt }

// CapacityConstrained is always false for services
func (s *ServiceItem) CapacityConstrained() bool { return false }
