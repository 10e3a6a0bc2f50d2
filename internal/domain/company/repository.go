package company

import (
	"context"

	"github.com/google/uuid"
)

// ProfileRepository persists company profiles
type ProfileRepository interface {
	FindByCompanyID(ctx context.Context, companyID uuid.UUID) (*Profile, error)
	Save(ctx context.Context, profile *Profile) error

	// ActiveCompanyIDs lists every company with a profile, used by the
	// scheduler to fan sweeps out per tenant
	ActiveCompanyIDs(ctx context.Context) ([]uuid.UUID, error)
}
