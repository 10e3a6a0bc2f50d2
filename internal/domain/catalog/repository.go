package catalog

import (
	"context"

	"github.com/google/uuid"
)

// BookableRepository provides read access to reservable catalog entries.
// The booking engine only ever reads the catalog; writes belong to the
// catalog module.
type BookableRepository interface {
	// FindBookable resolves a catalog entry by ID for a company, returning
	// whichever concrete kind it is behind the Bookable capability.
	FindBookable(ctx context.Context, companyID, id uuid.UUID) (Bookable, error)
}
