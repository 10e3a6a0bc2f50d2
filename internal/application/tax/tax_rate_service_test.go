package tax

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/domain/tax"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRateStore is a map-backed TaxRateRepository. Saving a composite stamps
// the parent onto its stored components, matching what the SQL repository
// persists in the parent_id column.
type memRateStore struct {
	rates map[uuid.UUID]*tax.TaxRate
}

func newMemRateStore() *memRateStore {
	return &memRateStore{rates: make(map[uuid.UUID]*tax.TaxRate)}
}

func (s *memRateStore) FindByID(_ context.Context, id uuid.UUID) (*tax.TaxRate, error) {
	if r, ok := s.rates[id]; ok {
		return r, nil
	}
	return nil, shared.ErrNotFound
}

func (s *memRateStore) FindByIDForCompany(_ context.Context, companyID, id uuid.UUID) (*tax.TaxRate, error) {
	r, ok := s.rates[id]
	if !ok || r.CompanyID != companyID {
		return nil, shared.ErrNotFound
	}
	return r, nil
}

func (s *memRateStore) FindAllForCompany(_ context.Context, companyID uuid.UUID) ([]tax.TaxRate, error) {
	out := make([]tax.TaxRate, 0, len(s.rates))
	for _, r := range s.rates {
		if r.CompanyID == companyID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memRateStore) Save(_ context.Context, rate *tax.TaxRate) error {
	s.rates[rate.ID] = rate
	if rate.IsComposite() {
		for _, c := range rate.Components {
			if stored, ok := s.rates[c.ID]; ok {
				parentID := rate.ID
				stored.ParentID = &parentID
			}
		}
	}
	return nil
}

func (s *memRateStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(s.rates, id)
	return nil
}

func newService() (*TaxRateService, *memRateStore, uuid.UUID) {
	store := newMemRateStore()
	return NewTaxRateService(store), store, uuid.New()
}

func createLeaf(t *testing.T, svc *TaxRateService, companyID uuid.UUID, name, fraction, componentType string) *TaxRateResponse {
	t.Helper()
	resp, err := svc.Create(context.Background(), companyID, CreateTaxRateRequest{
		Name:          name,
		Rate:          decimal.RequireFromString(fraction),
		ComponentType: componentType,
		Country:       "US",
		State:         "CA",
	})
	require.NoError(t, err)
	return resp
}

func TestTaxRateServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a leaf rate", func(t *testing.T) {
		svc, store, companyID := newService()

		resp := createLeaf(t, svc, companyID, "CA State Tax", "0.0725", "STATE")
		assert.Equal(t, "STATE", resp.ComponentType)
		assert.True(t, resp.EffectiveRate.Equal(decimal.RequireFromString("0.0725")))
		assert.Equal(t, "CA", resp.Scope.State)

		stored, err := store.FindByIDForCompany(ctx, companyID, resp.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.ParentID)
	})

	t.Run("rejects a rate of one or more", func(t *testing.T) {
		svc, _, companyID := newService()
		_, err := svc.Create(ctx, companyID, CreateTaxRateRequest{
			Name:          "Impossible",
			Rate:          decimal.NewFromInt(1),
			ComponentType: "STATE",
		})
		require.Error(t, err)
	})

	t.Run("rejects an unknown component type", func(t *testing.T) {
		svc, _, companyID := newService()
		_, err := svc.Create(ctx, companyID, CreateTaxRateRequest{
			Name:          "Federal Tax",
			Rate:          decimal.RequireFromString("0.05"),
			ComponentType: "FEDERAL",
		})
		require.Error(t, err)
	})

	t.Run("composite cannot be created directly", func(t *testing.T) {
		svc, _, companyID := newService()
		_, err := svc.Create(ctx, companyID, CreateTaxRateRequest{
			Name:          "Combined",
			Rate:          decimal.RequireFromString("0.05"),
			ComponentType: "COMPOSITE",
		})
		require.Error(t, err)
	})
}

func TestTaxRateServiceCreateComposite(t *testing.T) {
	ctx := context.Background()

	t.Run("effective rate is the additive sum", func(t *testing.T) {
		svc, _, companyID := newService()
		state := createLeaf(t, svc, companyID, "CA State Tax", "0.0725", "STATE")
		county := createLeaf(t, svc, companyID, "LA County Tax", "0.01", "COUNTY")
		city := createLeaf(t, svc, companyID, "LA City Tax", "0.0125", "CITY")

		resp, err := svc.CreateComposite(ctx, companyID, CreateCompositeTaxRateRequest{
			Name:         "LA Combined",
			Country:      "US",
			State:        "CA",
			City:         "Los Angeles",
			ComponentIDs: []uuid.UUID{state.ID, county.ID, city.ID},
		})
		require.NoError(t, err)
		assert.Equal(t, "COMPOSITE", resp.ComponentType)
		assert.True(t, resp.EffectiveRate.Equal(decimal.RequireFromString("0.095")),
			"expected 0.095, got %s", resp.EffectiveRate)
		require.Len(t, resp.Components, 3)
	})

	t.Run("composites cannot nest", func(t *testing.T) {
		svc, _, companyID := newService()
		leaf := createLeaf(t, svc, companyID, "CA State Tax", "0.0725", "STATE")

		outer, err := svc.CreateComposite(ctx, companyID, CreateCompositeTaxRateRequest{
			Name:         "Combined",
			ComponentIDs: []uuid.UUID{leaf.ID},
		})
		require.NoError(t, err)

		_, err = svc.CreateComposite(ctx, companyID, CreateCompositeTaxRateRequest{
			Name:         "Nested",
			ComponentIDs: []uuid.UUID{outer.ID},
		})
		require.Error(t, err)
	})

	t.Run("a component belongs to at most one composite", func(t *testing.T) {
		svc, _, companyID := newService()
		leaf := createLeaf(t, svc, companyID, "CA State Tax", "0.0725", "STATE")

		_, err := svc.CreateComposite(ctx, companyID, CreateCompositeTaxRateRequest{
			Name:         "First",
			ComponentIDs: []uuid.UUID{leaf.ID},
		})
		require.NoError(t, err)

		_, err = svc.CreateComposite(ctx, companyID, CreateCompositeTaxRateRequest{
			Name:         "Second",
			ComponentIDs: []uuid.UUID{leaf.ID},
		})
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "COMPONENT_ALREADY_ATTACHED", domainErr.Code)
	})

	t.Run("components must belong to the company", func(t *testing.T) {
		svc, _, companyID := newService()
		other := createLeaf(t, svc, uuid.New(), "Foreign Tax", "0.05", "STATE")

		_, err := svc.CreateComposite(ctx, companyID, CreateCompositeTaxRateRequest{
			Name:         "Combined",
			ComponentIDs: []uuid.UUID{other.ID},
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestTaxRateServiceList(t *testing.T) {
	ctx := context.Background()
	svc, _, companyID := newService()
	createLeaf(t, svc, companyID, "CA State Tax", "0.0725", "STATE")
	createLeaf(t, svc, uuid.New(), "Foreign Tax", "0.05", "STATE")

	rates, err := svc.List(ctx, companyID)
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "CA State Tax", rates[0].Name)
}

func TestTaxRateServiceDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes a detached rate", func(t *testing.T) {
		svc, store, companyID := newService()
		leaf := createLeaf(t, svc, companyID, "CA State Tax", "0.0725", "STATE")

		require.NoError(t, svc.Delete(ctx, companyID, leaf.ID))
		_, err := store.FindByID(ctx, leaf.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("refuses to delete an attached component", func(t *testing.T) {
		svc, _, companyID := newService()
		leaf := createLeaf(t, svc, companyID, "CA State Tax", "0.0725", "STATE")

		_, err := svc.CreateComposite(ctx, companyID, CreateCompositeTaxRateRequest{
			Name:         "Combined",
			ComponentIDs: []uuid.UUID{leaf.ID},
		})
		require.NoError(t, err)

		err = svc.Delete(ctx, companyID, leaf.ID)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "COMPONENT_ATTACHED", domainErr.Code)
	})
}
