package shopper

import (
	"context"
	"testing"

	"github.com/fjod/smartcart/internal/catalog"
	"github.com/fjod/smartcart/internal/domain"
	"github.com/fjod/smartcart/internal/notify"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockRepository struct {
	Products  map[string]domain.Product
	SearchFor string
	CreateErr error
}

func (m *MockRepository) List(context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(m.Products))
	for _, p := range m.Products {
		out = append(out, p)
	}
	return out, nil
}

func (m *MockRepository) Search(_ context.Context, term string) ([]domain.Product, error) {
	m.SearchFor = term
	return nil, nil
}

func (m *MockRepository) Get(_ context.Context, id string) (domain.Product, error) {
	p, ok := m.Products[id]
	if !ok {
		return domain.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func (m *MockRepository) Create(_ context.Context, in catalog.ProductInput) (domain.Product, error) {
	if m.CreateErr != nil {
		return domain.Product{}, m.CreateErr
	}
	p := domain.Product{ID: "prod-new", Name: in.Name, Price: in.Price, Barcode: in.Barcode}
	m.Products[p.ID] = p
	return p, nil
}

func (m *MockRepository) Update(_ context.Context, p domain.Product) (domain.Product, error) {
	if _, ok := m.Products[p.ID]; !ok {
		return domain.Product{}, catalog.ErrProductNotFound
	}
	m.Products[p.ID] = p
	return p, nil
}

func (m *MockRepository) Delete(_ context.Context, id string) error {
	if _, ok := m.Products[id]; !ok {
		return catalog.ErrProductNotFound
	}
	delete(m.Products, id)
	return nil
}

func newCatalog() (*Catalog, *MockRepository, *recordingNotifier) {
	repo := &MockRepository{Products: map[string]domain.Product{apples.ID: apples}}
	n := &recordingNotifier{}
	return NewCatalog(repo, n, zap.NewNop()), repo, n
}

func TestCatalog_ProductsSearchesWhenTermGiven(t *testing.T) {
	sut, repo, _ := newCatalog()
	ctx := context.Background()

	all, err := sut.Products(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = sut.Products(ctx, "milk")
	require.NoError(t, err)
	assert.Equal(t, "milk", repo.SearchFor)
}

func TestCatalog_CreateToast(t *testing.T) {
	sut, _, n := newCatalog()

	p, err := sut.Create(context.Background(), catalog.ProductInput{Name: "Oat Milk", Price: decimal.NewFromInt(99), Barcode: "999"})

	require.NoError(t, err)
	assert.Equal(t, "prod-new", p.ID)
	assert.Equal(t, notify.Toast{Message: `"Oat Milk" added successfully.`, Level: notify.LevelSuccess}, n.last())
}

func TestCatalog_UpdateMissing(t *testing.T) {
	sut, _, n := newCatalog()

	_, err := sut.Update(context.Background(), "nope", catalog.ProductInput{Name: "x", Barcode: "1"})

	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	assert.Equal(t, "Failed to save product. Please try again.", n.last().Message)
}

func TestCatalog_Delete(t *testing.T) {
	sut, repo, n := newCatalog()
	ctx := context.Background()

	require.NoError(t, sut.Delete(ctx, apples.ID))
	assert.Empty(t, repo.Products)
	assert.Equal(t, `"Organic Apples" deleted successfully.`, n.last().Message)

	assert.ErrorIs(t, sut.Delete(ctx, apples.ID), catalog.ErrProductNotFound)
}
