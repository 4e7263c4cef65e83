package shopper

import (
	"context"
	"fmt"

	"github.com/fjod/smartcart/internal/catalog"
	"github.com/fjod/smartcart/internal/domain"
	"github.com/fjod/smartcart/internal/notify"
	"go.uber.org/zap"
)

// Catalog is the admin view of the product catalog.
type Catalog struct {
	repo     catalog.RepoInterface
	notifier notify.Notifier
	log      *zap.Logger
}

func NewCatalog(repo catalog.RepoInterface, n notify.Notifier, log *zap.Logger) *Catalog {
	return &Catalog{repo: repo, notifier: n, log: log}
}

// Products lists the catalog, filtered by term when it is not empty.
func (c *Catalog) Products(ctx context.Context, term string) ([]domain.Product, error) {
	var (
		products []domain.Product
		err      error
	)
	if term == "" {
		products, err = c.repo.List(ctx)
	} else {
		products, err = c.repo.Search(ctx, term)
	}
	if err != nil {
		c.log.Error("failed to load products", zap.Error(err))
		c.notifier.Show("Failed to load products.", notify.LevelError)
		return nil, err
	}
	return products, nil
}

func (c *Catalog) Create(ctx context.Context, in catalog.ProductInput) (domain.Product, error) {
	p, err := c.repo.Create(ctx, in)
	if err != nil {
		c.log.Error("failed to create product", zap.Error(err))
		c.notifier.Show("Failed to save product. Please try again.", notify.LevelError)
		return domain.Product{}, err
	}
	c.notifier.Show(fmt.Sprintf("%q added successfully.", p.Name), notify.LevelSuccess)
	return p, nil
}

func (c *Catalog) Update(ctx context.Context, id string, in catalog.ProductInput) (domain.Product, error) {
	p, err := c.repo.Update(ctx, domain.Product{
		ID:       id,
		Name:     in.Name,
		Price:    in.Price,
		Weight:   in.Weight,
		Barcode:  in.Barcode,
		ImageURL: in.ImageURL,
	})
	if err != nil {
		c.log.Error("failed to update product", zap.String("product_id", id), zap.Error(err))
		c.notifier.Show("Failed to save product. Please try again.", notify.LevelError)
		return domain.Product{}, err
	}
	c.notifier.Show(fmt.Sprintf("%q updated successfully.", p.Name), notify.LevelSuccess)
	return p, nil
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	p, err := c.repo.Get(ctx, id)
	if err == nil {
		err = c.repo.Delete(ctx, id)
	}
	if err != nil {
		c.log.Error("failed to delete product", zap.String("product_id", id), zap.Error(err))
		c.notifier.Show("Failed to delete product. Please try again.", notify.LevelError)
		return err
	}
	c.notifier.Show(fmt.Sprintf("%q deleted successfully.", p.Name), notify.LevelSuccess)
	return nil
}
