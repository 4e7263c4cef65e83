package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/smartcart/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("invalid product")
)

// ProductInput carries the editable fields of a product.
type ProductInput struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Weight   int             `json:"weight"`
	Barcode  string          `json:"barcode"`
	ImageURL string          `json:"imageUrl"`
}

func (in ProductInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case strings.TrimSpace(in.Barcode) == "":
		return fmt.Errorf("%w: barcode is required", ErrInvalidProduct)
	case in.Price.IsNegative():
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	case in.Weight < 0:
		return fmt.Errorf("%w: weight must not be negative", ErrInvalidProduct)
	}
	return nil
}

type RepoInterface interface {
	List(ctx context.Context) ([]domain.Product, error)
	Search(ctx context.Context, term string) ([]domain.Product, error)
	Get(ctx context.Context, id string) (domain.Product, error)
	Create(ctx context.Context, in ProductInput) (domain.Product, error)
	Update(ctx context.Context, p domain.Product) (domain.Product, error)
	Delete(ctx context.Context, id string) error
}

// Repository is the admin-managed product catalog stored in the device database.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

const selectProducts = `
	SELECT id, name, price, weight, barcode, image_url
	FROM products
`

// newest first; seeded products share created_at 0 and keep id order
const orderProducts = ` ORDER BY created_at DESC, id ASC`

func (r *Repository) List(ctx context.Context) ([]domain.Product, error) {
	return r.query(ctx, selectProducts+orderProducts)
}

// Search matches term against name or barcode, ignoring case.
func (r *Repository) Search(ctx context.Context, term string) ([]domain.Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return r.List(ctx)
	}
	pattern := "%" + strings.ToLower(term) + "%"
	return r.query(ctx,
		selectProducts+` WHERE lower(name) LIKE ? OR lower(barcode) LIKE ?`+orderProducts,
		pattern, pattern)
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Product, error) {
	products, err := r.query(ctx, selectProducts+` WHERE id = ?`, id)
	if err != nil {
		return domain.Product{}, err
	}
	if len(products) == 0 {
		return domain.Product{}, ErrProductNotFound
	}
	return products[0], nil
}

func (r *Repository) Create(ctx context.Context, in ProductInput) (domain.Product, error) {
	if err := in.validate(); err != nil {
		return domain.Product{}, err
	}

	p := domain.Product{
		ID:       "prod-" + uuid.NewString(),
		Name:     strings.TrimSpace(in.Name),
		Price:    in.Price,
		Weight:   in.Weight,
		Barcode:  strings.TrimSpace(in.Barcode),
		ImageURL: in.ImageURL,
	}
	if p.ImageURL == "" {
		p.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/200/200", p.ID)
	}

	query := `
		INSERT INTO products (id, name, price, weight, barcode, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Price.String(), p.Weight, p.Barcode, p.ImageURL, r.now().UnixNano())
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to insert product: %w", err)
	}
	return p, nil
}

func (r *Repository) Update(ctx context.Context, p domain.Product) (domain.Product, error) {
	in := ProductInput{Name: p.Name, Price: p.Price, Weight: p.Weight, Barcode: p.Barcode, ImageURL: p.ImageURL}
	if err := in.validate(); err != nil {
		return domain.Product{}, err
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Barcode = strings.TrimSpace(p.Barcode)

	query := `
		UPDATE products
		SET name = ?, price = ?, weight = ?, barcode = ?, image_url = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query, p.Name, p.Price.String(), p.Weight, p.Barcode, p.ImageURL, p.ID)
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to update product: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Product{}, ErrProductNotFound
	}
	return p, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var (
			p     domain.Product
			price string
		)
		if err := rows.Scan(&p.ID, &p.Name, &price, &p.Weight, &p.Barcode, &p.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("invalid price for product %s: %w", p.ID, err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}
