package domain

import "github.com/shopspring/decimal"

// Product is a catalog entry. Weight is in grams.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Weight   int             `json:"weight"`
	Barcode  string          `json:"barcode"`
	ImageURL string          `json:"imageUrl"`
}
