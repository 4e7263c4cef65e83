package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the immutable record of a paid cart.
type Order struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Items       []CartLine      `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}
