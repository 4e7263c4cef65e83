package domain

import "github.com/shopspring/decimal"

// CartLine is a product held in the cart together with its quantity.
// Product fields are flattened into the line when encoded.
type CartLine struct {
	Product
	Quantity int `json:"quantity"`
}

// Subtotal returns price * quantity for the line.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// TotalAmount sums the subtotals of lines.
func TotalAmount(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// CopyLines returns a copy of lines that shares no backing array with the input.
func CopyLines(lines []CartLine) []CartLine {
	out := make([]CartLine, len(lines))
	copy(out, lines)
	return out
}
