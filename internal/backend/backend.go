package backend

import (
	"context"
	"errors"

	"github.com/fjod/smartcart/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned when calls are short-circuited after repeated failures.
var ErrUnavailable = errors.New("backend unavailable")

type VerifyStatus string

const (
	VerifyOK       VerifyStatus = "OK"
	VerifyMismatch VerifyStatus = "MISMATCH"
)

type PaymentResult struct {
	Success       bool
	TransactionID string
}

// Backend is the store-side system the device talks to. Every call may
// block and may fail.
type Backend interface {
	Login(ctx context.Context, username, password string) (domain.Identity, string, error)
	RegisterCart(ctx context.Context, cartID string) error
	// ScanBarcode returns nil when no product matches the code.
	ScanBarcode(ctx context.Context, code string) (*domain.Product, error)
	VerifyCheckout(ctx context.Context, lines []domain.CartLine) (VerifyStatus, error)
	ProcessPayment(ctx context.Context, amount decimal.Decimal) (PaymentResult, error)
	ConfirmExit(ctx context.Context) error
}
