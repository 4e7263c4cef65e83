package backend

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/fjod/smartcart/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Delays is the simulated latency of each call.
type Delays struct {
	Login    time.Duration
	Register time.Duration
	Scan     time.Duration
	Verify   time.Duration
	Payment  time.Duration
	Exit     time.Duration
}

func DefaultDelays() Delays {
	return Delays{
		Login:    500 * time.Millisecond,
		Register: 800 * time.Millisecond,
		Scan:     500 * time.Millisecond,
		Verify:   1500 * time.Millisecond,
		Payment:  2000 * time.Millisecond,
		Exit:     500 * time.Millisecond,
	}
}

// ProductLister supplies the products a scan can resolve to.
type ProductLister interface {
	List(ctx context.Context) ([]domain.Product, error)
}

// Mock simulates the store backend. Scans ignore the code and pick a
// product from the catalog at random; verification and payment always
// succeed.
type Mock struct {
	catalog ProductLister
	delays  Delays
	pick    func(n int) int
	now     func() time.Time
	log     *zap.Logger
}

func NewMock(catalog ProductLister, delays Delays, log *zap.Logger) *Mock {
	return &Mock{
		catalog: catalog,
		delays:  delays,
		pick:    rand.Intn,
		now:     time.Now,
		log:     log,
	}
}

func (m *Mock) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mock) Login(ctx context.Context, username, _ string) (domain.Identity, string, error) {
	if err := m.wait(ctx, m.delays.Login); err != nil {
		return domain.Identity{}, "", err
	}

	role := domain.RoleUser
	if strings.EqualFold(username, "admin") {
		role = domain.RoleAdmin
	}
	id := domain.Identity{
		ID:       uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.ToLower(username))).String(),
		Username: username,
		Role:     role,
	}
	return id, uuid.NewString(), nil
}

func (m *Mock) RegisterCart(ctx context.Context, cartID string) error {
	if err := m.wait(ctx, m.delays.Register); err != nil {
		return err
	}
	m.log.Debug("cart registered", zap.String("cart_id", cartID))
	return nil
}

func (m *Mock) ScanBarcode(ctx context.Context, code string) (*domain.Product, error) {
	if err := m.wait(ctx, m.delays.Scan); err != nil {
		return nil, err
	}

	products, err := m.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	if len(products) == 0 {
		return nil, nil
	}

	p := products[m.pick(len(products))]
	m.log.Debug("barcode scanned", zap.String("code", code), zap.String("product_id", p.ID))
	return &p, nil
}

func (m *Mock) VerifyCheckout(ctx context.Context, _ []domain.CartLine) (VerifyStatus, error) {
	if err := m.wait(ctx, m.delays.Verify); err != nil {
		return "", err
	}
	return VerifyOK, nil
}

func (m *Mock) ProcessPayment(ctx context.Context, amount decimal.Decimal) (PaymentResult, error) {
	if err := m.wait(ctx, m.delays.Payment); err != nil {
		return PaymentResult{}, err
	}
	txID := fmt.Sprintf("txn_%d", m.now().UnixMilli())
	m.log.Debug("payment processed", zap.Stringer("amount", amount), zap.String("transaction_id", txID))
	return PaymentResult{Success: true, TransactionID: txID}, nil
}

func (m *Mock) ConfirmExit(ctx context.Context) error {
	return m.wait(ctx, m.delays.Exit)
}
