package shopper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fjod/smartcart/internal/backend"
	"github.com/fjod/smartcart/internal/cart"
	"github.com/fjod/smartcart/internal/domain"
	"github.com/fjod/smartcart/internal/notify"
	"github.com/fjod/smartcart/internal/orders"
	"github.com/fjod/smartcart/internal/session"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrCartMismatch    = errors.New("cart verification failed")
	ErrNotVerified     = errors.New("cart must be verified before payment")
	ErrPaymentFailed   = errors.New("payment failed")
	ErrProductNotFound = errors.New("product not found")

	ErrCheckoutInProgress = errors.New("checkout in progress")
)

// Action names a backend call guarded against duplicate triggers.
type Action string

const (
	ActionRegister Action = "register"
	ActionScan     Action = "scan"
	ActionVerify   Action = "verify"
	ActionPay      Action = "pay"
)

// Service drives one shopping trip on the device: linking the cart,
// scanning, verification, payment and exit. Failures are reported through
// the notifier and leave the engines untouched.
type Service struct {
	cart     *cart.Engine
	session  *session.Engine
	backend  backend.Backend
	recorder *orders.Recorder
	notifier notify.Notifier
	log      *zap.Logger

	flight singleflight.Group

	mu          sync.Mutex
	pending     map[Action]int
	cartID      string
	verified    bool
	verifiedRev uint64
}

func NewService(
	c *cart.Engine,
	s *session.Engine,
	b backend.Backend,
	r *orders.Recorder,
	n notify.Notifier,
	log *zap.Logger,
) *Service {
	return &Service{
		cart:     c,
		session:  s,
		backend:  b,
		recorder: r,
		notifier: n,
		log:      log,
		pending:  make(map[Action]int),
	}
}

// once runs fn unless a call for the same action is already in flight, in
// which case the caller waits for and shares that result.
func once[T any](s *Service, action Action, fn func() (T, error)) (T, error) {
	v, err, _ := s.flight.Do(string(action), func() (any, error) {
		s.setPending(action, 1)
		defer s.setPending(action, -1)
		return fn()
	})
	res, _ := v.(T)
	return res, err
}

func (s *Service) setPending(action Action, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[action] += delta
}

// Pending reports whether a call for action is in progress.
func (s *Service) Pending(action Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[action] > 0
}

func (s *Service) Login(ctx context.Context, username, password string) (domain.Identity, error) {
	id, err := s.session.Login(ctx, username, password)
	switch {
	case errors.Is(err, session.ErrEmptyCredentials):
		s.notifier.Show("Please enter both username and password.", notify.LevelError)
		return domain.Identity{}, err
	case errors.Is(err, session.ErrAlreadyAuthenticated):
		return domain.Identity{}, err
	case err != nil:
		s.notifier.Show("Login failed. Please try again.", notify.LevelError)
		return domain.Identity{}, err
	}
	s.notifier.Show(fmt.Sprintf("Welcome, %s!", id.Username), notify.LevelSuccess)
	return id, nil
}

// Logout ends the session, which also empties the cart.
func (s *Service) Logout(ctx context.Context) {
	s.session.Logout(ctx)

	s.mu.Lock()
	s.cartID = ""
	s.verified = false
	s.mu.Unlock()
}

// RegisterCart links a new physical cart to the current user.
func (s *Service) RegisterCart(ctx context.Context) (string, error) {
	if !s.session.IsAuthenticated() {
		s.notifier.Show("User not found. Please log in again.", notify.LevelError)
		return "", session.ErrUnauthenticated
	}

	return once(s, ActionRegister, func() (string, error) {
		cartID := "cart-" + uuid.NewString()
		if err := s.backend.RegisterCart(ctx, cartID); err != nil {
			s.log.Error("failed to register cart", zap.Error(err))
			s.notifier.Show("Failed to link cart. Please try again.", notify.LevelError)
			return "", fmt.Errorf("register cart: %w", err)
		}

		s.mu.Lock()
		s.cartID = cartID
		s.mu.Unlock()

		s.notifier.Show("Cart linked successfully!", notify.LevelSuccess)
		return cartID, nil
	})
}

// CartID is the id of the linked cart, empty before registration.
func (s *Service) CartID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartID
}

// checkoutBusy rejects cart changes while a payment is being processed.
func (s *Service) checkoutBusy() error {
	if !s.Pending(ActionPay) {
		return nil
	}
	s.notifier.Show("Payment in progress. Please wait.", notify.LevelInfo)
	return ErrCheckoutInProgress
}

func (s *Service) SetBudget(ctx context.Context, amount decimal.Decimal) error {
	if err := s.checkoutBusy(); err != nil {
		return err
	}
	if err := s.cart.SetBudget(ctx, amount); err != nil {
		s.notifier.Show("Please enter a valid budget amount.", notify.LevelError)
		return err
	}
	s.notifier.Show(fmt.Sprintf("Budget of ₹%s set. Happy shopping!", amount), notify.LevelSuccess)
	return nil
}

// Scan resolves code through the backend and adds the product to the cart.
func (s *Service) Scan(ctx context.Context, code string) (domain.Product, error) {
	if err := s.checkoutBusy(); err != nil {
		return domain.Product{}, err
	}

	return once(s, ActionScan, func() (domain.Product, error) {
		p, err := s.backend.ScanBarcode(ctx, code)
		if err != nil {
			s.log.Error("failed to scan barcode", zap.String("code", code), zap.Error(err))
			s.notifier.Show("An error occurred while scanning", notify.LevelError)
			return domain.Product{}, fmt.Errorf("scan barcode: %w", err)
		}
		if p == nil {
			s.notifier.Show("Product not found", notify.LevelError)
			return domain.Product{}, ErrProductNotFound
		}

		s.cart.AddItem(ctx, *p)
		s.notifier.Show(fmt.Sprintf("%s added to cart", p.Name), notify.LevelSuccess)
		return *p, nil
	})
}

func (s *Service) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if err := s.checkoutBusy(); err != nil {
		return err
	}
	line, ok := s.cart.Line(productID)
	if !ok {
		return ErrProductNotFound
	}
	s.cart.UpdateQuantity(ctx, productID, quantity)
	if quantity <= 0 {
		s.notifier.Show(fmt.Sprintf("%s removed from cart.", line.Name), notify.LevelInfo)
	}
	return nil
}

func (s *Service) RemoveItem(ctx context.Context, productID string) error {
	if err := s.checkoutBusy(); err != nil {
		return err
	}
	line, ok := s.cart.Line(productID)
	if !ok {
		return ErrProductNotFound
	}
	s.cart.RemoveItem(ctx, productID)
	s.notifier.Show(fmt.Sprintf("%s removed from cart.", line.Name), notify.LevelInfo)
	return nil
}

// Verify asks the backend to confirm the cart contents. A successful
// verification holds until the cart changes.
func (s *Service) Verify(ctx context.Context) error {
	_, err := once(s, ActionVerify, func() (struct{}, error) {
		snap := s.cart.Snapshot()
		if len(snap.Lines) == 0 {
			return struct{}{}, ErrEmptyCart
		}

		status, err := s.backend.VerifyCheckout(ctx, snap.Lines)
		if err != nil {
			s.log.Error("failed to verify cart", zap.Error(err))
			s.notifier.Show("An error occurred during verification.", notify.LevelError)
			return struct{}{}, fmt.Errorf("verify checkout: %w", err)
		}
		if status != backend.VerifyOK {
			s.notifier.Show("Cart verification failed. Please check your items.", notify.LevelError)
			return struct{}{}, ErrCartMismatch
		}

		s.mu.Lock()
		s.verified = true
		s.verifiedRev = snap.Revision
		s.mu.Unlock()

		s.notifier.Show("Cart verified successfully!", notify.LevelSuccess)
		return struct{}{}, nil
	})
	return err
}

func (s *Service) isVerified(rev uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verified && s.verifiedRev == rev
}

// Pay charges the verified cart total. On success the order is recorded
// before the paid lines leave the cart; if recording fails the cart is kept.
// Once the charge went through, recording and settling no longer follow ctx.
func (s *Service) Pay(ctx context.Context) (domain.Order, error) {
	return once(s, ActionPay, func() (domain.Order, error) {
		snap := s.cart.Snapshot()
		if !snap.TotalAmount.IsPositive() {
			return domain.Order{}, ErrEmptyCart
		}
		if !s.isVerified(snap.Revision) {
			return domain.Order{}, ErrNotVerified
		}

		res, err := s.backend.ProcessPayment(ctx, snap.TotalAmount)
		if err != nil {
			s.log.Error("failed to process payment", zap.Stringer("amount", snap.TotalAmount), zap.Error(err))
			s.notifier.Show("An error occurred during payment.", notify.LevelError)
			return domain.Order{}, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
		}
		if !res.Success {
			s.notifier.Show("Payment failed. Please try again.", notify.LevelError)
			return domain.Order{}, ErrPaymentFailed
		}
		s.notifier.Show("Payment successful!", notify.LevelSuccess)

		paidCtx := context.WithoutCancel(ctx)
		order, err := s.recorder.Record(paidCtx, res.TransactionID, snap.Lines, snap.TotalAmount)
		if err != nil {
			s.log.Error("failed to record paid order", zap.String("transaction_id", res.TransactionID), zap.Error(err))
			s.notifier.Show("Payment received but the order could not be saved.", notify.LevelError)
			return domain.Order{}, err
		}

		s.cart.Settle(paidCtx, snap.Lines, snap.Revision)
		s.mu.Lock()
		s.verified = false
		s.mu.Unlock()
		return order, nil
	})
}

// ConfirmExit opens the exit gate after payment.
func (s *Service) ConfirmExit(ctx context.Context) error {
	if err := s.backend.ConfirmExit(ctx); err != nil {
		s.log.Error("failed to confirm exit", zap.Error(err))
		s.notifier.Show("An error occurred. Please try again.", notify.LevelError)
		return fmt.Errorf("confirm exit: %w", err)
	}
	s.notifier.Show("Thank you for shopping with us!", notify.LevelSuccess)
	return nil
}

func (s *Service) Orders(ctx context.Context) []domain.Order {
	return s.recorder.History(ctx)
}
