package shopper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/smartcart/internal/backend"
	"github.com/fjod/smartcart/internal/cart"
	"github.com/fjod/smartcart/internal/domain"
	"github.com/fjod/smartcart/internal/notify"
	"github.com/fjod/smartcart/internal/orders"
	"github.com/fjod/smartcart/internal/publisher"
	"github.com/fjod/smartcart/internal/session"
	"github.com/fjod/smartcart/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	apples = domain.Product{ID: "1", Name: "Organic Apples", Price: decimal.NewFromInt(180), Weight: 500, Barcode: "123456789012"}
	bread  = domain.Product{ID: "2", Name: "Whole Wheat Bread", Price: decimal.NewFromInt(120), Weight: 750, Barcode: "234567890123"}
)

type fakeBackend struct {
	mu sync.Mutex

	product  *domain.Product
	scanErr  error
	scanGate chan struct{}
	scans    int

	verifyStatus backend.VerifyStatus
	verifyErr    error

	payResult backend.PaymentResult
	payErr    error
	payGate   chan struct{}
	onPay     func()
	payments  int

	registerErr error
	exitErr     error
}

func newFakeBackend() *fakeBackend {
	p := apples
	return &fakeBackend{
		product:      &p,
		verifyStatus: backend.VerifyOK,
		payResult:    backend.PaymentResult{Success: true, TransactionID: "txn_42"},
	}
}

func (f *fakeBackend) Login(_ context.Context, username, _ string) (domain.Identity, string, error) {
	role := domain.RoleUser
	if username == "admin" {
		role = domain.RoleAdmin
	}
	return domain.Identity{ID: "id-" + username, Username: username, Role: role}, "token", nil
}

func (f *fakeBackend) RegisterCart(context.Context, string) error {
	return f.registerErr
}

func (f *fakeBackend) ScanBarcode(context.Context, string) (*domain.Product, error) {
	f.mu.Lock()
	f.scans++
	gate := f.scanGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return f.product, f.scanErr
}

func (f *fakeBackend) VerifyCheckout(context.Context, []domain.CartLine) (backend.VerifyStatus, error) {
	return f.verifyStatus, f.verifyErr
}

func (f *fakeBackend) ProcessPayment(context.Context, decimal.Decimal) (backend.PaymentResult, error) {
	f.mu.Lock()
	f.payments++
	gate, hook := f.payGate, f.onPay
	res, err := f.payResult, f.payErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if hook != nil {
		hook()
	}
	return res, err
}

func (f *fakeBackend) ConfirmExit(context.Context) error { return f.exitErr }

func (f *fakeBackend) scanCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scans
}

type recordingNotifier struct {
	mu     sync.Mutex
	toasts []notify.Toast
}

func (r *recordingNotifier) Show(message string, level notify.Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, notify.Toast{Message: message, Level: level})
}

func (r *recordingNotifier) last() notify.Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.toasts) == 0 {
		return notify.Toast{}
	}
	return r.toasts[len(r.toasts)-1]
}

type historyFailStore struct {
	store.Store
}

func (h historyFailStore) Set(ctx context.Context, key string, value []byte) error {
	if key == orders.KeyHistory {
		return errors.New("quota exceeded")
	}
	return h.Store.Set(ctx, key, value)
}

// ctxStore fails writes once the caller's context is done, like the SQL and
// Redis stores do.
type ctxStore struct {
	store.Store
}

func (c ctxStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Store.Set(ctx, key, value)
}

func (c ctxStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Store.Remove(ctx, key)
}

type fixture struct {
	svc      *Service
	cart     *cart.Engine
	session  *session.Engine
	backend  *fakeBackend
	notifier *recordingNotifier
	recorder *orders.Recorder
}

func newFixture(t *testing.T, st store.Store) *fixture {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()
	b := newFakeBackend()
	n := &recordingNotifier{}
	c := cart.NewEngine(ctx, st, log)
	s := session.NewEngine(ctx, st, b, c, log)
	r := orders.NewRecorder(st, publisher.Nop{}, log)
	return &fixture{
		svc:      NewService(c, s, b, r, n, log),
		cart:     c,
		session:  s,
		backend:  b,
		notifier: n,
		recorder: r,
	}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	_, err := f.svc.Login(context.Background(), "asha", "secret")
	require.NoError(t, err)
}

func TestLogin_Toasts(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, session.ErrEmptyCredentials)
	assert.Equal(t, "Please enter both username and password.", f.notifier.last().Message)

	_, err = f.svc.Login(ctx, "asha", "secret")
	require.NoError(t, err)
	assert.Equal(t, notify.Toast{Message: "Welcome, asha!", Level: notify.LevelSuccess}, f.notifier.last())
}

func TestRegisterCart_RequiresSession(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())

	_, err := f.svc.RegisterCart(context.Background())

	assert.ErrorIs(t, err, session.ErrUnauthenticated)
	assert.Empty(t, f.svc.CartID())
}

func TestRegisterCart_LinksCart(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	f.login(t)

	id, err := f.svc.RegisterCart(context.Background())

	require.NoError(t, err)
	assert.Regexp(t, `^cart-[0-9a-f-]{36}$`, id)
	assert.Equal(t, id, f.svc.CartID())
	assert.Equal(t, "Cart linked successfully!", f.notifier.last().Message)
}

func TestRegisterCart_BackendFailure(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	f.login(t)
	f.backend.registerErr = errors.New("timeout")

	_, err := f.svc.RegisterCart(context.Background())

	assert.Error(t, err)
	assert.Empty(t, f.svc.CartID())
	assert.Equal(t, notify.LevelError, f.notifier.last().Level)
}

func TestSetBudget_Toasts(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	ctx := context.Background()

	err := f.svc.SetBudget(ctx, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, cart.ErrInvalidBudget)
	assert.Equal(t, "Please enter a valid budget amount.", f.notifier.last().Message)

	require.NoError(t, f.svc.SetBudget(ctx, decimal.NewFromInt(1000)))
	assert.Equal(t, "Budget of ₹1000 set. Happy shopping!", f.notifier.last().Message)
}

func TestScan_AddsProduct(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())

	p, err := f.svc.Scan(context.Background(), "123")

	require.NoError(t, err)
	assert.Equal(t, apples.ID, p.ID)
	line, ok := f.cart.Line(apples.ID)
	require.True(t, ok)
	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, notify.Toast{Message: "Organic Apples added to cart", Level: notify.LevelSuccess}, f.notifier.last())
}

func TestScan_NotFound_LeavesCart(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	f.backend.product = nil

	_, err := f.svc.Scan(context.Background(), "123")

	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Empty(t, f.cart.Lines())
	assert.Equal(t, "Product not found", f.notifier.last().Message)
}

func TestScan_BackendError_LeavesCart(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	f.backend.scanErr = errors.New("camera offline")
	f.backend.product = nil

	_, err := f.svc.Scan(context.Background(), "123")

	assert.Error(t, err)
	assert.Empty(t, f.cart.Lines())
	assert.Equal(t, "An error occurred while scanning", f.notifier.last().Message)
}

func TestScan_DuplicateTriggerJoinsInFlightCall(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	gate := make(chan struct{})
	f.backend.scanGate = gate
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, results[0] = f.svc.Scan(ctx, "123")
	}()
	require.Eventually(t, func() bool { return f.svc.Pending(ActionScan) }, time.Second, time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, results[1] = f.svc.Scan(ctx, "123")
	}()
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.NoError(t, results[0])
	assert.NoError(t, results[1])
	assert.Equal(t, 1, f.backend.scanCount())
	line, _ := f.cart.Line(apples.ID)
	assert.Equal(t, 1, line.Quantity)
	assert.False(t, f.svc.Pending(ActionScan))
}

func TestRemoveItem_Toast(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	ctx := context.Background()
	f.cart.AddItem(ctx, bread)

	require.NoError(t, f.svc.RemoveItem(ctx, bread.ID))

	assert.Empty(t, f.cart.Lines())
	assert.Equal(t, "Whole Wheat Bread removed from cart.", f.notifier.last().Message)
	assert.ErrorIs(t, f.svc.RemoveItem(ctx, bread.ID), ErrProductNotFound)
}

func TestUpdateQuantity(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	ctx := context.Background()
	f.cart.AddItem(ctx, bread)

	require.NoError(t, f.svc.UpdateQuantity(ctx, bread.ID, 4))
	line, _ := f.cart.Line(bread.ID)
	assert.Equal(t, 4, line.Quantity)

	require.NoError(t, f.svc.UpdateQuantity(ctx, bread.ID, 0))
	assert.Empty(t, f.cart.Lines())
	assert.ErrorIs(t, f.svc.UpdateQuantity(ctx, "missing", 1), ErrProductNotFound)
}

func TestVerify_EmptyCart(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())

	assert.ErrorIs(t, f.svc.Verify(context.Background()), ErrEmptyCart)
}

func TestVerify_Mismatch(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	ctx := context.Background()
	f.cart.AddItem(ctx, apples)
	f.backend.verifyStatus = backend.VerifyMismatch

	err := f.svc.Verify(ctx)

	assert.ErrorIs(t, err, ErrCartMismatch)
	_, err = f.svc.Pay(ctx)
	assert.ErrorIs(t, err, ErrNotVerified)
}

func TestPay_RequiresVerification(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	ctx := context.Background()
	f.cart.AddItem(ctx, apples)

	_, err := f.svc.Pay(ctx)
	assert.ErrorIs(t, err, ErrNotVerified)

	require.NoError(t, f.svc.Verify(ctx))
	f.cart.AddItem(ctx, bread)

	_, err = f.svc.Pay(ctx)
	assert.ErrorIs(t, err, ErrNotVerified)
	assert.Zero(t, f.backend.payments)
}

func TestPay_EmptyCart(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())

	_, err := f.svc.Pay(context.Background())

	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestPay_RecordsOrderThenClearsCart(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	ctx := context.Background()
	f.cart.AddItem(ctx, apples)
	f.cart.AddItem(ctx, apples)
	f.cart.AddItem(ctx, bread)
	require.NoError(t, f.cart.SetBudget(ctx, decimal.NewFromInt(1000)))
	require.NoError(t, f.svc.Verify(ctx))

	order, err := f.svc.Pay(ctx)

	require.NoError(t, err)
	assert.Equal(t, "txn_42", order.ID)
	assert.True(t, decimal.NewFromInt(480).Equal(order.TotalAmount))
	require.Len(t, order.Items, 2)
	assert.Equal(t, 2, order.Items[0].Quantity)

	assert.Empty(t, f.cart.Lines())
	_, hasBudget := f.cart.Budget()
	assert.False(t, hasBudget)

	history := f.svc.Orders(ctx)
	require.Len(t, history, 1)
	assert.Equal(t, "txn_42", history[0].ID)
	assert.Equal(t, "Payment successful!", f.notifier.last().Message)
}

func TestPay_Unsuccessful_KeepsCart(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	ctx := context.Background()
	f.cart.AddItem(ctx, apples)
	require.NoError(t, f.svc.Verify(ctx))
	f.backend.payResult = backend.PaymentResult{Success: false}

	_, err := f.svc.Pay(ctx)

	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.Len(t, f.cart.Lines(), 1)
	assert.Empty(t, f.svc.Orders(ctx))
	assert.Equal(t, "Payment failed. Please try again.", f.notifier.last().Message)
}

func TestPay_BackendError_KeepsCart(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	ctx := context.Background()
	f.cart.AddItem(ctx, apples)
	require.NoError(t, f.svc.Verify(ctx))
	f.backend.payErr = backend.ErrUnavailable

	_, err := f.svc.Pay(ctx)

	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.ErrorIs(t, err, backend.ErrUnavailable)
	assert.Len(t, f.cart.Lines(), 1)
}

func TestPay_RecordFailure_KeepsCart(t *testing.T) {
	f := newFixture(t, historyFailStore{Store: store.NewMemoryStore()})
	ctx := context.Background()
	f.cart.AddItem(ctx, apples)
	require.NoError(t, f.svc.Verify(ctx))

	_, err := f.svc.Pay(ctx)

	assert.Error(t, err)
	assert.Len(t, f.cart.Lines(), 1)
}

// startPayment runs Pay in the background with ProcessPayment held until the
// returned release func is called.
func startPayment(t *testing.T, f *fixture) (release func() (domain.Order, error)) {
	t.Helper()
	gate := make(chan struct{})
	f.backend.payGate = gate

	type result struct {
		order domain.Order
		err   error
	}
	done := make(chan result, 1)
	go func() {
		order, err := f.svc.Pay(context.Background())
		done <- result{order, err}
	}()
	require.Eventually(t, func() bool { return f.svc.Pending(ActionPay) }, time.Second, time.Millisecond)

	return func() (domain.Order, error) {
		close(gate)
		r := <-done
		return r.order, r.err
	}
}

func TestPay_InProgress_RejectsCartChanges(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	ctx := context.Background()
	f.cart.AddItem(ctx, apples)
	require.NoError(t, f.svc.Verify(ctx))
	release := startPayment(t, f)

	_, err := f.svc.Scan(ctx, "234567890123")
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	assert.Equal(t, notify.Toast{Message: "Payment in progress. Please wait.", Level: notify.LevelInfo}, f.notifier.last())
	assert.ErrorIs(t, f.svc.UpdateQuantity(ctx, apples.ID, 3), ErrCheckoutInProgress)
	assert.ErrorIs(t, f.svc.RemoveItem(ctx, apples.ID), ErrCheckoutInProgress)
	assert.ErrorIs(t, f.svc.SetBudget(ctx, decimal.NewFromInt(100)), ErrCheckoutInProgress)
	assert.Zero(t, f.backend.scanCount())

	order, err := release()

	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Empty(t, f.cart.Lines())
	assert.False(t, f.svc.Pending(ActionPay))
}

func TestPay_ItemAddedDuringPayment_StaysInCart(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	ctx := context.Background()
	f.cart.AddItem(ctx, apples)
	require.NoError(t, f.svc.Verify(ctx))
	release := startPayment(t, f)

	f.cart.AddItem(ctx, bread)
	order, err := release()

	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, apples.ID, order.Items[0].ID)
	assert.True(t, decimal.NewFromInt(180).Equal(order.TotalAmount))

	lines := f.cart.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, bread.ID, lines[0].ID)
	assert.True(t, decimal.NewFromInt(120).Equal(f.cart.TotalAmount()))

	_, err = f.svc.Pay(ctx)
	assert.ErrorIs(t, err, ErrNotVerified)
}

func TestPay_ContextCanceledAfterCharge_StillRecordsOrder(t *testing.T) {
	f := newFixture(t, ctxStore{Store: store.NewMemoryStore()})
	f.cart.AddItem(context.Background(), apples)
	require.NoError(t, f.svc.Verify(context.Background()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.backend.onPay = cancel

	order, err := f.svc.Pay(ctx)

	require.NoError(t, err)
	assert.Equal(t, "txn_42", order.ID)
	history := f.svc.Orders(context.Background())
	require.Len(t, history, 1)
	assert.Equal(t, "txn_42", history[0].ID)
	assert.Empty(t, f.cart.Lines())

	_, err = f.svc.Pay(context.Background())
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, 1, f.backend.payments)
}

func TestConfirmExit_Toasts(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, f.svc.ConfirmExit(ctx))
	assert.Equal(t, "Thank you for shopping with us!", f.notifier.last().Message)

	f.backend.exitErr = backend.ErrUnavailable
	err := f.svc.ConfirmExit(ctx)

	assert.ErrorIs(t, err, backend.ErrUnavailable)
	assert.Equal(t, notify.Toast{Message: "An error occurred. Please try again.", Level: notify.LevelError}, f.notifier.last())
}

func TestLogout_NextUserStartsWithEmptyCart(t *testing.T) {
	st := store.NewMemoryStore()
	f := newFixture(t, st)
	ctx := context.Background()
	f.login(t)
	_, err := f.svc.Scan(ctx, "123")
	require.NoError(t, err)
	require.NoError(t, f.svc.SetBudget(ctx, decimal.NewFromInt(500)))

	f.svc.Logout(ctx)
	_, err = f.svc.Login(ctx, "bina", "secret")
	require.NoError(t, err)

	assert.Empty(t, f.cart.Lines())
	_, hasBudget := f.cart.Budget()
	assert.False(t, hasBudget)
	assert.Empty(t, f.svc.CartID())
}
