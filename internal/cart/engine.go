package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/fjod/smartcart/internal/domain"
	"github.com/fjod/smartcart/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Store keys owned by the engine.
const (
	KeyLines  = "cart"
	KeyBudget = "budget"
)

var ErrInvalidBudget = errors.New("budget must be a positive amount")

// Snapshot is a consistent copy of the cart state.
type Snapshot struct {
	Lines       []domain.CartLine
	TotalAmount decimal.Decimal
	Budget      decimal.NullDecimal
	Revision    uint64
}

// Engine holds the cart lines and the optional budget ceiling of the device.
// Every mutation is written through to the store before it returns and then
// reported to subscribers in mutation order.
type Engine struct {
	// serial orders mutations and their notifications; mu guards the state.
	serial sync.Mutex
	mu     sync.RWMutex

	store  store.Store
	log    *zap.Logger
	lines  []domain.CartLine
	budget decimal.NullDecimal
	rev    uint64

	observers []func(Snapshot)
}

// NewEngine restores the cart from st. Missing or unreadable state yields an
// empty cart with no budget.
func NewEngine(ctx context.Context, st store.Store, log *zap.Logger) *Engine {
	e := &Engine{store: st, log: log}
	e.lines = e.loadLines(ctx)
	e.budget = e.loadBudget(ctx)
	return e
}

func (e *Engine) loadLines(ctx context.Context) []domain.CartLine {
	var saved []domain.CartLine
	if err := store.GetJSON(ctx, e.store, KeyLines, &saved); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.log.Warn("discarding unreadable cart", zap.Error(err))
		}
		return nil
	}

	lines := make([]domain.CartLine, 0, len(saved))
	index := make(map[string]int, len(saved))
	for _, l := range saved {
		if l.Quantity <= 0 {
			continue
		}
		if i, ok := index[l.ID]; ok {
			lines[i].Quantity += l.Quantity
			continue
		}
		index[l.ID] = len(lines)
		lines = append(lines, l)
	}
	return lines
}

func (e *Engine) loadBudget(ctx context.Context) decimal.NullDecimal {
	var saved decimal.NullDecimal
	if err := store.GetJSON(ctx, e.store, KeyBudget, &saved); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.log.Warn("discarding unreadable budget", zap.Error(err))
		}
		return decimal.NullDecimal{}
	}
	return saved
}

// Subscribe registers fn to receive a snapshot after every mutation.
// fn runs synchronously and must not mutate the engine.
func (e *Engine) Subscribe(fn func(Snapshot)) {
	e.serial.Lock()
	defer e.serial.Unlock()
	e.observers = append(e.observers, fn)
}

// AddItem increments the line for product, or appends a new line with quantity 1.
func (e *Engine) AddItem(ctx context.Context, product domain.Product) {
	e.mutate(ctx, func() bool {
		for i := range e.lines {
			if e.lines[i].ID == product.ID {
				e.lines[i].Quantity++
				return true
			}
		}
		e.lines = append(e.lines, domain.CartLine{Product: product, Quantity: 1})
		return true
	})
}

// RemoveItem deletes the line for productID, if present.
func (e *Engine) RemoveItem(ctx context.Context, productID string) {
	e.mutate(ctx, func() bool {
		return e.removeLocked(productID)
	})
}

// UpdateQuantity sets the quantity of the line for productID. A quantity of
// zero or less removes the line.
func (e *Engine) UpdateQuantity(ctx context.Context, productID string, quantity int) {
	e.mutate(ctx, func() bool {
		if quantity <= 0 {
			return e.removeLocked(productID)
		}
		for i := range e.lines {
			if e.lines[i].ID == productID {
				e.lines[i].Quantity = quantity
				return true
			}
		}
		return false
	})
}

func (e *Engine) removeLocked(productID string) bool {
	for i := range e.lines {
		if e.lines[i].ID == productID {
			e.lines = append(e.lines[:i:i], e.lines[i+1:]...)
			return true
		}
	}
	return false
}

// Clear empties the cart and unsets the budget.
func (e *Engine) Clear(ctx context.Context) {
	e.serial.Lock()
	defer e.serial.Unlock()

	e.mu.Lock()
	e.clearLocked(ctx)
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.emit(snap)
}

// Settle takes paid off the cart after checkout. If nothing changed since
// revision rev the cart is cleared like Clear. Otherwise only the paid
// quantities are removed, so lines added after rev stay in the cart.
func (e *Engine) Settle(ctx context.Context, paid []domain.CartLine, rev uint64) {
	e.serial.Lock()
	defer e.serial.Unlock()

	e.mu.Lock()
	if e.rev == rev {
		e.clearLocked(ctx)
		snap := e.snapshotLocked()
		e.mu.Unlock()
		e.emit(snap)
		return
	}
	e.mu.Unlock()

	e.mutateSerial(ctx, func() bool {
		changed := false
		for _, p := range paid {
			for i := range e.lines {
				if e.lines[i].ID != p.ID {
					continue
				}
				if e.lines[i].Quantity > p.Quantity {
					e.lines[i].Quantity -= p.Quantity
				} else {
					e.removeLocked(p.ID)
				}
				changed = true
				break
			}
		}
		return changed
	})
}

func (e *Engine) clearLocked(ctx context.Context) {
	e.lines = nil
	e.budget = decimal.NullDecimal{}
	e.rev++
	if err := e.store.Remove(ctx, KeyLines); err != nil {
		e.log.Error("failed to remove persisted cart", zap.Error(err))
	}
	if err := e.store.Remove(ctx, KeyBudget); err != nil {
		e.log.Error("failed to remove persisted budget", zap.Error(err))
	}
}

// SetBudget stores amount as the spending ceiling. Non-positive amounts are
// rejected without touching the state.
func (e *Engine) SetBudget(ctx context.Context, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidBudget
	}

	e.serial.Lock()
	defer e.serial.Unlock()

	e.mu.Lock()
	e.budget = decimal.NewNullDecimal(amount)
	e.rev++
	// Persisted as a bare JSON number; loadBudget also accepts the quoted form.
	if err := store.SetJSON(ctx, e.store, KeyBudget, json.Number(amount.String())); err != nil {
		e.log.Error("failed to persist budget", zap.Error(err))
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.emit(snap)
	return nil
}

func (e *Engine) mutate(ctx context.Context, apply func() bool) {
	e.serial.Lock()
	defer e.serial.Unlock()
	e.mutateSerial(ctx, apply)
}

// mutateSerial is mutate for callers already holding serial.
func (e *Engine) mutateSerial(ctx context.Context, apply func() bool) {
	e.mu.Lock()
	if !apply() {
		e.mu.Unlock()
		return
	}
	e.rev++
	if err := store.SetJSON(ctx, e.store, KeyLines, e.linesForStore()); err != nil {
		e.log.Error("failed to persist cart", zap.Error(err))
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.emit(snap)
}

func (e *Engine) linesForStore() []domain.CartLine {
	if e.lines == nil {
		return []domain.CartLine{}
	}
	return e.lines
}

func (e *Engine) emit(snap Snapshot) {
	for _, fn := range e.observers {
		fn(snap)
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		Lines:       domain.CopyLines(e.lines),
		TotalAmount: domain.TotalAmount(e.lines),
		Budget:      e.budget,
		Revision:    e.rev,
	}
}

// TotalAmount is recomputed from the current lines on every call.
func (e *Engine) TotalAmount() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return domain.TotalAmount(e.lines)
}

func (e *Engine) Lines() []domain.CartLine {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return domain.CopyLines(e.lines)
}

// Line returns the line for productID.
func (e *Engine) Line(productID string) (domain.CartLine, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, l := range e.lines {
		if l.ID == productID {
			return l, true
		}
	}
	return domain.CartLine{}, false
}

// Budget returns the ceiling and whether one is set.
func (e *Engine) Budget() (decimal.Decimal, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.budget.Decimal, e.budget.Valid
}

// ItemCount is the number of units in the cart.
func (e *Engine) ItemCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	for _, l := range e.lines {
		n += l.Quantity
	}
	return n
}

// Revision increases with every mutation.
func (e *Engine) Revision() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rev
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}
