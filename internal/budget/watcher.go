package budget

import (
	"fmt"
	"sync"

	"github.com/fjod/smartcart/internal/cart"
	"github.com/fjod/smartcart/internal/notify"
	"github.com/shopspring/decimal"
)

var warnRatio = decimal.RequireFromString("0.9")

type AlertKind string

const (
	AlertNearing  AlertKind = "nearing"
	AlertExceeded AlertKind = "exceeded"
)

type Alert struct {
	Kind   AlertKind
	Budget decimal.Decimal
	Total  decimal.Decimal
}

func (a Alert) Message() string {
	if a.Kind == AlertExceeded {
		return fmt.Sprintf("Budget of ₹%s exceeded!", a.Budget)
	}
	return fmt.Sprintf("Nearing your budget of ₹%s.", a.Budget)
}

func (a Alert) Level() notify.Level {
	if a.Kind == AlertExceeded {
		return notify.LevelError
	}
	return notify.LevelInfo
}

// Watcher detects upward crossings of the warning threshold (90% of the
// budget) and of the budget itself. It remembers only the previous total.
type Watcher struct {
	mu       sync.Mutex
	previous decimal.Decimal
}

func NewWatcher(initial decimal.Decimal) *Watcher {
	return &Watcher{previous: initial}
}

// Observe evaluates a newly computed total against budget and records it as
// the previous total. At most one alert is returned.
func (w *Watcher) Observe(total decimal.Decimal, budget decimal.NullDecimal) (Alert, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	previous := w.previous
	w.previous = total

	if !budget.Valid || budget.Decimal.IsZero() || total.LessThanOrEqual(previous) {
		return Alert{}, false
	}

	ceiling := budget.Decimal
	warn := ceiling.Mul(warnRatio)

	switch {
	case previous.LessThan(ceiling) && total.GreaterThan(ceiling):
		return Alert{Kind: AlertExceeded, Budget: ceiling, Total: total}, true
	case previous.LessThan(warn) && total.GreaterThanOrEqual(warn) && previous.LessThan(ceiling):
		return Alert{Kind: AlertNearing, Budget: ceiling, Total: total}, true
	}
	return Alert{}, false
}

// Attach starts watching engine and shows every alert through n.
func Attach(engine *cart.Engine, n notify.Notifier) *Watcher {
	w := NewWatcher(engine.TotalAmount())
	engine.Subscribe(func(s cart.Snapshot) {
		if alert, ok := w.Observe(s.TotalAmount, s.Budget); ok {
			n.Show(alert.Message(), alert.Level())
		}
	})
	return w
}
