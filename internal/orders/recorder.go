package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/smartcart/internal/domain"
	"github.com/fjod/smartcart/internal/publisher"
	"github.com/fjod/smartcart/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// KeyHistory is the store key holding the order list, newest first.
const KeyHistory = "order_history"

type Recorder struct {
	mu        sync.Mutex
	store     store.Store
	publisher publisher.OrderPublisher
	log       *zap.Logger
	now       func() time.Time
}

func NewRecorder(st store.Store, pub publisher.OrderPublisher, log *zap.Logger) *Recorder {
	return &Recorder{store: st, publisher: pub, log: log, now: time.Now}
}

// Record prepends a completed order to the history. The order keeps its own
// copy of lines. A store failure is returned and nothing is published.
func (r *Recorder) Record(ctx context.Context, transactionID string, lines []domain.CartLine, total decimal.Decimal) (domain.Order, error) {
	order := domain.Order{
		ID:          transactionID,
		Date:        r.now().UTC(),
		Items:       domain.CopyLines(lines),
		TotalAmount: total,
	}

	r.mu.Lock()
	history := r.load(ctx)
	history = append([]domain.Order{order}, history...)
	err := store.SetJSON(ctx, r.store, KeyHistory, history)
	r.mu.Unlock()
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to save order %s: %w", transactionID, err)
	}

	r.log.Info("order recorded",
		zap.String("order_id", order.ID),
		zap.Stringer("total", order.TotalAmount),
		zap.Int("lines", len(order.Items)),
	)

	if err := r.publisher.PublishOrder(ctx, order); err != nil {
		r.log.Warn("failed to publish order", zap.String("order_id", order.ID), zap.Error(err))
	}
	return order, nil
}

// History returns every recorded order, newest first.
func (r *Recorder) History(ctx context.Context) []domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

func (r *Recorder) load(ctx context.Context) []domain.Order {
	var history []domain.Order
	if err := store.GetJSON(ctx, r.store, KeyHistory, &history); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.log.Warn("discarding unreadable order history", zap.Error(err))
		}
		return []domain.Order{}
	}
	if history == nil {
		return []domain.Order{}
	}
	return history
}
