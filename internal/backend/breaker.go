package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/smartcart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Breaker stops calling the wrapped Backend after maxFailures consecutive
// failures and lets a trial call through once openTimeout has passed.
type Breaker struct {
	next Backend
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreaker(next Backend, maxFailures uint32, openTimeout time.Duration, log *zap.Logger) *Breaker {
	settings := gobreaker.Settings{
		Name:    "backend",
		Timeout: openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// cancellation by the caller is not a backend failure
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[any](settings)}
}

func execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

type loginResult struct {
	identity domain.Identity
	token    string
}

func (b *Breaker) Login(ctx context.Context, username, password string) (domain.Identity, string, error) {
	res, err := execute(b, func() (loginResult, error) {
		id, token, err := b.next.Login(ctx, username, password)
		return loginResult{id, token}, err
	})
	return res.identity, res.token, err
}

func (b *Breaker) RegisterCart(ctx context.Context, cartID string) error {
	_, err := execute(b, func() (struct{}, error) {
		return struct{}{}, b.next.RegisterCart(ctx, cartID)
	})
	return err
}

func (b *Breaker) ScanBarcode(ctx context.Context, code string) (*domain.Product, error) {
	return execute(b, func() (*domain.Product, error) {
		return b.next.ScanBarcode(ctx, code)
	})
}

func (b *Breaker) VerifyCheckout(ctx context.Context, lines []domain.CartLine) (VerifyStatus, error) {
	return execute(b, func() (VerifyStatus, error) {
		return b.next.VerifyCheckout(ctx, lines)
	})
}

func (b *Breaker) ProcessPayment(ctx context.Context, amount decimal.Decimal) (PaymentResult, error) {
	return execute(b, func() (PaymentResult, error) {
		return b.next.ProcessPayment(ctx, amount)
	})
}

func (b *Breaker) ConfirmExit(ctx context.Context) error {
	_, err := execute(b, func() (struct{}, error) {
		return struct{}{}, b.next.ConfirmExit(ctx)
	})
	return err
}
