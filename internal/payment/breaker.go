package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bookstore-be/internal/logger"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerGateway fails fast while the provider is unhealthy. Only transport
// and 5xx failures count toward tripping.
type BreakerGateway struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker[*Session]
}

type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    1,
	}
}

func NewBreakerGateway(next Gateway, s BreakerSettings) *BreakerGateway {
	cb := gobreaker.NewCircuitBreaker[*Session](gobreaker.Settings{
		Name:        "payment-provider",
		MaxRequests: s.HalfOpenRequests,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrProviderUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.L().Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &BreakerGateway{next: next, cb: cb}
}

func (b *BreakerGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	return b.execute(func() (*Session, error) {
		return b.next.CreateSession(ctx, req)
	})
}

func (b *BreakerGateway) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	return b.execute(func() (*Session, error) {
		return b.next.GetSession(ctx, sessionID)
	})
}

func (b *BreakerGateway) ExpireSession(ctx context.Context, sessionID string) error {
	_, err := b.execute(func() (*Session, error) {
		return nil, b.next.ExpireSession(ctx, sessionID)
	})
	return err
}

func (b *BreakerGateway) VerifySignature(r *http.Request) error {
	return b.next.VerifySignature(r)
}

func (b *BreakerGateway) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerGateway) execute(fn func() (*Session, error)) (*Session, error) {
	s, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return s, err
}
