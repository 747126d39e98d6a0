package payment

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockGateway) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockGateway) ExpireSession(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *MockGateway) VerifySignature(r *http.Request) error {
	return m.Called(r).Error(0)
}

func TestBreakerGateway(t *testing.T) {
	ctx := context.Background()
	settings := BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Minute, HalfOpenRequests: 1}

	t.Run("PassesThrough", func(t *testing.T) {
		next := new(MockGateway)
		b := NewBreakerGateway(next, settings)
		next.On("GetSession", ctx, "cs_1").Return(&Session{ID: "cs_1"}, nil)

		s, err := b.GetSession(ctx, "cs_1")
		assert.NoError(t, err)
		assert.Equal(t, "cs_1", s.ID)
		assert.Equal(t, gobreaker.StateClosed, b.State())
	})

	t.Run("OpensAfterConsecutiveFailures", func(t *testing.T) {
		next := new(MockGateway)
		b := NewBreakerGateway(next, settings)
		next.On("CreateSession", ctx, mock.Anything).Return(nil, ErrProviderUnavailable).Times(2)

		for i := 0; i < 2; i++ {
			_, err := b.CreateSession(ctx, SessionRequest{})
			assert.ErrorIs(t, err, ErrProviderUnavailable)
		}
		assert.Equal(t, gobreaker.StateOpen, b.State())

		// fails fast without reaching the provider
		_, err := b.CreateSession(ctx, SessionRequest{})
		assert.ErrorIs(t, err, ErrProviderUnavailable)
		next.AssertNumberOfCalls(t, "CreateSession", 2)
	})

	t.Run("RejectionsDoNotTrip", func(t *testing.T) {
		next := new(MockGateway)
		b := NewBreakerGateway(next, settings)
		next.On("GetSession", ctx, "cs_gone").Return(nil, ErrSessionNotFound)

		for i := 0; i < 3; i++ {
			_, err := b.GetSession(ctx, "cs_gone")
			assert.ErrorIs(t, err, ErrSessionNotFound)
		}
		assert.Equal(t, gobreaker.StateClosed, b.State())
	})

	t.Run("ExpireSessionCountsFailures", func(t *testing.T) {
		next := new(MockGateway)
		b := NewBreakerGateway(next, settings)
		next.On("ExpireSession", ctx, "cs_1").Return(ErrProviderUnavailable).Times(2)

		for i := 0; i < 2; i++ {
			assert.ErrorIs(t, b.ExpireSession(ctx, "cs_1"), ErrProviderUnavailable)
		}
		assert.Equal(t, gobreaker.StateOpen, b.State())

		err := b.ExpireSession(ctx, "cs_1")
		assert.ErrorIs(t, err, ErrProviderUnavailable)
		next.AssertNumberOfCalls(t, "ExpireSession", 2)
	})

	t.Run("VerifySignatureDelegates", func(t *testing.T) {
		next := new(MockGateway)
		b := NewBreakerGateway(next, settings)
		r, _ := http.NewRequest(http.MethodPost, "/webhook/payment", nil)
		next.On("VerifySignature", r).Return(ErrInvalidSignature)

		assert.ErrorIs(t, b.VerifySignature(r), ErrInvalidSignature)
	})
}
