package transport

import (
	"context"
	"net/http"

	"bookstore-be/internal/checkout"
	"bookstore-be/internal/payment"
	"bookstore-be/internal/reconcile"

	"github.com/stretchr/testify/mock"
)

type MockCheckout struct{ mock.Mock }

func (m *MockCheckout) Checkout(ctx context.Context, req checkout.Request) (*checkout.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.Result), args.Error(1)
}

func (m *MockCheckout) RetrySession(ctx context.Context, userID, orderID uint) (*checkout.Result, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.Result), args.Error(1)
}

type MockReconcile struct{ mock.Mock }

func (m *MockReconcile) outcome(args mock.Arguments) (*reconcile.Outcome, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconcile.Outcome), args.Error(1)
}

func (m *MockReconcile) HandleSuccess(ctx context.Context, sessionID string) (*reconcile.Outcome, error) {
	return m.outcome(m.Called(ctx, sessionID))
}

func (m *MockReconcile) HandleCancel(ctx context.Context, sessionID string) (*reconcile.Outcome, error) {
	return m.outcome(m.Called(ctx, sessionID))
}

func (m *MockReconcile) HandleWebhookEvent(ctx context.Context, evt *payment.WebhookEvent) (*reconcile.Outcome, error) {
	return m.outcome(m.Called(ctx, evt))
}

func (m *MockReconcile) FinalizeCOD(ctx context.Context, orderID uint) (*reconcile.Outcome, error) {
	return m.outcome(m.Called(ctx, orderID))
}

func (m *MockReconcile) AdminDecide(ctx context.Context, orderID uint, d reconcile.Decision) (*reconcile.Outcome, error) {
	return m.outcome(m.Called(ctx, orderID, d))
}

type MockGateway struct{ mock.Mock }

func (m *MockGateway) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

func (m *MockGateway) GetSession(ctx context.Context, sessionID string) (*payment.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

func (m *MockGateway) ExpireSession(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *MockGateway) VerifySignature(r *http.Request) error {
	return m.Called(r).Error(0)
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(ctx context.Context) error { return p.err }
