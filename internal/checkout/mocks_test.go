package checkout

import (
	"context"
	"net/http"

	"bookstore-be/internal/cart"
	"bookstore-be/internal/db"
	"bookstore-be/internal/inventory"
	"bookstore-be/internal/order"
	"bookstore-be/internal/outbox"
	"bookstore-be/internal/payment"
	"bookstore-be/internal/reconcile"

	"github.com/stretchr/testify/mock"
)

// fakeTx runs fn directly and records whether it would have committed.
type fakeTx struct {
	calls     int
	committed bool
}

func (f *fakeTx) WithTx(ctx context.Context, fn func(q db.DBTX) error) error {
	f.calls++
	if err := fn(nil); err != nil {
		return err
	}
	f.committed = true
	return nil
}

type MockOrderRepo struct{ mock.Mock }

func (m *MockOrderRepo) Insert(ctx context.Context, q db.DBTX, o *order.Order) error {
	return m.Called(ctx, q, o).Error(0)
}

func (m *MockOrderRepo) GetByID(ctx context.Context, q db.DBTX, id uint) (*order.Order, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepo) GetForUpdate(ctx context.Context, q db.DBTX, id uint) (*order.Order, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepo) GetItems(ctx context.Context, q db.DBTX, id uint) ([]order.Item, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Item), args.Error(1)
}

func (m *MockOrderRepo) UpdateStatus(ctx context.Context, q db.DBTX, id uint, s order.Status) error {
	return m.Called(ctx, q, id, s).Error(0)
}

type MockPaymentRepo struct{ mock.Mock }

func (m *MockPaymentRepo) Create(ctx context.Context, q db.DBTX, p *payment.Payment) error {
	return m.Called(ctx, q, p).Error(0)
}

func (m *MockPaymentRepo) GetByOrder(ctx context.Context, q db.DBTX, orderID uint) (*payment.Payment, error) {
	args := m.Called(ctx, q, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepo) SetSession(ctx context.Context, q db.DBTX, orderID uint, sessionID string) error {
	return m.Called(ctx, q, orderID, sessionID).Error(0)
}

func (m *MockPaymentRepo) UpdateStatusByOrder(ctx context.Context, q db.DBTX, orderID uint, s payment.Status) error {
	return m.Called(ctx, q, orderID, s).Error(0)
}

func (m *MockPaymentRepo) SaveWebhook(ctx context.Context, q db.DBTX, provider string, evt *payment.WebhookEvent) (int64, bool, error) {
	args := m.Called(ctx, q, provider, evt)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockPaymentRepo) MarkWebhookProcessed(ctx context.Context, q db.DBTX, id int64) error {
	return m.Called(ctx, q, id).Error(0)
}

func (m *MockPaymentRepo) MarkWebhookFailed(ctx context.Context, q db.DBTX, id int64, reason string) error {
	return m.Called(ctx, q, id, reason).Error(0)
}

type MockLedger struct{ mock.Mock }

func (m *MockLedger) CheckAndReserve(ctx context.Context, q db.DBTX, productID uint, qty int) (inventory.Reservation, *inventory.Shortage, error) {
	args := m.Called(ctx, q, productID, qty)
	var short *inventory.Shortage
	if args.Get(1) != nil {
		short = args.Get(1).(*inventory.Shortage)
	}
	return args.Get(0).(inventory.Reservation), short, args.Error(2)
}

func (m *MockLedger) Apply(ctx context.Context, q db.DBTX, r inventory.Reservation) error {
	return m.Called(ctx, q, r).Error(0)
}

func (m *MockLedger) Release(ctx context.Context, q db.DBTX, productID uint, qty int) error {
	return m.Called(ctx, q, productID, qty).Error(0)
}

func (m *MockLedger) ReserveAll(ctx context.Context, q db.DBTX, items []inventory.Item) ([]inventory.Reservation, []inventory.Shortage, error) {
	args := m.Called(ctx, q, items)
	var res []inventory.Reservation
	var shorts []inventory.Shortage
	if args.Get(0) != nil {
		res = args.Get(0).([]inventory.Reservation)
	}
	if args.Get(1) != nil {
		shorts = args.Get(1).([]inventory.Shortage)
	}
	return res, shorts, args.Error(2)
}

type MockCarts struct{ mock.Mock }

func (m *MockCarts) LoadActiveCart(ctx context.Context, q db.DBTX, userID uint) (*cart.Snapshot, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Snapshot), args.Error(1)
}

func (m *MockCarts) ClearItems(ctx context.Context, q db.DBTX, cartID uint) error {
	return m.Called(ctx, q, cartID).Error(0)
}

func (m *MockCarts) ClearActiveCart(ctx context.Context, q db.DBTX, userID uint) error {
	return m.Called(ctx, q, userID).Error(0)
}

func (m *MockCarts) EnsureActiveCart(ctx context.Context, q db.DBTX, userID uint) (uint, error) {
	args := m.Called(ctx, q, userID)
	return args.Get(0).(uint), args.Error(1)
}

type MockOutbox struct{ mock.Mock }

func (m *MockOutbox) Insert(ctx context.Context, q db.DBTX, topic, key string, payload any) error {
	return m.Called(ctx, q, topic, key, payload).Error(0)
}

func (m *MockOutbox) FetchPending(ctx context.Context, q db.DBTX, limit int) ([]outbox.Record, error) {
	args := m.Called(ctx, q, limit)
	return args.Get(0).([]outbox.Record), args.Error(1)
}

func (m *MockOutbox) MarkSent(ctx context.Context, q db.DBTX, id int64) error {
	return m.Called(ctx, q, id).Error(0)
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

type MockUsers struct{ mock.Mock }

func (m *MockUsers) GetAddress(ctx context.Context, q db.DBTX, userID uint) (*string, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}

type MockFinalizer struct{ mock.Mock }

func (m *MockFinalizer) FinalizeCOD(ctx context.Context, orderID uint) (*reconcile.Outcome, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconcile.Outcome), args.Error(1)
}
