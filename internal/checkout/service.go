package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookstore-be/internal/cart"
	"bookstore-be/internal/db"
	"bookstore-be/internal/inventory"
	"bookstore-be/internal/logger"
	"bookstore-be/internal/metrics"
	"bookstore-be/internal/order"
	"bookstore-be/internal/outbox"
	"bookstore-be/internal/payment"
	"bookstore-be/internal/reconcile"
	"bookstore-be/internal/user"

	"go.uber.org/zap"
)

type Service interface {
	Checkout(ctx context.Context, req Request) (*Result, error)
	RetrySession(ctx context.Context, userID, orderID uint) (*Result, error)
}

// CODFinalizer completes a cash-on-delivery order after it commits.
type CODFinalizer interface {
	FinalizeCOD(ctx context.Context, orderID uint) (*reconcile.Outcome, error)
}

type Deps struct {
	Tx        db.TxRunner
	Pool      db.DBTX
	Carts     cart.Reader
	Ledger    inventory.Ledger
	Orders    order.Repository
	Payments  payment.Repository
	Users     user.ProfileStore
	Outbox    outbox.Store
	Gateway   payment.Gateway
	Finalizer CODFinalizer
	Metrics   *metrics.Checkout

	Timeout  time.Duration
	Currency string
}

type service struct {
	Deps
}

func NewService(d Deps) Service {
	if d.Timeout <= 0 {
		d.Timeout = 10 * time.Second
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewCheckout()
	}
	return &service{Deps: d}
}

// Checkout turns the user's active cart into a pending order in one
// transaction. Card orders then get a provider session; COD orders are
// finalized directly.
func (s *service) Checkout(ctx context.Context, req Request) (*Result, error) {
	ctx = logger.WithFields(ctx, zap.Uint("user_id", req.UserID))
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "checkout"),
		zap.String("method", "Checkout"),
		zap.String("payment_method", string(req.Method)),
	)

	if !req.Method.Valid() {
		return nil, ErrInvalidMethod
	}

	timer := metrics.StartTimer()
	stage := StageStart
	var o *order.Order

	txCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	err := s.Tx.WithTx(txCtx, func(q db.DBTX) error {
		// 1. Snapshot the cart under its row lock
		snap, err := s.Carts.LoadActiveCart(txCtx, q, req.UserID)
		switch {
		case errors.Is(err, cart.ErrNoActiveCart):
			return ErrEmptyCart
		case errors.Is(err, cart.ErrProductNotFound):
			return fmt.Errorf("%w: %v", ErrProductNotFound, err)
		case err != nil:
			return err
		}
		if snap.IsEmpty() {
			return ErrEmptyCart
		}

		// 2. Lock and check every stock row
		items := make([]inventory.Item, 0, len(snap.Lines))
		for _, l := range snap.Lines {
			items = append(items, inventory.Item{ProductID: l.ProductID, Quantity: l.Quantity})
		}
		reservations, shortages, err := s.Ledger.ReserveAll(txCtx, q, items)
		if errors.Is(err, inventory.ErrProductNotFound) {
			return fmt.Errorf("%w: %v", ErrProductNotFound, err)
		}
		if err != nil {
			return err
		}
		if len(shortages) > 0 {
			return &InsufficientStockError{Shortages: shortages}
		}
		stage = StageStockValidated
		log.Debug("checkout stage", zap.Stringer("stage", stage))

		// 3. Resolve address and build the order
		addr, err := s.resolveAddress(txCtx, q, req)
		if err != nil {
			return err
		}
		o, err = order.Assemble(snap, addr)
		if err != nil {
			return err
		}
		if err := s.Orders.Insert(txCtx, q, o); err != nil {
			return err
		}
		stage = StageOrderCreated
		log.Debug("checkout stage", zap.Stringer("stage", stage), zap.Uint("order_id", o.ID))

		// 4. Take the stock
		for _, r := range reservations {
			if err := s.Ledger.Apply(txCtx, q, r); err != nil {
				return err
			}
		}
		stage = StageInventoryReserved
		log.Debug("checkout stage", zap.Stringer("stage", stage))

		// 5. Empty the cart
		if err := s.Carts.ClearItems(txCtx, q, snap.CartID); err != nil {
			return err
		}
		stage = StageCartCleared
		log.Debug("checkout stage", zap.Stringer("stage", stage))

		// 6. Payment row and event
		if err := s.Payments.Create(txCtx, q, &payment.Payment{
			OrderID: o.ID,
			UserID:  o.UserID,
			Method:  req.Method,
			Amount:  o.TotalAmount,
			Status:  payment.StatusPending,
		}); err != nil {
			return err
		}
		stage = StagePaymentInitiated
		log.Debug("checkout stage", zap.Stringer("stage", stage))

		return s.Outbox.Insert(txCtx, q, outbox.EventOrderPlaced, fmt.Sprint(o.ID), outbox.OrderEvent{
			OrderID:     o.ID,
			UserID:      o.UserID,
			Status:      string(o.Status),
			Method:      string(req.Method),
			TotalAmount: o.TotalAmount,
			OccurredAt:  time.Now().UTC(),
		})
	})
	took := timer.ObserveMillis(&s.Metrics.LatencyMillis)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(txCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ErrCheckoutTimeout, err)
		}
		if errors.Is(err, ErrInsufficientStock) {
			s.Metrics.StockRejected.Inc()
		}
		s.Metrics.Aborted.Inc()
		log.Info("checkout aborted",
			zap.Stringer("stage", StageAborted),
			zap.Stringer("reached", stage),
			zap.Duration("took", took),
			zap.Error(err),
		)
		return nil, err
	}

	s.Metrics.Committed.Inc()
	log.Info("checkout committed",
		zap.Stringer("stage", StageCommitted),
		zap.Uint("order_id", o.ID),
		zap.Int64("total", o.TotalAmount),
		zap.Duration("took", took),
	)

	res := &Result{
		OrderID:     o.ID,
		Status:      o.Status,
		Method:      req.Method,
		TotalAmount: o.TotalAmount,
	}

	// Past the commit point nothing is rolled back.
	if req.Method == payment.MethodCOD {
		out, err := s.Finalizer.FinalizeCOD(ctx, o.ID)
		if err != nil {
			// order stays pending for an admin to confirm
			log.Warn("COD finalize failed", zap.Uint("order_id", o.ID), zap.Error(err))
			return res, nil
		}
		res.Status = out.Status
		return res, nil
	}

	if err := s.startSession(ctx, o, res); err != nil {
		return res, err
	}
	return res, nil
}

// RetrySession opens a fresh provider session for a pending card order
// whose first attempt failed or was abandoned.
func (s *service) RetrySession(ctx context.Context, userID, orderID uint) (*Result, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "checkout"),
		zap.String("method", "RetrySession"),
		zap.Uint("user_id", userID),
		zap.Uint("order_id", orderID),
	)

	o, err := s.Orders.GetByID(ctx, s.Pool, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		log.Warn("retry for foreign order")
		return nil, ErrForbidden
	}
	if o.Status != order.StatusPending {
		return nil, fmt.Errorf("%w: order is %s", ErrOrderNotPayable, o.Status)
	}

	p, err := s.Payments.GetByOrder(ctx, s.Pool, orderID)
	if err != nil {
		return nil, err
	}
	if p.Method != payment.MethodCard {
		return nil, fmt.Errorf("%w: method is %s", ErrOrderNotPayable, p.Method)
	}

	o.Items, err = s.Orders.GetItems(ctx, s.Pool, orderID)
	if err != nil {
		return nil, err
	}

	res := &Result{OrderID: o.ID, Status: o.Status, Method: p.Method, TotalAmount: o.TotalAmount}
	if err := s.startSession(ctx, o, res); err != nil {
		return res, err
	}
	return res, nil
}

func (s *service) startSession(ctx context.Context, o *order.Order, res *Result) error {
	log := logger.FromCtx(ctx).With(zap.Uint("order_id", o.ID))

	lines := make([]payment.Line, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, payment.Line{Name: it.ProductName, UnitAmount: it.UnitAmount, Quantity: it.Quantity})
	}

	sess, err := s.Gateway.CreateSession(ctx, payment.SessionRequest{
		Correlation: payment.Correlation{OrderID: o.ID, UserID: o.UserID},
		Lines:       lines,
		Currency:    s.Currency,
	})
	if err != nil {
		s.Metrics.ProviderFailures.Inc()
		log.Error("payment session creation failed, order left pending", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrPaymentProviderUnavailable, err)
	}

	// A cancel or expiry leg may have run while the provider call was in
	// flight. Recording the session under the order lock closes that window.
	err = s.Tx.WithTx(ctx, func(q db.DBTX) error {
		cur, err := s.Orders.GetForUpdate(ctx, q, o.ID)
		if err != nil {
			return err
		}
		if cur.Status != order.StatusPending {
			return fmt.Errorf("%w: order is %s", ErrOrderNotPayable, cur.Status)
		}
		if err := s.Payments.SetSession(ctx, q, o.ID, sess.ID); err != nil {
			if errors.Is(err, payment.ErrPaymentNotFound) {
				return fmt.Errorf("%w: payment is no longer pending", ErrOrderNotPayable)
			}
			return err
		}
		return nil
	})
	if err != nil {
		// no redirect is handed out, so the session must not stay payable
		if xerr := s.Gateway.ExpireSession(ctx, sess.ID); xerr != nil {
			log.Error("failed to expire unrecorded session",
				zap.String("session_id", sess.ID), zap.Error(xerr))
		}
		if errors.Is(err, ErrOrderNotPayable) {
			log.Warn("order stopped awaiting payment during session creation",
				zap.String("session_id", sess.ID), zap.Error(err))
			return err
		}
		// without the reference the cancel leg cannot tell sessions apart
		log.Error("failed to record payment session", zap.String("session_id", sess.ID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrPaymentProviderUnavailable, err)
	}

	res.SessionID = sess.ID
	res.RedirectURL = sess.URL
	log.Info("payment session started", zap.String("session_id", sess.ID))
	return nil
}

func (s *service) resolveAddress(ctx context.Context, q db.DBTX, req Request) (string, error) {
	if req.ShippingAddress != nil {
		if a := strings.TrimSpace(*req.ShippingAddress); a != "" {
			return a, nil
		}
	}

	addr, err := s.Users.GetAddress(ctx, q, req.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return "", ErrMissingShippingAddress
		}
		return "", err
	}
	if addr == nil {
		return "", ErrMissingShippingAddress
	}
	return *addr, nil
}
