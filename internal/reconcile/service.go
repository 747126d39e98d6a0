package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"bookstore-be/internal/cart"
	"bookstore-be/internal/db"
	"bookstore-be/internal/inventory"
	"bookstore-be/internal/logger"
	"bookstore-be/internal/metrics"
	"bookstore-be/internal/order"
	"bookstore-be/internal/outbox"
	"bookstore-be/internal/payment"
	"bookstore-be/internal/redisx"

	"go.uber.org/zap"
)

const webhookProvider = "hosted"

// Service is the second leg of the checkout saga. Every method is safe to
// call again with the same input.
type Service interface {
	HandleSuccess(ctx context.Context, sessionID string) (*Outcome, error)
	HandleCancel(ctx context.Context, sessionID string) (*Outcome, error)
	HandleWebhookEvent(ctx context.Context, evt *payment.WebhookEvent) (*Outcome, error)
	FinalizeCOD(ctx context.Context, orderID uint) (*Outcome, error)
	AdminDecide(ctx context.Context, orderID uint, d Decision) (*Outcome, error)
}

type Deps struct {
	Tx       db.TxRunner
	Pool     db.DBTX
	Orders   order.Repository
	Payments payment.Repository
	Ledger   inventory.Ledger
	Carts    cart.Reader
	Outbox   outbox.Store
	Gateway  payment.Gateway
	Locker   redisx.Locker
	Metrics  *metrics.Checkout
}

type service struct {
	Deps
}

func NewService(d Deps) Service {
	if d.Locker == nil {
		d.Locker = redisx.NoopLocker()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewCheckout()
	}
	return &service{Deps: d}
}

// HandleSuccess applies a provider-confirmed payment to its order.
func (s *service) HandleSuccess(ctx context.Context, sessionID string) (*Outcome, error) {
	ctx = logger.WithFields(ctx, zap.String("session_id", sessionID))
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "reconcile"),
		zap.String("method", "HandleSuccess"),
	)

	// 1. Ask the provider, never trust the redirect
	sess, err := s.Gateway.GetSession(ctx, sessionID)
	if err != nil {
		log.Warn("failed to fetch session", zap.Error(err))
		return nil, err
	}
	out := &Outcome{OrderID: sess.Correlation.OrderID}
	log = log.With(zap.Uint("order_id", out.OrderID))

	if !sess.Paid() {
		s.Metrics.Stale.Inc()
		log.Warn("success callback for unpaid session", zap.String("payment_status", string(sess.PaymentStatus)))
		return out, fmt.Errorf("%w: session is %s", ErrStalePaymentState, sess.PaymentStatus)
	}

	// 2. Serialise legs for this session
	release, err := s.Locker.Acquire(ctx, fmt.Sprintf(redisx.KeySessionLock, sessionID))
	if err != nil {
		return out, err
	}
	defer release()

	// 3. Transition under the order row lock
	err = s.Tx.WithTx(ctx, func(q db.DBTX) error {
		o, err := s.Orders.GetForUpdate(ctx, q, sess.Correlation.OrderID)
		if err != nil {
			return err
		}
		if o.UserID != sess.Correlation.UserID {
			return fmt.Errorf("%w: session user %d does not own order", ErrStalePaymentState, sess.Correlation.UserID)
		}

		p, err := s.Payments.GetByOrder(ctx, q, o.ID)
		if err != nil {
			return err
		}

		if p.Status == payment.StatusCompleted {
			out.Status = o.Status
			out.Replayed = true
			return nil
		}
		if o.Status == order.StatusCancelled {
			// money taken for an order we already released; needs a refund by hand
			log.Error("paid session for cancelled order",
				zap.Int64("amount", sess.AmountTotal))
			return fmt.Errorf("%w: order is cancelled", ErrStalePaymentState)
		}
		if _, err := order.Transition(o.Status, order.StatusPaid); err != nil {
			return fmt.Errorf("%w: %v", ErrStalePaymentState, err)
		}
		if sess.AmountTotal != o.TotalAmount {
			log.Error("paid amount does not match order total",
				zap.Int64("paid", sess.AmountTotal), zap.Int64("total", o.TotalAmount))
			return fmt.Errorf("%w: paid %d, order total %d", ErrStalePaymentState, sess.AmountTotal, o.TotalAmount)
		}

		if err := s.Orders.UpdateStatus(ctx, q, o.ID, order.StatusPaid); err != nil {
			return err
		}
		if err := s.Payments.UpdateStatusByOrder(ctx, q, o.ID, payment.StatusCompleted); err != nil {
			return err
		}
		if err := s.Carts.ClearActiveCart(ctx, q, o.UserID); err != nil {
			return err
		}
		if err := s.emit(ctx, q, outbox.EventOrderPaid, o, order.StatusPaid, payment.MethodCard); err != nil {
			return err
		}

		out.Status = order.StatusPaid
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStalePaymentState) {
			s.Metrics.Stale.Inc()
		}
		if errors.Is(err, order.ErrOrderNotFound) {
			// a provider session pointing at no order
			log.Error("success leg failed", zap.Uint("order_id", out.OrderID), zap.Error(err))
		} else {
			log.Warn("success leg failed", zap.Error(err))
		}
		return out, err
	}

	if out.Replayed {
		s.Metrics.Replayed.Inc()
		log.Info("success callback replayed")
	} else {
		s.Metrics.Paid.Inc()
		log.Info("order paid")
	}
	return out, nil
}

// HandleCancel cancels an unpaid order and puts its stock back.
func (s *service) HandleCancel(ctx context.Context, sessionID string) (*Outcome, error) {
	ctx = logger.WithFields(ctx, zap.String("session_id", sessionID))
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "reconcile"),
		zap.String("method", "HandleCancel"),
	)

	// 1. Provider must agree nothing was paid
	sess, err := s.Gateway.GetSession(ctx, sessionID)
	if err != nil {
		log.Warn("failed to fetch session", zap.Error(err))
		return nil, err
	}
	out := &Outcome{OrderID: sess.Correlation.OrderID}
	log = log.With(zap.Uint("order_id", out.OrderID))

	if sess.Paid() {
		s.Metrics.Stale.Inc()
		log.Warn("cancel callback for paid session")
		return out, fmt.Errorf("%w: session is paid", ErrStalePaymentState)
	}

	// 2. Serialise legs for this session
	release, err := s.Locker.Acquire(ctx, fmt.Sprintf(redisx.KeySessionLock, sessionID))
	if err != nil {
		return out, err
	}
	defer release()

	// 3. Compensate under the order row lock
	err = s.Tx.WithTx(ctx, func(q db.DBTX) error {
		o, err := s.Orders.GetForUpdate(ctx, q, sess.Correlation.OrderID)
		if err != nil {
			return err
		}
		if o.UserID != sess.Correlation.UserID {
			return fmt.Errorf("%w: session user %d does not own order", ErrStalePaymentState, sess.Correlation.UserID)
		}

		out.Status = o.Status
		switch o.Status {
		case order.StatusCancelled:
			out.Replayed = true
			return nil
		case order.StatusPending:
		default:
			return fmt.Errorf("%w: order is %s", ErrStalePaymentState, o.Status)
		}

		p, err := s.Payments.GetByOrder(ctx, q, o.ID)
		if err != nil {
			return err
		}
		if p.ProviderSessionID != nil && *p.ProviderSessionID != sessionID {
			// a retry opened a newer session; this one no longer speaks for the order
			out.Superseded = true
			return nil
		}

		if err := s.compensate(ctx, q, o, payment.MethodCard); err != nil {
			return err
		}
		out.Status = order.StatusCancelled
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStalePaymentState) {
			s.Metrics.Stale.Inc()
		}
		log.Warn("cancel leg failed", zap.Error(err))
		return out, err
	}

	switch {
	case out.Replayed:
		s.Metrics.Replayed.Inc()
		log.Info("cancel callback replayed")
	case out.Superseded:
		log.Info("cancel for superseded session ignored")
	default:
		s.Metrics.Cancelled.Inc()
		log.Info("order cancelled and restocked")
	}
	return out, nil
}

// compensate cancels the order and payment and releases every line, in
// product order to match the lock order used at checkout.
func (s *service) compensate(ctx context.Context, q db.DBTX, o *order.Order, method payment.Method) error {
	if err := s.Orders.UpdateStatus(ctx, q, o.ID, order.StatusCancelled); err != nil {
		return err
	}
	if err := s.Payments.UpdateStatusByOrder(ctx, q, o.ID, payment.StatusCancelled); err != nil {
		return err
	}

	items, err := s.Orders.GetItems(ctx, q, o.ID)
	if err != nil {
		return err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	for _, it := range items {
		if err := s.Ledger.Release(ctx, q, it.ProductID, it.Quantity); err != nil {
			return fmt.Errorf("release product %d: %w", it.ProductID, err)
		}
	}

	return s.emit(ctx, q, outbox.EventOrderCancelled, o, order.StatusCancelled, method)
}

// HandleWebhookEvent routes a verified provider event to the matching leg.
// Events already processed are acknowledged without side effects.
func (s *service) HandleWebhookEvent(ctx context.Context, evt *payment.WebhookEvent) (*Outcome, error) {
	ctx = logger.WithFields(ctx, zap.String("event_id", evt.ID))
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "reconcile"),
		zap.String("method", "HandleWebhookEvent"),
		zap.String("event_type", evt.Type),
	)

	id, dup, err := s.Payments.SaveWebhook(ctx, s.Pool, webhookProvider, evt)
	if err != nil {
		return nil, err
	}
	if dup {
		log.Info("duplicate webhook ignored")
		return &Outcome{Duplicate: true}, nil
	}

	var out *Outcome
	switch evt.Type {
	case payment.EventSessionCompleted:
		out, err = s.HandleSuccess(ctx, evt.SessionID)
	case payment.EventSessionExpired:
		out, err = s.HandleCancel(ctx, evt.SessionID)
	default:
		log.Debug("unhandled webhook event type")
		out = &Outcome{}
	}

	if err != nil {
		if mErr := s.Payments.MarkWebhookFailed(ctx, s.Pool, id, err.Error()); mErr != nil {
			log.Error("failed to mark webhook failed", zap.Error(mErr))
		}
		return out, err
	}

	if mErr := s.Payments.MarkWebhookProcessed(ctx, s.Pool, id); mErr != nil {
		log.Error("failed to mark webhook processed", zap.Error(mErr))
	}
	return out, nil
}

// FinalizeCOD moves a freshly placed cash-on-delivery order into
// processing. Payment stays pending until the courier collects.
func (s *service) FinalizeCOD(ctx context.Context, orderID uint) (*Outcome, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "reconcile"),
		zap.String("method", "FinalizeCOD"),
		zap.Uint("order_id", orderID),
	)

	out := &Outcome{OrderID: orderID}
	err := s.Tx.WithTx(ctx, func(q db.DBTX) error {
		o, err := s.Orders.GetForUpdate(ctx, q, orderID)
		if err != nil {
			return err
		}
		p, err := s.Payments.GetByOrder(ctx, q, orderID)
		if err != nil {
			return err
		}
		if p.Method != payment.MethodCOD {
			return ErrNotCODOrder
		}

		out.Status = o.Status
		noop, err := order.Transition(o.Status, order.StatusProcessing)
		if err != nil {
			return err
		}
		if noop {
			out.Replayed = true
			return nil
		}

		if err := s.Orders.UpdateStatus(ctx, q, orderID, order.StatusProcessing); err != nil {
			return err
		}
		// second clear is a no-op after a committed checkout
		if err := s.Carts.ClearActiveCart(ctx, q, o.UserID); err != nil {
			return err
		}
		out.Status = order.StatusProcessing
		return nil
	})
	if err != nil {
		log.Warn("failed to finalize COD order", zap.Error(err))
		return out, err
	}

	log.Info("COD order finalized", zap.String("status", string(out.Status)))
	return out, nil
}

// AdminDecide applies a back-office confirm or reject. Rejecting a card
// order runs the same compensation as a provider cancel; rejecting a COD
// order only changes its status.
func (s *service) AdminDecide(ctx context.Context, orderID uint, d Decision) (*Outcome, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "reconcile"),
		zap.String("method", "AdminDecide"),
		zap.Uint("order_id", orderID),
		zap.String("decision", string(d)),
	)

	if !d.Valid() {
		return nil, ErrUnknownDecision
	}

	release, err := s.Locker.Acquire(ctx, fmt.Sprintf(redisx.KeyOrderLock, orderID))
	if err != nil {
		return nil, err
	}
	defer release()

	out := &Outcome{OrderID: orderID}
	err = s.Tx.WithTx(ctx, func(q db.DBTX) error {
		o, err := s.Orders.GetForUpdate(ctx, q, orderID)
		if err != nil {
			return err
		}
		p, err := s.Payments.GetByOrder(ctx, q, orderID)
		if err != nil {
			return err
		}
		out.Status = o.Status

		target := order.StatusProcessing
		if d == DecisionReject {
			target = order.StatusCancelled
		}

		noop, err := order.Transition(o.Status, target)
		if err != nil {
			return err
		}
		if noop {
			out.Replayed = true
			return nil
		}

		switch {
		case d == DecisionConfirm && p.Method == payment.MethodCard && o.Status != order.StatusPaid:
			return fmt.Errorf("%w: card order awaiting payment", order.ErrInvalidTransition)
		case d == DecisionReject && p.Method == payment.MethodCard:
			if p.Status == payment.StatusCompleted {
				return fmt.Errorf("%w: card order already paid", order.ErrInvalidTransition)
			}
			if err := s.compensate(ctx, q, o, p.Method); err != nil {
				return err
			}
		default:
			if err := s.Orders.UpdateStatus(ctx, q, orderID, target); err != nil {
				return err
			}
		}

		out.Status = target
		return nil
	})
	if err != nil {
		log.Warn("admin decision failed", zap.Error(err))
		return out, err
	}

	log.Info("admin decision applied",
		zap.String("status", string(out.Status)), zap.Bool("replayed", out.Replayed))
	return out, nil
}

func (s *service) emit(ctx context.Context, q db.DBTX, topic string, o *order.Order, status order.Status, method payment.Method) error {
	return s.Outbox.Insert(ctx, q, topic, fmt.Sprint(o.ID), outbox.OrderEvent{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Status:      string(status),
		Method:      string(method),
		TotalAmount: o.TotalAmount,
		OccurredAt:  time.Now().UTC(),
	})
}
