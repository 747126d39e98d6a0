package payment

import (
	"context"
	"database/sql"
	"errors"

	"bookstore-be/internal/db"
	"bookstore-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, q db.DBTX, p *Payment) error
	GetByOrder(ctx context.Context, q db.DBTX, orderID uint) (*Payment, error)
	SetSession(ctx context.Context, q db.DBTX, orderID uint, sessionID string) error
	UpdateStatusByOrder(ctx context.Context, q db.DBTX, orderID uint, status Status) error

	SaveWebhook(ctx context.Context, q db.DBTX, provider string, evt *WebhookEvent) (webhookID int64, isDuplicate bool, err error)
	MarkWebhookProcessed(ctx context.Context, q db.DBTX, webhookID int64) error
	MarkWebhookFailed(ctx context.Context, q db.DBTX, webhookID int64, reason string) error
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

func (r *repository) Create(ctx context.Context, q db.DBTX, p *Payment) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreatePayment"),
		zap.Uint("order_id", p.OrderID),
	)

	err := q.QueryRowContext(ctx, `
		INSERT INTO payments (order_id, user_id, method, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, p.OrderID, p.UserID, p.Method, p.Amount, p.Status).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		log.Error("failed to insert payment", zap.Error(err))
		return err
	}
	return nil
}

func (r *repository) GetByOrder(ctx context.Context, q db.DBTX, orderID uint) (*Payment, error) {
	var p Payment
	var session sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT id, order_id, user_id, method, amount, status, provider_session_id, created_at, updated_at
		FROM payments
		WHERE order_id = $1
	`, orderID).Scan(
		&p.ID, &p.OrderID, &p.UserID, &p.Method, &p.Amount, &p.Status, &session, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		logger.FromCtx(ctx).Error("failed to get payment", zap.Uint("order_id", orderID), zap.Error(err))
		return nil, err
	}
	if session.Valid {
		p.ProviderSessionID = &session.String
	}
	return &p, nil
}

// SetSession records the provider session for the order's payment,
// replacing any earlier session from a previous attempt. Only a pending
// payment accepts a session; otherwise ErrPaymentNotFound is returned.
func (r *repository) SetSession(ctx context.Context, q db.DBTX, orderID uint, sessionID string) error {
	return r.exec(ctx, q, "SetSession", orderID, `
		UPDATE payments
		SET provider_session_id = $1, updated_at = NOW()
		WHERE order_id = $2 AND status = 'pending'
	`, sessionID, orderID)
}

func (r *repository) UpdateStatusByOrder(ctx context.Context, q db.DBTX, orderID uint, status Status) error {
	return r.exec(ctx, q, "UpdateStatusByOrder", orderID, `
		UPDATE payments
		SET status = $1, updated_at = NOW()
		WHERE order_id = $2
	`, status, orderID)
}

func (r *repository) exec(ctx context.Context, q db.DBTX, method string, orderID uint, query string, args ...any) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", method),
		zap.Uint("order_id", orderID),
	)

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("payment update failed", zap.Error(err))
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// SaveWebhook stores a provider event once. A redelivery of an event that was
// already processed reports isDuplicate; a redelivery of one that failed
// returns the existing id so it can be retried.
func (r *repository) SaveWebhook(ctx context.Context, q db.DBTX, provider string, evt *WebhookEvent) (int64, bool, error) {
	const query = `
	INSERT INTO payment_webhooks (
		provider,
		event_id,
		event_type,
		session_id,
		payload
	)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (provider, event_id)
	DO UPDATE SET payload = EXCLUDED.payload
	WHERE payment_webhooks.processed_at IS NULL
	RETURNING id;
	`

	var id int64
	err := q.QueryRowContext(ctx, query,
		provider,
		evt.ID,
		evt.Type,
		evt.SessionID,
		[]byte(evt.Payload),
	).Scan(&id)
	if err != nil {
		// Duplicate webhook → idempotent success
		if errors.Is(err, sql.ErrNoRows) {
			return 0, true, nil
		}
		logger.FromCtx(ctx).Error("failed to save webhook",
			zap.String("event_id", evt.ID), zap.Error(err))
		return 0, false, err
	}

	return id, false, nil
}

func (r *repository) MarkWebhookProcessed(ctx context.Context, q db.DBTX, webhookID int64) error {
	_, err := q.ExecContext(ctx, `
	UPDATE payment_webhooks
	SET processed_at = now(), process_error = NULL
	WHERE id = $1;
	`, webhookID)
	return err
}

func (r *repository) MarkWebhookFailed(ctx context.Context, q db.DBTX, webhookID int64, reason string) error {
	_, err := q.ExecContext(ctx, `
	UPDATE payment_webhooks
	SET process_error = $2
	WHERE id = $1;
	`, webhookID, reason)
	return err
}
