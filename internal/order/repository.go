package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bookstore-be/internal/db"
	"bookstore-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	Insert(ctx context.Context, q db.DBTX, o *Order) error
	GetByID(ctx context.Context, q db.DBTX, orderID uint) (*Order, error)
	GetForUpdate(ctx context.Context, q db.DBTX, orderID uint) (*Order, error)
	GetItems(ctx context.Context, q db.DBTX, orderID uint) ([]Item, error)
	UpdateStatus(ctx context.Context, q db.DBTX, orderID uint, status Status) error
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

// Insert writes the order header and every line. IDs and timestamps are
// filled in on o.
func (r *repository) Insert(ctx context.Context, q db.DBTX, o *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Insert"),
		zap.Uint("user_id", o.UserID),
	)

	err := q.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, status, total_amount, shipping_address)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, o.UserID, o.Status, o.TotalAmount, o.ShippingAddress).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		log.Error("failed to insert order", zap.Error(err))
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		err := q.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_amount)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, o.ID, it.ProductID, it.ProductName, it.Quantity, it.UnitAmount).Scan(&it.ID)
		if err != nil {
			log.Error("failed to insert order item",
				zap.Uint("product_id", it.ProductID), zap.Error(err))
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	log.Info("order inserted", zap.Uint("order_id", o.ID), zap.Int64("total", o.TotalAmount))
	return nil
}

func (r *repository) GetByID(ctx context.Context, q db.DBTX, orderID uint) (*Order, error) {
	return r.get(ctx, q, orderID, false)
}

// GetForUpdate reads the order header and holds its row lock until the
// caller's transaction ends.
func (r *repository) GetForUpdate(ctx context.Context, q db.DBTX, orderID uint) (*Order, error) {
	return r.get(ctx, q, orderID, true)
}

func (r *repository) get(ctx context.Context, q db.DBTX, orderID uint, lock bool) (*Order, error) {
	query := `
		SELECT id, user_id, status, total_amount, shipping_address, created_at, updated_at
		FROM orders
		WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var o Order
	err := q.QueryRowContext(ctx, query, orderID).Scan(
		&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.ShippingAddress, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		logger.FromCtx(ctx).Error("failed to get order",
			zap.Uint("order_id", orderID), zap.Bool("lock", lock), zap.Error(err))
		return nil, err
	}
	return &o, nil
}

func (r *repository) GetItems(ctx context.Context, q db.DBTX, orderID uint) ([]Item, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_amount
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id
	`, orderID)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to query order items",
			zap.Uint("order_id", orderID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitAmount); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repository) UpdateStatus(ctx context.Context, q db.DBTX, orderID uint, status Status) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "UpdateStatus"),
		zap.Uint("order_id", orderID),
		zap.String("status", string(status)),
	)

	res, err := q.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, orderID)
	if err != nil {
		log.Error("failed to update order status", zap.Error(err))
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}

	log.Info("order status updated")
	return nil
}
