package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bookstore-be/internal/db"
	"bookstore-be/internal/logger"
	"bookstore-be/internal/product"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Reader interface {
	LoadActiveCart(ctx context.Context, q db.DBTX, userID uint) (*Snapshot, error)
	ClearItems(ctx context.Context, q db.DBTX, cartID uint) error
	ClearActiveCart(ctx context.Context, q db.DBTX, userID uint) error
	EnsureActiveCart(ctx context.Context, q db.DBTX, userID uint) (uint, error)
}

type reader struct {
	products product.Store
}

func NewReader(products product.Store) Reader {
	return &reader{products: products}
}

// LoadActiveCart locks the user's active cart row for the rest of the
// transaction and resolves every item against the product store.
func (r *reader) LoadActiveCart(ctx context.Context, q db.DBTX, userID uint) (*Snapshot, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "cart"),
		zap.String("method", "LoadActiveCart"),
		zap.Uint("user_id", userID),
	)

	var cartID uint
	err := q.QueryRowContext(ctx, `
		SELECT id
		FROM carts
		WHERE user_id = $1 AND status = 'active'
		FOR UPDATE
	`, userID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Info("no active cart")
			return nil, ErrNoActiveCart
		}
		log.Error("failed to lock cart", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFailedLoadCart, err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT product_id, quantity
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY product_id
	`, cartID)
	if err != nil {
		log.Error("failed to query cart items", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFailedLoadCart, err)
	}
	defer rows.Close()

	snap := &Snapshot{CartID: cartID, UserID: userID}
	var ids []uint
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.Quantity); err != nil {
			log.Error("failed to scan cart item", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrFailedLoadCart, err)
		}
		snap.Lines = append(snap.Lines, l)
		ids = append(ids, l.ProductID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedLoadCart, err)
	}

	if len(snap.Lines) == 0 {
		return snap, nil
	}

	products, err := r.products.GetByIDs(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedLoadCart, err)
	}

	for i := range snap.Lines {
		p, ok := products[snap.Lines[i].ProductID]
		if !ok {
			log.Warn("cart item references missing product", zap.Uint("product_id", snap.Lines[i].ProductID))
			return nil, fmt.Errorf("%w: %d", ErrProductNotFound, snap.Lines[i].ProductID)
		}
		snap.Lines[i].Name = p.Name
		snap.Lines[i].UnitPrice = p.Price
	}

	log.Debug("cart snapshot loaded", zap.Uint("cart_id", cartID), zap.Int("lines", len(snap.Lines)))
	return snap, nil
}

// ClearItems deletes all items of the cart. The cart itself stays active.
func (r *reader) ClearItems(ctx context.Context, q db.DBTX, cartID uint) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		logger.FromCtx(ctx).Error("failed to clear cart items",
			zap.Uint("cart_id", cartID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrFailedClearCart, err)
	}
	return nil
}

// ClearActiveCart empties whatever active cart the user has. A user without
// an active cart, or with an empty one, is not an error.
func (r *reader) ClearActiveCart(ctx context.Context, q db.DBTX, userID uint) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE cart_id IN (
			SELECT id FROM carts WHERE user_id = $1 AND status = 'active'
		)
	`, userID)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to clear active cart",
			zap.Uint("user_id", userID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrFailedClearCart, err)
	}
	return nil
}

// EnsureActiveCart returns the user's active cart id, creating the cart when
// there is none. Two concurrent creators converge on the same row.
func (r *reader) EnsureActiveCart(ctx context.Context, q db.DBTX, userID uint) (uint, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "cart"),
		zap.String("method", "EnsureActiveCart"),
		zap.Uint("user_id", userID),
	)

	id, err := r.activeCartID(ctx, q, userID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNoActiveCart) {
		return 0, err
	}

	err = q.QueryRowContext(ctx, `
		INSERT INTO carts (user_id, status)
		VALUES ($1, 'active')
		ON CONFLICT (user_id) WHERE status = 'active' DO NOTHING
		RETURNING id
	`, userID).Scan(&id)
	switch {
	case err == nil:
		log.Info("active cart created", zap.Uint("cart_id", id))
		return id, nil
	case errors.Is(err, sql.ErrNoRows):
		// lost the race; the winner's row is visible now
		return r.activeCartID(ctx, q, userID)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == PgUniqueViolation {
		return r.activeCartID(ctx, q, userID)
	}

	log.Error("failed to create cart", zap.Error(err))
	return 0, err
}

func (r *reader) activeCartID(ctx context.Context, q db.DBTX, userID uint) (uint, error) {
	var id uint
	err := q.QueryRowContext(ctx, `
		SELECT id FROM carts WHERE user_id = $1 AND status = 'active'
	`, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoActiveCart
	}
	return id, err
}
