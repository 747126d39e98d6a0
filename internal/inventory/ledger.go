package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"bookstore-be/internal/db"
	"bookstore-be/internal/logger"

	"go.uber.org/zap"
)

// Ledger owns per-product stock. Every method runs on the caller's
// transaction; the ledger never opens one itself.
type Ledger interface {
	CheckAndReserve(ctx context.Context, q db.DBTX, productID uint, qty int) (Reservation, *Shortage, error)
	Apply(ctx context.Context, q db.DBTX, r Reservation) error
	Release(ctx context.Context, q db.DBTX, productID uint, qty int) error
	ReserveAll(ctx context.Context, q db.DBTX, items []Item) ([]Reservation, []Shortage, error)
}

type ledger struct{}

func NewLedger() Ledger {
	return &ledger{}
}

// CheckAndReserve locks the product's stock row and reports whether qty can
// be taken. It does not mutate stock.
func (l *ledger) CheckAndReserve(ctx context.Context, q db.DBTX, productID uint, qty int) (Reservation, *Shortage, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "inventory"),
		zap.String("method", "CheckAndReserve"),
		zap.Uint("product_id", productID),
		zap.Int("qty", qty),
	)

	if qty <= 0 {
		return Reservation{}, nil, ErrInvalidQuantity
	}

	var available int
	err := q.QueryRowContext(ctx, `
		SELECT quantity
		FROM inventory
		WHERE product_id = $1
		FOR UPDATE
	`, productID).Scan(&available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("no inventory row")
			return Reservation{}, nil, fmt.Errorf("%w: %d", ErrProductNotFound, productID)
		}
		log.Error("failed to lock inventory row", zap.Error(err))
		return Reservation{}, nil, err
	}

	if available < qty {
		log.Info("insufficient stock", zap.Int("available", available))
		return Reservation{}, &Shortage{ProductID: productID, Requested: qty, Available: available}, nil
	}

	return Reservation{ProductID: productID, Quantity: qty}, nil, nil
}

// Apply performs the decrement for a reservation. The guard in the WHERE
// clause keeps stock non-negative even if the row lock was lost.
func (l *ledger) Apply(ctx context.Context, q db.DBTX, r Reservation) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "inventory"),
		zap.String("method", "Apply"),
		zap.Uint("product_id", r.ProductID),
		zap.Int("qty", r.Quantity),
	)

	if r.Quantity <= 0 {
		return ErrInvalidQuantity
	}

	res, err := q.ExecContext(ctx, `
		UPDATE inventory
		SET quantity = quantity - $1, updated_at = NOW()
		WHERE product_id = $2 AND quantity >= $1
	`, r.Quantity, r.ProductID)
	if err != nil {
		log.Error("failed to decrement stock", zap.Error(err))
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		log.Error("stock decrement affected no rows")
		return fmt.Errorf("%w: product %d", ErrStockInvariant, r.ProductID)
	}

	return nil
}

// Release adds qty back to the product's stock.
func (l *ledger) Release(ctx context.Context, q db.DBTX, productID uint, qty int) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "inventory"),
		zap.String("method", "Release"),
		zap.Uint("product_id", productID),
		zap.Int("qty", qty),
	)

	if qty <= 0 {
		return ErrInvalidQuantity
	}

	res, err := q.ExecContext(ctx, `
		UPDATE inventory
		SET quantity = quantity + $1, updated_at = NOW()
		WHERE product_id = $2
	`, qty, productID)
	if err != nil {
		log.Error("failed to restock", zap.Error(err))
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrProductNotFound, productID)
	}

	log.Info("stock released")
	return nil
}

// ReserveAll checks every item in ascending product id order so concurrent
// checkouts acquire row locks in the same sequence. It does not stop at the
// first shortage: the caller gets the full list.
func (l *ledger) ReserveAll(ctx context.Context, q db.DBTX, items []Item) ([]Reservation, []Shortage, error) {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ProductID < sorted[j].ProductID
	})

	reservations := make([]Reservation, 0, len(sorted))
	var shortages []Shortage

	for _, it := range sorted {
		res, short, err := l.CheckAndReserve(ctx, q, it.ProductID, it.Quantity)
		if err != nil {
			return nil, nil, err
		}
		if short != nil {
			shortages = append(shortages, *short)
			continue
		}
		reservations = append(reservations, res)
	}

	return reservations, shortages, nil
}
