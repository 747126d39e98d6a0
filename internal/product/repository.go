package product

import (
	"context"

	"bookstore-be/internal/db"
	"bookstore-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Store resolves authoritative product names and prices in one batch.
// Catalog CRUD lives elsewhere.
type Store interface {
	GetByIDs(ctx context.Context, q db.DBTX, productIDs []uint) (map[uint]Product, error)
}

type repository struct{}

func NewRepository() Store {
	return &repository{}
}

// GetByIDs loads every requested product in one round trip. Missing ids are
// simply absent from the returned map; callers decide whether that is fatal.
func (r *repository) GetByIDs(ctx context.Context, q db.DBTX, productIDs []uint) (map[uint]Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetByIDs"),
		zap.Int("count", len(productIDs)),
	)

	out := make(map[uint]Product, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	ids := make([]int64, len(productIDs))
	for i, id := range productIDs {
		ids[i] = int64(id)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, name, price
		FROM products
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		log.Error("failed to query products", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price); err != nil {
			log.Error("failed to scan product row", zap.Error(err))
			return nil, err
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
