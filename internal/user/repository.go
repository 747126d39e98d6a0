package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"bookstore-be/internal/db"
	"bookstore-be/internal/logger"

	"go.uber.org/zap"
)

// ProfileStore reads user profile data needed by checkout.
type ProfileStore interface {
	GetAddress(ctx context.Context, q db.DBTX, userID uint) (*string, error)
}

type repository struct{}

func NewRepository() ProfileStore {
	return &repository{}
}

// GetAddress returns the user's saved shipping address, or nil when the
// profile has none. A blank address counts as none.
func (r *repository) GetAddress(ctx context.Context, q db.DBTX, userID uint) (*string, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetAddress"),
		zap.Uint("user_id", userID),
	)

	var addr sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT address
		FROM users
		WHERE id = $1
	`, userID).Scan(&addr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Info("user not found")
			return nil, ErrUserNotFound
		}
		log.Error("failed to fetch address", zap.Error(err))
		return nil, err
	}

	if !addr.Valid || strings.TrimSpace(addr.String) == "" {
		return nil, nil
	}

	a := strings.TrimSpace(addr.String)
	return &a, nil
}
