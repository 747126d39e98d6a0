package cart

import "errors"

var (
	// -- Resource State --
	ErrNoActiveCart    = errors.New("user has no active cart")
	ErrProductNotFound = errors.New("cart references a product that no longer exists")

	// -- Database & Operation Failures --
	ErrFailedLoadCart  = errors.New("failed to load cart")
	ErrFailedClearCart = errors.New("failed to clear cart")

	// -- Constants (External Systems) --
	PgUniqueViolation = "23505"
)
