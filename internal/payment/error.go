package payment

import "errors"

var (
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrProviderRejected    = errors.New("payment provider rejected the request")
	ErrSessionNotFound     = errors.New("payment session not found")
	ErrInvalidCorrelation  = errors.New("payment session has no valid order correlation")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrInvalidWebhook      = errors.New("invalid webhook payload")

	ErrPaymentNotFound = errors.New("payment not found")
)
