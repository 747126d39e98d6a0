package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// Gateway is the hosted-payment provider as checkout sees it.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	// ExpireSession closes an open session so it can no longer be paid.
	ExpireSession(ctx context.Context, sessionID string) error
	VerifySignature(r *http.Request) error
}

const (
	metaOrderID = "order_id"
	metaUserID  = "user_id"
)

func (c Correlation) Metadata() map[string]string {
	return map[string]string{
		metaOrderID: strconv.FormatUint(uint64(c.OrderID), 10),
		metaUserID:  strconv.FormatUint(uint64(c.UserID), 10),
	}
}

// ParseCorrelation reads the order and user ids back out of session metadata.
func ParseCorrelation(meta map[string]string) (Correlation, error) {
	oid, err := strconv.ParseUint(meta[metaOrderID], 10, 64)
	if err != nil || oid == 0 {
		return Correlation{}, fmt.Errorf("%w: order_id=%q", ErrInvalidCorrelation, meta[metaOrderID])
	}
	uid, err := strconv.ParseUint(meta[metaUserID], 10, 64)
	if err != nil || uid == 0 {
		return Correlation{}, fmt.Errorf("%w: user_id=%q", ErrInvalidCorrelation, meta[metaUserID])
	}
	return Correlation{OrderID: uint(oid), UserID: uint(uid)}, nil
}

// ParseWebhookEvent decodes a provider event envelope of the form
// {"id": ..., "type": ..., "data": {"object": {"id": <session id>}}}.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var env struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID string `json:"id"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	if env.ID == "" || env.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", ErrInvalidWebhook)
	}
	return &WebhookEvent{
		ID:        env.ID,
		Type:      env.Type,
		SessionID: env.Data.Object.ID,
		Payload:   json.RawMessage(body),
	}, nil
}
