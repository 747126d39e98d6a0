package outbox

import (
	"context"
	"encoding/json"
	"time"

	"bookstore-be/internal/db"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced    = "order.placed"
	EventOrderPaid      = "order.paid"
	EventOrderCancelled = "order.cancelled"
)

type Record struct {
	ID        int64           `json:"id"`
	EventID   string          `json:"event_id"`
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at"`
}

// OrderEvent is the payload of every order lifecycle event.
type OrderEvent struct {
	OrderID     uint      `json:"orderId"`
	UserID      uint      `json:"userId"`
	Status      string    `json:"status"`
	Method      string    `json:"method,omitempty"`
	TotalAmount int64     `json:"totalAmount"`
	OccurredAt  time.Time `json:"occurredAt"`
}

type Store interface {
	Insert(ctx context.Context, q db.DBTX, topic, key string, payload any) error
	FetchPending(ctx context.Context, q db.DBTX, limit int) ([]Record, error)
	MarkSent(ctx context.Context, q db.DBTX, id int64) error
}

type store struct{}

func NewStore() Store {
	return &store{}
}

// Insert records an event in the caller's transaction so it is published
// if and only if the surrounding state change commits.
func (s *store) Insert(ctx context.Context, q db.DBTX, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO outbox_events(event_id, topic, key, payload) VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), topic, key, data)
	return err
}

func (s *store) MarkSent(ctx context.Context, q db.DBTX, id int64) error {
	_, err := q.ExecContext(ctx, `UPDATE outbox_events SET sent_at=now() WHERE id=$1`, id)
	return err
}

func (s *store) FetchPending(ctx context.Context, q db.DBTX, limit int) ([]Record, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, event_id, topic, key, payload, created_at, sent_at FROM outbox_events WHERE sent_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &rec.Payload, &rec.CreatedAt, &rec.SentAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
