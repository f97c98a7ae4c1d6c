package orders

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepo records the order event stream into order_events. The
// event_id unique index makes Record idempotent under redelivery.
type AuditRepo struct{ DB *pgxpool.Pool }

func (r *AuditRepo) Record(ctx context.Context, env Envelope) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO order_events(event_id, order_id, event_type, payload, occurred_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (event_id) DO NOTHING`,
		env.EventID, env.OrderID, env.EventType, env.Payload, env.OccurredAt)
	return err
}
