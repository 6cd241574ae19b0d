package orders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS webhook_events (
	event_id      TEXT PRIMARY KEY,
	event_key     TEXT NOT NULL,
	object_type   TEXT NOT NULL,
	charge_id     TEXT NOT NULL DEFAULT '',
	charge_status TEXT NOT NULL DEFAULT '',
	order_id      TEXT NOT NULL DEFAULT '',
	outcome       TEXT NOT NULL DEFAULT '',
	payload       JSONB,
	received_at   TIMESTAMPTZ NOT NULL,
	processed_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS webhook_events_order_id_idx ON webhook_events (order_id);
`

// Journal keeps an append-only record of gateway notifications for
// operators. It is never used to correlate orders; the gateway stays the
// source of truth for charges.
type Journal struct{ DB *pgxpool.Pool }

func (j *Journal) EnsureSchema(ctx context.Context) error {
	_, err := j.DB.Exec(ctx, journalSchema)
	return err
}

// Record stores ev. It reports false when the event id was already recorded.
func (j *Journal) Record(ctx context.Context, ev WebhookEvent) (bool, error) {
	var payload any
	if len(ev.Payload) > 0 {
		payload = []byte(ev.Payload)
	}
	ct, err := j.DB.Exec(ctx, `
		INSERT INTO webhook_events(event_id, event_key, object_type, charge_id, charge_status, order_id, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING`,
		ev.EventID, ev.Key, ev.ObjectType, ev.ChargeID, ev.ChargeStatus, ev.OrderID, payload, ev.ReceivedAt,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// MarkProcessed stamps the outcome the event led to.
func (j *Journal) MarkProcessed(ctx context.Context, eventID, orderID string, outcome Status) error {
	_, err := j.DB.Exec(ctx, `
		UPDATE webhook_events SET order_id = $2, outcome = $3, processed_at = now()
		WHERE event_id = $1`, eventID, orderID, string(outcome))
	return err
}

type JournalEntry struct {
	WebhookEvent
	Outcome     Status
	ProcessedAt *time.Time
}

// Recent lists the latest events, newest first. A non-empty orderID filters.
func (j *Journal) Recent(ctx context.Context, orderID string, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows pgx.Rows
		err  error
	)
	const cols = `SELECT event_id, event_key, object_type, charge_id, charge_status, order_id, outcome, received_at, processed_at
	              FROM webhook_events`
	if orderID != "" {
		rows, err = j.DB.Query(ctx, cols+` WHERE order_id = $1 ORDER BY received_at DESC LIMIT $2`, orderID, limit)
	} else {
		rows, err = j.DB.Query(ctx, cols+` ORDER BY received_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var outcome string
		if err := rows.Scan(&e.EventID, &e.Key, &e.ObjectType, &e.ChargeID, &e.ChargeStatus, &e.OrderID,
			&outcome, &e.ReceivedAt, &e.ProcessedAt); err != nil {
			return nil, err
		}
		e.Outcome = Status(outcome)
		out = append(out, e)
	}
	return out, rows.Err()
}
