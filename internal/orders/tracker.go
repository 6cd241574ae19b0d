package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-omise-storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
)

var ErrNoSession = errors.New("no session linked to order")

// Tracker keeps short-lived order state in Redis: which session placed an
// order, the last status observed for it, and which webhook events were
// already handled.
type Tracker struct {
	Redis   *redis.Client
	Service string
}

// Link remembers the session that placed orderID and marks the order CREATED.
func (t *Tracker) Link(ctx context.Context, orderID, sessionID string) error {
	_, err := t.Redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, fmt.Sprintf(redisx.KeyOrderSession, orderID), sessionID, redisx.TTLOrderLink)
		p.SetNX(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID), string(StatusCreated), redisx.TTLOrderStatus)
		return nil
	})
	return err
}

func (t *Tracker) SessionFor(ctx context.Context, orderID string) (string, error) {
	sid, err := t.Redis.Get(ctx, fmt.Sprintf(redisx.KeyOrderSession, orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoSession
	}
	return sid, err
}

// Status returns the last observed status, or CREATED when none is stored.
func (t *Tracker) Status(ctx context.Context, orderID string) (Status, error) {
	s, err := t.Redis.Get(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return StatusCreated, nil
	}
	if err != nil {
		return "", err
	}
	return Status(s), nil
}

// Advance moves orderID to `to` when CanTransition allows it. It returns the
// previous status and whether the move was applied. Re-observing the current
// status is not applied.
func (t *Tracker) Advance(ctx context.Context, orderID string, to Status) (from Status, applied bool, err error) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	err = t.Redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			cur = string(StatusCreated)
		case err != nil:
			return err
		}
		from = Status(cur)
		if !CanTransition(from, to) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, string(to), redisx.TTLOrderStatus)
			return nil
		})
		if err == nil {
			applied = true
		}
		return err
	}, key)
	return from, applied, err
}

// FirstDelivery reports whether eventID is seen for the first time.
func (t *Tracker) FirstDelivery(ctx context.Context, eventID string) (bool, error) {
	return redisx.MarkOnce(ctx, t.Redis, t.dedupKey(eventID), redisx.TTLDedup)
}

// Forget drops the dedup mark so a failed event can be processed again.
func (t *Tracker) Forget(ctx context.Context, eventID string) error {
	return t.Redis.Del(ctx, t.dedupKey(eventID)).Err()
}

func (t *Tracker) dedupKey(eventID string) string {
	return fmt.Sprintf(redisx.KeyDedup, t.Service, eventID)
}
