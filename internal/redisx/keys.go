package redisx

import "time"

const (
	// Session payload: session:{session_id} -> {"cart": [...], "flashes": [...]}
	KeySession = "session:%s"

	// Session that placed an order: order_session:{order_id} -> session_id
	KeyOrderSession = "order_session:%s"

	// Last observed outcome of an order: order_status:{order_id} -> status
	KeyOrderStatus = "order_status:%s"

	// Dedup webhook processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	// Bill payment references stay payable for days, keep links past that.
	TTLOrderLink   = 14 * 24 * time.Hour
	TTLOrderStatus = 14 * 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)
