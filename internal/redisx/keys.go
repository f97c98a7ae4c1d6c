package redisx

import "time"

const (
	// Single-item read cache: item:{item_id} -> item JSON.
	// Deleted on every mutation that touches the item, including the
	// status flips done by order placement and cancellation.
	KeyItem = "item:%s"

	// Order status cache: order_status:{order_id} -> status string.
	KeyOrderStatus = "order_status:%s"

	// Event dedup for consumers: dedup:{service}:{event_id}.
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLItemCache   = 5 * time.Minute
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
