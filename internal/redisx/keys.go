package redisx

import "time"

const (
	// Dedup payment callback: dedup:{provider}:{id} (id = pf_payment_id / capture id)
	KeyDedup = "dedup:%s:%s"

	// Cache status order: order_status:{order_id} -> "pending" | "paid" | ...
	KeyOrderStatus = "order_status:%s"
)

var (
	TTLDedup       = 48 * time.Hour
	TTLStatusCache = 5 * time.Minute
)
