package redisx

import "time"

const (
	// Cached order document: order:{order_number} -> JSON order
	KeyOrder = "order:%s"

	// Idempotency create order: idem:order:create:{idempotency_key} -> order_number
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Dedup processing: dedup:{scope}:{id} (id = event_id or checkout_request_id)
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderCache  = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
