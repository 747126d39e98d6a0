package redisx

import "time"

const (
	// Serialises callback legs for one provider session: lock:payment:session:{session_id}
	KeySessionLock = "lock:payment:session:%s"

	// Serialises admin decisions on one order: lock:order:{order_id}
	KeyOrderLock = "lock:order:%d"
)

var (
	TTLLock = 30 * time.Second
)
