package domain

import "time"

// EventKind names a lifecycle event forwarded to the notifier.
type EventKind string

const (
	EventOTPRequested       EventKind = "otp.requested"
	EventOrderCreated       EventKind = "order.created"
	EventOrderStatusChanged EventKind = "order.status_changed"
	EventOrderCancelled     EventKind = "order.cancelled"
	EventOrderRefunded      EventKind = "order.refunded"
)

// Event is delivered at least once, or not at all; nothing in the core depends on it arriving.
type Event struct {
	Kind       EventKind         `json:"kind"`
	SubjectID  string            `json:"subject_id,omitempty"`
	OrderID    string            `json:"order_id,omitempty"`
	Payload    map[string]string `json:"payload,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
