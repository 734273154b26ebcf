package console

import "time"

const (
	RoutingOrderCommitted     = "console.order.committed"
	RoutingReservationRemoved = "console.reservation.removed"
)

type OrderCommittedEvent struct {
	Type          string    `json:"type"`
	UserID        string    `json:"userId"`
	ReservationID string    `json:"reservationId"`
	RecordID      string    `json:"recordId,omitempty"`
	Action        string    `json:"action"`
	Lines         int       `json:"lines"`
	Total         float64   `json:"total"`
	At            time.Time `json:"at"`
}

type ReservationRemovedEvent struct {
	Type          string    `json:"type"`
	UserID        string    `json:"userId"`
	ReservationID string    `json:"reservationId"`
	At            time.Time `json:"at"`
}
