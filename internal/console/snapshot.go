package console

import (
	"time"

	"resto-console/internal/modal"
	"resto-console/internal/order"
	"resto-console/internal/reservation"
	"resto-console/internal/selection"
)

// Snapshot is the full console state rendered by the UI. Version increases
// with every snapshot of a session so clients can drop out-of-order pushes.
type Snapshot struct {
	SessionID     string                    `json:"sessionId"`
	UserID        string                    `json:"userId"`
	Version       uint64                    `json:"version"`
	Loaded        bool                      `json:"loaded"`
	Stale         bool                      `json:"stale"`
	Reservations  []reservation.Reservation `json:"reservations"`
	HasPending    bool                      `json:"hasPending"`
	Selection     reservation.Selection     `json:"selection"`
	Rule          selection.Rule            `json:"rule,omitempty"`
	Modals        modal.View                `json:"modals"`
	Draft         order.DraftView           `json:"draft"`
	DraftPending  bool                      `json:"draftPending"`
	OrderRecordID string                    `json:"orderRecordId,omitempty"`
	Submitted     bool                      `json:"submitted"`
	TicketURL     string                    `json:"ticketUrl,omitempty"`
	GeneratedAt   time.Time                 `json:"generatedAt"`
}

func (s *Session) snapshotLocked() Snapshot {
	s.version++
	sel := s.store.Selection()
	snap := Snapshot{
		SessionID:    s.id,
		UserID:       s.userID,
		Version:      s.version,
		Loaded:       s.store.Loaded(),
		Stale:        s.stale,
		Reservations: s.store.Reservations(),
		HasPending:   s.store.HasPending(),
		Selection:    sel,
		Rule:         s.rule,
		Modals:       s.modals.View(),
		Draft:        s.draft.View(),
		DraftPending: s.hydrationPending,
		Submitted:    s.submitted,
		TicketURL:    s.ticketURL,
		GeneratedAt:  s.clock.Now().UTC(),
	}
	if rec, ok := order.FindRecord(s.records, sel.ID); ok {
		snap.OrderRecordID = rec.ID
	}
	return snap
}
