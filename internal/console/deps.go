package console

import (
	"context"
	"time"

	"go.uber.org/zap"

	"resto-console/internal/modal"
	"resto-console/internal/order"
	"resto-console/internal/reservation"
)

// Backend is the slice of the restaurant API a session talks to.
type Backend interface {
	reservation.Gateway
	order.Gateway
	ListOrderRecords(ctx context.Context) ([]order.Record, error)
}

type CatalogSource interface {
	Catalog(ctx context.Context) (order.Catalog, error)
}

// Notifier receives every snapshot a session produces after a transition.
type Notifier interface {
	Notify(userID string, snap Snapshot)
}

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type Journal interface {
	Record(ctx context.Context, entry CommitEntry) error
}

type TicketArchive interface {
	ArchiveTicket(ctx context.Context, reservationID string, at time.Time, pdf []byte) (string, error)
	DeleteTickets(ctx context.Context, reservationID string) error
}

// Deps wires a session to its collaborators. Only Backend is required.
type Deps struct {
	Backend  Backend
	Catalog  CatalogSource
	Notifier Notifier
	Events   EventPublisher
	Journal  Journal
	Archive  TicketArchive
	Logger   *zap.Logger
	Clock    modal.Clock

	ReservationLimit  int
	SuppressionWindow time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = modal.SystemClock
	}
	if d.ReservationLimit <= 0 {
		d.ReservationLimit = 100
	}
	if d.SuppressionWindow <= 0 {
		d.SuppressionWindow = modal.DefaultSuppressionWindow
	}
	return d
}

// CommitEntry is one commit attempt as written to the journal.
type CommitEntry struct {
	SessionID     string
	UserID        string
	ReservationID string
	Action        order.Action
	RecordID      string
	Lines         int
	Total         float64
	Error         string
	CreatedAt     time.Time
}
