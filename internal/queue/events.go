package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"resto-console/internal/reservation"
)

const (
	DefaultBackendEventsExchange = "resto.events"
	DefaultConsoleEventsExchange = "console.events"
	DefaultRefreshQueue          = "console.reservations.refresh"

	refreshDeadRK = "dead"
)

// Topology names the exchanges and queue the console uses.
type Topology struct {
	BackendExchange string
	ConsoleExchange string
	RefreshQueue    string
}

func (t Topology) withDefaults() Topology {
	if strings.TrimSpace(t.BackendExchange) == "" {
		t.BackendExchange = DefaultBackendEventsExchange
	}
	if strings.TrimSpace(t.ConsoleExchange) == "" {
		t.ConsoleExchange = DefaultConsoleEventsExchange
	}
	if strings.TrimSpace(t.RefreshQueue) == "" {
		t.RefreshQueue = DefaultRefreshQueue
	}
	return t
}

func (t Topology) deadLetterExchange() string {
	return t.RefreshQueue + ".dlx"
}

func (t Topology) deadLetterQueue() string {
	return t.RefreshQueue + ".dlq"
}

// consoleDeclarations is the console's broker topology: the console events
// exchange, and a refresh queue bound to every reservation event of the
// backend exchange, dead-lettering messages that exhaust their retries.
func consoleDeclarations(topo Topology) Declarations {
	return Declarations{
		Exchanges: []Exchange{
			{Name: topo.ConsoleExchange, Kind: amqp.ExchangeTopic},
			{Name: topo.BackendExchange, Kind: amqp.ExchangeTopic},
			{Name: topo.deadLetterExchange(), Kind: amqp.ExchangeDirect},
		},
		Queues: []Queue{
			{Name: topo.deadLetterQueue()},
			{Name: topo.RefreshQueue, DeadLetterExchange: topo.deadLetterExchange(), DeadLetterKey: refreshDeadRK},
		},
		Bindings: []Binding{
			{Queue: topo.deadLetterQueue(), Exchange: topo.deadLetterExchange(), Key: refreshDeadRK},
			// '#' also matches multi-segment keys such as 'reservation.status.updated'.
			{Queue: topo.RefreshQueue, Exchange: topo.BackendExchange, Key: "reservation.#"},
		},
	}
}

// EnsureConsoleTopology fills topology defaults and declares it on qc. A nil
// client only resolves the names.
func EnsureConsoleTopology(qc *Client, topo Topology) (Topology, error) {
	topo = topo.withDefaults()
	if qc == nil {
		return topo, nil
	}
	return topo, qc.Declare(consoleDeclarations(topo))
}

// ReservationEvent is the backend's reservation change notification.
type ReservationEvent struct {
	Type        string          `json:"type"`
	User        reservation.Ref `json:"usuario"`
	Reservation reservation.Ref `json:"reserva"`
}

// ParseReservationEvent decodes a backend event. Malformed bodies wrap
// ErrPermanent so the consumer does not retry them.
func ParseReservationEvent(body []byte) (ReservationEvent, error) {
	var evt ReservationEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return ReservationEvent{}, fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	evt.Type = strings.TrimSpace(evt.Type)
	if evt.Type == "" {
		return ReservationEvent{}, fmt.Errorf("%w: event type missing", ErrPermanent)
	}
	return evt, nil
}

// IsReservationEvent reports whether the event type belongs to reservations.
func (e ReservationEvent) IsReservationEvent() bool {
	return strings.HasPrefix(e.Type, "reservation.")
}

// Publisher publishes console events to one exchange.
type Publisher struct {
	client   *Client
	exchange string
}

func NewPublisher(client *Client, exchange string) *Publisher {
	if strings.TrimSpace(exchange) == "" {
		exchange = DefaultConsoleEventsExchange
	}
	return &Publisher{client: client, exchange: exchange}
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.PublishEvent(ctx, p.exchange, routingKey, payload)
}

// Refresher reloads console sessions after a backend change.
type Refresher interface {
	Refresh(ctx context.Context, userID string) (bool, error)
	RefreshAll(ctx context.Context) int
}

// ReservationRefreshHandler reloads the affected user's console when a
// reservation event arrives. Events without a user refresh every session.
func ReservationRefreshHandler(refresher Refresher, logger *zap.Logger) HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, body []byte) error {
		evt, err := ParseReservationEvent(body)
		if err != nil {
			return err
		}
		return ApplyReservationEvent(ctx, refresher, evt, logger)
	}
}

func ApplyReservationEvent(ctx context.Context, refresher Refresher, evt ReservationEvent, logger *zap.Logger) error {
	if !evt.IsReservationEvent() || refresher == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if evt.User.ID == "" {
		n := refresher.RefreshAll(ctx)
		logger.Info("reservation event refreshed all sessions", zap.String("type", evt.Type), zap.Int("sessions", n))
		return nil
	}
	refreshed, err := refresher.Refresh(ctx, evt.User.ID)
	if err != nil {
		return err
	}
	logger.Debug("reservation event handled",
		zap.String("type", evt.Type),
		zap.String("userId", evt.User.ID),
		zap.String("reservationId", evt.Reservation.ID),
		zap.Bool("refreshed", refreshed),
	)
	return nil
}
