package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resto-console/internal/reservation"
)

var ErrNoGateway = errors.New("order gateway is not configured")

type CreateRequest struct {
	Reservation string     `json:"reserva"`
	Lines       []LineItem `json:"productos"`
}

type UpdateRequest struct {
	Lines     []LineItem          `json:"productos"`
	CreatedAt reservation.Instant `json:"fecha_creacion"`
}

type Gateway interface {
	CreateOrderRecord(ctx context.Context, req CreateRequest) (*Record, error)
	UpdateOrderRecord(ctx context.Context, recordID string, req UpdateRequest) error
}

type Action string

const (
	ActionNone   Action = "none"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

type Result struct {
	Action   Action `json:"action"`
	RecordID string `json:"recordId,omitempty"`
	Lines    int    `json:"lines"`
}

type Composer struct {
	gateway Gateway
	now     func() time.Time
}

func NewComposer(gateway Gateway, now func() time.Time) *Composer {
	if now == nil {
		now = time.Now
	}
	return &Composer{gateway: gateway, now: now}
}

// Commit submits the draft for the selected reservation. An existing record
// for the reservation is updated in place; otherwise a new one is created.
// An empty selection is a no-op.
func (c *Composer) Commit(ctx context.Context, sel reservation.Selection, records []Record, draft Draft) (Result, error) {
	if sel.IsEmpty() {
		return Result{Action: ActionNone}, nil
	}
	if c == nil || c.gateway == nil {
		return Result{Action: ActionNone}, ErrNoGateway
	}

	lines := LineItems(draft)
	if existing, ok := FindRecord(records, sel.ID); ok {
		req := UpdateRequest{Lines: lines, CreatedAt: reservation.Instant{Time: c.now().UTC()}}
		if err := c.gateway.UpdateOrderRecord(ctx, existing.ID, req); err != nil {
			return Result{Action: ActionUpdate, RecordID: existing.ID}, fmt.Errorf("update order record %s: %w", existing.ID, err)
		}
		return Result{Action: ActionUpdate, RecordID: existing.ID, Lines: len(lines)}, nil
	}

	created, err := c.gateway.CreateOrderRecord(ctx, CreateRequest{Reservation: sel.ID, Lines: lines})
	if err != nil {
		return Result{Action: ActionCreate}, fmt.Errorf("create order record for reservation %s: %w", sel.ID, err)
	}
	res := Result{Action: ActionCreate, Lines: len(lines)}
	if created != nil {
		res.RecordID = created.ID
	}
	return res, nil
}
