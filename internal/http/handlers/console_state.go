package handlers

import (
	"net/http"

	"resto-console/internal/console"
	"resto-console/internal/reservation"
	"resto-console/pkg/response"
)

type consoleSelectRequest struct {
	ID        string `json:"id"`
	PartySize int    `json:"partySize"`
	Date      string `json:"date"`
	Type      string `json:"type"`
}

// ConsoleState returns the caller's snapshot, loading reservations on first use.
func (h *Handler) ConsoleState(w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := h.consoleSession(w, r)
	if !ok {
		return
	}

	snap, err := sess.Snapshot()
	if err == nil && !snap.Loaded {
		snap, err = sess.Load(ctx)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, snap)
}

func (h *Handler) ConsoleLoadReservations(w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := h.consoleSession(w, r)
	if !ok {
		return
	}
	snap, err := sess.Load(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, snap)
}

func (h *Handler) ConsoleSelectReservation(w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := h.consoleSession(w, r)
	if !ok {
		return
	}

	var req consoleSelectRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, console.ValidationError("Invalid selection payload", err))
		return
	}

	snap, err := sess.Select(ctx, reservation.Selection{
		ID:          req.ID,
		PartySize:   req.PartySize,
		DisplayDate: req.Date,
		Type:        req.Type,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, snap)
}

func (h *Handler) ConsoleRemoveReservation(w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := h.consoleSession(w, r)
	if !ok {
		return
	}
	snap, err := sess.Remove(ctx, readPathString(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, snap)
}
