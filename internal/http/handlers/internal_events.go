package handlers

import (
	"io"
	"net/http"

	"resto-console/internal/console"
	"resto-console/internal/queue"
	"resto-console/pkg/response"
)

// InternalReservationEvent accepts the same payload as the reservation events
// queue, for backends that notify over HTTP instead of the message bus.
func (h *Handler) InternalReservationEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, console.ValidationError("Invalid event payload", err))
		return
	}
	evt, err := queue.ParseReservationEvent(body)
	if err != nil {
		h.fail(w, r, console.ValidationError("Invalid event payload", err))
		return
	}
	if h.Sessions == nil {
		response.Success(w, map[string]any{"accepted": false})
		return
	}
	if err := queue.ApplyReservationEvent(r.Context(), h.Sessions, evt, h.Logger); err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, map[string]any{"accepted": evt.IsReservationEvent()})
}
