package handlers

import (
	"net/http"

	"resto-console/internal/console"
	"resto-console/internal/modal"
	"resto-console/pkg/response"
)

func (h *Handler) ConsoleShowModal(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := h.consoleSession(w, r)
	if !ok {
		return
	}
	kind, valid := modal.ParseKind(readPathString(r, "kind"))
	if !valid {
		h.fail(w, r, console.ValidationError("Unknown modal kind", nil))
		return
	}
	snap, err := sess.ShowModal(kind)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, snap)
}

func (h *Handler) ConsoleCloseModals(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := h.consoleSession(w, r)
	if !ok {
		return
	}
	snap, err := sess.CloseModals()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, snap)
}
