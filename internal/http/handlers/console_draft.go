package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"resto-console/internal/console"
	"resto-console/internal/order"
	"resto-console/pkg/response"
)

type consoleDraftRequest struct {
	Checked    []string       `json:"checked"`
	Quantities map[string]int `json:"quantities"`
}

type consoleUnitRequest struct {
	Value string `json:"value"`
}

type consoleCommitResponse struct {
	Result order.Result     `json:"result"`
	State  console.Snapshot `json:"state"`
}

func (h *Handler) ConsoleCatalog(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.consoleSession(w, r); !ok {
		return
	}
	if h.Catalog == nil {
		h.fail(w, r, console.UpstreamError("Product catalog is unavailable", nil))
		return
	}
	products, err := h.Catalog.Products(r.Context())
	if err != nil {
		h.fail(w, r, console.UpstreamError("Product catalog is unavailable", err))
		return
	}
	response.Success(w, products)
}

func (h *Handler) ConsoleBuildDraft(w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := h.consoleSession(w, r)
	if !ok {
		return
	}

	var req consoleDraftRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, console.ValidationError("Invalid draft payload", err))
		return
	}

	snap, err := sess.BuildDraft(ctx, req.Checked, req.Quantities)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, snap)
}

func (h *Handler) ConsoleSetUnit(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := h.consoleSession(w, r)
	if !ok {
		return
	}

	index, err := readPathInt(r, "index")
	if err != nil {
		h.fail(w, r, console.ValidationError("Unit index must be a number", err))
		return
	}
	var req consoleUnitRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, console.ValidationError("Invalid customization payload", err))
		return
	}

	snap, err := sess.SetUnit(readPathString(r, "productId"), readPathString(r, "axis"), index, req.Value)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, snap)
}

func (h *Handler) ConsoleCommit(w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := h.consoleSession(w, r)
	if !ok {
		return
	}
	result, snap, err := sess.Commit(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, consoleCommitResponse{Result: result, State: snap})
}

func (h *Handler) ConsoleTicket(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := h.consoleSession(w, r)
	if !ok {
		return
	}
	pdf, filename, err := sess.Ticket()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
