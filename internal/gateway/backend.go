package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"resto-console/internal/order"
	"resto-console/internal/reservation"
)

func (c *Client) ListReservations(ctx context.Context, limit int) ([]reservation.Reservation, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limite", strconv.Itoa(limit))
	}
	var payload struct {
		Reservas []json.RawMessage `json:"reservas"`
	}
	if err := c.do(ctx, http.MethodGet, "/reservas", query, nil, &payload); err != nil {
		return nil, err
	}
	return decodeEach[reservation.Reservation](c, "reservas", payload.Reservas), nil
}

func (c *Client) DeleteReservation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/reservas/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ListOrderRecords(ctx context.Context) ([]order.Record, error) {
	var payload struct {
		Records []json.RawMessage `json:"menureservas"`
	}
	if err := c.do(ctx, http.MethodGet, "/menureservas", nil, nil, &payload); err != nil {
		return nil, err
	}
	return decodeEach[order.Record](c, "menureservas", payload.Records), nil
}

// decodeEach decodes list items one at a time. An item the console cannot
// read (an unknown timestamp layout, a wrong field type) is logged and
// skipped so the rest of the list still loads.
func decodeEach[T any](c *Client, collection string, raw []json.RawMessage) []T {
	out := make([]T, 0, len(raw))
	for i, item := range raw {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			c.logger.Warn("skipping unreadable backend record",
				zap.String("collection", collection),
				zap.Int("index", i),
				zap.String("id", rawID(item)),
				zap.Error(err),
			)
			continue
		}
		out = append(out, v)
	}
	return out
}

func rawID(item json.RawMessage) string {
	var doc struct {
		ID any `json:"_id"`
	}
	if json.Unmarshal(item, &doc) != nil || doc.ID == nil {
		return ""
	}
	return fmt.Sprint(doc.ID)
}

// CreateOrderRecord accepts either `{menureserva: {...}}` or the bare record
// as the response body.
func (c *Client) CreateOrderRecord(ctx context.Context, req order.CreateRequest) (*order.Record, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/menureservas", nil, req, &raw); err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return &order.Record{}, nil
	}

	var wrapped struct {
		Record *order.Record `json:"menureserva"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Record != nil {
		return wrapped.Record, nil
	}
	var record order.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode created order record: %w", err)
	}
	return &record, nil
}

func (c *Client) UpdateOrderRecord(ctx context.Context, recordID string, req order.UpdateRequest) error {
	return c.do(ctx, http.MethodPut, "/menureservas/"+url.PathEscape(recordID), nil, req, nil)
}

func (c *Client) ListProducts(ctx context.Context) ([]order.Product, error) {
	var payload struct {
		Productos []order.Product `json:"productos"`
	}
	if err := c.do(ctx, http.MethodGet, "/productos", nil, nil, &payload); err != nil {
		return nil, err
	}
	if payload.Productos == nil {
		payload.Productos = []order.Product{}
	}
	return payload.Productos, nil
}
