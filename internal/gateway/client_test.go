package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"resto-console/internal/order"
	"resto-console/internal/reservation"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWithHTTPClient(srv.URL+"/", srv.Client())
}

func TestListReservationsForwardsTokenAndLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/reservas" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("limite"); got != "50" {
			t.Errorf("expected limite=50, got %q", got)
		}
		if got := r.Header.Get("x-token"); got != "tok" {
			t.Errorf("expected x-token header, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("expected bearer header, got %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != userAgent {
			t.Errorf("unexpected user agent %q", got)
		}
		_, _ = io.WriteString(w, `{"reservas":[{"_id":"r1","resest":"Pendiente","usuario":{"_id":"u1"}}]}`)
	})

	list, err := client.ListReservations(WithToken(context.Background(), " tok "), 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "r1" || list[0].User.ID != "u1" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestListReservationsEmptyPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-token") != "" {
			t.Errorf("no token must be sent without one in context")
		}
		_, _ = io.WriteString(w, `{}`)
	})
	list, err := client.ListReservations(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", list)
	}
}

func TestListReservationsSkipsUnreadableRecords(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"reservas":[
			{"_id":"A","fecha":"2024-01-01T12:00","resest":"Pendiente","usuario":"u1"},
			{"_id":"B","fecha":"01/02/2024 19:00","usuario":"u2"},
			{"_id":"C","fecha":"2024-01-03T20:00","personas":"dos","usuario":"u1"}
		]}`)
	}).WithLogger(zap.New(core))

	list, err := client.ListReservations(context.Background(), 10)
	if err != nil {
		t.Fatalf("one bad record must not fail the list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "A" || !list[0].IsPending() {
		t.Fatalf("expected only A, got %+v", list)
	}
	skipped := logs.FilterMessage("skipping unreadable backend record").All()
	if len(skipped) != 2 {
		t.Fatalf("expected 2 skipped records, got %d", len(skipped))
	}
	if id := skipped[0].ContextMap()["id"]; id != "B" {
		t.Fatalf("expected B to be reported, got %v", id)
	}
}

func TestListOrderRecordsSkipsUnreadableRecords(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"menureservas":[
			{"_id":"m1","reserva":"R1","usuario":"u1","fecha_creacion":"ayer"},
			{"_id":"m2","reserva":"R2","usuario":"u1","fecha_creacion":"2024-01-01T10:00:00Z"}
		]}`)
	})
	records, err := client.ListOrderRecords(context.Background())
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(records) != 1 || records[0].ID != "m2" {
		t.Fatalf("expected only m2, got %+v", records)
	}
}

func TestStatusErrorMessage(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "msg field", status: http.StatusUnauthorized, body: `{"ok":false,"msg":"Token no válido"}`, want: "Token no válido"},
		{name: "message field", status: http.StatusBadRequest, body: `{"message":"bad"}`, want: "bad"},
		{name: "plain text", status: http.StatusInternalServerError, body: "kaput", want: "kaput"},
		{name: "empty body", status: http.StatusNotFound, body: "", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			err := client.DeleteReservation(context.Background(), "r1")
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("expected StatusError, got %v", err)
			}
			if se.StatusCode != tc.status || se.Message != tc.want {
				t.Fatalf("unexpected error %+v", se)
			}
			if IsNotFound(err) != (tc.status == http.StatusNotFound) {
				t.Fatalf("IsNotFound mismatch for %d", tc.status)
			}
		})
	}
}

func TestCreateOrderRecordResponseShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "wrapped", body: `{"ok":true,"menureserva":{"_id":"m1","reserva":"R1"}}`, want: "m1"},
		{name: "bare", body: `{"_id":"m2","reserva":{"_id":"R1"}}`, want: "m2"},
		{name: "empty", body: ``, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/menureservas" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("missing json content type")
				}
				var req struct {
					Reserva   string           `json:"reserva"`
					Productos []map[string]any `json:"productos"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("decode body: %v", err)
				}
				if req.Reserva != "R1" || len(req.Productos) != 1 || req.Productos[0]["producto"] != "p1" {
					t.Errorf("unexpected body %+v", req)
				}
				w.WriteHeader(http.StatusCreated)
				_, _ = io.WriteString(w, tc.body)
			})

			rec, err := client.CreateOrderRecord(context.Background(), order.CreateRequest{
				Reservation: "R1",
				Lines:       []order.LineItem{{Product: reservation.Ref{ID: "p1"}, Quantity: 1}},
			})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if rec == nil || rec.ID != tc.want {
				t.Fatalf("expected record id %q, got %+v", tc.want, rec)
			}
		})
	}
}

func TestUpdateOrderRecord(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/menureservas/m1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["fecha_creacion"] != "2024-05-01T10:30:00Z" {
			t.Errorf("unexpected fecha_creacion %v", body["fecha_creacion"])
		}
		w.WriteHeader(http.StatusNoContent)
	})
	err := client.UpdateOrderRecord(context.Background(), "m1", order.UpdateRequest{CreatedAt: reservation.Instant{Time: at}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestListOrderRecordsAndProducts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/menureservas":
			_, _ = io.WriteString(w, `{"menureservas":[{"_id":"m1","reserva":{"_id":"R1"},"usuario":"u1","productos":[{"producto":{"_id":"p1"},"cantidad":2}]}]}`)
		case "/productos":
			_, _ = io.WriteString(w, `{"productos":[{"_id":"p1","nombre":"Bife","categoria":"Carnes","precio":12.5}]}`)
		default:
			http.NotFound(w, r)
		}
	})

	records, err := client.ListOrderRecords(context.Background())
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(records) != 1 || records[0].Reservation.ID != "R1" || records[0].Lines[0].Product.ID != "p1" {
		t.Fatalf("unexpected records %+v", records)
	}

	products, err := client.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("products: %v", err)
	}
	if len(products) != 1 || products[0].Price != 12.5 || products[0].Name != "Bife" {
		t.Fatalf("unexpected products %+v", products)
	}
}

func TestMissingBaseURL(t *testing.T) {
	if _, err := New("", 0).ListProducts(context.Background()); !errors.Is(err, ErrNoBaseURL) {
		t.Fatalf("expected ErrNoBaseURL, got %v", err)
	}
}
