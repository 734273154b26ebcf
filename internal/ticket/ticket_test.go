package ticket

import (
	"bytes"
	"testing"
	"time"

	"resto-console/internal/order"
	"resto-console/internal/reservation"
)

func TestFilename(t *testing.T) {
	cases := map[string]string{
		"65a1b2":    "comanda-65a1b2.pdf",
		"":          "comanda-borrador.pdf",
		"../etc/pw": "comanda-etc_pw.pdf",
	}
	for in, want := range cases {
		if got := Filename(in); got != want {
			t.Fatalf("Filename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFromDraftExpandsUnits(t *testing.T) {
	catalog := order.NewCatalog([]order.Product{{ID: "steak", Name: "Bife de chorizo", Category: "Carnes", Price: 12.5}})
	draft := order.BuildDraft(catalog, []string{"steak"}, map[string]int{"steak": 2}, order.Draft{})
	draft, _ = draft.SetUnit("steak", order.Side, 1, "Papas")

	sel := reservation.Selection{ID: "R1", PartySize: 4, DisplayDate: "01/01/2024 12:00", Type: "Resto"}
	data := FromDraft(sel, draft, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC))

	if data.Total != "$25.00" || data.PrintedAt != "01/01/2024 11:00" {
		t.Fatalf("unexpected header %+v", data)
	}
	if len(data.Lines) != 1 || len(data.Lines[0].Units) != 2 {
		t.Fatalf("unexpected lines %+v", data.Lines)
	}
	if u := data.Lines[0].Units[1]; u.Side != "Papas" || u.Doneness != order.DefaultDoneness || u.Sauce != order.DefaultSauce {
		t.Fatalf("unexpected unit %+v", u)
	}

	pdf, err := Render(data)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("expected a PDF document")
	}
}
