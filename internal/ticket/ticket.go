// Package ticket renders the kitchen ticket (comanda) for an order draft.
package ticket

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"resto-console/internal/order"
	"resto-console/internal/reservation"
)

type Line struct {
	Name     string
	Category string
	Quantity int
	Subtotal string
	Units    []Unit
}

// Unit is the customization of one physical unit.
type Unit struct {
	Doneness string
	Side     string
	Sauce    string
}

type Data struct {
	ReservationID string
	ReservationAt string
	PartySize     int
	Type          string
	PrintedAt     string
	Lines         []Line
	Total         string
}

func FromDraft(sel reservation.Selection, draft order.Draft, printedAt time.Time) Data {
	data := Data{
		ReservationID: sel.ID,
		ReservationAt: sel.DisplayDate,
		PartySize:     sel.PartySize,
		Type:          sel.Type,
		PrintedAt:     printedAt.Format("02/01/2006 15:04"),
		Total:         formatMoney(draft.Total()),
		Lines:         make([]Line, 0, len(draft.Entries)),
	}
	for _, e := range draft.Entries {
		line := Line{
			Name:     e.Name,
			Category: e.Category,
			Quantity: e.Quantity,
			Subtotal: formatMoney(e.Subtotal),
			Units:    make([]Unit, 0, e.Quantity),
		}
		for i := 0; i < e.Quantity; i++ {
			line.Units = append(line.Units, Unit{
				Doneness: unitAt(e.Doneness, i),
				Side:     unitAt(e.Sides, i),
				Sauce:    unitAt(e.Sauces, i),
			})
		}
		data.Lines = append(data.Lines, line)
	}
	return data
}

func unitAt(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

func formatMoney(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func sanitizeFilename(value string) string {
	clean := unsafeFilename.ReplaceAllString(value, "_")
	return strings.Trim(clean, "_")
}

// Filename is the download and archive name for a reservation's ticket.
func Filename(reservationID string) string {
	name := sanitizeFilename(reservationID)
	if name == "" {
		name = "borrador"
	}
	return "comanda-" + name + ".pdf"
}

func Render(data Data) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A5", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, "Comanda", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	if data.ReservationID != "" {
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("Reserva %s", data.ReservationID)), "", 1, "C", false, 0, "")
	} else {
		pdf.CellFormat(0, 5, "Sin reserva", "", 1, "C", false, 0, "")
	}
	if data.ReservationAt != "" {
		pdf.CellFormat(0, 5, tr(data.ReservationAt), "", 1, "C", false, 0, "")
	}
	if data.PartySize > 0 {
		pdf.CellFormat(0, 5, fmt.Sprintf("Personas: %d", data.PartySize), "", 1, "C", false, 0, "")
	}
	if data.Type != "" {
		pdf.CellFormat(0, 5, tr(data.Type), "", 1, "C", false, 0, "")
	}

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Productos", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	if len(data.Lines) == 0 {
		pdf.CellFormat(0, 5, tr("Sin productos"), "", 1, "L", false, 0, "")
	}
	for _, line := range data.Lines {
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("%dx %s", line.Quantity, line.Name)), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 8)
		for i, u := range line.Units {
			pdf.CellFormat(0, 4, tr(fmt.Sprintf("  #%d  %s / %s / %s", i+1, u.Doneness, u.Side, u.Sauce)), "", 1, "L", false, 0, "")
		}
		pdf.CellFormat(0, 4, fmt.Sprintf("Subtotal: %s", line.Subtotal), "", 1, "R", false, 0, "")
		pdf.Ln(1)
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total: %s", data.Total), "T", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 7)
	pdf.CellFormat(0, 5, fmt.Sprintf("Impreso: %s", data.PrintedAt), "", 1, "L", false, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
