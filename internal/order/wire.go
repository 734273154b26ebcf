package order

import (
	"sort"

	"resto-console/internal/reservation"
)

// UnitValue addresses one physical unit of a line on the wire.
type UnitValue struct {
	Index int    `json:"index"`
	Value string `json:"value"`
}

type LineItem struct {
	Product  reservation.Ref `json:"producto"`
	Quantity int             `json:"cantidad"`
	Doneness []UnitValue     `json:"termino"`
	Sides    []UnitValue     `json:"guarnicion"`
	Sauces   []UnitValue     `json:"salsa"`
}

// LineItems maps every draft entry to its wire shape.
func LineItems(d Draft) []LineItem {
	items := make([]LineItem, 0, len(d.Entries))
	for _, e := range d.Entries {
		items = append(items, LineItem{
			Product:  reservation.Ref{ID: e.ID},
			Quantity: e.Quantity,
			Doneness: toUnitValues(e.Doneness),
			Sides:    toUnitValues(e.Sides),
			Sauces:   toUnitValues(e.Sauces),
		})
	}
	return items
}

func toUnitValues(units []string) []UnitValue {
	out := make([]UnitValue, 0, len(units))
	for i, v := range units {
		out = append(out, UnitValue{Index: i, Value: v})
	}
	return out
}

// fromUnitValues places wire values by index. Entries outside 0..qty-1 are
// ignored; gaps are left empty so fillUnits can default them.
func fromUnitValues(values []UnitValue, qty int) []string {
	out := make([]string, qty)
	sorted := append([]UnitValue(nil), values...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	for _, uv := range sorted {
		if uv.Index < 0 || uv.Index >= qty {
			continue
		}
		out[uv.Index] = uv.Value
	}
	return out
}

// DraftFromLines seeds a draft from a submitted order record. Lines whose
// product is no longer in the catalog, or with a non-positive quantity, are
// skipped.
func DraftFromLines(catalog Catalog, lines []LineItem) Draft {
	entries := make([]Entry, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		product, ok := catalog.Lookup(line.Product.ID)
		if !ok {
			continue
		}
		if _, dup := seen[product.ID]; dup {
			continue
		}
		seen[product.ID] = struct{}{}
		entries = append(entries, newEntry(
			product,
			line.Quantity,
			fromUnitValues(line.Doneness, line.Quantity),
			fromUnitValues(line.Sides, line.Quantity),
			fromUnitValues(line.Sauces, line.Quantity),
		))
	}
	return Draft{Entries: entries}
}

type EntryView struct {
	ProductID string      `json:"productId"`
	Name      string      `json:"name"`
	Category  string      `json:"category"`
	UnitPrice float64     `json:"unitPrice"`
	Quantity  int         `json:"quantity"`
	Subtotal  float64     `json:"subtotal"`
	Doneness  []UnitValue `json:"termino"`
	Sides     []UnitValue `json:"guarnicion"`
	Sauces    []UnitValue `json:"salsa"`
}

type DraftView struct {
	Entries []EntryView `json:"entries"`
	Total   float64     `json:"total"`
}

func (d Draft) View() DraftView {
	entries := make([]EntryView, 0, len(d.Entries))
	for _, e := range d.Entries {
		entries = append(entries, EntryView{
			ProductID: e.ID,
			Name:      e.Name,
			Category:  e.Category,
			UnitPrice: e.Price,
			Quantity:  e.Quantity,
			Subtotal:  e.Subtotal,
			Doneness:  toUnitValues(e.Doneness),
			Sides:     toUnitValues(e.Sides),
			Sauces:    toUnitValues(e.Sauces),
		})
	}
	return DraftView{Entries: entries, Total: d.Total()}
}
