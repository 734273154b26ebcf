package order

import (
	"errors"
	"strings"
)

type Axis string

const (
	Doneness Axis = "termino"
	Side     Axis = "guarnicion"
	Sauce    Axis = "salsa"
)

const (
	DefaultDoneness = "3/4"
	DefaultSide     = "Ensalada"
	DefaultSauce    = "Fileto"
)

var (
	ErrEntryNotFound  = errors.New("product is not in the draft")
	ErrUnitOutOfRange = errors.New("unit index out of range")
	ErrEmptyValue     = errors.New("customization value is required")
	ErrUnknownAxis    = errors.New("unknown customization axis")
)

func ParseAxis(value string) (Axis, bool) {
	switch Axis(strings.ToLower(strings.TrimSpace(value))) {
	case Doneness:
		return Doneness, true
	case Side:
		return Side, true
	case Sauce:
		return Sauce, true
	}
	return "", false
}

func (a Axis) Default() string {
	switch a {
	case Doneness:
		return DefaultDoneness
	case Side:
		return DefaultSide
	case Sauce:
		return DefaultSauce
	}
	return ""
}

// Entry is one draft line. Each customization slice has exactly Quantity
// values, one per physical unit.
type Entry struct {
	Product
	Quantity int
	Subtotal float64
	Doneness []string
	Sides    []string
	Sauces   []string
}

func (e Entry) Units(axis Axis) []string {
	switch axis {
	case Doneness:
		return e.Doneness
	case Side:
		return e.Sides
	case Sauce:
		return e.Sauces
	}
	return nil
}

// Draft is the in-progress order for the selected reservation.
type Draft struct {
	Entries []Entry
}

func (d Draft) Find(productID string) (Entry, bool) {
	for _, e := range d.Entries {
		if e.ID == productID {
			return e, true
		}
	}
	return Entry{}, false
}

func (d Draft) IsEmpty() bool {
	return len(d.Entries) == 0
}

func (d Draft) Total() float64 {
	var total float64
	for _, e := range d.Entries {
		total = round2(total + e.Subtotal)
	}
	return total
}

// BuildDraft rebuilds the draft from the current checkbox and quantity
// snapshot. Checked ids are visited in order and deduplicated; ids with a
// non-positive quantity or missing from the catalog are dropped. Customization
// already present in existing is carried over by unit index and every other
// unit gets the axis default.
func BuildDraft(catalog Catalog, checked []string, quantities map[string]int, existing Draft) Draft {
	seen := make(map[string]struct{}, len(checked))
	entries := make([]Entry, 0, len(checked))
	for _, raw := range checked {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		qty := quantities[id]
		if qty <= 0 {
			continue
		}
		product, ok := catalog.Lookup(id)
		if !ok {
			continue
		}
		prior, _ := existing.Find(id)
		entries = append(entries, newEntry(product, qty, prior.Doneness, prior.Sides, prior.Sauces))
	}
	return Draft{Entries: entries}
}

func newEntry(product Product, qty int, doneness, sides, sauces []string) Entry {
	return Entry{
		Product:  product,
		Quantity: qty,
		Subtotal: round2(float64(qty) * product.Price),
		Doneness: fillUnits(doneness, qty, DefaultDoneness),
		Sides:    fillUnits(sides, qty, DefaultSide),
		Sauces:   fillUnits(sauces, qty, DefaultSauce),
	}
}

func fillUnits(prior []string, qty int, fallback string) []string {
	out := make([]string, qty)
	for i := range out {
		if i < len(prior) && strings.TrimSpace(prior[i]) != "" {
			out[i] = prior[i]
			continue
		}
		out[i] = fallback
	}
	return out
}

// SetUnit returns a copy of the draft with one unit of one entry customized.
func (d Draft) SetUnit(productID string, axis Axis, index int, value string) (Draft, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return d, ErrEmptyValue
	}
	if axis.Default() == "" {
		return d, ErrUnknownAxis
	}

	pos := -1
	for i, e := range d.Entries {
		if e.ID == productID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return d, ErrEntryNotFound
	}
	entry := d.Entries[pos]
	if index < 0 || index >= entry.Quantity {
		return d, ErrUnitOutOfRange
	}

	units := append([]string(nil), entry.Units(axis)...)
	units[index] = value
	switch axis {
	case Doneness:
		entry.Doneness = units
	case Side:
		entry.Sides = units
	case Sauce:
		entry.Sauces = units
	}

	entries := append([]Entry(nil), d.Entries...)
	entries[pos] = entry
	return Draft{Entries: entries}, nil
}
