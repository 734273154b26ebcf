package reservation

import "strings"

// Selection is the reservation the console is currently composing an order for.
type Selection struct {
	ID          string `json:"id"`
	PartySize   int    `json:"partySize"`
	DisplayDate string `json:"date"`
	Type        string `json:"type"`
}

// Cleared is the empty reference shown while the chooser asks for a reservation.
func Cleared() Selection {
	return Selection{DisplayDate: PlaceholderDate, Type: DefaultType}
}

func SelectionFor(r Reservation) Selection {
	return Selection{
		ID:          r.ID,
		PartySize:   r.PartySize,
		DisplayDate: FormatDisplayDate(r.Date),
		Type:        r.TypeOrDefault(),
	}
}

func (s Selection) IsEmpty() bool {
	return strings.TrimSpace(s.ID) == ""
}

// Normalize fills defaults; an empty id always yields the cleared reference.
func (s Selection) Normalize() Selection {
	s.ID = strings.TrimSpace(s.ID)
	if s.ID == "" {
		return Cleared()
	}
	if s.PartySize < 0 {
		s.PartySize = 0
	}
	if strings.TrimSpace(s.DisplayDate) == "" {
		s.DisplayDate = PlaceholderDate
	}
	if strings.TrimSpace(s.Type) == "" {
		s.Type = DefaultType
	}
	return s
}
