package reservation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending Status = "Pendiente"
	StatusPaid    Status = "Pagado"
)

const (
	DefaultType     = "Resto"
	PlaceholderDate = "Escoger Reserva"

	displayDateLayout = "02/01/2006 15:04"
)

// Reservation mirrors a /reservas document. Status values other than Pending and
// Paid are kept verbatim; their transitions are owned by the backend.
type Reservation struct {
	ID        string  `json:"_id"`
	Date      Instant `json:"fecha"`
	PartySize int     `json:"personas"`
	Type      string  `json:"tipo"`
	Status    Status  `json:"resest"`
	User      Ref     `json:"usuario"`
	CreatedAt Instant `json:"fecha_creacion"`
}

func (r Reservation) IsPending() bool {
	return r.Status == StatusPending
}

func (r Reservation) IsPaid() bool {
	return r.Status == StatusPaid
}

func (r Reservation) TypeOrDefault() string {
	if t := strings.TrimSpace(r.Type); t != "" {
		return t
	}
	return DefaultType
}

// FilterByUser keeps the reservations owned by userID, preserving backend order.
func FilterByUser(list []Reservation, userID string) []Reservation {
	userID = strings.TrimSpace(userID)
	out := make([]Reservation, 0, len(list))
	if userID == "" {
		return out
	}
	for _, r := range list {
		if r.User.ID == userID {
			out = append(out, r)
		}
	}
	return out
}

func HasPending(list []Reservation) bool {
	for _, r := range list {
		if r.IsPending() {
			return true
		}
	}
	return false
}

func Find(list []Reservation, id string) (Reservation, bool) {
	if strings.TrimSpace(id) == "" {
		return Reservation{}, false
	}
	for _, r := range list {
		if r.ID == id {
			return r, true
		}
	}
	return Reservation{}, false
}

// Ref is a backend reference that arrives either as a bare id string or as a
// populated document carrying `_id` (or `uid` for user documents).
type Ref struct {
	ID string
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		r.ID = ""
		return nil
	}

	if trimmed[0] == '"' {
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return err
		}
		r.ID = strings.TrimSpace(id)
		return nil
	}

	var doc struct {
		ID  string `json:"_id"`
		UID string `json:"uid"`
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	r.ID = strings.TrimSpace(doc.ID)
	if r.ID == "" {
		r.ID = strings.TrimSpace(doc.UID)
	}
	return nil
}

func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ID)
}

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Instant accepts the timestamp shapes the backend emits, including the short
// form produced by datetime-local inputs ("2024-01-01T12:00").
type Instant struct {
	time.Time
}

func ParseInstant(value string) (Instant, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Instant{}, nil
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return Instant{Time: t}, nil
		}
	}
	return Instant{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func (i *Instant) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		i.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	parsed, err := ParseInstant(raw)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

func (i Instant) MarshalJSON() ([]byte, error) {
	if i.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(i.Time.Format(time.RFC3339))
}

// FormatDisplayDate renders the date shown next to the selected reservation.
func FormatDisplayDate(i Instant) string {
	if i.IsZero() {
		return PlaceholderDate
	}
	return i.Time.Format(displayDateLayout)
}
