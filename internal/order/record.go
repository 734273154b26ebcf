package order

import (
	"strings"

	"resto-console/internal/reservation"
)

// Record is the backend's order-for-reservation entity.
type Record struct {
	ID          string              `json:"_id"`
	Reservation reservation.Ref     `json:"reserva"`
	User        reservation.Ref     `json:"usuario"`
	Lines       []LineItem          `json:"productos"`
	CreatedAt   reservation.Instant `json:"fecha_creacion"`
}

func FilterRecordsByUser(records []Record, userID string) []Record {
	userID = strings.TrimSpace(userID)
	out := make([]Record, 0, len(records))
	if userID == "" {
		return out
	}
	for _, rec := range records {
		if rec.User.ID == userID {
			out = append(out, rec)
		}
	}
	return out
}

// FindRecord returns the record attached to reservationID.
func FindRecord(records []Record, reservationID string) (Record, bool) {
	if reservationID == "" {
		return Record{}, false
	}
	for _, rec := range records {
		if rec.Reservation.ID == reservationID {
			return rec, true
		}
	}
	return Record{}, false
}
