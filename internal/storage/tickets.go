package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const ticketsPrefix = "tickets"

var unsafeKeySegment = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func keySegment(value string) string {
	return strings.Trim(unsafeKeySegment.ReplaceAllString(strings.TrimSpace(value), "_"), "_")
}

// TicketPrefix is the folder holding every archived ticket of a reservation.
func TicketPrefix(reservationID string) string {
	return ticketsPrefix + "/" + keySegment(reservationID) + "/"
}

// TicketKey names one archived ticket; each commit gets its own object.
func TicketKey(reservationID string, at time.Time) string {
	return fmt.Sprintf("%s%s.pdf", TicketPrefix(reservationID), at.UTC().Format("20060102T150405Z"))
}

// ArchiveTicket uploads a rendered kitchen ticket and returns its public URL.
func (s *ObjectStore) ArchiveTicket(ctx context.Context, reservationID string, at time.Time, pdf []byte) (string, error) {
	if keySegment(reservationID) == "" {
		return "", fmt.Errorf("reservation id is required")
	}
	return s.PutObject(ctx, TicketKey(reservationID, at), pdf, "application/pdf", "")
}

// DeleteTickets removes every archived ticket of a reservation.
func (s *ObjectStore) DeleteTickets(ctx context.Context, reservationID string) error {
	if keySegment(reservationID) == "" {
		return nil
	}
	return s.DeletePrefix(ctx, TicketPrefix(reservationID))
}
