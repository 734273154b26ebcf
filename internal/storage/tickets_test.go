package storage

import (
	"testing"
	"time"
)

func TestTicketKeys(t *testing.T) {
	at := time.Date(2024, 1, 2, 19, 30, 5, 0, time.FixedZone("ART", -3*3600))

	if got := TicketPrefix("65a/../b"); got != "tickets/65a_b/" {
		t.Fatalf("unexpected prefix %q", got)
	}
	if got := TicketKey("R1", at); got != "tickets/R1/20240102T223005Z.pdf" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestParseStorageClass(t *testing.T) {
	if got := parseStorageClass(" "); got != nil {
		t.Fatalf("expected no storage class, got %v", *got)
	}
	if got := parseStorageClass("standard"); got == nil || string(*got) != "STANDARD" {
		t.Fatalf("expected STANDARD, got %v", got)
	}
}
