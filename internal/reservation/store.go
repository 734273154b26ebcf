package reservation

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNoGateway = errors.New("reservation gateway not configured")
	ErrMissingID = errors.New("missing reservation id")
)

type Gateway interface {
	ListReservations(ctx context.Context, limit int) ([]Reservation, error)
	DeleteReservation(ctx context.Context, id string) error
}

// Store caches one user's reservations and the selected reference.
//
// A load is split in three steps so the network call can run without holding
// the owner's lock: Begin issues a sequence number, Fetch talks to the gateway,
// Apply installs the result unless a newer load was already applied. Store is
// not safe for concurrent use; the owning console session serializes calls to
// Begin, Apply and the mutators.
type Store struct {
	gateway Gateway
	userID  string
	limit   int

	issued  uint64
	applied uint64
	loaded  bool

	reservations []Reservation
	hasPending   bool
	selection    Selection
}

func NewStore(gateway Gateway, userID string, limit int) *Store {
	if limit <= 0 {
		limit = 100
	}
	return &Store{
		gateway:   gateway,
		userID:    strings.TrimSpace(userID),
		limit:     limit,
		selection: Cleared(),
	}
}

func (s *Store) UserID() string {
	return s.userID
}

func (s *Store) Begin() uint64 {
	s.issued++
	return s.issued
}

// Fetch lists reservations and keeps those owned by the store's user. It reads
// only fields fixed at construction.
func (s *Store) Fetch(ctx context.Context) ([]Reservation, error) {
	if s.gateway == nil {
		return nil, ErrNoGateway
	}
	all, err := s.gateway.ListReservations(ctx, s.limit)
	if err != nil {
		return nil, err
	}
	return FilterByUser(all, s.userID), nil
}

// Apply installs a fetched list. It returns false when seq is older than the
// last applied load, in which case the store is left untouched.
func (s *Store) Apply(seq uint64, list []Reservation) bool {
	if seq < s.applied {
		return false
	}
	s.applied = seq
	s.loaded = true
	s.reservations = list
	s.hasPending = HasPending(list)
	return true
}

// Load runs Begin, Fetch and Apply back to back for single-owner callers.
func (s *Store) Load(ctx context.Context) (bool, error) {
	seq := s.Begin()
	list, err := s.Fetch(ctx)
	if err != nil {
		return false, err
	}
	return s.Apply(seq, list), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrMissingID
	}
	if s.gateway == nil {
		return ErrNoGateway
	}
	return s.gateway.DeleteReservation(ctx, id)
}

func (s *Store) Select(sel Selection) {
	s.selection = sel.Normalize()
}

func (s *Store) Selection() Selection {
	return s.selection
}

func (s *Store) Reservations() []Reservation {
	out := make([]Reservation, len(s.reservations))
	copy(out, s.reservations)
	return out
}

func (s *Store) Find(id string) (Reservation, bool) {
	return Find(s.reservations, id)
}

func (s *Store) HasPending() bool {
	return s.hasPending
}

func (s *Store) Loaded() bool {
	return s.loaded
}
