package modal

import (
	"strings"
	"time"
)

type Kind string

const (
	Primary   Kind = "primary"
	Secondary Kind = "secondary"
	Detail    Kind = "detail"
)

const DefaultSuppressionWindow = 900 * time.Millisecond

func ParseKind(value string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case Primary:
		return Primary, true
	case Secondary:
		return Secondary, true
	case Detail:
		return Detail, true
	}
	return "", false
}

// State is the modal visibility snapshot. Transitions return the next state and
// never mutate the receiver. Suppression is an expiry instant: while now is
// before SuppressedUntil, automated opens are refused.
type State struct {
	Primary         bool
	Secondary       bool
	Detail          bool
	SuppressedUntil time.Time
}

func (s State) Suppressed(now time.Time) bool {
	return now.Before(s.SuppressedUntil)
}

// Show opens kind. Primary and Secondary are mutually exclusive.
func (s State) Show(kind Kind) State {
	switch kind {
	case Primary:
		s.Primary = true
		s.Secondary = false
	case Secondary:
		s.Secondary = true
		s.Primary = false
	case Detail:
		s.Detail = true
	}
	return s
}

func (s State) ShowAutomated(kind Kind, now time.Time) (State, bool) {
	if s.Suppressed(now) {
		return s, false
	}
	return s.Show(kind), true
}

// HideAutomated closes both selector modals regardless of suppression.
func (s State) HideAutomated() State {
	s.Primary = false
	s.Secondary = false
	return s
}

func (s State) CloseSafely(now time.Time, window time.Duration) State {
	if until := now.Add(window); until.After(s.SuppressedUntil) {
		s.SuppressedUntil = until
	}
	s.Primary = false
	s.Secondary = false
	s.Detail = false
	return s
}

type View struct {
	Primary         bool       `json:"primary"`
	Secondary       bool       `json:"secondary"`
	Detail          bool       `json:"detail"`
	Suppressed      bool       `json:"suppressed"`
	SuppressedUntil *time.Time `json:"suppressedUntil,omitempty"`
}

func (s State) View(now time.Time) View {
	v := View{
		Primary:    s.Primary,
		Secondary:  s.Secondary,
		Detail:     s.Detail,
		Suppressed: s.Suppressed(now),
	}
	if v.Suppressed {
		until := s.SuppressedUntil
		v.SuppressedUntil = &until
	}
	return v
}
