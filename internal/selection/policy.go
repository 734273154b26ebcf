// Package selection decides which reservation the console targets after every
// reservation load, and whether the chooser modal has to be forced open.
package selection

import "resto-console/internal/reservation"

type Rule string

const (
	RuleSticky     Rule = "sticky"
	RulePending    Rule = "pending"
	RuleLatest     Rule = "latest"
	RuleLatestPaid Rule = "latest_paid"
	RuleEmpty      Rule = "empty"
)

type ModalAction int

const (
	ModalNone ModalAction = iota
	ModalHideSelectors
	ModalOpenChooser
)

func (a ModalAction) String() string {
	switch a {
	case ModalHideSelectors:
		return "hide_selectors"
	case ModalOpenChooser:
		return "open_chooser"
	default:
		return "none"
	}
}

type Input struct {
	Reservations []reservation.Reservation
	Current      reservation.Selection
	Suppressed   bool
}

type Decision struct {
	Rule      Rule
	Selection reservation.Selection
	Modal     ModalAction
}

// Decide evaluates the rules in precedence order; the first match wins.
//
//  1. sticky: the current selection still exists in the list.
//  2. pending: select the first Pending reservation and hide both selectors.
//  3. latest / latest_paid: the last reservation is selected, unless it is
//     Paid, in which case the selection is cleared and the chooser requested.
//  4. empty: clear the selection and request the chooser.
//
// The chooser is never requested while suppressed.
func Decide(in Input) Decision {
	if !in.Current.IsEmpty() {
		if r, ok := reservation.Find(in.Reservations, in.Current.ID); ok {
			return Decision{Rule: RuleSticky, Selection: reservation.SelectionFor(r), Modal: ModalNone}
		}
	}

	for _, r := range in.Reservations {
		if r.IsPending() {
			return Decision{Rule: RulePending, Selection: reservation.SelectionFor(r), Modal: ModalHideSelectors}
		}
	}

	if len(in.Reservations) == 0 {
		return Decision{Rule: RuleEmpty, Selection: reservation.Cleared(), Modal: chooser(in.Suppressed)}
	}

	latest := in.Reservations[len(in.Reservations)-1]
	if latest.IsPaid() {
		return Decision{Rule: RuleLatestPaid, Selection: reservation.Cleared(), Modal: chooser(in.Suppressed)}
	}
	return Decision{Rule: RuleLatest, Selection: reservation.SelectionFor(latest), Modal: ModalNone}
}

func chooser(suppressed bool) ModalAction {
	if suppressed {
		return ModalNone
	}
	return ModalOpenChooser
}
