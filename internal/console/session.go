// Package console hosts the per-user console state: the reservation store, the
// selected reservation, modal visibility and the order draft. Every user
// action is a named transition on a Session.
package console

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"resto-console/internal/gateway"
	"resto-console/internal/modal"
	"resto-console/internal/order"
	"resto-console/internal/reservation"
	"resto-console/internal/selection"
	"resto-console/internal/ticket"
)

// Session serializes every transition behind mu. Network calls run without
// the lock; their results are applied afterwards, and a result that arrives
// after Close is dropped.
type Session struct {
	id     string
	userID string
	deps   Deps
	clock  modal.Clock
	logger *zap.Logger

	mu       sync.Mutex
	closed   bool
	token    string
	lastSeen time.Time
	version  uint64

	store     *reservation.Store
	modals    *modal.Controller
	composer  *order.Composer
	records   []order.Record
	draft     order.Draft
	draftFor  string
	submitted bool
	stale     bool
	rule      selection.Rule
	ticketURL string

	// hydrationPending is set while the selected reservation's order record
	// still has to be loaded into the draft.
	hydrationPending bool
}

func NewSession(id, userID, token string, deps Deps) *Session {
	deps = deps.withDefaults()
	userID = strings.TrimSpace(userID)
	var backend reservation.Gateway
	var orders order.Gateway
	if deps.Backend != nil {
		backend = deps.Backend
		orders = deps.Backend
	}
	return &Session{
		id:       id,
		userID:   userID,
		deps:     deps,
		clock:    deps.Clock,
		logger:   deps.Logger.With(zap.String("sessionId", id), zap.String("userId", userID)),
		token:    token,
		lastSeen: deps.Clock.Now(),
		store:    reservation.NewStore(backend, userID, deps.ReservationLimit),
		modals:   modal.NewController(deps.Clock, deps.SuppressionWindow),
		composer: order.NewComposer(orders, deps.Clock.Now),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) UserID() string {
	return s.userID
}

// Token is the most recent bearer token seen for this session, used for
// refreshes that are not triggered by a request.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) touch(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token = strings.TrimSpace(token); token != "" {
		s.token = token
	}
	s.lastSeen = s.clock.Now()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Close marks the session dead. In-flight operations finish their network
// call but never apply the result.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) Snapshot() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, errClosed
	}
	return s.snapshotLocked(), nil
}

// Load refreshes the reservation list and order records, then runs the
// auto-selection policy. A failed fetch keeps the last known list and marks
// the snapshot stale; it is not returned as an error.
func (s *Session) Load(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, errClosed
	}
	seq := s.store.Begin()
	s.mu.Unlock()

	list, err := s.store.Fetch(ctx)
	var (
		records []order.Record
		recErr  error
		catalog order.Catalog
	)
	if err == nil {
		records, recErr = s.fetchRecords(ctx)
		catalog = s.catalog(ctx)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("reservation load finished after session closed", zap.Uint64("seq", seq))
		return Snapshot{}, errClosed
	}
	if err != nil {
		s.stale = true
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.logger.Warn("reservation load failed, keeping last known list", zap.Uint64("seq", seq), zap.Error(err))
		s.notify(snap)
		return snap, nil
	}
	if !s.store.Apply(seq, list) {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.logger.Debug("discarded out-of-order reservation load", zap.Uint64("seq", seq))
		return snap, nil
	}
	s.stale = false
	if recErr == nil {
		s.records = records
	}
	decision := s.applyPolicyLocked()
	s.syncDraftLocked(catalog)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if recErr != nil {
		s.logger.Warn("order records refresh failed, keeping cached records", zap.Error(recErr))
	}
	s.logger.Info("reservations loaded",
		zap.Uint64("seq", seq),
		zap.Int("reservations", len(list)),
		zap.String("rule", string(decision.Rule)),
		zap.String("modal", decision.Modal.String()),
		zap.String("selected", decision.Selection.ID),
	)
	s.notify(snap)
	return snap, nil
}

func (s *Session) applyPolicyLocked() selection.Decision {
	decision := selection.Decide(selection.Input{
		Reservations: s.store.Reservations(),
		Current:      s.store.Selection(),
		Suppressed:   s.modals.Suppressed(),
	})
	s.store.Select(decision.Selection)
	switch decision.Modal {
	case selection.ModalHideSelectors:
		s.modals.HideAutomated()
	case selection.ModalOpenChooser:
		s.modals.ShowAutomated(modal.Secondary)
	}
	s.rule = decision.Rule
	return decision
}

// syncDraftLocked resets the draft when the selected reservation changes. A
// reservation that already has an order record starts from that record; a
// draft composed before any reservation was chosen is carried over. When the
// record exists but the catalog is unavailable, hydration stays pending and is
// retried on the next call with a catalog.
func (s *Session) syncDraftLocked(catalog order.Catalog) {
	sel := s.store.Selection()
	if sel.ID == s.draftFor {
		if s.hydrationPending {
			s.hydrateLocked(sel.ID, catalog)
		}
		return
	}
	previous := s.draftFor
	s.draftFor = sel.ID
	s.submitted = false
	s.ticketURL = ""
	s.hydrationPending = false

	if sel.IsEmpty() {
		s.draft = order.Draft{}
		return
	}
	if _, ok := order.FindRecord(s.records, sel.ID); ok {
		s.draft = order.Draft{}
		s.hydrationPending = true
		s.hydrateLocked(sel.ID, catalog)
		return
	}
	if previous == "" {
		return
	}
	s.draft = order.Draft{}
}

func (s *Session) hydrateLocked(reservationID string, catalog order.Catalog) {
	rec, ok := order.FindRecord(s.records, reservationID)
	if !ok {
		s.hydrationPending = false
		return
	}
	if catalog == nil {
		s.logger.Warn("order record not loaded into draft, catalog unavailable", zap.String("reservationId", reservationID))
		return
	}
	s.draft = order.DraftFromLines(catalog, rec.Lines)
	s.hydrationPending = false
}

// Select sets the selected reservation. An empty id clears it and opens the
// chooser; a known id takes its display fields from the loaded list.
func (s *Session) Select(ctx context.Context, sel reservation.Selection) (Snapshot, error) {
	sel = sel.Normalize()
	var catalog order.Catalog
	if !sel.IsEmpty() {
		catalog = s.catalog(ctx)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, errClosed
	}
	if sel.IsEmpty() {
		s.store.Select(reservation.Cleared())
		s.modals.Show(modal.Secondary)
	} else {
		if r, ok := s.store.Find(sel.ID); ok {
			sel = reservation.SelectionFor(r)
		} else if s.store.Loaded() {
			s.mu.Unlock()
			return Snapshot{}, NotFoundError("Reservation not found")
		}
		s.store.Select(sel)
		s.modals.HideAutomated()
	}
	s.syncDraftLocked(catalog)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return snap, nil
}

// Remove deletes a reservation in the backend and reloads. Nothing is removed
// locally until the reload confirms it.
func (s *Session) Remove(ctx context.Context, id string) (Snapshot, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Snapshot{}, ValidationError("Reservation id is required", nil)
	}
	if s.Closed() {
		return Snapshot{}, errClosed
	}

	if err := s.store.Delete(ctx, id); err != nil {
		s.logger.Warn("reservation delete failed", zap.String("reservationId", id), zap.Error(err))
		if gateway.IsNotFound(err) {
			return Snapshot{}, NotFoundError("Reservation not found")
		}
		return Snapshot{}, UpstreamError("Failed to delete reservation", err)
	}
	s.logger.Info("reservation deleted", zap.String("reservationId", id))

	s.publish(ctx, RoutingReservationRemoved, ReservationRemovedEvent{
		Type:          RoutingReservationRemoved,
		UserID:        s.userID,
		ReservationID: id,
		At:            s.clock.Now().UTC(),
	})
	if s.deps.Archive != nil {
		if err := s.deps.Archive.DeleteTickets(ctx, id); err != nil {
			s.logger.Warn("ticket cleanup failed", zap.String("reservationId", id), zap.Error(err))
		}
	}

	return s.Load(ctx)
}

// ShowModal is the explicit user open; suppression never applies to it.
func (s *Session) ShowModal(kind modal.Kind) (Snapshot, error) {
	return s.transition(func() { s.modals.Show(kind) })
}

func (s *Session) CloseModals() (Snapshot, error) {
	return s.transition(s.modals.CloseSafely)
}

func (s *Session) transition(apply func()) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, errClosed
	}
	apply()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return snap, nil
}

// BuildDraft replaces the draft with one built from the current checkbox and
// quantity state.
func (s *Session) BuildDraft(ctx context.Context, checked []string, quantities map[string]int) (Snapshot, error) {
	if s.deps.Catalog == nil {
		return Snapshot{}, UpstreamError("Product catalog is unavailable", nil)
	}
	catalog, err := s.deps.Catalog.Catalog(ctx)
	if err != nil {
		return Snapshot{}, UpstreamError("Product catalog is unavailable", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, errClosed
	}
	s.draft = order.BuildDraft(catalog, checked, quantities, s.draft)
	s.draftFor = s.store.Selection().ID
	s.hydrationPending = false
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return snap, nil
}

func (s *Session) SetUnit(productID string, axis string, index int, value string) (Snapshot, error) {
	parsed, ok := order.ParseAxis(axis)
	if !ok {
		return Snapshot{}, ValidationError("Unknown customization axis", nil)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, errClosed
	}
	next, err := s.draft.SetUnit(strings.TrimSpace(productID), parsed, index, value)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, order.ErrEntryNotFound) {
			return Snapshot{}, NotFoundError("Product is not in the draft")
		}
		return Snapshot{}, ValidationError(err.Error(), err)
	}
	s.draft = next
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return snap, nil
}

// Commit submits the draft for the selected reservation, updating the existing
// order record when there is one. Without a selection it does nothing. The
// draft is kept on failure so the user can retry.
func (s *Session) Commit(ctx context.Context) (order.Result, Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return order.Result{}, Snapshot{}, errClosed
	}
	sel := s.store.Selection()
	if sel.IsEmpty() {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.logger.Debug("commit skipped without a selected reservation")
		return order.Result{Action: order.ActionNone}, snap, nil
	}
	if s.hydrationPending {
		s.mu.Unlock()
		catalog := s.catalog(ctx)
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return order.Result{}, Snapshot{}, errClosed
		}
		if s.store.Selection().ID != sel.ID {
			s.mu.Unlock()
			return order.Result{}, Snapshot{}, ValidationError("Selected reservation changed", nil)
		}
		s.hydrateLocked(sel.ID, catalog)
		if s.hydrationPending {
			snap := s.snapshotLocked()
			s.mu.Unlock()
			return order.Result{Action: order.ActionNone}, snap, UpstreamError("Product catalog is unavailable", nil)
		}
	}
	records := append([]order.Record(nil), s.records...)
	draft := s.draft
	s.submitted = false
	pending := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(pending)

	result, err := s.composer.Commit(ctx, sel, records, draft)
	s.journal(ctx, sel, draft, result, err)
	if err != nil {
		s.logger.Error("order commit failed",
			zap.String("reservationId", sel.ID),
			zap.String("action", string(result.Action)),
			zap.Error(err),
		)
		snap, snapErr := s.Snapshot()
		if snapErr != nil {
			return result, Snapshot{}, snapErr
		}
		return result, snap, UpstreamError("Failed to submit order", err)
	}

	ticketURL := s.archiveTicket(ctx, sel, draft)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return result, Snapshot{}, errClosed
	}
	s.submitted = true
	if ticketURL != "" {
		s.ticketURL = ticketURL
	}
	if result.Action == order.ActionCreate && result.RecordID != "" {
		if _, ok := order.FindRecord(s.records, sel.ID); !ok {
			s.records = append(s.records, order.Record{
				ID:          result.RecordID,
				Reservation: reservation.Ref{ID: sel.ID},
				User:        reservation.Ref{ID: s.userID},
				Lines:       order.LineItems(draft),
			})
		}
	}
	s.mu.Unlock()

	s.logger.Info("order committed",
		zap.String("reservationId", sel.ID),
		zap.String("action", string(result.Action)),
		zap.String("recordId", result.RecordID),
		zap.Int("lines", result.Lines),
	)
	s.publish(ctx, RoutingOrderCommitted, OrderCommittedEvent{
		Type:          RoutingOrderCommitted,
		UserID:        s.userID,
		ReservationID: sel.ID,
		RecordID:      result.RecordID,
		Action:        string(result.Action),
		Lines:         result.Lines,
		Total:         draft.Total(),
		At:            s.clock.Now().UTC(),
	})

	snap, err := s.Load(ctx)
	if err != nil {
		return result, Snapshot{}, err
	}
	return result, snap, nil
}

// Ticket renders the kitchen ticket for the current draft.
func (s *Session) Ticket() ([]byte, string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, "", errClosed
	}
	sel := s.store.Selection()
	draft := s.draft
	s.mu.Unlock()

	pdf, err := ticket.Render(ticket.FromDraft(sel, draft, s.clock.Now()))
	if err != nil {
		return nil, "", err
	}
	return pdf, ticket.Filename(sel.ID), nil
}

func (s *Session) fetchRecords(ctx context.Context) ([]order.Record, error) {
	if s.deps.Backend == nil {
		return nil, reservation.ErrNoGateway
	}
	all, err := s.deps.Backend.ListOrderRecords(ctx)
	if err != nil {
		return nil, err
	}
	return order.FilterRecordsByUser(all, s.userID), nil
}

func (s *Session) catalog(ctx context.Context) order.Catalog {
	if s.deps.Catalog == nil {
		return nil
	}
	catalog, err := s.deps.Catalog.Catalog(ctx)
	if err != nil {
		s.logger.Warn("catalog unavailable", zap.Error(err))
		return nil
	}
	return catalog
}

func (s *Session) archiveTicket(ctx context.Context, sel reservation.Selection, draft order.Draft) string {
	if s.deps.Archive == nil {
		return ""
	}
	now := s.clock.Now()
	pdf, err := ticket.Render(ticket.FromDraft(sel, draft, now))
	if err != nil {
		s.logger.Warn("ticket render failed", zap.Error(err))
		return ""
	}
	url, err := s.deps.Archive.ArchiveTicket(ctx, sel.ID, now, pdf)
	if err != nil {
		s.logger.Warn("ticket archive failed", zap.String("reservationId", sel.ID), zap.Error(err))
		return ""
	}
	return url
}

func (s *Session) journal(ctx context.Context, sel reservation.Selection, draft order.Draft, result order.Result, commitErr error) {
	if s.deps.Journal == nil {
		return
	}
	entry := CommitEntry{
		SessionID:     s.id,
		UserID:        s.userID,
		ReservationID: sel.ID,
		Action:        result.Action,
		RecordID:      result.RecordID,
		Lines:         len(draft.Entries),
		Total:         draft.Total(),
		CreatedAt:     s.clock.Now().UTC(),
	}
	if commitErr != nil {
		entry.Error = commitErr.Error()
	}
	if err := s.deps.Journal.Record(ctx, entry); err != nil {
		s.logger.Warn("commit journal write failed", zap.Error(err))
	}
}

func (s *Session) publish(ctx context.Context, routingKey string, payload any) {
	if s.deps.Events == nil {
		return
	}
	if err := s.deps.Events.Publish(ctx, routingKey, payload); err != nil {
		s.logger.Warn("console event publish failed", zap.String("routingKey", routingKey), zap.Error(err))
	}
}

func (s *Session) notify(snap Snapshot) {
	if s.deps.Notifier == nil {
		return
	}
	s.deps.Notifier.Notify(s.userID, snap)
}
