package console

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"resto-console/internal/gateway"
	"resto-console/internal/modal"
	"resto-console/internal/order"
	"resto-console/internal/reservation"
	"resto-console/internal/selection"
)

type fakeBackend struct {
	mu           sync.Mutex
	reservations []reservation.Reservation
	records      []order.Record
	listErr      error
	deleteErr    error
	createErr    error
	created      []order.CreateRequest
	updated      []string
	deleted      []string
	lists        int

	// gates holds one channel per upcoming list call; a gated call reports on
	// entered, then waits for its channel to close before returning the list
	// it read on entry.
	gates   []chan struct{}
	entered chan struct{}
}

func (b *fakeBackend) ListReservations(_ context.Context, _ int) ([]reservation.Reservation, error) {
	b.mu.Lock()
	b.lists++
	list := append([]reservation.Reservation(nil), b.reservations...)
	err := b.listErr
	var gate chan struct{}
	if len(b.gates) > 0 {
		gate, b.gates = b.gates[0], b.gates[1:]
	}
	b.mu.Unlock()

	if gate != nil {
		b.entered <- struct{}{}
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return list, nil
}

// hold gates the next list call and returns the channel that releases it.
func (b *fakeBackend) hold() chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entered == nil {
		b.entered = make(chan struct{}, 4)
	}
	gate := make(chan struct{})
	b.gates = append(b.gates, gate)
	return gate
}

func (b *fakeBackend) setReservations(list ...reservation.Reservation) {
	b.mu.Lock()
	b.reservations = list
	b.mu.Unlock()
}

func (b *fakeBackend) setRecords(records ...order.Record) {
	b.mu.Lock()
	b.records = records
	b.mu.Unlock()
}

func (b *fakeBackend) DeleteReservation(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.deleted = append(b.deleted, id)
	kept := b.reservations[:0]
	for _, r := range b.reservations {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	b.reservations = kept
	return nil
}

func (b *fakeBackend) ListOrderRecords(_ context.Context) ([]order.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]order.Record(nil), b.records...), nil
}

func (b *fakeBackend) CreateOrderRecord(_ context.Context, req order.CreateRequest) (*order.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return nil, b.createErr
	}
	b.created = append(b.created, req)
	rec := order.Record{
		ID:          "rec-" + req.Reservation,
		Reservation: reservation.Ref{ID: req.Reservation},
		User:        reservation.Ref{ID: "u1"},
		Lines:       req.Lines,
	}
	b.records = append(b.records, rec)
	return &rec, nil
}

func (b *fakeBackend) UpdateOrderRecord(_ context.Context, recordID string, _ order.UpdateRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updated = append(b.updated, recordID)
	return nil
}

type staticCatalog struct {
	catalog order.Catalog
}

func (c staticCatalog) Catalog(context.Context) (order.Catalog, error) {
	return c.catalog, nil
}

type switchableCatalog struct {
	mu      sync.Mutex
	catalog order.Catalog
	err     error
}

func (c *switchableCatalog) Catalog(context.Context) (order.Catalog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.catalog, nil
}

func (c *switchableCatalog) set(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (n *recordingNotifier) Notify(_ string, snap Snapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.snaps = append(n.snaps, snap)
}

type recordingEvents struct {
	keys []string
}

func (e *recordingEvents) Publish(_ context.Context, routingKey string, _ any) error {
	e.keys = append(e.keys, routingKey)
	return nil
}

type recordingJournal struct {
	entries []CommitEntry
}

func (j *recordingJournal) Record(_ context.Context, entry CommitEntry) error {
	j.entries = append(j.entries, entry)
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func mine(id string, status reservation.Status) reservation.Reservation {
	return reservation.Reservation{ID: id, Status: status, PartySize: 2, User: reservation.Ref{ID: "u1"}}
}

func testCatalog() order.Catalog {
	return order.NewCatalog([]order.Product{
		{ID: "steak", Name: "Bife", Category: "Carnes", Price: 12.5},
		{ID: "wine", Name: "Malbec", Category: "Bebidas", Price: 7.25},
	})
}

type harness struct {
	backend  *fakeBackend
	notifier *recordingNotifier
	events   *recordingEvents
	journal  *recordingJournal
	clock    *testClock
	logs     *observer.ObservedLogs
	deps     Deps
}

func newHarness(list ...reservation.Reservation) *harness {
	core, logs := observer.New(zapcore.DebugLevel)
	h := &harness{
		backend:  &fakeBackend{reservations: list},
		notifier: &recordingNotifier{},
		events:   &recordingEvents{},
		journal:  &recordingJournal{},
		clock:    &testClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		logs:     logs,
	}
	h.deps = Deps{
		Backend:           h.backend,
		Catalog:           staticCatalog{catalog: testCatalog()},
		Notifier:          h.notifier,
		Events:            h.events,
		Journal:           h.journal,
		Logger:            zap.New(core),
		Clock:             h.clock,
		SuppressionWindow: 900 * time.Millisecond,
	}
	return h
}

func (h *harness) session() *Session {
	return NewSession("s1", "u1", "tok", h.deps)
}

func TestLoadSelectsPendingAndHidesSelectors(t *testing.T) {
	h := newHarness(mine("A", reservation.StatusPending), reservation.Reservation{ID: "X", Status: reservation.StatusPending, User: reservation.Ref{ID: "u2"}})
	sess := h.session()
	if _, err := sess.ShowModal(modal.Primary); err != nil {
		t.Fatalf("show: %v", err)
	}

	snap, err := sess.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Selection.ID != "A" || snap.Rule != selection.RulePending {
		t.Fatalf("unexpected selection %+v rule %s", snap.Selection, snap.Rule)
	}
	if snap.Modals.Primary || snap.Modals.Secondary {
		t.Fatalf("selectors must be hidden, got %+v", snap.Modals)
	}
	if len(snap.Reservations) != 1 || !snap.Loaded || !snap.HasPending {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(h.notifier.snaps) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(h.notifier.snaps))
	}
	if h.notifier.snaps[0].Version >= h.notifier.snaps[1].Version {
		t.Fatalf("versions must increase")
	}
}

func TestLoadLatestPaidOpensChooserUnlessSuppressed(t *testing.T) {
	h := newHarness(mine("B", reservation.StatusPaid))
	sess := h.session()

	snap, err := sess.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !snap.Selection.IsEmpty() || !snap.Modals.Secondary || snap.Modals.Primary {
		t.Fatalf("expected cleared selection with chooser, got %+v %+v", snap.Selection, snap.Modals)
	}

	if _, err := sess.CloseModals(); err != nil {
		t.Fatalf("close: %v", err)
	}
	snap, _ = sess.Load(context.Background())
	if snap.Modals.Secondary {
		t.Fatalf("chooser must stay closed while suppressed")
	}

	h.clock.advance(time.Second)
	snap, _ = sess.Load(context.Background())
	if !snap.Modals.Secondary {
		t.Fatalf("chooser must reopen once suppression expires")
	}
}

func TestLoadFailureKeepsListAndMarksStale(t *testing.T) {
	h := newHarness(mine("A", reservation.StatusPending))
	sess := h.session()
	if _, err := sess.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	h.backend.listErr = errors.New("backend down")
	snap, err := sess.Load(context.Background())
	if err != nil {
		t.Fatalf("failed load must not surface an error, got %v", err)
	}
	if !snap.Stale || len(snap.Reservations) != 1 || snap.Selection.ID != "A" {
		t.Fatalf("expected stale snapshot with last list, got %+v", snap)
	}
	if n := h.logs.FilterMessage("reservation load failed, keeping last known list").Len(); n != 1 {
		t.Fatalf("expected one warning, got %d", n)
	}

	h.backend.listErr = nil
	snap, _ = sess.Load(context.Background())
	if snap.Stale {
		t.Fatalf("successful load must clear stale")
	}
}

func TestSelectTransitions(t *testing.T) {
	h := newHarness(mine("A", reservation.StatusPaid), mine("B", "Cancelado"))
	sess := h.session()
	if _, err := sess.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	snap, err := sess.Select(context.Background(), reservation.Selection{ID: "A"})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if snap.Selection.ID != "A" || snap.Selection.PartySize != 2 || snap.Modals.Secondary {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	if _, err := sess.Select(context.Background(), reservation.Selection{ID: "missing"}); !IsCode(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	snap, err = sess.Select(context.Background(), reservation.Selection{})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !snap.Selection.IsEmpty() || !snap.Modals.Secondary {
		t.Fatalf("clearing must open the chooser, got %+v", snap)
	}
}

func TestDraftFollowsSelection(t *testing.T) {
	h := newHarness(mine("A", "Cancelado"), mine("B", "Cancelado"))
	h.backend.records = []order.Record{{
		ID:          "rec-B",
		Reservation: reservation.Ref{ID: "B"},
		User:        reservation.Ref{ID: "u1"},
		Lines:       []order.LineItem{{Product: reservation.Ref{ID: "wine"}, Quantity: 2}},
	}}
	sess := h.session()

	if _, err := sess.BuildDraft(context.Background(), []string{"steak"}, map[string]int{"steak": 1}); err != nil {
		t.Fatalf("build: %v", err)
	}
	snap, err := sess.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Selection.ID != "B" || snap.OrderRecordID != "rec-B" {
		t.Fatalf("expected latest B with its record, got %+v", snap)
	}
	if len(snap.Draft.Entries) != 1 || snap.Draft.Entries[0].ProductID != "wine" || snap.Draft.Entries[0].Quantity != 2 {
		t.Fatalf("draft must be hydrated from the record, got %+v", snap.Draft)
	}

	snap, _ = sess.Select(context.Background(), reservation.Selection{ID: "A"})
	if len(snap.Draft.Entries) != 0 {
		t.Fatalf("switching to a reservation without a record must empty the draft")
	}
}

func TestSetUnitErrors(t *testing.T) {
	h := newHarness(mine("A", reservation.StatusPending))
	sess := h.session()
	if _, err := sess.BuildDraft(context.Background(), []string{"steak"}, map[string]int{"steak": 2}); err != nil {
		t.Fatalf("build: %v", err)
	}

	snap, err := sess.SetUnit("steak", "salsa", 1, "Pimienta")
	if err != nil {
		t.Fatalf("set unit: %v", err)
	}
	if got := snap.Draft.Entries[0].Sauces[1].Value; got != "Pimienta" {
		t.Fatalf("unexpected sauce %q", got)
	}
	if _, err := sess.SetUnit("wine", "salsa", 0, "x"); !IsCode(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := sess.SetUnit("steak", "salsa", 5, "x"); !IsCode(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := sess.SetUnit("steak", "postre", 0, "x"); !IsCode(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCommitCreatesThenUpdates(t *testing.T) {
	h := newHarness(mine("A", reservation.StatusPending))
	sess := h.session()
	ctx := context.Background()
	if _, err := sess.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := sess.BuildDraft(ctx, []string{"steak"}, map[string]int{"steak": 3}); err != nil {
		t.Fatalf("build: %v", err)
	}

	res, snap, err := sess.Commit(ctx)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Action != order.ActionCreate || res.RecordID != "rec-A" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !snap.Submitted || snap.OrderRecordID != "rec-A" {
		t.Fatalf("expected submitted snapshot with record, got %+v", snap)
	}
	if len(h.backend.created) != 1 || len(h.backend.created[0].Lines[0].Doneness) != 3 {
		t.Fatalf("unexpected create requests %+v", h.backend.created)
	}

	res, _, err = sess.Commit(ctx)
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if res.Action != order.ActionUpdate || len(h.backend.updated) != 1 || h.backend.updated[0] != "rec-A" {
		t.Fatalf("second commit must update, got %+v %v", res, h.backend.updated)
	}

	if len(h.journal.entries) != 2 || h.journal.entries[0].Action != order.ActionCreate {
		t.Fatalf("unexpected journal %+v", h.journal.entries)
	}
	if len(h.events.keys) != 2 || h.events.keys[0] != RoutingOrderCommitted {
		t.Fatalf("unexpected events %v", h.events.keys)
	}
}

func TestCommitWithoutSelectionIsNoop(t *testing.T) {
	h := newHarness()
	sess := h.session()
	res, snap, err := sess.Commit(context.Background())
	if err != nil || res.Action != order.ActionNone || snap.Submitted {
		t.Fatalf("expected no-op, got %+v %+v %v", res, snap, err)
	}
	if len(h.backend.created) != 0 || len(h.journal.entries) != 0 {
		t.Fatalf("no-op must not reach the backend")
	}
}

func TestCommitFailureKeepsDraft(t *testing.T) {
	h := newHarness(mine("A", reservation.StatusPending))
	h.backend.createErr = errors.New("boom")
	sess := h.session()
	ctx := context.Background()
	_, _ = sess.Load(ctx)
	_, _ = sess.BuildDraft(ctx, []string{"wine"}, map[string]int{"wine": 1})

	_, snap, err := sess.Commit(ctx)
	if !IsCode(err, ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if snap.Submitted || len(snap.Draft.Entries) != 1 {
		t.Fatalf("draft must survive a failed commit, got %+v", snap)
	}
	if len(h.journal.entries) != 1 || h.journal.entries[0].Error == "" {
		t.Fatalf("failed commit must be journaled with its error")
	}
}

func TestRemoveReloads(t *testing.T) {
	h := newHarness(mine("A", reservation.StatusPending), mine("B", "Cancelado"))
	sess := h.session()
	ctx := context.Background()
	_, _ = sess.Load(ctx)

	snap, err := sess.Remove(ctx, "A")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(snap.Reservations) != 1 || snap.Selection.ID != "B" {
		t.Fatalf("expected reload to select B, got %+v", snap)
	}
	if len(h.events.keys) != 1 || h.events.keys[0] != RoutingReservationRemoved {
		t.Fatalf("unexpected events %v", h.events.keys)
	}
	if _, err := sess.Remove(ctx, " "); !IsCode(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClosedSessionRejectsTransitions(t *testing.T) {
	h := newHarness(mine("A", reservation.StatusPending))
	sess := h.session()
	sess.Close()

	if _, err := sess.Load(context.Background()); !IsCode(err, ErrSessionClosed) {
		t.Fatalf("expected closed, got %v", err)
	}
	if _, err := sess.ShowModal(modal.Detail); !IsCode(err, ErrSessionClosed) {
		t.Fatalf("expected closed, got %v", err)
	}
	if _, _, err := sess.Commit(context.Background()); !IsCode(err, ErrSessionClosed) {
		t.Fatalf("expected closed, got %v", err)
	}
	if len(h.notifier.snaps) != 0 {
		t.Fatalf("closed session must not notify")
	}
}

func TestTicketRendersPDF(t *testing.T) {
	h := newHarness(mine("A", reservation.StatusPending))
	sess := h.session()
	_, _ = sess.Load(context.Background())
	_, _ = sess.BuildDraft(context.Background(), []string{"steak"}, map[string]int{"steak": 1})

	pdf, name, err := sess.Ticket()
	if err != nil {
		t.Fatalf("ticket: %v", err)
	}
	if name != "comanda-A.pdf" || len(pdf) < 4 || string(pdf[:4]) != "%PDF" {
		t.Fatalf("unexpected ticket %q (%d bytes)", name, len(pdf))
	}
}

func TestRemoveFailureKeepsState(t *testing.T) {
	h := newHarness(mine("A", reservation.StatusPending), mine("B", "Cancelado"))
	sess := h.session()
	ctx := context.Background()
	if _, err := sess.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	listsBefore := h.backend.lists

	cases := []struct {
		name string
		err  error
		code ErrorCode
	}{
		{name: "backend failure", err: errors.New("boom"), code: ErrUpstream},
		{name: "already gone", err: &gateway.StatusError{StatusCode: http.StatusNotFound}, code: ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h.backend.deleteErr = tc.err
			if _, err := sess.Remove(ctx, "A"); !IsCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
			snap, err := sess.Snapshot()
			if err != nil {
				t.Fatalf("snapshot: %v", err)
			}
			if len(snap.Reservations) != 2 || snap.Selection.ID != "A" {
				t.Fatalf("failed delete must leave the list and selection alone, got %+v", snap)
			}
		})
	}
	if len(h.backend.deleted) != 0 || len(h.events.keys) != 0 {
		t.Fatalf("failed delete must not publish or record a deletion")
	}
	if h.backend.lists != listsBefore {
		t.Fatalf("failed delete must not reload")
	}
}

func TestOutOfOrderLoadIsDiscarded(t *testing.T) {
	h := newHarness(mine("A", reservation.StatusPending))
	sess := h.session()
	ctx := context.Background()

	gate := h.backend.hold()
	done := make(chan Snapshot, 1)
	go func() {
		snap, err := sess.Load(ctx)
		if err != nil {
			t.Errorf("first load: %v", err)
		}
		done <- snap
	}()
	<-h.backend.entered

	h.backend.setReservations(mine("B", "Cancelado"))
	newer, err := sess.Load(ctx)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if newer.Selection.ID != "B" {
		t.Fatalf("newer load must select B, got %+v", newer.Selection)
	}

	h.backend.setRecords(order.Record{
		ID:          "rec-A",
		Reservation: reservation.Ref{ID: "A"},
		User:        reservation.Ref{ID: "u1"},
		Lines:       []order.LineItem{{Product: reservation.Ref{ID: "wine"}, Quantity: 1}},
	})
	close(gate)

	older := <-done
	if len(older.Reservations) != 1 || older.Reservations[0].ID != "B" || older.Selection.ID != "B" {
		t.Fatalf("older completion must not replace the newer list, got %+v", older)
	}
	if older.OrderRecordID != "" || len(older.Draft.Entries) != 0 {
		t.Fatalf("older completion must not install its records or draft, got %+v", older)
	}
	if h.logs.FilterMessage("discarded out-of-order reservation load").Len() != 1 {
		t.Fatalf("expected the discarded load to be logged")
	}
}

func TestLoadCompletingAfterCloseIsDropped(t *testing.T) {
	h := newHarness(mine("A", reservation.StatusPending))
	sess := h.session()

	gate := h.backend.hold()
	result := make(chan error, 1)
	go func() {
		_, err := sess.Load(context.Background())
		result <- err
	}()
	<-h.backend.entered

	sess.Close()
	close(gate)

	if err := <-result; !IsCode(err, ErrSessionClosed) {
		t.Fatalf("expected closed session error, got %v", err)
	}
	if len(h.notifier.snaps) != 0 {
		t.Fatalf("late completion must not notify, got %d snapshots", len(h.notifier.snaps))
	}
	if h.logs.FilterMessage("reservation load finished after session closed").Len() != 1 {
		t.Fatalf("expected the dropped completion to be logged")
	}
}

func TestDraftHydrationWaitsForCatalog(t *testing.T) {
	h := newHarness(mine("A", reservation.StatusPending))
	h.backend.records = []order.Record{{
		ID:          "rec-A",
		Reservation: reservation.Ref{ID: "A"},
		User:        reservation.Ref{ID: "u1"},
		Lines:       []order.LineItem{{Product: reservation.Ref{ID: "wine"}, Quantity: 2}},
	}}
	catalog := &switchableCatalog{catalog: testCatalog(), err: errors.New("catalog down")}
	h.deps.Catalog = catalog
	sess := h.session()
	ctx := context.Background()

	snap, err := sess.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Selection.ID != "A" || !snap.DraftPending || len(snap.Draft.Entries) != 0 {
		t.Fatalf("expected pending hydration, got %+v", snap)
	}

	if _, _, err := sess.Commit(ctx); !IsCode(err, ErrUpstream) {
		t.Fatalf("commit must refuse while the record is not loaded, got %v", err)
	}
	if len(h.backend.updated) != 0 || len(h.backend.created) != 0 {
		t.Fatalf("an unhydrated draft must never reach the backend")
	}

	catalog.set(nil)
	snap, err = sess.Load(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if snap.DraftPending || len(snap.Draft.Entries) != 1 || snap.Draft.Entries[0].Quantity != 2 {
		t.Fatalf("draft must be hydrated once the catalog is back, got %+v", snap)
	}
}

func TestCommitRetriesPendingHydration(t *testing.T) {
	h := newHarness(mine("A", reservation.StatusPending))
	h.backend.records = []order.Record{{
		ID:          "rec-A",
		Reservation: reservation.Ref{ID: "A"},
		User:        reservation.Ref{ID: "u1"},
		Lines:       []order.LineItem{{Product: reservation.Ref{ID: "steak"}, Quantity: 1}},
	}}
	catalog := &switchableCatalog{catalog: testCatalog(), err: errors.New("catalog down")}
	h.deps.Catalog = catalog
	sess := h.session()
	ctx := context.Background()
	if _, err := sess.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	catalog.set(nil)
	res, _, err := sess.Commit(ctx)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Action != order.ActionUpdate || res.Lines != 1 {
		t.Fatalf("commit must send the hydrated record lines, got %+v", res)
	}
}
