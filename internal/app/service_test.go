package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/evanschultz/cadence/internal/domain"
)

// fakeEntry is one stored item with its collection and sequence.
type fakeEntry struct {
	item domain.ScheduleItem
	coll domain.Collection
	seq  int
}

// fakeStore is an unsynchronized in-memory Store that counts list reads.
type fakeStore struct {
	entries  map[string]fakeEntry
	seq      int
	metrics  *domain.PerformanceMetrics
	draft    *domain.ScheduleItemDraft
	applyErr error

	listCalls    int
	listAllCalls int
}

// newFakeStore returns an empty fakeStore.
func newFakeStore() *fakeStore {
	return &fakeStore{entries: map[string]fakeEntry{}}
}

func (f *fakeStore) GetItem(_ context.Context, id string) (domain.ScheduleItem, domain.Collection, error) {
	e, ok := f.entries[id]
	if !ok {
		return domain.ScheduleItem{}, "", ErrNotFound
	}
	return e.item.Clone(), e.coll, nil
}

func (f *fakeStore) ListItems(_ context.Context, c domain.Collection) ([]domain.ScheduleItem, error) {
	f.listCalls++
	return f.list(c), nil
}

// list copies one collection in insertion order.
func (f *fakeStore) list(c domain.Collection) []domain.ScheduleItem {
	matched := make([]fakeEntry, 0)
	for _, e := range f.entries {
		if e.coll == c {
			matched = append(matched, e)
		}
	}
	slices.SortFunc(matched, func(a, b fakeEntry) int { return a.seq - b.seq })
	out := make([]domain.ScheduleItem, 0, len(matched))
	for _, e := range matched {
		out = append(out, e.item.Clone())
	}
	return out
}

func (f *fakeStore) ListAll(_ context.Context) (Collections, error) {
	f.listAllCalls++
	out := Collections{}
	for _, c := range []domain.Collection{domain.CollectionActive, domain.CollectionDeleted, domain.CollectionCompleted} {
		if items := f.list(c); len(items) > 0 {
			out[c] = items
		}
	}
	return out, nil
}

func (f *fakeStore) Apply(_ context.Context, ops ...Op) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	staged := map[string]fakeEntry{}
	for k, v := range f.entries {
		staged[k] = v
	}
	seq := f.seq
	for _, op := range ops {
		cur, ok := staged[op.Item.ID]
		switch op.Kind {
		case OpInsert:
			if ok {
				return ErrDuplicateID
			}
			seq++
			staged[op.Item.ID] = fakeEntry{item: op.Item.Clone(), coll: op.Collection, seq: seq}
		case OpReplace, OpMove:
			if !ok {
				return ErrNotFound
			}
			cur.item = op.Item.Clone()
			if op.Kind == OpMove {
				cur.coll = op.Collection
			}
			staged[op.Item.ID] = cur
		}
	}
	f.entries = staged
	f.seq = seq
	return nil
}

func (f *fakeStore) SaveMetrics(_ context.Context, m domain.PerformanceMetrics) error {
	f.metrics = &m
	return nil
}

func (f *fakeStore) LoadMetrics(_ context.Context) (domain.PerformanceMetrics, error) {
	if f.metrics == nil {
		return domain.PerformanceMetrics{}, ErrNotFound
	}
	return *f.metrics, nil
}

func (f *fakeStore) SaveDraft(_ context.Context, d domain.ScheduleItemDraft) error {
	f.draft = &d
	return nil
}

func (f *fakeStore) LoadDraft(_ context.Context) (domain.ScheduleItemDraft, error) {
	if f.draft == nil {
		return domain.ScheduleItemDraft{}, ErrNotFound
	}
	return *f.draft, nil
}

func (f *fakeStore) ClearDraft(_ context.Context) error {
	f.draft = nil
	return nil
}

// notifierCall records one Notifier invocation.
type notifierCall struct {
	op     string
	itemID string
	n      int
}

// recordingNotifier records calls and optionally fails them.
type recordingNotifier struct {
	calls []notifierCall
	fail  error
	panic bool
}

func (r *recordingNotifier) record(op, itemID string, n int) error {
	r.calls = append(r.calls, notifierCall{op: op, itemID: itemID, n: n})
	if r.panic {
		panic("notifier exploded")
	}
	return r.fail
}

func (r *recordingNotifier) ScheduleOneShot(_ context.Context, item domain.ScheduleItem) error {
	return r.record("one_shot", item.ID, 1)
}

func (r *recordingNotifier) ScheduleRecurring(_ context.Context, item domain.ScheduleItem, _ domain.Recurrence, n int) error {
	return r.record("recurring", item.ID, n)
}

func (r *recordingNotifier) Cancel(_ context.Context, id string) error {
	return r.record("cancel", id, 0)
}

func (r *recordingNotifier) NotifyCompleted(_ context.Context, item domain.ScheduleItem) error {
	return r.record("completed", item.ID, 0)
}

func (r *recordingNotifier) NotifyPostponed(_ context.Context, id string) error {
	return r.record("postponed", id, 0)
}

// ops returns the recorded operation names in call order.
func (r *recordingNotifier) ops() []string {
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.op)
	}
	return out
}

// recordingReporter captures advisory conflict reports.
type recordingReporter struct {
	reports map[string][]domain.Conflict
}

func (r *recordingReporter) ReportConflicts(_ context.Context, item domain.ScheduleItem, conflicts []domain.Conflict) {
	if r.reports == nil {
		r.reports = map[string][]domain.Conflict{}
	}
	r.reports[item.ID] = conflicts
}

// testClock is a manually advanced clock.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// newTestService builds a Service over fakes with sequential ids and a fixed clock.
func newTestService(t *testing.T, cfg ServiceConfig, opts ...Option) (*Service, *fakeStore, *recordingNotifier, *testClock) {
	t.Helper()
	store := newFakeStore()
	notifier := &recordingNotifier{}
	clock := &testClock{now: time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)}
	n := 0
	idGen := func() string {
		n++
		return fmt.Sprintf("i%d", n)
	}
	return NewService(store, notifier, idGen, clock.Now, cfg, opts...), store, notifier, clock
}

// draftAt returns a valid 30 minute work draft starting at start.
func draftAt(title string, start time.Time) domain.ScheduleItemDraft {
	return domain.ScheduleItemDraft{
		Title:     title,
		Type:      domain.ItemTypeWork,
		Priority:  domain.PriorityMedium,
		StartDate: start,
		EndDate:   start.Add(30 * time.Minute),
	}
}

// TestCreateItemStoresAndSchedules verifies creation persists the item and plans notifications.
func TestCreateItemStoresAndSchedules(t *testing.T) {
	svc, store, notifier, clock := newTestService(t, ServiceConfig{})
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, draftAt("Report", clock.now.Add(time.Hour)))
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	if item.ID != "i1" || item.Countdown != 60 {
		t.Fatalf("unexpected item %#v", item)
	}
	if _, coll, err := store.GetItem(ctx, item.ID); err != nil || coll != domain.CollectionActive {
		t.Fatalf("expected active item, got %q, %v", coll, err)
	}
	if !slices.Equal(notifier.ops(), []string{"one_shot"}) {
		t.Fatalf("unexpected notifier calls %v", notifier.ops())
	}
	if store.metrics == nil {
		t.Fatal("expected metrics to be cached after create")
	}
}

// TestCreateItemValidationLeavesStoreUntouched verifies an invalid draft writes nothing.
func TestCreateItemValidationLeavesStoreUntouched(t *testing.T) {
	svc, store, notifier, clock := newTestService(t, ServiceConfig{})
	_, err := svc.CreateItem(context.Background(), domain.ScheduleItemDraft{
		Title:     "",
		Type:      "chores",
		StartDate: clock.now,
		EndDate:   clock.now.Add(-time.Minute),
	})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || len(verr.Violations) < 3 {
		t.Fatalf("expected multi-violation ValidationError, got %v", err)
	}
	if len(store.entries) != 0 || len(notifier.calls) != 0 {
		t.Fatal("expected no store or notifier side effects")
	}
}

// TestCreateRecurringSchedulesOccurrences verifies recurring items plan several occurrences.
func TestCreateRecurringSchedulesOccurrences(t *testing.T) {
	svc, _, notifier, clock := newTestService(t, ServiceConfig{})
	d := draftAt("Standup", clock.now.Add(time.Hour))
	d.Recurrence = domain.RecurrenceDaily
	if _, err := svc.CreateItem(context.Background(), d); err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	if len(notifier.calls) != 1 || notifier.calls[0].op != "recurring" || notifier.calls[0].n != 7 {
		t.Fatalf("expected recurring plan of 7, got %#v", notifier.calls)
	}
}

// TestCreateItemAppliesConfiguredMaxPostponements verifies an unset limit takes the configured default.
func TestCreateItemAppliesConfiguredMaxPostponements(t *testing.T) {
	svc, _, _, clock := newTestService(t, ServiceConfig{DefaultMaxPostponements: 5})
	item, err := svc.CreateItem(context.Background(), draftAt("x", clock.now))
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	if item.MaxPostponements != 5 {
		t.Fatalf("expected configured default 5, got %d", item.MaxPostponements)
	}
}

// TestExplicitZeroMaxPostponementsForbidsPostponing verifies a zero limit is kept and blocks postponing.
func TestExplicitZeroMaxPostponementsForbidsPostponing(t *testing.T) {
	svc, _, _, clock := newTestService(t, ServiceConfig{DefaultMaxPostponements: 5})
	ctx := context.Background()
	d := draftAt("fixed", clock.now)
	zero := 0
	d.MaxPostponements = &zero
	fixed, err := svc.CreateItem(ctx, d)
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	if fixed.MaxPostponements != 0 {
		t.Fatalf("expected explicit 0 kept, got %d", fixed.MaxPostponements)
	}
	_, err = svc.PostponeItem(ctx, fixed.ID, clock.now.Add(24*time.Hour), domain.PostponeOptions{})
	var limitErr *domain.PostponementLimitError
	if !errors.As(err, &limitErr) || limitErr.Max != 0 {
		t.Fatalf("expected PostponementLimitError with max 0, got %v", err)
	}

	flexible, _ := svc.CreateItem(ctx, draftAt("flexible", clock.now.Add(time.Hour)))
	updated, err := svc.UpdateItem(ctx, flexible.ID, ItemPatch{MaxPostponements: &zero})
	if err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	if updated.MaxPostponements != 0 {
		t.Fatalf("expected update to 0 kept, got %d", updated.MaxPostponements)
	}
}

// TestStartThenCompleteNonRecurring verifies a one-shot item starts and completes without a successor.
func TestStartThenCompleteNonRecurring(t *testing.T) {
	svc, store, notifier, clock := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	a, err := svc.CreateItem(ctx, draftAt("A", clock.now))
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	clock.Advance(5 * time.Minute)
	if _, err := svc.StartItem(ctx, a.ID); err != nil {
		t.Fatalf("StartItem() error = %v", err)
	}
	clock.Advance(25 * time.Minute)
	res, err := svc.MarkCompleted(ctx, a.ID)
	if err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}
	if !res.Item.Completed || res.Item.InProgress || res.Item.ActualDuration != 25 {
		t.Fatalf("unexpected completed item %#v", res.Item)
	}
	if res.Next != nil {
		t.Fatal("expected no spawn for non-recurring item")
	}
	active, _ := store.ListItems(ctx, domain.CollectionActive)
	if len(active) != 1 {
		t.Fatalf("expected exactly one item, got %d", len(active))
	}
	if got := notifier.ops(); !slices.Equal(got, []string{"one_shot", "cancel", "completed"}) {
		t.Fatalf("unexpected notifier calls %v", got)
	}
	if store.metrics.CompletionRate != 100 {
		t.Fatalf("expected completion rate 100, got %v", store.metrics.CompletionRate)
	}

	again, err := svc.MarkCompleted(ctx, a.ID)
	if err != nil || !again.Item.CompletedAt.Equal(*res.Item.CompletedAt) {
		t.Fatalf("expected second completion to be a no-op, got %#v, %v", again, err)
	}
}

// TestStartItemIsIdempotentAndRejectsCompleted verifies repeat starts are no-ops and completed items cannot start.
func TestStartItemIsIdempotentAndRejectsCompleted(t *testing.T) {
	svc, _, _, clock := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	a, _ := svc.CreateItem(ctx, draftAt("A", clock.now))
	first, err := svc.StartItem(ctx, a.ID)
	if err != nil {
		t.Fatalf("StartItem() error = %v", err)
	}
	clock.Advance(time.Minute)
	second, err := svc.StartItem(ctx, a.ID)
	if err != nil || !second.StartedAt.Equal(*first.StartedAt) {
		t.Fatalf("expected no-op restart, got %v, %v", second.StartedAt, err)
	}
	_, _ = svc.MarkCompleted(ctx, a.ID)
	if _, err := svc.StartItem(ctx, a.ID); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
}

// TestMarkCompletedWeeklySpawnsNextOccurrence verifies completing a weekly item spawns the next one.
func TestMarkCompletedWeeklySpawnsNextOccurrence(t *testing.T) {
	svc, store, notifier, clock := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	d := draftAt("Review", clock.now.Add(2*time.Hour))
	d.Recurrence = domain.RecurrenceWeekly
	d.EndDate = d.StartDate.Add(45 * time.Minute)
	a, err := svc.CreateItem(ctx, d)
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	if _, err := svc.PostponeItem(ctx, a.ID, a.StartDate.Add(time.Hour), domain.PostponeOptions{}); err != nil {
		t.Fatalf("PostponeItem() error = %v", err)
	}
	before, _, _ := store.GetItem(ctx, a.ID)

	res, err := svc.MarkCompleted(ctx, a.ID)
	if err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}
	if res.Next == nil {
		t.Fatal("expected spawned occurrence")
	}
	next := *res.Next
	if next.ID == a.ID || len(next.Postponements) != 0 || next.Completed || next.InProgress {
		t.Fatalf("expected fresh successor, got %#v", next)
	}
	if want := before.StartDate.AddDate(0, 0, 7); !next.StartDate.Equal(want) {
		t.Fatalf("expected start %v, got %v", want, next.StartDate)
	}
	if next.Interval() != 45*time.Minute {
		t.Fatalf("expected interval preserved, got %v", next.Interval())
	}
	active, _ := store.ListItems(ctx, domain.CollectionActive)
	if len(active) != 2 {
		t.Fatalf("expected exactly one new item, got %d active", len(active))
	}
	last := notifier.calls[len(notifier.calls)-1]
	if last.op != "recurring" || last.itemID != next.ID || last.n != 4 {
		t.Fatalf("expected successor recurring plan, got %#v", last)
	}
}

// TestMarkCompletedArchivesWhenConfigured verifies completed items move to the archive when enabled.
func TestMarkCompletedArchivesWhenConfigured(t *testing.T) {
	svc, store, _, clock := newTestService(t, ServiceConfig{ArchiveCompleted: true})
	ctx := context.Background()
	a, _ := svc.CreateItem(ctx, draftAt("A", clock.now))
	b, _ := svc.CreateItem(ctx, draftAt("B", clock.now.Add(time.Hour)))
	if _, err := svc.MarkCompleted(ctx, a.ID); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}
	if _, coll, _ := store.GetItem(ctx, a.ID); coll != domain.CollectionCompleted {
		t.Fatalf("expected archived item, got %q", coll)
	}
	m, err := svc.GetPerformanceMetrics(ctx)
	if err != nil {
		t.Fatalf("GetPerformanceMetrics() error = %v", err)
	}
	if m.CompletionRate != 50 {
		t.Fatalf("expected archive to count toward completion rate, got %v", m.CompletionRate)
	}

	restored, err := svc.RestoreCompletedItem(ctx, a.ID)
	if err != nil {
		t.Fatalf("RestoreCompletedItem() error = %v", err)
	}
	if restored.Completed || restored.CompletedAt != nil {
		t.Fatalf("expected completion cleared, got %#v", restored)
	}
	if _, coll, _ := store.GetItem(ctx, a.ID); coll != domain.CollectionActive {
		t.Fatalf("expected restored item active, got %q", coll)
	}
	if _, err := svc.RestoreCompletedItem(ctx, b.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for incomplete item, got %v", err)
	}
}

// TestPostponeLimit verifies the postponement budget is enforced.
func TestPostponeLimit(t *testing.T) {
	svc, store, notifier, clock := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	d := draftAt("B", clock.now)
	limit := 1
	d.MaxPostponements = &limit
	b, err := svc.CreateItem(ctx, d)
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	postponed, err := svc.PostponeItem(ctx, b.ID, clock.now.Add(24*time.Hour), domain.PostponeOptions{Reason: "travel", ReasonCategory: domain.ReasonUnavailable})
	if err != nil {
		t.Fatalf("PostponeItem() error = %v", err)
	}
	if len(postponed.Postponements) != 1 || postponed.Interval() != 30*time.Minute {
		t.Fatalf("unexpected postponed item %#v", postponed)
	}
	if got := notifier.ops(); !slices.Equal(got, []string{"one_shot", "cancel", "one_shot", "postponed"}) {
		t.Fatalf("unexpected notifier calls %v", got)
	}
	if store.metrics.PostponementRate != 100 || store.metrics.AverageDelay != 24*60 {
		t.Fatalf("unexpected metrics %#v", store.metrics)
	}

	_, err = svc.PostponeItem(ctx, b.ID, clock.now.Add(48*time.Hour), domain.PostponeOptions{})
	var limitErr *domain.PostponementLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected PostponementLimitError, got %v", err)
	}
	stored, _, _ := store.GetItem(ctx, b.ID)
	if len(stored.Postponements) != 1 || !stored.StartDate.Equal(postponed.StartDate) {
		t.Fatalf("expected stored item untouched, got %#v", stored)
	}
}

// TestPostponeCompletedFails verifies completed items cannot be postponed.
func TestPostponeCompletedFails(t *testing.T) {
	svc, _, _, clock := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	a, _ := svc.CreateItem(ctx, draftAt("A", clock.now))
	_, _ = svc.MarkCompleted(ctx, a.ID)
	if _, err := svc.PostponeItem(ctx, a.ID, clock.now.Add(time.Hour), domain.PostponeOptions{}); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
}

// TestBlockedDependencies verifies blockers gate start and postpone until resolved.
func TestBlockedDependencies(t *testing.T) {
	svc, store, _, clock := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	dItem, err := svc.CreateItem(ctx, draftAt("D", clock.now))
	if err != nil {
		t.Fatalf("CreateItem(D) error = %v", err)
	}
	cDraft := draftAt("C", clock.now.Add(time.Hour))
	cDraft.BlockedBy = []string{dItem.ID}
	cItem, err := svc.CreateItem(ctx, cDraft)
	if err != nil {
		t.Fatalf("CreateItem(C) error = %v", err)
	}
	storedD, _, _ := store.GetItem(ctx, dItem.ID)
	if !slices.Equal(storedD.Blocking, []string{cItem.ID}) {
		t.Fatalf("expected reverse edge on D, got %v", storedD.Blocking)
	}

	blocked, err := svc.GetBlockedTasks(ctx)
	if err != nil || len(blocked) != 1 || blocked[0].ID != cItem.ID {
		t.Fatalf("GetBlockedTasks() = %v, %v", blocked, err)
	}

	_, err = svc.PostponeItem(ctx, cItem.ID, clock.now.Add(24*time.Hour), domain.PostponeOptions{})
	var blockedErr *domain.BlockedError
	if !errors.As(err, &blockedErr) || !slices.Equal(blockedErr.BlockerIDs, []string{dItem.ID}) {
		t.Fatalf("expected BlockedError naming D, got %v", err)
	}
	if _, err := svc.StartItem(ctx, cItem.ID); !errors.Is(err, domain.ErrBlocked) {
		t.Fatalf("expected ErrBlocked on start, got %v", err)
	}

	if _, err := svc.MarkCompleted(ctx, dItem.ID); err != nil {
		t.Fatalf("MarkCompleted(D) error = %v", err)
	}
	if _, err := svc.PostponeItem(ctx, cItem.ID, clock.now.Add(24*time.Hour), domain.PostponeOptions{}); err != nil {
		t.Fatalf("PostponeItem(C) after D completed error = %v", err)
	}
	if blocked, _ := svc.GetBlockedTasks(ctx); len(blocked) != 0 {
		t.Fatalf("expected no blocked items, got %v", blocked)
	}
}

// TestCreateItemRejectsUnknownBlocker verifies blocked_by must name existing items.
func TestCreateItemRejectsUnknownBlocker(t *testing.T) {
	svc, store, _, clock := newTestService(t, ServiceConfig{})
	d := draftAt("C", clock.now)
	d.BlockedBy = []string{"ghost"}
	_, err := svc.CreateItem(context.Background(), d)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || !verr.Has("blocked_by") {
		t.Fatalf("expected blocked_by violation, got %v", err)
	}
	if len(store.entries) != 0 {
		t.Fatal("expected nothing stored")
	}
}

// TestDeleteIsIdempotentAndRestoreRoundTrips verifies repeat deletes are no-ops and restore undoes delete.
func TestDeleteIsIdempotentAndRestoreRoundTrips(t *testing.T) {
	svc, store, notifier, clock := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	a, _ := svc.CreateItem(ctx, draftAt("A", clock.now))
	before, _, _ := store.GetItem(ctx, a.ID)

	clock.Advance(time.Minute)
	if err := svc.DeleteItem(ctx, a.ID); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	afterFirst, coll, _ := store.GetItem(ctx, a.ID)
	if coll != domain.CollectionDeleted || afterFirst.DeletedAt == nil {
		t.Fatalf("expected deleted item, got %q", coll)
	}
	calls := len(notifier.calls)
	clock.Advance(time.Minute)
	if err := svc.DeleteItem(ctx, a.ID); err != nil {
		t.Fatalf("second DeleteItem() error = %v", err)
	}
	afterSecond, _, _ := store.GetItem(ctx, a.ID)
	if !afterSecond.DeletedAt.Equal(*afterFirst.DeletedAt) || len(notifier.calls) != calls {
		t.Fatal("expected second delete to be a no-op")
	}
	if err := svc.DeleteItem(ctx, "missing"); err != nil {
		t.Fatalf("DeleteItem(missing) error = %v", err)
	}

	restored, err := svc.RestoreDeletedItem(ctx, a.ID)
	if err != nil {
		t.Fatalf("RestoreDeletedItem() error = %v", err)
	}
	if restored.DeletedAt != nil {
		t.Fatal("expected deleted_at cleared")
	}
	restored.DeletedAt = before.DeletedAt
	if fmt.Sprintf("%#v", restored) != fmt.Sprintf("%#v", before) {
		t.Fatalf("expected round trip to preserve item\nbefore %#v\nafter  %#v", before, restored)
	}
	if _, coll, _ := store.GetItem(ctx, a.ID); coll != domain.CollectionActive {
		t.Fatalf("expected active after restore, got %q", coll)
	}
	if _, err := svc.RestoreDeletedItem(ctx, a.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition restoring an active item, got %v", err)
	}
}

// TestMissingIDsReturnNotFound verifies unknown ids return ErrNotFound.
func TestMissingIDsReturnNotFound(t *testing.T) {
	svc, _, _, clock := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	checks := map[string]func() error{
		"start":    func() error { _, err := svc.StartItem(ctx, "nope"); return err },
		"complete": func() error { _, err := svc.MarkCompleted(ctx, "nope"); return err },
		"postpone": func() error {
			_, err := svc.PostponeItem(ctx, "nope", clock.now, domain.PostponeOptions{})
			return err
		},
		"update":           func() error { _, err := svc.UpdateItem(ctx, "nope", ItemPatch{}); return err },
		"restore":          func() error { _, err := svc.RestoreDeletedItem(ctx, "nope"); return err },
		"restoreCompleted": func() error { _, err := svc.RestoreCompletedItem(ctx, "nope"); return err },
		"reschedule":       func() error { return svc.RescheduleNotifications(ctx, "nope") },
	}
	for name, fn := range checks {
		if err := fn(); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound, got %v", name, err)
		}
	}

	a, _ := svc.CreateItem(ctx, draftAt("A", clock.now))
	_ = svc.DeleteItem(ctx, a.ID)
	if _, err := svc.StartItem(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted item to count as missing, got %v", err)
	}
}

// TestUpdateItemRevalidatesMergedItem verifies patches are validated against the merged item.
func TestUpdateItemRevalidatesMergedItem(t *testing.T) {
	svc, store, notifier, clock := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	a, _ := svc.CreateItem(ctx, draftAt("A", clock.now))

	badEnd := clock.now.Add(-time.Hour)
	if _, err := svc.UpdateItem(ctx, a.ID, ItemPatch{EndDate: &badEnd}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for inverted interval, got %v", err)
	}
	stored, _, _ := store.GetItem(ctx, a.ID)
	if !stored.EndDate.Equal(a.EndDate) {
		t.Fatal("expected rejected update to leave item untouched")
	}

	title := "A renamed"
	newStart := clock.now.Add(3 * time.Hour)
	updated, err := svc.UpdateItem(ctx, a.ID, ItemPatch{Title: &title, StartDate: &newStart})
	if err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	if updated.Title != title || !updated.EndDate.Equal(newStart.Add(30*time.Minute)) || updated.Duration != 30 {
		t.Fatalf("unexpected updated item %#v", updated)
	}
	if got := notifier.ops(); !slices.Equal(got[len(got)-2:], []string{"cancel", "one_shot"}) {
		t.Fatalf("expected reschedule after timing change, got %v", got)
	}

	dur := 90
	updated, err = svc.UpdateItem(ctx, a.ID, ItemPatch{Duration: &dur})
	if err != nil {
		t.Fatalf("UpdateItem(duration) error = %v", err)
	}
	if !updated.EndDate.Equal(newStart.Add(90 * time.Minute)) {
		t.Fatalf("expected end derived from duration, got %v", updated.EndDate)
	}
}

// TestUpdateItemRejectsDependencyCycle verifies an edit cannot close a blocker cycle.
func TestUpdateItemRejectsDependencyCycle(t *testing.T) {
	svc, store, _, clock := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	a, _ := svc.CreateItem(ctx, draftAt("A", clock.now))
	bDraft := draftAt("B", clock.now)
	bDraft.BlockedBy = []string{a.ID}
	b, _ := svc.CreateItem(ctx, bDraft)

	blockers := []string{b.ID}
	_, err := svc.UpdateItem(ctx, a.ID, ItemPatch{BlockedBy: &blockers})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || !verr.Has("blocked_by") {
		t.Fatalf("expected cycle violation, got %v", err)
	}

	none := []string{}
	if _, err := svc.UpdateItem(ctx, b.ID, ItemPatch{BlockedBy: &none}); err != nil {
		t.Fatalf("UpdateItem(clear blockers) error = %v", err)
	}
	storedA, _, _ := store.GetItem(ctx, a.ID)
	if len(storedA.Blocking) != 0 {
		t.Fatalf("expected reverse edge removed, got %v", storedA.Blocking)
	}
}

// TestConflictsAreReportedNotBlocking verifies overlaps are reported without failing the write.
func TestConflictsAreReportedNotBlocking(t *testing.T) {
	reporter := &recordingReporter{}
	svc, _, _, clock := newTestService(t, ServiceConfig{}, WithConflictReporter(reporter))
	ctx := context.Background()
	long := draftAt("Long", clock.now)
	long.EndDate = clock.now.Add(3 * time.Hour)
	first, _ := svc.CreateItem(ctx, long)

	// Fully contained inside the first item.
	second, err := svc.CreateItem(ctx, draftAt("Inside", clock.now.Add(time.Hour)))
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	got := reporter.reports[second.ID]
	if len(got) != 1 || got[0].ConflictingID != first.ID {
		t.Fatalf("expected conflict with %s, got %#v", first.ID, got)
	}
	conflicts, err := svc.ItemConflicts(ctx, first.ID)
	if err != nil || len(conflicts) != 1 || conflicts[0].ConflictingID != second.ID {
		t.Fatalf("ItemConflicts() = %#v, %v", conflicts, err)
	}
}

// TestNotificationFailuresNeverSurface verifies notifier errors and panics are swallowed.
func TestNotificationFailuresNeverSurface(t *testing.T) {
	svc, store, notifier, clock := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	notifier.fail = errors.New("delivery down")
	a, err := svc.CreateItem(ctx, draftAt("A", clock.now))
	if err != nil {
		t.Fatalf("CreateItem() with failing notifier error = %v", err)
	}
	notifier.fail = nil
	notifier.panic = true
	if err := svc.DeleteItem(ctx, a.ID); err != nil {
		t.Fatalf("DeleteItem() with panicking notifier error = %v", err)
	}
	if _, coll, _ := store.GetItem(ctx, a.ID); coll != domain.CollectionDeleted {
		t.Fatalf("expected committed delete, got %q", coll)
	}
}

// TestStoreFailurePropagates verifies store errors reach the caller.
func TestStoreFailurePropagates(t *testing.T) {
	svc, store, notifier, clock := newTestService(t, ServiceConfig{})
	store.applyErr = errors.New("disk full")
	if _, err := svc.CreateItem(context.Background(), draftAt("A", clock.now)); err == nil || err.Error() != "disk full" {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(notifier.calls) != 0 {
		t.Fatal("expected no notifications after failed commit")
	}
}

// TestRestoreDoesNotReschedule verifies restore plans nothing until notifications are rescheduled.
func TestRestoreDoesNotReschedule(t *testing.T) {
	svc, _, notifier, clock := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	a, _ := svc.CreateItem(ctx, draftAt("A", clock.now))
	_ = svc.DeleteItem(ctx, a.ID)
	calls := len(notifier.calls)
	if _, err := svc.RestoreDeletedItem(ctx, a.ID); err != nil {
		t.Fatalf("RestoreDeletedItem() error = %v", err)
	}
	if len(notifier.calls) != calls {
		t.Fatalf("expected restore to leave notifications alone, got %v", notifier.ops())
	}
	if err := svc.RescheduleNotifications(ctx, a.ID); err != nil {
		t.Fatalf("RescheduleNotifications() error = %v", err)
	}
	if got := notifier.ops()[calls:]; !slices.Equal(got, []string{"cancel", "one_shot"}) {
		t.Fatalf("unexpected reschedule calls %v", got)
	}
}

// TestDraftLifecycle verifies a rejected draft stays saved and a valid one submits.
func TestDraftLifecycle(t *testing.T) {
	svc, store, _, clock := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	if _, err := svc.CreateFromDraft(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound without draft, got %v", err)
	}
	bad := draftAt("", clock.now)
	if err := svc.SaveDraft(ctx, bad); err != nil {
		t.Fatalf("SaveDraft() error = %v", err)
	}
	if _, err := svc.CreateFromDraft(ctx); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if store.draft == nil {
		t.Fatal("expected rejected draft to stay saved")
	}
	if err := svc.SaveDraft(ctx, draftAt("From draft", clock.now)); err != nil {
		t.Fatalf("SaveDraft() error = %v", err)
	}
	item, err := svc.CreateFromDraft(ctx)
	if err != nil || item.Title != "From draft" {
		t.Fatalf("CreateFromDraft() = %#v, %v", item, err)
	}
	if _, err := svc.LoadDraft(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected draft cleared, got %v", err)
	}
	if err := svc.DiscardDraft(ctx); err != nil {
		t.Fatalf("DiscardDraft() error = %v", err)
	}
}
