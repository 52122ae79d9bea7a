package dashboard

import (
	"context"
	"errors"
	"excalidash/core"
	"slices"
	"sync/atomic"
	"testing"
	"time"
)

func setup(t *testing.T, remote *fakeRemote, opts Options) *Dashboard {
	t.Helper()
	opts.Remote = remote
	if opts.SearchDebounce == 0 {
		opts.SearchDebounce = 10 * time.Millisecond
	}
	d := New(context.Background(), opts)
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}
	return d
}

func viewIDs(d *Dashboard) []string {
	return ids(d.Items())
}

func byName() SortConfig { return SortConfig{Field: SortName, Direction: Ascending} }

func TestDashboard_OptimisticMove(t *testing.T) {
	remote := newFakeRemote(
		drawing("1", "a", ref("work")),
		drawing("2", "b", ref("work")),
	)
	remote.updateGate = make(chan struct{})
	d := setup(t, remote, Options{Scope: core.CollectionScope("work"), Sort: byName()})
	d.Toggle("1", false)

	op, err := d.Move(context.Background(), ref("home"), "1")
	if err != nil {
		t.Fatalf("Move() failed: %v", err)
	}

	// The remote call is still blocked on the gate.
	if got := viewIDs(d); !slices.Equal(got, []string{"2"}) {
		t.Errorf("view before remote resolved = %v, want [2]", got)
	}
	if d.IsSelected("1") {
		t.Error("moved drawing is still selected")
	}
	select {
	case <-op.Done():
		t.Fatal("operation finished before the remote call")
	default:
	}

	close(remote.updateGate)
	if err := op.Wait(); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	if got := remote.collectionOf("1"); got == nil || *got != "home" {
		t.Errorf("remote collection = %v, want home", got)
	}
}

func TestDashboard_BulkTrashRollback(t *testing.T) {
	remote := newFakeRemote(
		drawing("1", "a", nil),
		drawing("2", "b", nil),
		drawing("3", "c", nil),
	)
	remote.updateErr["2"] = errRemote
	d := setup(t, remote, Options{Scope: core.UnorganizedScope(), Sort: byName()})
	d.SelectAll()

	op, err := d.TrashSelection(context.Background())
	if err != nil {
		t.Fatalf("TrashSelection() failed: %v", err)
	}
	if got := viewIDs(d); len(got) != 0 {
		t.Errorf("view after optimistic trash = %v, want empty", got)
	}

	err = op.Wait()
	var re *RemoteError
	if !errors.As(err, &re) || re.ID != "2" || !errors.Is(err, errRemote) {
		t.Fatalf("Wait() = %v, want RemoteError for 2", err)
	}

	// Local state now mirrors the remote exactly.
	for _, item := range d.Items() {
		if !core.SameCollection(item.CollectionID, remote.collectionOf(item.ID)) {
			t.Errorf("drawing %s: local %v, remote %v", item.ID, item.CollectionID, remote.collectionOf(item.ID))
		}
	}
	if got := viewIDs(d); !slices.Equal(got, []string{"2"}) {
		t.Errorf("view after rollback = %v, want [2]", got)
	}
	if d.SelectionCount() != 0 {
		t.Errorf("selection survived the rollback: %v", d.Selected())
	}
}

func TestDashboard_TrashRejectedInTrashView(t *testing.T) {
	remote := newFakeRemote(drawing("1", "a", ref(core.TrashCollectionID)))
	d := setup(t, remote, Options{Scope: core.TrashScope()})

	_, err := d.Trash(context.Background(), "1")
	var ve *ValidationError
	if !errors.As(err, &ve) || !errors.Is(err, ErrTrashView) {
		t.Fatalf("Trash() = %v, want ErrTrashView", err)
	}
	if remote.updateCalls != 0 {
		t.Errorf("remote was called %d times", remote.updateCalls)
	}
}

func TestDashboard_BulkDeleteInTrash(t *testing.T) {
	remote := newFakeRemote(
		drawing("1", "a", ref(core.TrashCollectionID)),
		drawing("2", "b", ref(core.TrashCollectionID)),
	)
	c := &confirmer{answer: true}
	d := setup(t, remote, Options{Scope: core.TrashScope(), Confirmer: c})
	d.Toggle("1", false)
	d.Toggle("2", false)

	op, err := d.DeleteSelection(context.Background())
	if err != nil {
		t.Fatalf("DeleteSelection() failed: %v", err)
	}
	if len(c.counts) != 1 || c.counts[0] != 2 || c.prompts[0] != "Permanently delete 2 drawings?" {
		t.Errorf("confirmation = %v %v", c.prompts, c.counts)
	}
	if err := op.Wait(); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	if got := viewIDs(d); len(got) != 0 {
		t.Errorf("view = %v, want empty", got)
	}
	if d.SelectionCount() != 0 {
		t.Errorf("selection = %v, want empty", d.Selected())
	}
	if remote.count() != 0 {
		t.Errorf("remote still has %d drawings", remote.count())
	}
}

func TestDashboard_DeleteDeclined(t *testing.T) {
	remote := newFakeRemote(drawing("1", "a", nil))
	for _, opts := range []Options{{}, {Confirmer: &confirmer{answer: false}}} {
		d := setup(t, remote, opts)
		_, err := d.Delete(context.Background(), "1")
		if !errors.Is(err, ErrNotConfirmed) {
			t.Errorf("Delete() = %v, want ErrNotConfirmed", err)
		}
		if got := viewIDs(d); !slices.Equal(got, []string{"1"}) {
			t.Errorf("view = %v, want [1]", got)
		}
	}
	if remote.deleteCalls != 0 {
		t.Errorf("remote delete called %d times", remote.deleteCalls)
	}
}

func TestDashboard_ValidationErrors(t *testing.T) {
	d := setup(t, newFakeRemote(drawing("1", "a", nil)), Options{})
	ctx := context.Background()

	if _, err := d.TrashSelection(ctx); !errors.Is(err, ErrEmptySelection) {
		t.Errorf("TrashSelection() on empty selection = %v", err)
	}
	if _, err := d.Move(ctx, nil, "missing"); !errors.Is(err, ErrUnknownDrawing) {
		t.Errorf("Move(missing) = %v", err)
	}
	if _, err := d.Rename(ctx, "1", "  "); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Rename(blank) = %v", err)
	}
}

func TestDashboard_RenameFailureIsOnlyLogged(t *testing.T) {
	remote := newFakeRemote(drawing("1", "old", nil), drawing("2", "b", nil))
	remote.updateErr["1"] = errRemote
	d := setup(t, remote, Options{Sort: byName()})
	lists := remote.listCalls

	op, err := d.Rename(context.Background(), "1", "zeta")
	if err != nil {
		t.Fatalf("Rename() failed: %v", err)
	}
	if got := viewIDs(d); !slices.Equal(got, []string{"2", "1"}) {
		t.Errorf("view after rename = %v, want [2 1]", got)
	}
	if err := op.Wait(); !errors.Is(err, errRemote) {
		t.Errorf("Wait() = %v, want errRemote", err)
	}
	if remote.listCalls != lists {
		t.Error("failed rename triggered a refresh")
	}
	if items := d.Items(); items[1].Name != "zeta" {
		t.Errorf("local name = %q, want zeta", items[1].Name)
	}
}

func TestDashboard_DuplicateIsNotOptimistic(t *testing.T) {
	remote := newFakeRemote(drawing("1", "a", nil), drawing("2", "b", nil))
	remote.updateGate = make(chan struct{})
	d := setup(t, remote, Options{})
	d.SelectAll()

	op, err := d.DuplicateSelection(context.Background())
	if err != nil {
		t.Fatalf("DuplicateSelection() failed: %v", err)
	}
	if n := len(d.Items()); n != 2 {
		t.Errorf("view has %d items before the remote answered", n)
	}
	if d.SelectionCount() != 0 {
		t.Error("bulk duplicate kept the selection")
	}

	close(remote.updateGate)
	if err := op.Wait(); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	if n := len(d.Items()); n != 4 {
		t.Errorf("view has %d items after refresh, want 4", n)
	}
}

func TestDashboard_DuplicateSelectionClearsFirst(t *testing.T) {
	remote := newFakeRemote(drawing("1", "a", nil))
	d := setup(t, remote, Options{})
	d.SelectAll()

	selected := make(chan int, 1)
	remote.mu.Lock()
	remote.onDuplicate = func() { selected <- d.SelectionCount() }
	remote.mu.Unlock()

	op, err := d.DuplicateSelection(context.Background())
	if err != nil {
		t.Fatalf("DuplicateSelection() failed: %v", err)
	}
	if n := <-selected; n != 0 {
		t.Errorf("selection had %d items when the remote was called", n)
	}
	if err := op.Wait(); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
}

func TestDashboard_DuplicateRejectedInTrash(t *testing.T) {
	d := setup(t, newFakeRemote(drawing("1", "a", ref(core.TrashCollectionID))), Options{Scope: core.TrashScope()})
	if _, err := d.Duplicate(context.Background(), "1"); !errors.Is(err, ErrTrashView) {
		t.Errorf("Duplicate() = %v, want ErrTrashView", err)
	}
	if _, err := d.CreateDrawing(context.Background(), "x"); !errors.Is(err, ErrTrashView) {
		t.Errorf("CreateDrawing() = %v, want ErrTrashView", err)
	}
}

func TestDashboard_StaleRefreshIsDiscarded(t *testing.T) {
	remote := newFakeRemote(drawing("1", "a", nil), drawing("2", "b", nil))
	d := setup(t, remote, Options{})

	remote.mu.Lock()
	remote.listGate = make(chan struct{})
	remote.listCalled = make(chan struct{}, 1)
	remote.updateGate = make(chan struct{})
	remote.mu.Unlock()

	refreshed := make(chan error, 1)
	go func() { refreshed <- d.Refresh(context.Background()) }()
	<-remote.listCalled

	op, err := d.Move(context.Background(), ref("work"), "1")
	if err != nil {
		t.Fatalf("Move() failed: %v", err)
	}

	// The refresh read the remote before the move was committed.
	close(remote.listGate)
	if err := <-refreshed; err != nil {
		t.Fatalf("Refresh() = %v", err)
	}
	for _, item := range d.Items() {
		if item.ID == "1" && !core.SameCollection(item.CollectionID, ref("work")) {
			t.Fatalf("stale refresh overwrote the move: %v", item.CollectionID)
		}
	}

	close(remote.updateGate)
	if err := op.Wait(); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	d.Wait()
	for _, item := range d.Items() {
		if item.ID == "1" && !core.SameCollection(item.CollectionID, ref("work")) {
			t.Errorf("drawing 1 collection = %v, want work", item.CollectionID)
		}
	}
}

func TestDashboard_SearchIsDebounced(t *testing.T) {
	remote := newFakeRemote(drawing("1", "alpha", nil), drawing("2", "beta", nil))
	d := setup(t, remote, Options{SearchDebounce: 30 * time.Millisecond})
	remote.mu.Lock()
	remote.searches = nil
	remote.mu.Unlock()

	d.SetSearch("b")
	d.SetSearch("be")
	d.SetSearch("bet")
	d.Wait()

	remote.mu.Lock()
	searches := slices.Clone(remote.searches)
	remote.mu.Unlock()
	if !slices.Equal(searches, []string{"bet"}) {
		t.Errorf("searches sent = %q, want [bet]", searches)
	}
	if got := viewIDs(d); !slices.Equal(got, []string{"2"}) {
		t.Errorf("view = %v, want [2]", got)
	}
}

func TestDashboard_SearchBurstsAroundDebounce(t *testing.T) {
	d := setup(t, newFakeRemote(drawing("1", "alpha", nil)), Options{SearchDebounce: 200 * time.Microsecond})

	// Typing at about the debounce delay lets timers fire between calls.
	for i := range 2000 {
		d.SetSearch("a")
		time.Sleep(time.Duration(150+i%100) * time.Microsecond)
	}
	d.Wait()

	d.mu.Lock()
	pending := d.searchPending
	d.mu.Unlock()
	if pending {
		t.Error("search still pending after Wait")
	}
	if got := viewIDs(d); !slices.Equal(got, []string{"1"}) {
		t.Errorf("view = %v, want [1]", got)
	}
}

func TestDashboard_SetScope(t *testing.T) {
	remote := newFakeRemote(drawing("1", "a", nil), drawing("2", "b", ref("work")))
	d := setup(t, remote, Options{Sort: byName()})
	d.SelectAll()

	if err := d.SetScope(context.Background(), core.CollectionScope("work")).Wait(); err != nil {
		t.Fatalf("SetScope() = %v", err)
	}
	if got := viewIDs(d); !slices.Equal(got, []string{"2"}) {
		t.Errorf("view = %v, want [2]", got)
	}
	if got := d.Selected(); !slices.Equal(got, []string{"2"}) {
		t.Errorf("selection = %v, want [2]", got)
	}
}

func TestDashboard_Collections(t *testing.T) {
	remote := newFakeRemote(drawing("1", "a", ref("col-9")), drawing("2", "b", nil))
	remote.collections = []*core.Collection{{ID: "col-9", Name: "Work"}}
	d := setup(t, remote, Options{Scope: core.CollectionScope("col-9")})
	ctx := context.Background()

	op, err := d.RenameCollection(ctx, "col-9", "Job")
	if err != nil {
		t.Fatalf("RenameCollection() failed: %v", err)
	}
	if cs := d.Collections(); cs[0].Name != "Job" {
		t.Errorf("local name = %q, want Job", cs[0].Name)
	}
	if err := op.Wait(); err != nil {
		t.Fatalf("Wait() = %v", err)
	}

	op, err = d.DeleteCollection(ctx, "col-9")
	if err != nil {
		t.Fatalf("DeleteCollection() failed: %v", err)
	}
	if d.Filter().Scope.Kind != core.ScopeAll {
		t.Errorf("scope = %v, want all", d.Filter().Scope)
	}
	if err := op.Wait(); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	if len(d.Collections()) != 0 {
		t.Errorf("collections = %v", d.Collections())
	}
	for _, item := range d.Items() {
		if item.CollectionID != nil {
			t.Errorf("drawing %s still in %s", item.ID, *item.CollectionID)
		}
	}

	if _, err := d.CreateCollection(ctx, ""); !errors.Is(err, ErrEmptyName) {
		t.Errorf("CreateCollection(\"\") = %v", err)
	}
	op, err = d.CreateCollection(ctx, "Ideas")
	if err != nil {
		t.Fatalf("CreateCollection() failed: %v", err)
	}
	if err := op.Wait(); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	if cs := d.Collections(); len(cs) != 1 || cs[0].Name != "Ideas" {
		t.Errorf("collections = %v", cs)
	}
}

func TestDashboard_CollectionsHideTrash(t *testing.T) {
	remote := newFakeRemote()
	remote.collections = []*core.Collection{{ID: core.TrashCollectionID, Name: "Trash"}, {ID: "x", Name: "X"}}
	d := setup(t, remote, Options{})
	if cs := d.Collections(); len(cs) != 1 || cs[0].ID != "x" {
		t.Errorf("Collections() = %v", cs)
	}
	if _, err := d.RenameCollection(context.Background(), core.TrashCollectionID, "Bin"); !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("RenameCollection(trash) = %v", err)
	}
}

func TestDashboard_SetPreview(t *testing.T) {
	remote := newFakeRemote(drawing("1", "a", nil))
	d := setup(t, remote, Options{})

	op, err := d.SetPreview(context.Background(), "1", "data:image/png;base64,AA==")
	if err != nil {
		t.Fatalf("SetPreview() failed: %v", err)
	}
	if d.Items()[0].Preview == "" {
		t.Error("preview not applied locally")
	}
	if err := op.Wait(); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
}

func TestDashboard_SetScopeNotifies(t *testing.T) {
	var changes atomic.Int32
	remote := newFakeRemote(drawing("1", "a", nil), drawing("2", "b", ref("work")))
	d := setup(t, remote, Options{OnChange: func() { changes.Add(1) }})
	before := changes.Load()

	remote.mu.Lock()
	remote.listGate = make(chan struct{})
	remote.mu.Unlock()

	op := d.SetScope(context.Background(), core.CollectionScope("work"))
	if got := changes.Load() - before; got != 1 {
		t.Errorf("OnChange called %d times before the refresh, want 1", got)
	}
	if got := viewIDs(d); !slices.Equal(got, []string{"2"}) {
		t.Errorf("view = %v, want [2]", got)
	}

	close(remote.listGate)
	if err := op.Wait(); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	if got := changes.Load() - before; got != 2 {
		t.Errorf("OnChange called %d times, want 2", got)
	}
}

func TestDashboard_OnChange(t *testing.T) {
	changes := 0
	d := setup(t, newFakeRemote(drawing("1", "a", nil)), Options{OnChange: func() { changes++ }})
	before := changes
	d.Toggle("1", false)
	d.ClearSelection()
	if changes-before != 2 {
		t.Errorf("OnChange called %d times, want 2", changes-before)
	}
}
