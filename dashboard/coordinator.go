// Package dashboard keeps a local, optimistically updated mirror of a user's
// drawings and collections and the selection made over it.
//
// Commands commit their local effect before returning and push the change to
// the Remote in the background. A failed push is undone by re-reading the
// remote state, which also clears the selection. Every local commit bumps a
// generation counter; a refresh that raced with a newer commit is discarded
// and repeated once the in-flight work has settled.
package dashboard

import (
	"context"
	"errors"
	"excalidash/core"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultSearchDebounce is used when Options.SearchDebounce is zero.
const DefaultSearchDebounce = 300 * time.Millisecond

type Options struct {
	Remote Remote
	// Importer defaults to RemoteImporter over Remote.
	Importer Importer
	// Confirmer gates permanent deletes. Without one they are always declined.
	Confirmer      Confirmer
	Sort           SortConfig
	Scope          core.Scope
	SearchDebounce time.Duration
	// OnChange is called, outside any lock, after the visible state changed.
	OnChange func()
}

type Dashboard struct {
	ctx      context.Context
	remote   Remote
	importer Importer
	confirm  Confirmer
	onChange func()
	search   func(func())
	log      *logrus.Entry
	wg       sync.WaitGroup

	mu             sync.Mutex
	items          []*core.Drawing
	view           []*core.Drawing
	collections    []*core.Collection
	selection      *Selection
	filter         Filter
	sort           SortConfig
	gen            uint64
	inflight       int
	pendingRefresh bool
	pendingClear   bool
	searchPending  bool
}

// New creates an empty dashboard. ctx bounds background work that is not
// tied to a command, such as debounced searches.
func New(ctx context.Context, opts Options) *Dashboard {
	delay := opts.SearchDebounce
	if delay <= 0 {
		delay = DefaultSearchDebounce
	}
	d := &Dashboard{
		ctx:       ctx,
		remote:    opts.Remote,
		importer:  opts.Importer,
		confirm:   opts.Confirmer,
		onChange:  opts.OnChange,
		search:    debounce.New(delay),
		log:       logrus.WithField("component", "dashboard"),
		selection: NewSelection(),
		filter:    Filter{Scope: opts.Scope},
		sort:      opts.Sort,
	}
	if d.importer == nil {
		d.importer = RemoteImporter{Remote: opts.Remote}
	}
	return d
}

// Wait blocks until every background operation has finished.
func (d *Dashboard) Wait() {
	d.wg.Wait()
}

func (d *Dashboard) notify() {
	if d.onChange != nil {
		d.onChange()
	}
}

// Items returns the current ordered view.
func (d *Dashboard) Items() []*core.Drawing {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*core.Drawing, len(d.view))
	for i, item := range d.view {
		out[i] = item.Clone()
	}
	return out
}

// Collections returns the user's collections. The trash is never included.
func (d *Dashboard) Collections() []*core.Collection {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*core.Collection, 0, len(d.collections))
	for _, c := range d.collections {
		if c.ID == core.TrashCollectionID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out
}

func (d *Dashboard) Filter() Filter {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filter
}

func (d *Dashboard) Sort() SortConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sort
}

// Selected returns the selected ids in view order.
func (d *Dashboard) Selected() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selection.IDs()
}

func (d *Dashboard) IsSelected(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selection.Has(id)
}

func (d *Dashboard) SelectionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selection.Count()
}

func (d *Dashboard) Toggle(id string, rangeHeld bool) {
	d.mu.Lock()
	d.selection.Toggle(id, rangeHeld)
	d.mu.Unlock()
	d.notify()
}

func (d *Dashboard) SelectAll() {
	d.mu.Lock()
	d.selection.SelectAll(ids(d.view))
	d.mu.Unlock()
	d.notify()
}

func (d *Dashboard) ClearSelection() {
	d.mu.Lock()
	d.selection.Clear()
	d.mu.Unlock()
	d.notify()
}

// AddToSelection unions ids into the selection, ignoring ids not in view.
func (d *Dashboard) AddToSelection(ids ...string) {
	d.mu.Lock()
	d.selection.Add(ids...)
	d.mu.Unlock()
	d.notify()
}

// rederive recomputes the view and prunes the selection. d.mu must be held.
func (d *Dashboard) rederive() {
	d.view = Derive(d.items, d.filter.Scope, d.sort)
	d.selection.SetView(ids(d.view))
}

// SetSort reorders the view. No remote call is made.
func (d *Dashboard) SetSort(cfg SortConfig) {
	d.mu.Lock()
	d.sort = cfg
	d.rederive()
	d.mu.Unlock()
	d.notify()
}

// SetScope switches the active collection and re-reads it from the remote.
func (d *Dashboard) SetScope(ctx context.Context, scope core.Scope) *Op {
	d.mu.Lock()
	d.filter.Scope = scope
	d.gen++
	d.rederive()
	op := d.launch(ctx, "list", refreshAfter, nil)
	d.mu.Unlock()

	d.notify()
	return op
}

// SetSearch updates the search text. The re-read is debounced so that only
// the last of a burst of changes reaches the remote.
//
// One wg slot covers a burst. It is released by the first callback that finds
// the burst still pending; that callback's refresh reads the filter after
// every SetSearch it covers, so later callbacks of the same burst do nothing.
func (d *Dashboard) SetSearch(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filter.Search = text
	d.gen++
	if !d.searchPending {
		d.searchPending = true
		d.wg.Add(1)
	}
	d.search(d.runSearch)
}

func (d *Dashboard) runSearch() {
	d.mu.Lock()
	if !d.searchPending {
		d.mu.Unlock()
		return
	}
	d.searchPending = false
	d.mu.Unlock()

	defer d.wg.Done()
	if err := d.refresh(d.ctx, false); err != nil {
		d.log.WithError(err).Warn("Search failed")
	}
}

// Refresh replaces local state with the remote's. Selected ids that are gone
// from the new view are dropped.
func (d *Dashboard) Refresh(ctx context.Context) error {
	return d.refresh(ctx, false)
}

func (d *Dashboard) fetch(ctx context.Context, f Filter) ([]*core.Drawing, []*core.Collection, error) {
	var (
		items       []*core.Drawing
		collections []*core.Collection
		g           errgroup.Group
	)
	g.Go(func() (err error) {
		items, err = d.remote.ListDrawings(ctx, f.Search, f.Scope)
		if err != nil {
			return &RemoteError{Op: "list drawings", Err: err}
		}
		return nil
	})
	g.Go(func() (err error) {
		collections, err = d.remote.ListCollections(ctx)
		if err != nil {
			return &RemoteError{Op: "list collections", Err: err}
		}
		return nil
	})
	return items, collections, g.Wait()
}

// refresh re-reads the remote state. Results fetched while a newer local
// commit happened are dropped: the refresh is retried immediately when nothing
// is in flight, otherwise it is left to the last in-flight operation.
func (d *Dashboard) refresh(ctx context.Context, clearSelection bool) error {
	for {
		d.mu.Lock()
		gen, filter := d.gen, d.filter
		d.mu.Unlock()

		items, collections, err := d.fetch(ctx, filter)
		if err != nil {
			return err
		}

		d.mu.Lock()
		if d.gen != gen {
			if d.inflight > 0 {
				d.pendingRefresh = true
				d.pendingClear = d.pendingClear || clearSelection
				d.mu.Unlock()
				d.log.Debug("Discarding stale refresh")
				return nil
			}
			d.mu.Unlock()
			continue
		}
		if clearSelection || d.pendingClear {
			d.selection.Clear()
		}
		d.pendingRefresh, d.pendingClear = false, false
		d.items = items
		d.collections = collections
		d.rederive()
		d.mu.Unlock()

		d.notify()
		return nil
	}
}

type policy int

const (
	// rollbackOnError re-reads remote state, clearing the selection, when
	// the work fails.
	rollbackOnError policy = iota
	// logOnError only logs failures.
	logOnError
	// refreshAfter always re-reads remote state once the work is done.
	refreshAfter
)

// launch runs work in the background under p. d.mu must be held, so that the
// operation is accounted for together with the commit that preceded it.
func (d *Dashboard) launch(ctx context.Context, name string, p policy, work func(context.Context) error) *Op {
	op := newOp()
	d.start(ctx, op, name, p, work)
	return op
}

// start is launch for a caller-provided Op.
func (d *Dashboard) start(ctx context.Context, op *Op, name string, p policy, work func(context.Context) error) {
	d.inflight++
	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		var err error
		if work != nil {
			err = work(ctx)
		}
		if err != nil {
			d.logRemoteError(name, err)
		}

		d.mu.Lock()
		d.inflight--
		settle := d.pendingRefresh && d.inflight == 0
		d.mu.Unlock()

		failed := err != nil && p != logOnError
		if failed || p == refreshAfter || settle {
			if rerr := d.refresh(ctx, failed); rerr != nil {
				d.log.WithError(rerr).Error("Refresh failed")
				if err == nil {
					err = rerr
				}
			}
		}
		op.finish(err)
	}()
}

func (d *Dashboard) logRemoteError(name string, err error) {
	entry := d.log.WithError(err).WithField("operation", name)
	var re *RemoteError
	if errors.As(err, &re) && re.ID != "" {
		entry = entry.WithField("drawing_id", re.ID)
	}
	entry.Warn("Remote call failed")
}

// batch calls fn once per id concurrently and returns the first failure.
func batch(ctx context.Context, name string, ids []string, fn func(ctx context.Context, id string) error) error {
	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			if err := fn(ctx, id); err != nil {
				return &RemoteError{Op: name, ID: id, Err: err}
			}
			return nil
		})
	}
	return g.Wait()
}

// lookup returns the local item with the given id. d.mu must be held.
func (d *Dashboard) lookup(id string) *core.Drawing {
	for _, item := range d.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// known rejects empty or unknown id lists. d.mu must be held.
func (d *Dashboard) known(op string, ids []string) error {
	if len(ids) == 0 {
		return invalid(op, ErrEmptySelection)
	}
	for _, id := range ids {
		if d.lookup(id) == nil {
			return invalid(op, fmt.Errorf("%w: %s", ErrUnknownDrawing, id))
		}
	}
	return nil
}

// Rename renames a drawing locally and pushes the new name. A failed push is
// only logged.
func (d *Dashboard) Rename(ctx context.Context, id, name string) (*Op, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("rename", ErrEmptyName)
	}

	d.mu.Lock()
	item := d.lookup(id)
	if item == nil {
		d.mu.Unlock()
		return nil, invalid("rename", fmt.Errorf("%w: %s", ErrUnknownDrawing, id))
	}
	item.Name = name
	d.gen++
	d.rederive()
	op := d.launch(ctx, "rename", logOnError, func(ctx context.Context) error {
		if err := d.remote.UpdateDrawing(ctx, id, core.DrawingPatch{Name: &name}); err != nil {
			return &RemoteError{Op: "rename", ID: id, Err: err}
		}
		return nil
	})
	d.mu.Unlock()

	d.notify()
	return op, nil
}

// SetPreview stores a freshly rendered preview. Like Rename, failures are
// only logged.
func (d *Dashboard) SetPreview(ctx context.Context, id, preview string) (*Op, error) {
	d.mu.Lock()
	item := d.lookup(id)
	if item == nil {
		d.mu.Unlock()
		return nil, invalid("preview", fmt.Errorf("%w: %s", ErrUnknownDrawing, id))
	}
	item.Preview = preview
	d.gen++
	d.rederive()
	op := d.launch(ctx, "preview", logOnError, func(ctx context.Context) error {
		if err := d.remote.UpdateDrawing(ctx, id, core.DrawingPatch{Preview: &preview}); err != nil {
			return &RemoteError{Op: "preview", ID: id, Err: err}
		}
		return nil
	})
	d.mu.Unlock()

	d.notify()
	return op, nil
}

// Move reassigns ids to the collection target, nil meaning unorganized.
// Items that no longer belong to the active scope leave the view at once.
func (d *Dashboard) Move(ctx context.Context, target *string, ids ...string) (*Op, error) {
	target = core.NormalizeCollectionID(target)
	if target != nil && *target == core.TrashCollectionID {
		return d.Trash(ctx, ids...)
	}
	return d.move(ctx, "move", target, ids)
}

// MoveSelection moves every selected drawing to target.
func (d *Dashboard) MoveSelection(ctx context.Context, target *string) (*Op, error) {
	return d.Move(ctx, target, d.Selected()...)
}

// Trash moves ids to the trash. It is rejected while the trash is in view.
func (d *Dashboard) Trash(ctx context.Context, ids ...string) (*Op, error) {
	return d.move(ctx, "trash", core.CollectionRef(core.TrashCollectionID), ids)
}

func (d *Dashboard) TrashSelection(ctx context.Context) (*Op, error) {
	return d.Trash(ctx, d.Selected()...)
}

func (d *Dashboard) move(ctx context.Context, name string, target *string, ids []string) (*Op, error) {
	ids = slices.Compact(slices.Sorted(slices.Values(ids)))

	d.mu.Lock()
	if d.filter.Scope.IsTrash() && target != nil && *target == core.TrashCollectionID {
		d.mu.Unlock()
		return nil, invalid(name, ErrTrashView)
	}
	if err := d.known(name, ids); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	for _, id := range ids {
		d.lookup(id).CollectionID = core.NormalizeCollectionID(target)
	}
	d.selection.Remove(ids...)
	d.gen++
	d.rederive()
	op := d.launch(ctx, name, rollbackOnError, func(ctx context.Context) error {
		return batch(ctx, name, ids, func(ctx context.Context, id string) error {
			return d.remote.UpdateDrawing(ctx, id, core.DrawingPatch{Move: true, MoveTo: target})
		})
	})
	d.mu.Unlock()

	d.notify()
	return op, nil
}

// Delete permanently deletes ids once the Confirmer agreed.
func (d *Dashboard) Delete(ctx context.Context, ids ...string) (*Op, error) {
	ids = slices.Compact(slices.Sorted(slices.Values(ids)))

	d.mu.Lock()
	err := d.known("delete", ids)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	prompt := "Permanently delete this drawing?"
	if len(ids) > 1 {
		prompt = fmt.Sprintf("Permanently delete %d drawings?", len(ids))
	}
	if d.confirm == nil || !d.confirm.Confirm(prompt, len(ids)) {
		return nil, invalid("delete", ErrNotConfirmed)
	}

	d.mu.Lock()
	// The list may have changed while the user was asked.
	if err := d.known("delete", ids); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	d.items = slices.DeleteFunc(d.items, func(item *core.Drawing) bool {
		return slices.Contains(ids, item.ID)
	})
	d.selection.Remove(ids...)
	d.gen++
	d.rederive()
	op := d.launch(ctx, "delete", rollbackOnError, func(ctx context.Context) error {
		return batch(ctx, "delete", ids, d.remote.DeleteDrawing)
	})
	d.mu.Unlock()

	d.notify()
	return op, nil
}

func (d *Dashboard) DeleteSelection(ctx context.Context) (*Op, error) {
	return d.Delete(ctx, d.Selected()...)
}

// Duplicate copies ids on the remote and then re-reads the list. Nothing is
// added locally before the copies exist.
func (d *Dashboard) Duplicate(ctx context.Context, ids ...string) (*Op, error) {
	return d.duplicate(ctx, ids, false)
}

// DuplicateSelection clears the selection and duplicates what was selected.
func (d *Dashboard) DuplicateSelection(ctx context.Context) (*Op, error) {
	return d.duplicate(ctx, d.Selected(), true)
}

func (d *Dashboard) duplicate(ctx context.Context, ids []string, clearSelection bool) (*Op, error) {
	ids = slices.Compact(slices.Sorted(slices.Values(ids)))

	d.mu.Lock()
	if d.filter.Scope.IsTrash() {
		d.mu.Unlock()
		return nil, invalid("duplicate", ErrTrashView)
	}
	if err := d.known("duplicate", ids); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	if clearSelection {
		d.selection.Clear()
	}
	op := d.launch(ctx, "duplicate", refreshAfter, func(ctx context.Context) error {
		return batch(ctx, "duplicate", ids, func(ctx context.Context, id string) error {
			_, err := d.remote.DuplicateDrawing(ctx, id)
			return err
		})
	})
	d.mu.Unlock()

	if clearSelection {
		d.notify()
	}
	return op, nil
}

// CreateDrawing creates an empty drawing in the active collection.
func (d *Dashboard) CreateDrawing(ctx context.Context, name string) (*Op, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Untitled Drawing"
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.filter.Scope.IsTrash() {
		return nil, invalid("create", ErrTrashView)
	}
	target := scopeTarget(d.filter.Scope)
	return d.launch(ctx, "create", refreshAfter, func(ctx context.Context) error {
		if _, err := d.remote.CreateDrawing(ctx, core.DrawingInput{Name: name, CollectionID: target}); err != nil {
			return &RemoteError{Op: "create", Err: err}
		}
		return nil
	}), nil
}

// scopeTarget is where new drawings land when created in scope.
func scopeTarget(scope core.Scope) *string {
	if scope.Kind == core.ScopeCollection {
		return core.CollectionRef(scope.CollectionID)
	}
	return nil
}

// lookupCollection finds a collection by id. d.mu must be held.
func (d *Dashboard) lookupCollection(id string) int {
	return slices.IndexFunc(d.collections, func(c *core.Collection) bool { return c.ID == id })
}

// CreateCollection creates a collection and re-reads the remote state.
func (d *Dashboard) CreateCollection(ctx context.Context, name string) (*Op, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("create collection", ErrEmptyName)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.launch(ctx, "create collection", refreshAfter, func(ctx context.Context) error {
		if _, err := d.remote.CreateCollection(ctx, name); err != nil {
			return &RemoteError{Op: "create collection", Err: err}
		}
		return nil
	}), nil
}

func (d *Dashboard) RenameCollection(ctx context.Context, id, name string) (*Op, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("rename collection", ErrEmptyName)
	}

	d.mu.Lock()
	i := d.lookupCollection(id)
	if i < 0 || id == core.TrashCollectionID {
		d.mu.Unlock()
		return nil, invalid("rename collection", fmt.Errorf("%w: %s", ErrUnknownCollection, id))
	}
	d.collections[i].Name = name
	d.gen++
	op := d.launch(ctx, "rename collection", rollbackOnError, func(ctx context.Context) error {
		if err := d.remote.UpdateCollection(ctx, id, name); err != nil {
			return &RemoteError{Op: "rename collection", ID: id, Err: err}
		}
		return nil
	})
	d.mu.Unlock()

	d.notify()
	return op, nil
}

// DeleteCollection removes a collection. Its drawings become unorganized and,
// if it was in view, the view falls back to all drawings.
func (d *Dashboard) DeleteCollection(ctx context.Context, id string) (*Op, error) {
	d.mu.Lock()
	i := d.lookupCollection(id)
	if i < 0 || id == core.TrashCollectionID {
		d.mu.Unlock()
		return nil, invalid("delete collection", fmt.Errorf("%w: %s", ErrUnknownCollection, id))
	}
	d.collections = slices.Delete(d.collections, i, i+1)
	for _, item := range d.items {
		if item.CollectionID != nil && *item.CollectionID == id {
			item.CollectionID = nil
		}
	}
	p := rollbackOnError
	if d.filter.Scope.Kind == core.ScopeCollection && d.filter.Scope.CollectionID == id {
		d.filter.Scope = core.AllScope()
		p = refreshAfter
	}
	d.gen++
	d.rederive()
	op := d.launch(ctx, "delete collection", p, func(ctx context.Context) error {
		if err := d.remote.DeleteCollection(ctx, id); err != nil {
			return &RemoteError{Op: "delete collection", ID: id, Err: err}
		}
		return nil
	})
	d.mu.Unlock()

	d.notify()
	return op, nil
}
