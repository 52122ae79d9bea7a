package dashboard

import (
	"context"
	"errors"
	"excalidash/core"
	"fmt"
	"sort"
	"sync"
	"time"
)

var errRemote = errors.New("remote unavailable")

// fakeRemote is an in-memory Remote with error knobs and gates. A non-nil
// gate blocks the matching calls until it is closed.
type fakeRemote struct {
	mu          sync.Mutex
	drawings    map[string]*core.Drawing
	collections []*core.Collection
	libraries   map[string][]byte
	nextID      int

	updateErr    map[string]error
	deleteErr    map[string]error
	duplicateErr error
	listErr      error

	listGate   chan struct{}
	updateGate chan struct{}
	listCalled chan struct{}
	// onDuplicate runs at the start of every DuplicateDrawing call.
	onDuplicate func()

	listCalls   int
	searches    []string
	updateCalls int
	deleteCalls int
	createCalls int
}

func newFakeRemote(drawings ...*core.Drawing) *fakeRemote {
	f := &fakeRemote{
		drawings:  make(map[string]*core.Drawing),
		libraries: make(map[string][]byte),
		updateErr: make(map[string]error),
		deleteErr: make(map[string]error),
	}
	for _, d := range drawings {
		f.drawings[d.ID] = d
	}
	return f
}

func drawing(id, name string, collection *string) *core.Drawing {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	fmt.Sscanf(id, "%d", &n)
	return &core.Drawing{
		ID:           id,
		Name:         name,
		CollectionID: collection,
		CreatedAt:    base.Add(time.Duration(n) * time.Hour),
		UpdatedAt:    base.Add(time.Duration(n) * time.Hour),
	}
}

func ref(s string) *string { return &s }

func wait(gate chan struct{}) {
	if gate != nil {
		<-gate
	}
}

func (f *fakeRemote) ListDrawings(ctx context.Context, search string, scope core.Scope) ([]*core.Drawing, error) {
	f.mu.Lock()
	f.listCalls++
	f.searches = append(f.searches, search)
	gate, called := f.listGate, f.listCalled
	f.mu.Unlock()

	if called != nil {
		select {
		case called <- struct{}{}:
		default:
		}
	}
	wait(gate)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	q := core.DrawingQuery{Search: search, Scope: scope}
	out := []*core.Drawing{}
	for _, d := range f.drawings {
		if q.Matches(d) {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRemote) ListCollections(ctx context.Context) ([]*core.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*core.Collection, len(f.collections))
	for i, c := range f.collections {
		cp := *c
		out[i] = &cp
	}
	return out, nil
}

func (f *fakeRemote) CreateDrawing(ctx context.Context, in core.DrawingInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.nextID++
	id := fmt.Sprintf("new-%d", f.nextID)
	f.drawings[id] = &core.Drawing{ID: id, Name: in.Name, CollectionID: in.CollectionID, Data: in.Data}
	return id, nil
}

func (f *fakeRemote) UpdateDrawing(ctx context.Context, id string, patch core.DrawingPatch) error {
	f.mu.Lock()
	f.updateCalls++
	gate := f.updateGate
	f.mu.Unlock()
	wait(gate)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updateErr[id]; err != nil {
		return err
	}
	d, ok := f.drawings[id]
	if !ok {
		return core.ErrNotFound
	}
	patch.Apply(d)
	return nil
}

func (f *fakeRemote) DeleteDrawing(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	if _, ok := f.drawings[id]; !ok {
		return core.ErrNotFound
	}
	delete(f.drawings, id)
	return nil
}

func (f *fakeRemote) DuplicateDrawing(ctx context.Context, id string) (string, error) {
	f.mu.Lock()
	gate, hook := f.updateGate, f.onDuplicate
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	wait(gate)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.duplicateErr != nil {
		return "", f.duplicateErr
	}
	src, ok := f.drawings[id]
	if !ok {
		return "", core.ErrNotFound
	}
	f.nextID++
	cp := src.Clone()
	cp.ID = fmt.Sprintf("%s-copy-%d", id, f.nextID)
	cp.Name = src.Name + " (copy)"
	f.drawings[cp.ID] = cp
	return cp.ID, nil
}

func (f *fakeRemote) CreateCollection(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("col-%d", f.nextID)
	f.collections = append(f.collections, &core.Collection{ID: id, Name: name})
	return id, nil
}

func (f *fakeRemote) UpdateCollection(ctx context.Context, id, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.collections {
		if c.ID == id {
			c.Name = name
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeRemote) DeleteCollection(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.collections {
		if c.ID == id {
			f.collections = append(f.collections[:i], f.collections[i+1:]...)
			for _, d := range f.drawings {
				if d.CollectionID != nil && *d.CollectionID == id {
					d.CollectionID = nil
				}
			}
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeRemote) ImportLibrary(ctx context.Context, name string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.libraries[name] = data
	return name, nil
}

func (f *fakeRemote) collectionOf(id string) *string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.drawings[id]; ok {
		return d.CollectionID
	}
	return nil
}

func (f *fakeRemote) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.drawings)
}

type confirmer struct {
	answer  bool
	prompts []string
	counts  []int
}

func (c *confirmer) Confirm(prompt string, count int) bool {
	c.prompts = append(c.prompts, prompt)
	c.counts = append(c.counts, count)
	return c.answer
}
