package dashboard

import (
	"context"
	"excalidash/core"
	"excalidash/importer"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// importConcurrency bounds parallel drawing uploads of one batch.
const importConcurrency = 4

// DropZone tracks whether something is being dragged over the view. Nested
// elements fire their own enter and leave events, so it counts them.
type DropZone struct {
	mu    sync.Mutex
	depth int
}

func (z *DropZone) Enter() {
	z.mu.Lock()
	z.depth++
	z.mu.Unlock()
}

func (z *DropZone) Leave() {
	z.mu.Lock()
	if z.depth > 0 {
		z.depth--
	}
	z.mu.Unlock()
}

// Reset hides the overlay, as after a drop.
func (z *DropZone) Reset() {
	z.mu.Lock()
	z.depth = 0
	z.mu.Unlock()
}

// Active reports whether the drop overlay should be shown.
func (z *DropZone) Active() bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.depth > 0
}

// DropEvent is a drop onto the dashboard: either external files or a drawing
// dragged from the list.
type DropEvent struct {
	Files     []File
	DrawingID string
	// OnView is set when the drop landed on the list rather than on a
	// collection. Collection is ignored then.
	OnView     bool
	Collection *string
}

// Drop routes a drop. Files are imported into the drop target, or the active
// collection when dropped on the view. A dragged drawing moves to the target
// together with the rest of the selection if it is selected.
func (d *Dashboard) Drop(ctx context.Context, ev DropEvent) (*Op, error) {
	if len(ev.Files) > 0 {
		target := ev.Collection
		if ev.OnView {
			target = scopeTarget(d.Filter().Scope)
		}
		return d.ImportFiles(ctx, target, ev.Files...)
	}
	if ev.DrawingID == "" {
		return nil, invalid("drop", ErrEmptySelection)
	}
	if ev.OnView {
		return nil, invalid("drop", ErrNoChange)
	}

	ids := []string{ev.DrawingID}
	d.mu.Lock()
	if d.selection.Has(ev.DrawingID) {
		ids = d.selection.IDs()
	}
	d.mu.Unlock()
	return d.Move(ctx, ev.Collection, ids...)
}

// ImportFiles imports files into target. Libraries are imported one at a
// time, drawings as a concurrent batch; each failure is reported in the
// operation's Summary without stopping the others. Other file types fail.
func (d *Dashboard) ImportFiles(ctx context.Context, target *string, files ...File) (*Op, error) {
	if len(files) == 0 {
		return nil, invalid("import", ErrEmptySelection)
	}
	target = core.NormalizeCollectionID(target)

	var drawings, libraries, other []File
	for _, f := range files {
		switch importer.Classify(f.Name) {
		case importer.KindDrawing:
			drawings = append(drawings, f)
		case importer.KindLibrary:
			libraries = append(libraries, f)
		default:
			other = append(other, f)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.filter.Scope.IsTrash() || (target != nil && *target == core.TrashCollectionID) {
		return nil, invalid("import", ErrTrashView)
	}

	op := newOp()
	summary := &ImportSummary{}
	op.summary = summary
	d.start(ctx, op, "import", refreshAfter, func(ctx context.Context) error {
		for _, f := range other {
			summary.add(f.Name, &ImportError{File: f.Name, Err: importer.ErrUnsupported})
		}
		for _, f := range libraries {
			summary.add(f.Name, d.importer.ImportLibrary(ctx, f))
		}
		summary.merge(d.importDrawings(ctx, drawings, target))
		if summary.FailedCount > 0 {
			d.log.WithField("failed", summary.FailedCount).Warn("Some files could not be imported")
		}
		return nil
	})
	return op, nil
}

func (d *Dashboard) importDrawings(ctx context.Context, files []File, target *string) ImportSummary {
	errs := make([]error, len(files))
	var g errgroup.Group
	g.SetLimit(importConcurrency)
	for i, f := range files {
		g.Go(func() error {
			errs[i] = d.importer.ImportDrawing(ctx, f, target)
			return nil
		})
	}
	_ = g.Wait()

	var s ImportSummary
	for i, f := range files {
		s.add(f.Name, errs[i])
	}
	return s
}

func (s ImportSummary) String() string {
	return fmt.Sprintf("%d imported, %d failed", s.SuccessCount, s.FailedCount)
}
