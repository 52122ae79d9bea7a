package dashboard

import (
	"slices"
	"sort"
	"testing"
)

type fakeTarget struct {
	selected map[string]bool
	clears   int
}

func newFakeTarget(ids ...string) *fakeTarget {
	t := &fakeTarget{selected: map[string]bool{}}
	for _, id := range ids {
		t.selected[id] = true
	}
	return t
}

func (t *fakeTarget) ClearSelection() {
	t.clears++
	t.selected = map[string]bool{}
}

func (t *fakeTarget) AddToSelection(ids ...string) {
	for _, id := range ids {
		t.selected[id] = true
	}
}

func (t *fakeTarget) ids() []string {
	out := make([]string, 0, len(t.selected))
	for id := range t.selected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type fakeBounds map[string]Rect

func (b fakeBounds) ItemBounds() map[string]Rect { return b }

type fakePointer struct {
	onMove      func(Point)
	onRelease   func()
	subscribed  int
	unsubscribe int
}

func (p *fakePointer) Subscribe(onMove func(Point), onRelease func()) func() {
	p.subscribed++
	p.onMove, p.onRelease = onMove, onRelease
	return func() {
		p.unsubscribe++
		p.onMove, p.onRelease = nil, nil
	}
}

func (p *fakePointer) active() bool { return p.onMove != nil }

// grid is three 100x50 cards stacked with 10px gaps.
var grid = fakeBounds{
	"a": RectAt(0, 0, 100, 50),
	"b": RectAt(0, 60, 100, 50),
	"c": RectAt(0, 120, 100, 50),
}

func TestMarquee_SelectsIntersectingItems(t *testing.T) {
	target := newFakeTarget("z")
	pointer := &fakePointer{}
	m := NewMarquee(target, grid, pointer)

	if !m.Press(Point{150, 20}, HitBackground, ButtonPrimary, Modifiers{Shift: true}) {
		t.Fatal("Press() did not start a drag")
	}
	if !pointer.active() {
		t.Fatal("no pointer subscription while dragging")
	}
	pointer.onMove(Point{50, 80})

	r, ok := m.Rect()
	if !ok || r != BoundsOf(Point{150, 20}, Point{50, 80}) {
		t.Errorf("Rect() = %+v, %v", r, ok)
	}

	pointer.onRelease()
	if got, want := target.ids(), []string{"a", "b", "z"}; !slices.Equal(got, want) {
		t.Errorf("selection = %v, want %v", got, want)
	}
	if m.Active() || pointer.active() {
		t.Error("drag state or subscription survived the release")
	}
	if pointer.subscribed != 1 || pointer.unsubscribe != 1 {
		t.Errorf("subscribed %d times, unsubscribed %d times", pointer.subscribed, pointer.unsubscribe)
	}
}

func TestMarquee_PressWithoutModifierClears(t *testing.T) {
	target := newFakeTarget("a", "b")
	pointer := &fakePointer{}
	m := NewMarquee(target, grid, pointer)

	m.Press(Point{150, 130}, HitBackground, ButtonPrimary, Modifiers{})
	if target.clears != 1 || len(target.selected) != 0 {
		t.Fatalf("press without modifier left %v", target.ids())
	}
	pointer.onMove(Point{50, 140})
	pointer.onRelease()
	if got := target.ids(); !slices.Equal(got, []string{"c"}) {
		t.Errorf("selection = %v, want [c]", got)
	}
}

func TestMarquee_ZeroSizeReleaseKeepsSelection(t *testing.T) {
	for _, end := range []Point{{40, 40}, {44, 45}} {
		target := newFakeTarget("b")
		pointer := &fakePointer{}
		m := NewMarquee(target, grid, pointer)

		m.Press(Point{40, 40}, HitBackground, ButtonPrimary, Modifiers{Ctrl: true})
		pointer.onMove(end)
		pointer.onRelease()

		if got := target.ids(); !slices.Equal(got, []string{"b"}) {
			t.Errorf("release at %v changed selection to %v", end, got)
		}
		if m.Active() {
			t.Error("drag still active after release")
		}
	}
}

func TestMarquee_IgnoredPresses(t *testing.T) {
	tests := []struct {
		name   string
		hit    HitKind
		button Button
	}{
		{"on a card", HitInteractive, ButtonPrimary},
		{"in a text field", HitEditable, ButtonPrimary},
		{"secondary button", HitBackground, ButtonSecondary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := newFakeTarget("a")
			pointer := &fakePointer{}
			m := NewMarquee(target, grid, pointer)

			if m.Press(Point{1, 1}, tt.hit, tt.button, Modifiers{}) {
				t.Error("Press() started a drag")
			}
			if pointer.subscribed != 0 || target.clears != 0 {
				t.Error("ignored press subscribed or cleared")
			}
		})
	}
}

func TestMarquee_MoveAndReleaseWhileIdle(t *testing.T) {
	target := newFakeTarget("a")
	m := NewMarquee(target, grid, &fakePointer{})

	m.Move(Point{10, 10})
	m.Release()
	if _, ok := m.Rect(); ok {
		t.Error("Rect() reported an idle marquee")
	}
	if got := target.ids(); !slices.Equal(got, []string{"a"}) {
		t.Errorf("idle release changed selection to %v", got)
	}
}
