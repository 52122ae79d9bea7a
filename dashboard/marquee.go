package dashboard

import "sync"

// ClickThreshold is the largest marquee, in pixels on both axes, that is
// still treated as a plain click.
const ClickThreshold = 5.0

// HitKind classifies what a pointer press landed on.
type HitKind int

const (
	HitBackground HitKind = iota
	// HitInteractive covers buttons, links, inputs and item cards.
	HitInteractive
	// HitEditable is any text-editing context.
	HitEditable
)

type Button int

const (
	ButtonPrimary Button = iota
	ButtonMiddle
	ButtonSecondary
)

type Modifiers struct {
	Shift, Ctrl, Meta, Alt bool
}

func (m Modifiers) Any() bool { return m.Shift || m.Ctrl || m.Meta || m.Alt }

// BoundsSource reports the on-screen bounds of every rendered item.
type BoundsSource interface {
	ItemBounds() map[string]Rect
}

// PointerSource delivers pointer moves and the release of the pressed button
// until the returned cancel func is called.
type PointerSource interface {
	Subscribe(onMove func(Point), onRelease func()) (cancel func())
}

// SelectionTarget is the selection a marquee writes to. *Dashboard is one.
type SelectionTarget interface {
	ClearSelection()
	AddToSelection(ids ...string)
}

// Marquee turns a pointer drag over the list background into a rectangle
// selection. Pointer events are only subscribed to while a drag is active.
type Marquee struct {
	target  SelectionTarget
	bounds  BoundsSource
	pointer PointerSource

	mu      sync.Mutex
	active  bool
	start   *Point
	current *Point
	cancel  func()
}

func NewMarquee(target SelectionTarget, bounds BoundsSource, pointer PointerSource) *Marquee {
	return &Marquee{target: target, bounds: bounds, pointer: pointer}
}

// Press starts a drag for a primary press on the background. Without a
// modifier the selection is cleared first. It reports whether a drag started.
func (m *Marquee) Press(p Point, hit HitKind, button Button, mods Modifiers) bool {
	if button != ButtonPrimary || hit != HitBackground {
		return false
	}

	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return false
	}
	m.active = true
	start, current := p, p
	m.start, m.current = &start, &current
	m.mu.Unlock()

	if !mods.Any() {
		m.target.ClearSelection()
	}

	cancel := m.pointer.Subscribe(m.Move, m.Release)
	m.mu.Lock()
	if m.active {
		m.cancel = cancel
		cancel = nil
	}
	m.mu.Unlock()
	// Released before the subscription was recorded.
	if cancel != nil {
		cancel()
	}
	return true
}

// Move updates the moving corner of an active drag.
func (m *Marquee) Move(p Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active || m.current == nil {
		return
	}
	*m.current = p
}

// Rect returns the current marquee rectangle, recomputed from the drag's
// corners on every call.
func (m *Marquee) Rect() (Rect, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active || m.start == nil || m.current == nil {
		return Rect{}, false
	}
	return BoundsOf(*m.start, *m.current), true
}

func (m *Marquee) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Release ends the drag. Unless the rectangle is within ClickThreshold, every
// rendered item it intersects is added to the selection. The drag state is
// reset in all cases.
func (m *Marquee) Release() {
	m.mu.Lock()
	start, current := m.start, m.current
	cancel := m.cancel
	m.active, m.start, m.current, m.cancel = false, nil, nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if start == nil || current == nil {
		return
	}

	r := BoundsOf(*start, *current)
	if r.Width <= ClickThreshold && r.Height <= ClickThreshold {
		return
	}
	var hits []string
	for id, b := range m.bounds.ItemBounds() {
		if Intersects(r, b) {
			hits = append(hits, id)
		}
	}
	if len(hits) > 0 {
		m.target.AddToSelection(hits...)
	}
}
