package dashboard

import (
	"context"
	"strings"
)

// KeyEvent is a key press delivered to the dashboard.
type KeyEvent struct {
	Key  string
	Mods Modifiers
	// Target is what had focus. Keys typed into editable fields are ignored.
	Target HitKind
}

// HandleKey applies the list shortcuts: Ctrl/Cmd+A selects the whole view,
// Escape clears the selection and Delete or Backspace trashes the selection,
// or permanently deletes it in the trash. handled is false for other keys.
func (d *Dashboard) HandleKey(ctx context.Context, ev KeyEvent) (handled bool, op *Op, err error) {
	if ev.Target == HitEditable {
		return false, nil, nil
	}

	switch key := strings.ToLower(ev.Key); {
	case key == "a" && (ev.Mods.Ctrl || ev.Mods.Meta):
		d.SelectAll()
		return true, nil, nil
	case key == "escape":
		d.ClearSelection()
		return true, nil, nil
	case key == "delete" || key == "backspace":
		if d.SelectionCount() == 0 {
			return true, nil, nil
		}
		if d.Filter().Scope.IsTrash() {
			op, err = d.DeleteSelection(ctx)
		} else {
			op, err = d.TrashSelection(ctx)
		}
		return true, op, err
	}
	return false, nil, nil
}
