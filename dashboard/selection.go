package dashboard

// Selection is the set of selected drawing ids plus the anchor used for range
// selection. Members are always ids from the most recent view given to
// SetView. It is not safe for concurrent use; Dashboard guards its own.
type Selection struct {
	ids    map[string]struct{}
	anchor string
	view   []string
	pos    map[string]int
}

func NewSelection() *Selection {
	return &Selection{
		ids: make(map[string]struct{}),
		pos: make(map[string]int),
	}
}

// SetView supplies the current ordered view. Members that left the view are
// dropped, and so is an anchor that left it.
func (s *Selection) SetView(ordered []string) {
	s.view = append(s.view[:0], ordered...)
	s.pos = make(map[string]int, len(ordered))
	for i, id := range ordered {
		s.pos[id] = i
	}
	for id := range s.ids {
		if _, ok := s.pos[id]; !ok {
			delete(s.ids, id)
		}
	}
	if _, ok := s.pos[s.anchor]; !ok {
		s.anchor = ""
	}
}

// Toggle flips the membership of id. With rangeHeld and an anchor in the view
// it instead adds every id between the anchor and id, inclusive, keeping the
// rest of the selection and the anchor.
func (s *Selection) Toggle(id string, rangeHeld bool) {
	to, ok := s.pos[id]
	if !ok {
		return
	}
	if rangeHeld && s.anchor != "" {
		if from, ok := s.pos[s.anchor]; ok {
			if from > to {
				from, to = to, from
			}
			for _, rid := range s.view[from : to+1] {
				s.ids[rid] = struct{}{}
			}
			return
		}
	}

	if _, selected := s.ids[id]; selected {
		delete(s.ids, id)
		s.anchor = ""
		return
	}
	s.ids[id] = struct{}{}
	s.anchor = id
}

// SelectAll replaces the selection with ordered. Ids outside the view are
// ignored and the anchor is left as it is.
func (s *Selection) SelectAll(ordered []string) {
	clear(s.ids)
	s.Add(ordered...)
}

// Add unions ids into the selection without touching the anchor.
func (s *Selection) Add(ids ...string) {
	for _, id := range ids {
		if _, ok := s.pos[id]; ok {
			s.ids[id] = struct{}{}
		}
	}
}

// Remove drops ids from the selection, clearing the anchor if it is one of them.
func (s *Selection) Remove(ids ...string) {
	for _, id := range ids {
		delete(s.ids, id)
		if id == s.anchor {
			s.anchor = ""
		}
	}
}

func (s *Selection) Clear() {
	clear(s.ids)
	s.anchor = ""
}

func (s *Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *Selection) Count() int { return len(s.ids) }

func (s *Selection) Anchor() string { return s.anchor }

// IDs returns the selected ids in view order.
func (s *Selection) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for _, id := range s.view {
		if _, ok := s.ids[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
