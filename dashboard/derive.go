package dashboard

import (
	"excalidash/core"
	"fmt"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type SortField int

const (
	SortModified SortField = iota
	SortCreated
	SortName
)

func (f SortField) String() string {
	switch f {
	case SortName:
		return "name"
	case SortCreated:
		return "created"
	default:
		return "modified"
	}
}

func ParseSortField(s string) (SortField, error) {
	switch s {
	case "name":
		return SortName, nil
	case "created":
		return SortCreated, nil
	case "modified", "":
		return SortModified, nil
	default:
		return SortModified, fmt.Errorf("unknown sort field %q", s)
	}
}

type SortDirection int

const (
	Descending SortDirection = iota
	Ascending
)

func (d SortDirection) String() string {
	if d == Ascending {
		return "asc"
	}
	return "desc"
}

func ParseSortDirection(s string) (SortDirection, error) {
	switch s {
	case "asc":
		return Ascending, nil
	case "desc", "":
		return Descending, nil
	default:
		return Descending, fmt.Errorf("unknown sort direction %q", s)
	}
}

// SortConfig orders a view. The zero value sorts by modification time, newest
// first. Names are compared with the collation rules of Locale.
type SortConfig struct {
	Field     SortField
	Direction SortDirection
	Locale    language.Tag
}

// Filter is what the remote listing is asked for. Search is applied upstream.
type Filter struct {
	Search string
	Scope  core.Scope
}

// Derive returns the drawings of items that belong to scope, ordered by cfg.
// Items with equal keys keep their input order.
func Derive(items []*core.Drawing, scope core.Scope, cfg SortConfig) []*core.Drawing {
	out := make([]*core.Drawing, 0, len(items))
	for _, d := range items {
		if scope.Contains(d.CollectionID) {
			out = append(out, d)
		}
	}

	var cmp func(a, b *core.Drawing) int
	switch cfg.Field {
	case SortName:
		c := collate.New(cfg.Locale)
		cmp = func(a, b *core.Drawing) int { return c.CompareString(a.Name, b.Name) }
	case SortCreated:
		cmp = func(a, b *core.Drawing) int { return a.CreatedAt.Compare(b.CreatedAt) }
	default:
		cmp = func(a, b *core.Drawing) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	}
	sign := 1
	if cfg.Direction == Descending {
		sign = -1
	}

	sort.SliceStable(out, func(i, j int) bool {
		return sign*cmp(out[i], out[j]) < 0
	})
	return out
}

func ids(items []*core.Drawing) []string {
	out := make([]string, len(items))
	for i, d := range items {
		out[i] = d.ID
	}
	return out
}
