package core

import "fmt"

type ScopeKind int

const (
	ScopeAll ScopeKind = iota
	ScopeUnorganized
	ScopeTrash
	ScopeCollection
)

// Scope is the active collection filter of a listing.
type Scope struct {
	Kind         ScopeKind
	CollectionID string
}

func AllScope() Scope         { return Scope{Kind: ScopeAll} }
func UnorganizedScope() Scope { return Scope{Kind: ScopeUnorganized} }
func TrashScope() Scope       { return Scope{Kind: ScopeTrash} }

// CollectionScope scopes to one collection. The trash id yields TrashScope.
func CollectionScope(id string) Scope {
	if id == TrashCollectionID {
		return TrashScope()
	}
	return Scope{Kind: ScopeCollection, CollectionID: id}
}

// ParseScope decodes the wire form used by the `collection` query parameter:
// "" is all, "null" is unorganized, "trash" is the trash, anything else an id.
func ParseScope(s string) Scope {
	switch s {
	case "":
		return AllScope()
	case "null":
		return UnorganizedScope()
	default:
		return CollectionScope(s)
	}
}

// String is the inverse of ParseScope.
func (s Scope) String() string {
	switch s.Kind {
	case ScopeUnorganized:
		return "null"
	case ScopeTrash:
		return TrashCollectionID
	case ScopeCollection:
		return s.CollectionID
	default:
		return ""
	}
}

func (s Scope) IsTrash() bool { return s.Kind == ScopeTrash }

// Contains reports whether a drawing with the given collection reference
// belongs to the scope.
func (s Scope) Contains(collectionID *string) bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeUnorganized:
		return collectionID == nil
	case ScopeTrash:
		return collectionID != nil && *collectionID == TrashCollectionID
	case ScopeCollection:
		return collectionID != nil && *collectionID == s.CollectionID
	default:
		panic(fmt.Sprintf("core: unknown scope kind %d", s.Kind))
	}
}
