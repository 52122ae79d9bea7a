package core

import (
	"context"
	"errors"
	"strings"
	"time"
)

// TrashCollectionID is the reserved collection reference for trashed drawings.
// It is never listed as a collection but is a valid Drawing.CollectionID.
const TrashCollectionID = "trash"

// ErrNotFound is wrapped by stores when a drawing, collection or document is missing.
var ErrNotFound = errors.New("not found")

type (
	// Drawing is a user-owned Excalidraw scene plus its organizer metadata.
	Drawing struct {
		ID     string `json:"id"`
		UserID string `json:"-"`
		Name   string `json:"name"`
		// CollectionID is nil for unorganized drawings.
		CollectionID *string   `json:"collectionId"`
		Preview      string    `json:"preview,omitempty"`
		Data         []byte    `json:"data,omitempty"` // scene JSON, empty in list views
		CreatedAt    time.Time `json:"createdAt"`
		UpdatedAt    time.Time `json:"updatedAt"`
	}

	Collection struct {
		ID        string    `json:"id"`
		UserID    string    `json:"-"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// DrawingInput creates a drawing.
	DrawingInput struct {
		Name         string  `json:"name"`
		CollectionID *string `json:"collectionId"`
		Data         []byte  `json:"data,omitempty"`
	}

	// DrawingPatch updates a drawing. Nil fields are left alone. When Move is
	// set the drawing is reassigned to MoveTo, nil meaning unorganized.
	DrawingPatch struct {
		Name    *string
		Preview *string
		Move    bool
		MoveTo  *string
	}

	// DrawingQuery filters a listing. Search matches names case-insensitively.
	DrawingQuery struct {
		Search string
		Scope  Scope
	}

	// DrawingStore is the persistence layer for user-owned drawings.
	DrawingStore interface {
		// ListDrawings returns drawings without their Data.
		ListDrawings(ctx context.Context, userID string, q DrawingQuery) ([]*Drawing, error)
		GetDrawing(ctx context.Context, userID, id string) (*Drawing, error)
		// SaveDrawing creates or updates a drawing, keeping CreatedAt on update.
		SaveDrawing(ctx context.Context, drawing *Drawing) error
		DeleteDrawing(ctx context.Context, userID, id string) error
	}

	// CollectionStore is the persistence layer for user-owned collections.
	CollectionStore interface {
		ListCollections(ctx context.Context, userID string) ([]*Collection, error)
		SaveCollection(ctx context.Context, collection *Collection) error
		DeleteCollection(ctx context.Context, userID, id string) error
	}
)

// Matches reports whether d passes the query filter.
func (q DrawingQuery) Matches(d *Drawing) bool {
	if !q.Scope.Contains(d.CollectionID) {
		return false
	}
	if q.Search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(d.Name), strings.ToLower(strings.TrimSpace(q.Search)))
}

// Apply writes the non-nil patch fields onto d.
func (p DrawingPatch) Apply(d *Drawing) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Move {
		d.CollectionID = NormalizeCollectionID(p.MoveTo)
	}
	if p.Preview != nil {
		d.Preview = *p.Preview
	}
}

// Clone returns a deep copy of d.
func (d *Drawing) Clone() *Drawing {
	c := *d
	if d.CollectionID != nil {
		id := *d.CollectionID
		c.CollectionID = &id
	}
	if d.Data != nil {
		c.Data = append([]byte(nil), d.Data...)
	}
	return &c
}

// InTrash reports whether the drawing sits in the trash pseudo-collection.
func (d *Drawing) InTrash() bool {
	return d.CollectionID != nil && *d.CollectionID == TrashCollectionID
}

// NormalizeCollectionID maps an empty reference to nil (unorganized).
func NormalizeCollectionID(id *string) *string {
	if id == nil || *id == "" {
		return nil
	}
	v := *id
	return &v
}

// CollectionRef returns a pointer to id, or nil when id is empty.
func CollectionRef(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

// SameCollection compares two collection references.
func SameCollection(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
