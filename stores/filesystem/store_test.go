package filesystem

import (
	"bytes"
	"context"
	"errors"
	"excalidash/core"
	"os"
	"path/filepath"
	"testing"
)

func setupTestStore(t *testing.T) *fsStore {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	return store
}

func TestNewStore_CreatesDirectory(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "data")
	if _, err := NewStore(base); err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "documents")); err != nil {
		t.Errorf("NewStore() did not create documents directory: %v", err)
	}
}

func TestDocuments_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, &core.Document{Data: *bytes.NewBufferString(`{"type":"excalidrawlib"}`)})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	doc, err := store.FindID(ctx, id)
	if err != nil {
		t.Fatalf("FindID() failed: %v", err)
	}
	if doc.Data.String() != `{"type":"excalidrawlib"}` {
		t.Errorf("FindID() data mismatch: got %q", doc.Data.String())
	}

	if _, err := store.FindID(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FindID() error = %v, want ErrNotFound", err)
	}
}

func TestPathTraversalRejected(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"../escape", "..", "a/b", ""} {
		if _, err := store.GetDrawing(ctx, "u1", id); err == nil || errors.Is(err, core.ErrNotFound) {
			t.Errorf("GetDrawing(%q) error = %v, want invalid id", id, err)
		}
		if err := store.SaveDrawing(ctx, &core.Drawing{ID: id, UserID: "u1"}); err == nil {
			t.Errorf("SaveDrawing(%q) should fail", id)
		}
	}
	if _, err := store.ListDrawings(ctx, "../other", core.DrawingQuery{}); err == nil {
		t.Error("ListDrawings() should reject a traversing user id")
	}
}

func TestDrawings_SaveListGetDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	d := &core.Drawing{ID: "d1", UserID: "u1", Name: "Flow", CollectionID: core.CollectionRef("c1"), Data: []byte(`{"elements":[]}`)}
	if err := store.SaveDrawing(ctx, d); err != nil {
		t.Fatalf("SaveDrawing() failed: %v", err)
	}

	got, err := store.GetDrawing(ctx, "u1", "d1")
	if err != nil {
		t.Fatalf("GetDrawing() failed: %v", err)
	}
	if got.Name != "Flow" || got.UserID != "u1" || string(got.Data) != `{"elements":[]}` {
		t.Errorf("GetDrawing() mismatch: %+v", got)
	}
	if got.CollectionID == nil || *got.CollectionID != "c1" {
		t.Errorf("CollectionID mismatch: %v", got.CollectionID)
	}

	listed, err := store.ListDrawings(ctx, "u1", core.DrawingQuery{Scope: core.CollectionScope("c1")})
	if err != nil {
		t.Fatalf("ListDrawings() failed: %v", err)
	}
	if len(listed) != 1 || listed[0].Data != nil {
		t.Fatalf("ListDrawings() = %+v, want one drawing without data", listed)
	}

	created := got.CreatedAt
	got.Name = "Flow v2"
	if err := store.SaveDrawing(ctx, got); err != nil {
		t.Fatalf("SaveDrawing() update failed: %v", err)
	}
	updated, _ := store.GetDrawing(ctx, "u1", "d1")
	if !updated.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed on update: %v -> %v", created, updated.CreatedAt)
	}

	if err := store.DeleteDrawing(ctx, "u1", "d1"); err != nil {
		t.Fatalf("DeleteDrawing() failed: %v", err)
	}
	if err := store.DeleteDrawing(ctx, "u1", "d1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second DeleteDrawing() error = %v, want ErrNotFound", err)
	}
}

func TestListDrawings_EmptyUser(t *testing.T) {
	store := setupTestStore(t)
	drawings, err := store.ListDrawings(context.Background(), "nobody", core.DrawingQuery{})
	if err != nil {
		t.Fatalf("ListDrawings() failed: %v", err)
	}
	if len(drawings) != 0 {
		t.Errorf("ListDrawings() returned %d drawings, want 0", len(drawings))
	}
}

func TestListDrawings_SkipsCorruptFiles(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.SaveDrawing(ctx, &core.Drawing{ID: "ok", UserID: "u1", Name: "fine"}); err != nil {
		t.Fatalf("SaveDrawing() failed: %v", err)
	}
	dir, _ := store.userDir("u1")
	if err := os.WriteFile(filepath.Join(dir, "drawings", "bad.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}

	drawings, err := store.ListDrawings(ctx, "u1", core.DrawingQuery{})
	if err != nil {
		t.Fatalf("ListDrawings() failed: %v", err)
	}
	if len(drawings) != 1 || drawings[0].ID != "ok" {
		t.Errorf("ListDrawings() = %+v, want only the valid drawing", drawings)
	}
}

func TestCollections_CRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.SaveCollection(ctx, &core.Collection{ID: "c1", UserID: "u1", Name: "Work"}); err != nil {
		t.Fatalf("SaveCollection() failed: %v", err)
	}
	if err := store.SaveCollection(ctx, &core.Collection{ID: "c1", UserID: "u1", Name: "Work renamed"}); err != nil {
		t.Fatalf("SaveCollection() rename failed: %v", err)
	}
	if err := store.SaveCollection(ctx, &core.Collection{ID: core.TrashCollectionID, UserID: "u1"}); err == nil {
		t.Error("SaveCollection() should reject the trash id")
	}

	collections, err := store.ListCollections(ctx, "u1")
	if err != nil {
		t.Fatalf("ListCollections() failed: %v", err)
	}
	if len(collections) != 1 || collections[0].Name != "Work renamed" {
		t.Fatalf("ListCollections() = %+v", collections)
	}

	if err := store.SaveDrawing(ctx, &core.Drawing{ID: "d1", UserID: "u1", CollectionID: core.CollectionRef("c1")}); err != nil {
		t.Fatalf("SaveDrawing() failed: %v", err)
	}
	if err := store.DeleteCollection(ctx, "u1", "c1"); err != nil {
		t.Fatalf("DeleteCollection() failed: %v", err)
	}
	d, _ := store.GetDrawing(ctx, "u1", "d1")
	if d.CollectionID != nil {
		t.Errorf("drawing still in deleted collection: %v", *d.CollectionID)
	}
	if err := store.DeleteCollection(ctx, "u1", "c1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second DeleteCollection() error = %v, want ErrNotFound", err)
	}
}
