package filesystem

import (
	"bytes"
	"context"
	"encoding/json"
	"excalidash/core"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// fsStore keeps one JSON file per drawing under <base>/<user>/drawings and a
// single collections.json per user. Shared documents live under <base>/documents.
type fsStore struct {
	basePath string
	// mu serializes read-modify-write cycles on collections.json.
	mu sync.Mutex
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) (*fsStore, error) {
	if err := os.MkdirAll(filepath.Join(basePath, "documents"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &fsStore{basePath: basePath}, nil
}

// safeName rejects ids that would escape their directory.
func safeName(id string) (string, error) {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id {
		return "", fmt.Errorf("invalid id %q: must be a plain name", id)
	}
	return id, nil
}

func (s *fsStore) userDir(userID string) (string, error) {
	name, err := safeName(userID)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, "users", name), nil
}

func (s *fsStore) drawingPath(userID, id string) (string, error) {
	dir, err := s.userDir(userID)
	if err != nil {
		return "", err
	}
	name, err := safeName(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "drawings", name+".json"), nil
}

func (s *fsStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	name, err := safeName(id)
	if err != nil {
		return nil, err
	}
	filePath := filepath.Join(s.basePath, "documents", name)
	log := logrus.WithField("document_id", id)

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("error", "document not found").Warn("Document with specified ID not found")
			return nil, fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve document")
		return nil, err
	}

	log.Info("Document retrieved successfully")
	return &core.Document{Data: *bytes.NewBuffer(data)}, nil
}

func (s *fsStore) Create(ctx context.Context, document *core.Document) (string, error) {
	id := ulid.Make().String()
	filePath := filepath.Join(s.basePath, "documents", id)
	log := logrus.WithFields(logrus.Fields{"document_id": id, "file_path": filePath})

	if err := os.WriteFile(filePath, document.Data.Bytes(), 0644); err != nil {
		log.WithError(err).Error("Failed to create document")
		return "", err
	}
	log.Info("Document created successfully")
	return id, nil
}

func (s *fsStore) ListDrawings(ctx context.Context, userID string, q core.DrawingQuery) ([]*core.Drawing, error) {
	dir, err := s.userDir(userID)
	if err != nil {
		return nil, err
	}
	drawingsDir := filepath.Join(dir, "drawings")
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "path": drawingsDir})

	files, err := os.ReadDir(drawingsDir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("User directory does not exist, returning empty list")
			return []*core.Drawing{}, nil
		}
		log.WithError(err).Error("Failed to read user directory")
		return nil, err
	}

	drawings := make([]*core.Drawing, 0, len(files))
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		d, err := readDrawing(filepath.Join(drawingsDir, file.Name()))
		if err != nil {
			log.WithError(err).Warnf("Failed to read drawing file %s, skipping", file.Name())
			continue
		}
		if !q.Matches(d) {
			continue
		}
		d.Data = nil
		drawings = append(drawings, d)
	}
	sort.Slice(drawings, func(i, j int) bool {
		return drawings[i].UpdatedAt.After(drawings[j].UpdatedAt)
	})

	log.Infof("Listed %d drawings", len(drawings))
	return drawings, nil
}

// storedDrawing is the on-disk form; UserID is not part of the JSON API shape.
type storedDrawing struct {
	core.Drawing
	Owner string `json:"owner"`
}

func readDrawing(path string) (*core.Drawing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var stored storedDrawing
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	d := stored.Drawing
	d.UserID = stored.Owner
	return &d, nil
}

func (s *fsStore) GetDrawing(ctx context.Context, userID, id string) (*core.Drawing, error) {
	path, err := s.drawingPath(userID, id)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "drawing_id": id})

	d, err := readDrawing(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Drawing file not found")
			return nil, fmt.Errorf("drawing %s: %w", id, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to read drawing file")
		return nil, err
	}
	return d, nil
}

func (s *fsStore) SaveDrawing(ctx context.Context, drawing *core.Drawing) error {
	path, err := s.drawingPath(drawing.UserID, drawing.ID)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": drawing.UserID, "drawing_id": drawing.ID, "path": path})

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.WithError(err).Error("Failed to create user directory")
		return err
	}

	// The file carries CreatedAt, so an update keeps the original value.
	if existing, err := readDrawing(path); err == nil {
		drawing.CreatedAt = existing.CreatedAt
	} else if drawing.CreatedAt.IsZero() {
		drawing.CreatedAt = time.Now()
	}
	drawing.UpdatedAt = time.Now()

	data, err := json.Marshal(storedDrawing{Drawing: *drawing, Owner: drawing.UserID})
	if err != nil {
		log.WithError(err).Error("Failed to marshal drawing for saving")
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		log.WithError(err).Error("Failed to write drawing file")
		return err
	}
	log.Info("Drawing saved successfully")
	return nil
}

func (s *fsStore) DeleteDrawing(ctx context.Context, userID, id string) error {
	path, err := s.drawingPath(userID, id)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "drawing_id": id})

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Drawing file not found for deletion")
			return fmt.Errorf("drawing %s: %w", id, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to delete drawing file")
		return err
	}
	log.Info("Drawing deleted successfully")
	return nil
}

func (s *fsStore) collectionsPath(userID string) (string, error) {
	dir, err := s.userDir(userID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "collections.json"), nil
}

func (s *fsStore) readCollections(userID string) ([]*core.Collection, error) {
	path, err := s.collectionsPath(userID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*core.Collection{}, nil
		}
		return nil, err
	}
	var collections []*core.Collection
	if err := json.Unmarshal(data, &collections); err != nil {
		return nil, fmt.Errorf("failed to unmarshal collections: %w", err)
	}
	for _, c := range collections {
		c.UserID = userID
	}
	return collections, nil
}

func (s *fsStore) writeCollections(userID string, collections []*core.Collection) error {
	path, err := s.collectionsPath(userID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.Marshal(collections)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

func (s *fsStore) ListCollections(ctx context.Context, userID string) ([]*core.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readCollections(userID)
}

func (s *fsStore) SaveCollection(ctx context.Context, collection *core.Collection) error {
	if collection.ID == core.TrashCollectionID {
		return fmt.Errorf("collection id %q is reserved", core.TrashCollectionID)
	}
	if _, err := safeName(collection.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	collections, err := s.readCollections(collection.UserID)
	if err != nil {
		return err
	}
	replaced := false
	for i, c := range collections {
		if c.ID == collection.ID {
			collection.CreatedAt = c.CreatedAt
			collections[i] = collection
			replaced = true
			break
		}
	}
	if !replaced {
		if collection.CreatedAt.IsZero() {
			collection.CreatedAt = time.Now()
		}
		collections = append(collections, collection)
	}

	if err := s.writeCollections(collection.UserID, collections); err != nil {
		logrus.WithError(err).WithField("collection_id", collection.ID).Error("Failed to save collection")
		return err
	}
	logrus.WithFields(logrus.Fields{"user_id": collection.UserID, "collection_id": collection.ID}).Info("Collection saved successfully")
	return nil
}

// DeleteCollection removes the collection and moves its drawings to unorganized.
func (s *fsStore) DeleteCollection(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	collections, err := s.readCollections(userID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	kept := collections[:0]
	found := false
	for _, c := range collections {
		if c.ID == id {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		s.mu.Unlock()
		return fmt.Errorf("collection %s: %w", id, core.ErrNotFound)
	}
	err = s.writeCollections(userID, kept)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	members, err := s.ListDrawings(ctx, userID, core.DrawingQuery{Scope: core.CollectionScope(id)})
	if err != nil {
		return err
	}
	for _, m := range members {
		d, err := s.GetDrawing(ctx, userID, m.ID)
		if err != nil {
			return err
		}
		d.CollectionID = nil
		if err := s.SaveDrawing(ctx, d); err != nil {
			return err
		}
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "collection_id": id, "moved": len(members)}).Info("Collection deleted successfully")
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
