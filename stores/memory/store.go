package memory

import (
	"context"
	"excalidash/core"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// memStore implements DocumentStore, DrawingStore and CollectionStore in memory.
type memStore struct {
	mu        sync.RWMutex
	documents map[string]core.Document
	// drawings and collections are keyed by userID, then by id.
	drawings    map[string]map[string]*core.Drawing
	collections map[string]map[string]*core.Collection
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		documents:   make(map[string]core.Document),
		drawings:    make(map[string]map[string]*core.Drawing),
		collections: make(map[string]map[string]*core.Collection),
	}
}

func (s *memStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	log := logrus.WithField("document_id", id)

	s.mu.RLock()
	doc, ok := s.documents[id]
	s.mu.RUnlock()

	if ok {
		log.Info("Document retrieved successfully")
		return &doc, nil
	}
	log.WithField("error", "document not found").Warn("Document with specified ID not found")
	return nil, fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
}

func (s *memStore) Create(ctx context.Context, document *core.Document) (string, error) {
	id := ulid.Make().String()

	s.mu.Lock()
	s.documents[id] = *document
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"document_id": id,
		"data_length": document.Data.Len(),
	}).Info("Document created successfully")
	return id, nil
}

func (s *memStore) ListDrawings(ctx context.Context, userID string, q core.DrawingQuery) ([]*core.Drawing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userDrawings := s.drawings[userID]
	drawings := make([]*core.Drawing, 0, len(userDrawings))
	for _, d := range userDrawings {
		if !q.Matches(d) {
			continue
		}
		listed := d.Clone()
		listed.Data = nil
		drawings = append(drawings, listed)
	}
	sort.Slice(drawings, func(i, j int) bool {
		return drawings[i].UpdatedAt.After(drawings[j].UpdatedAt)
	})

	logrus.WithField("user_id", userID).Infof("Listed %d drawings", len(drawings))
	return drawings, nil
}

func (s *memStore) GetDrawing(ctx context.Context, userID, id string) (*core.Drawing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "drawing_id": id})
	d, ok := s.drawings[userID][id]
	if !ok {
		log.Warn("Drawing not found for user")
		return nil, fmt.Errorf("drawing %s: %w", id, core.ErrNotFound)
	}
	log.Debug("Drawing retrieved successfully")
	return d.Clone(), nil
}

func (s *memStore) SaveDrawing(ctx context.Context, drawing *core.Drawing) error {
	if drawing.UserID == "" {
		return fmt.Errorf("UserID cannot be empty")
	}
	if drawing.ID == "" {
		return fmt.Errorf("drawing ID cannot be empty for save operation")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userDrawings, ok := s.drawings[drawing.UserID]
	if !ok {
		userDrawings = make(map[string]*core.Drawing)
		s.drawings[drawing.UserID] = userDrawings
	}

	now := time.Now()
	if existing, exists := userDrawings[drawing.ID]; exists {
		drawing.CreatedAt = existing.CreatedAt
	} else if drawing.CreatedAt.IsZero() {
		drawing.CreatedAt = now
	}
	drawing.UpdatedAt = now

	userDrawings[drawing.ID] = drawing.Clone()
	logrus.WithFields(logrus.Fields{"user_id": drawing.UserID, "drawing_id": drawing.ID}).Info("Drawing saved successfully")
	return nil
}

func (s *memStore) DeleteDrawing(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "drawing_id": id})
	if _, ok := s.drawings[userID][id]; !ok {
		log.Warn("Drawing not found for deletion")
		return fmt.Errorf("drawing %s: %w", id, core.ErrNotFound)
	}
	delete(s.drawings[userID], id)
	log.Info("Drawing deleted successfully")
	return nil
}

func (s *memStore) ListCollections(ctx context.Context, userID string) ([]*core.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	collections := make([]*core.Collection, 0, len(s.collections[userID]))
	for _, c := range s.collections[userID] {
		copied := *c
		collections = append(collections, &copied)
	}
	sort.Slice(collections, func(i, j int) bool {
		return collections[i].CreatedAt.Before(collections[j].CreatedAt)
	})
	return collections, nil
}

func (s *memStore) SaveCollection(ctx context.Context, collection *core.Collection) error {
	if collection.UserID == "" || collection.ID == "" {
		return fmt.Errorf("collection requires both UserID and ID")
	}
	if collection.ID == core.TrashCollectionID {
		return fmt.Errorf("collection id %q is reserved", core.TrashCollectionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userCollections, ok := s.collections[collection.UserID]
	if !ok {
		userCollections = make(map[string]*core.Collection)
		s.collections[collection.UserID] = userCollections
	}
	if existing, exists := userCollections[collection.ID]; exists {
		collection.CreatedAt = existing.CreatedAt
	} else if collection.CreatedAt.IsZero() {
		collection.CreatedAt = time.Now()
	}
	copied := *collection
	userCollections[collection.ID] = &copied

	logrus.WithFields(logrus.Fields{"user_id": collection.UserID, "collection_id": collection.ID}).Info("Collection saved successfully")
	return nil
}

// DeleteCollection removes the collection and moves its drawings to unorganized.
func (s *memStore) DeleteCollection(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "collection_id": id})
	if _, ok := s.collections[userID][id]; !ok {
		log.Warn("Collection not found for deletion")
		return fmt.Errorf("collection %s: %w", id, core.ErrNotFound)
	}
	delete(s.collections[userID], id)

	for _, d := range s.drawings[userID] {
		if d.CollectionID != nil && *d.CollectionID == id {
			d.CollectionID = nil
		}
	}
	log.Info("Collection deleted successfully")
	return nil
}
