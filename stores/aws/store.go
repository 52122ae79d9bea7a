package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"excalidash/core"
	"fmt"
	"io"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// s3Store keeps documents under documents/, drawings under
// users/<user>/drawings/<id>.json and collections in users/<user>/collections.json.
type s3Store struct {
	s3Client *s3.Client
	bucket   string
	// mu serializes read-modify-write cycles on collections.json.
	mu sync.Mutex
}

// NewStore creates a new S3-based store using the default credential chain.
func NewStore(ctx context.Context, bucketName string) (*s3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}, nil
}

func plainName(id string) (string, error) {
	if id == "" || id == "." || id == ".." || path.Base(id) != id {
		return "", fmt.Errorf("invalid id %q: must not be a path", id)
	}
	return id, nil
}

func drawingKey(userID, id string) (string, error) {
	user, err := plainName(userID)
	if err != nil {
		return "", err
	}
	name, err := plainName(id)
	if err != nil {
		return "", err
	}
	return path.Join("users", user, "drawings", name+".json"), nil
}

func collectionsKey(userID string) (string, error) {
	user, err := plainName(userID)
	if err != nil {
		return "", err
	}
	return path.Join("users", user, "collections.json"), nil
}

func (s *s3Store) getObject(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("object %s: %w", key, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s *s3Store) putObject(ctx context.Context, key string, data []byte) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

func (s *s3Store) FindID(ctx context.Context, id string) (*core.Document, error) {
	name, err := plainName(id)
	if err != nil {
		return nil, err
	}
	data, err := s.getObject(ctx, path.Join("documents", name))
	if err != nil {
		return nil, err
	}
	return &core.Document{Data: *bytes.NewBuffer(data)}, nil
}

func (s *s3Store) Create(ctx context.Context, document *core.Document) (string, error) {
	id := ulid.Make().String()
	if err := s.putObject(ctx, path.Join("documents", id), document.Data.Bytes()); err != nil {
		return "", err
	}
	logrus.WithField("document_id", id).Info("Document created successfully")
	return id, nil
}

type storedDrawing struct {
	core.Drawing
	Owner string `json:"owner"`
}

func (s *s3Store) ListDrawings(ctx context.Context, userID string, q core.DrawingQuery) ([]*core.Drawing, error) {
	user, err := plainName(userID)
	if err != nil {
		return nil, err
	}
	prefix := path.Join("users", user, "drawings") + "/"
	log := logrus.WithField("user_id", userID)

	drawings := []*core.Drawing{}
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list drawings for user %s: %w", userID, err)
		}
		for _, object := range page.Contents {
			data, err := s.getObject(ctx, aws.ToString(object.Key))
			if err != nil {
				log.WithError(err).Warnf("Failed to get object %s, skipping", aws.ToString(object.Key))
				continue
			}
			var stored storedDrawing
			if err := json.Unmarshal(data, &stored); err != nil {
				log.WithError(err).Warnf("Failed to unmarshal drawing %s, skipping", aws.ToString(object.Key))
				continue
			}
			d := stored.Drawing
			d.UserID = userID
			if !q.Matches(&d) {
				continue
			}
			d.Data = nil
			drawings = append(drawings, &d)
		}
	}
	sort.Slice(drawings, func(i, j int) bool {
		return drawings[i].UpdatedAt.After(drawings[j].UpdatedAt)
	})
	return drawings, nil
}

func (s *s3Store) GetDrawing(ctx context.Context, userID, id string) (*core.Drawing, error) {
	key, err := drawingKey(userID, id)
	if err != nil {
		return nil, err
	}
	data, err := s.getObject(ctx, key)
	if err != nil {
		return nil, err
	}
	var stored storedDrawing
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal drawing data: %w", err)
	}
	d := stored.Drawing
	d.UserID = userID
	return &d, nil
}

func (s *s3Store) SaveDrawing(ctx context.Context, drawing *core.Drawing) error {
	key, err := drawingKey(drawing.UserID, drawing.ID)
	if err != nil {
		return err
	}

	if existing, err := s.GetDrawing(ctx, drawing.UserID, drawing.ID); err == nil {
		drawing.CreatedAt = existing.CreatedAt
	} else if drawing.CreatedAt.IsZero() {
		drawing.CreatedAt = time.Now()
	}
	drawing.UpdatedAt = time.Now()

	data, err := json.Marshal(storedDrawing{Drawing: *drawing, Owner: drawing.UserID})
	if err != nil {
		return fmt.Errorf("failed to marshal drawing: %w", err)
	}
	if err := s.putObject(ctx, key, data); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"user_id": drawing.UserID, "drawing_id": drawing.ID}).Info("Drawing saved successfully")
	return nil
}

func (s *s3Store) DeleteDrawing(ctx context.Context, userID, id string) error {
	key, err := drawingKey(userID, id)
	if err != nil {
		return err
	}
	// DeleteObject succeeds for missing keys, so existence is checked first.
	if _, err := s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		var nf *s3types.NotFound
		if errors.As(err, &nf) {
			return fmt.Errorf("drawing %s: %w", id, core.ErrNotFound)
		}
		return fmt.Errorf("failed to stat drawing %s: %w", id, err)
	}
	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete drawing %s: %w", id, err)
	}
	return nil
}

func (s *s3Store) readCollections(ctx context.Context, userID string) ([]*core.Collection, error) {
	key, err := collectionsKey(userID)
	if err != nil {
		return nil, err
	}
	data, err := s.getObject(ctx, key)
	if errors.Is(err, core.ErrNotFound) {
		return []*core.Collection{}, nil
	}
	if err != nil {
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

func (s *s3Store) writeCollections(ctx context.Context, userID string, collections []*core.Collection) error {
	key, err := collectionsKey(userID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(collections)
	if err != nil {
		return err
	}
	return s.putObject(ctx, key, data)
}

func (s *s3Store) ListCollections(ctx context.Context, userID string) ([]*core.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readCollections(ctx, userID)
}

func (s *s3Store) SaveCollection(ctx context.Context, collection *core.Collection) error {
	if collection.ID == core.TrashCollectionID {
		return fmt.Errorf("collection id %q is reserved", core.TrashCollectionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	collections, err := s.readCollections(ctx, collection.UserID)
	if err != nil {
		return err
	}
	for i, c := range collections {
		if c.ID == collection.ID {
			collection.CreatedAt = c.CreatedAt
			collections[i] = collection
			return s.writeCollections(ctx, collection.UserID, collections)
		}
	}
	if collection.CreatedAt.IsZero() {
		collection.CreatedAt = time.Now()
	}
	return s.writeCollections(ctx, collection.UserID, append(collections, collection))
}

// DeleteCollection removes the collection and moves its drawings to unorganized.
func (s *s3Store) DeleteCollection(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	collections, err := s.readCollections(ctx, userID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	kept := make([]*core.Collection, 0, len(collections))
	for _, c := range collections {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(collections) {
		s.mu.Unlock()
		return fmt.Errorf("collection %s: %w", id, core.ErrNotFound)
	}
	err = s.writeCollections(ctx, userID, kept)
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
	return nil
}
