package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"excalidash/core"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (id TEXT PRIMARY KEY, data BLOB);`,
	`CREATE TABLE IF NOT EXISTS drawings (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		collection_id TEXT,
		preview TEXT NOT NULL DEFAULT '',
		data BLOB,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, id)
	);`,
	`CREATE INDEX IF NOT EXISTS drawings_collection ON drawings (user_id, collection_id);`,
	`CREATE TABLE IF NOT EXISTS collections (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, id)
	);`,
}

// NewStore opens (or creates) the database and ensures the schema exists.
func NewStore(dataSourceName string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps writes serialized and lets ":memory:" work.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return &sqliteStore{db}, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	log := logrus.WithField("document_id", id)
	log.Debug("Retrieving document by ID")

	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM documents WHERE id = ?", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.WithField("error", "document not found").Warn("Document with specified ID not found")
			return nil, fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve document")
		return nil, err
	}
	log.Info("Document retrieved successfully")
	return &core.Document{Data: *bytes.NewBuffer(data)}, nil
}

func (s *sqliteStore) Create(ctx context.Context, document *core.Document) (string, error) {
	id := ulid.Make().String()
	data := document.Data.Bytes()
	log := logrus.WithFields(logrus.Fields{"document_id": id, "data_length": len(data)})

	if _, err := s.db.ExecContext(ctx, "INSERT INTO documents (id, data) VALUES (?, ?)", id, data); err != nil {
		log.WithError(err).Error("Failed to create document")
		return "", err
	}
	log.Info("Document created successfully")
	return id, nil
}

// scopeClause renders the collection filter for q.
func scopeClause(scope core.Scope) (string, []any) {
	switch scope.Kind {
	case core.ScopeUnorganized:
		return " AND collection_id IS NULL", nil
	case core.ScopeTrash:
		return " AND collection_id = ?", []any{core.TrashCollectionID}
	case core.ScopeCollection:
		return " AND collection_id = ?", []any{scope.CollectionID}
	default:
		return "", nil
	}
}

func (s *sqliteStore) ListDrawings(ctx context.Context, userID string, q core.DrawingQuery) ([]*core.Drawing, error) {
	query := "SELECT id, name, collection_id, preview, created_at, updated_at FROM drawings WHERE user_id = ?"
	args := []any{userID}

	clause, scopeArgs := scopeClause(q.Scope)
	query += clause
	args = append(args, scopeArgs...)

	if search := strings.TrimSpace(q.Search); search != "" {
		query += " AND instr(lower(name), lower(?)) > 0"
		args = append(args, search)
	}
	query += " ORDER BY updated_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to list drawings")
		return nil, err
	}
	defer rows.Close()

	drawings := []*core.Drawing{}
	for rows.Next() {
		d := &core.Drawing{UserID: userID}
		var collectionID sql.NullString
		var createdAt, updatedAt int64
		if err := rows.Scan(&d.ID, &d.Name, &collectionID, &d.Preview, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if collectionID.Valid {
			d.CollectionID = core.CollectionRef(collectionID.String)
		}
		d.CreatedAt = time.UnixMilli(createdAt)
		d.UpdatedAt = time.UnixMilli(updatedAt)
		drawings = append(drawings, d)
	}
	return drawings, rows.Err()
}

func (s *sqliteStore) GetDrawing(ctx context.Context, userID, id string) (*core.Drawing, error) {
	d := &core.Drawing{ID: id, UserID: userID}
	var collectionID sql.NullString
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT name, collection_id, preview, data, created_at, updated_at FROM drawings WHERE user_id = ? AND id = ?",
		userID, id).Scan(&d.Name, &collectionID, &d.Preview, &d.Data, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logrus.WithFields(logrus.Fields{"user_id": userID, "drawing_id": id}).Warn("Drawing not found")
			return nil, fmt.Errorf("drawing %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	if collectionID.Valid {
		d.CollectionID = core.CollectionRef(collectionID.String)
	}
	d.CreatedAt = time.UnixMilli(createdAt)
	d.UpdatedAt = time.UnixMilli(updatedAt)
	return d, nil
}

func nullable(id *string) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *id, Valid: true}
}

func (s *sqliteStore) SaveDrawing(ctx context.Context, drawing *core.Drawing) error {
	if drawing.UserID == "" || drawing.ID == "" {
		return fmt.Errorf("drawing requires both UserID and ID")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	var createdAt int64
	err = tx.QueryRowContext(ctx, "SELECT created_at FROM drawings WHERE user_id = ? AND id = ?", drawing.UserID, drawing.ID).Scan(&createdAt)
	switch {
	case err == nil:
		drawing.CreatedAt = time.UnixMilli(createdAt)
		_, err = tx.ExecContext(ctx,
			"UPDATE drawings SET name = ?, collection_id = ?, preview = ?, data = ?, updated_at = ? WHERE user_id = ? AND id = ?",
			drawing.Name, nullable(drawing.CollectionID), drawing.Preview, drawing.Data, now.UnixMilli(), drawing.UserID, drawing.ID)
	case errors.Is(err, sql.ErrNoRows):
		if drawing.CreatedAt.IsZero() {
			drawing.CreatedAt = now
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO drawings (id, user_id, name, collection_id, preview, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			drawing.ID, drawing.UserID, drawing.Name, nullable(drawing.CollectionID), drawing.Preview, drawing.Data, drawing.CreatedAt.UnixMilli(), now.UnixMilli())
	}
	if err != nil {
		logrus.WithError(err).WithField("drawing_id", drawing.ID).Error("Failed to save drawing")
		return err
	}
	drawing.UpdatedAt = time.UnixMilli(now.UnixMilli())
	return tx.Commit()
}

func (s *sqliteStore) DeleteDrawing(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM drawings WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("drawing %s: %w", id, core.ErrNotFound)
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "drawing_id": id}).Info("Drawing deleted successfully")
	return nil
}

func (s *sqliteStore) ListCollections(ctx context.Context, userID string) ([]*core.Collection, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at FROM collections WHERE user_id = ? ORDER BY created_at ASC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collections := []*core.Collection{}
	for rows.Next() {
		c := &core.Collection{UserID: userID}
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.Name, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = time.UnixMilli(createdAt)
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

func (s *sqliteStore) SaveCollection(ctx context.Context, collection *core.Collection) error {
	if collection.UserID == "" || collection.ID == "" {
		return fmt.Errorf("collection requires both UserID and ID")
	}
	if collection.ID == core.TrashCollectionID {
		return fmt.Errorf("collection id %q is reserved", core.TrashCollectionID)
	}
	if collection.CreatedAt.IsZero() {
		collection.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO collections (id, user_id, name, created_at) VALUES (?, ?, ?, ?) ON CONFLICT(user_id, id) DO UPDATE SET name = excluded.name",
		collection.ID, collection.UserID, collection.Name, collection.CreatedAt.UnixMilli())
	if err != nil {
		logrus.WithError(err).WithField("collection_id", collection.ID).Error("Failed to save collection")
		return err
	}
	return nil
}

// DeleteCollection removes the collection and moves its drawings to unorganized.
func (s *sqliteStore) DeleteCollection(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return err
	}
	if rows, err := result.RowsAffected(); err != nil {
		return err
	} else if rows == 0 {
		return fmt.Errorf("collection %s: %w", id, core.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE drawings SET collection_id = NULL, updated_at = ? WHERE user_id = ? AND collection_id = ?",
		time.Now().UnixMilli(), userID, id); err != nil {
		return err
	}
	return tx.Commit()
}
