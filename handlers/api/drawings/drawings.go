package drawings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"excalidash/core"
	"excalidash/importer"
	"excalidash/middleware"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const (
	defaultName = "Untitled Drawing"
	emptyScene  = `{"type":"excalidraw","version":2,"elements":[],"appState":{},"files":{}}`
)

type (
	Store interface {
		core.DrawingStore
		ListCollections(ctx context.Context, userID string) ([]*core.Collection, error)
	}

	// Drawing is the wire form of core.Drawing; the scene travels as JSON.
	Drawing struct {
		*core.Drawing
		Data json.RawMessage `json:"data,omitempty"`
	}

	CreateRequest struct {
		Name         string          `json:"name"`
		CollectionID *string         `json:"collectionId"`
		Data         json.RawMessage `json:"data,omitempty"`
	}

	// UpdateRequest patches a drawing. CollectionID is left raw so that an
	// explicit null (unorganize) differs from an absent field.
	UpdateRequest struct {
		Name         *string         `json:"name,omitempty"`
		Preview      *string         `json:"preview,omitempty"`
		CollectionID json.RawMessage `json:"collectionId,omitempty"`
	}

	IDResponse struct {
		ID string `json:"id"`
	}
)

func wire(d *core.Drawing) Drawing {
	return Drawing{Drawing: d, Data: json.RawMessage(d.Data)}
}

func fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.UserID(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "User claims not found")
	}
	return id, ok
}

func storeError(w http.ResponseWriter, r *http.Request, err error, msg string, fields logrus.Fields) {
	if errors.Is(err, core.ErrNotFound) {
		logrus.WithFields(fields).WithError(err).Warn(msg)
		fail(w, r, http.StatusNotFound, "Drawing not found")
		return
	}
	logrus.WithFields(fields).WithError(err).Error(msg)
	fail(w, r, http.StatusInternalServerError, msg)
}

// validTarget checks that a drawing may be placed into collectionID.
func validTarget(ctx context.Context, store Store, userID string, collectionID *string, allowTrash bool) (bool, error) {
	if collectionID == nil {
		return true, nil
	}
	if *collectionID == core.TrashCollectionID {
		return allowTrash, nil
	}
	collections, err := store.ListCollections(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, c := range collections {
		if c.ID == *collectionID {
			return true, nil
		}
	}
	return false, nil
}

func HandleList(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(w, r)
		if !ok {
			return
		}

		q := core.DrawingQuery{
			Search: r.URL.Query().Get("search"),
			Scope:  core.ParseScope(r.URL.Query().Get("collection")),
		}
		list, err := store.ListDrawings(r.Context(), user, q)
		if err != nil {
			storeError(w, r, err, "Failed to list drawings", logrus.Fields{"user_id": user})
			return
		}

		out := make([]Drawing, 0, len(list))
		for _, d := range list {
			out = append(out, wire(d))
		}
		render.JSON(w, r, out)
	}
}

func HandleCreate(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(w, r)
		if !ok {
			return
		}

		var req CreateRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, importer.MaxFileSize+1)).Decode(&req); err != nil {
			fail(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}
		req.CollectionID = core.NormalizeCollectionID(req.CollectionID)

		valid, err := validTarget(r.Context(), store, user, req.CollectionID, false)
		if err != nil {
			storeError(w, r, err, "Failed to create drawing", logrus.Fields{"user_id": user})
			return
		}
		if !valid {
			fail(w, r, http.StatusBadRequest, "Unknown collection")
			return
		}

		data := []byte(emptyScene)
		if len(req.Data) > 0 && !bytes.Equal(req.Data, []byte("null")) {
			data = req.Data
		}
		clean, err := importer.SanitizeScene(data)
		if err != nil {
			fail(w, r, http.StatusBadRequest, "Invalid drawing data: "+err.Error())
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			name = defaultName
		}
		d := &core.Drawing{
			ID:           ulid.Make().String(),
			UserID:       user,
			Name:         name,
			CollectionID: req.CollectionID,
			Data:         clean,
		}
		if err := store.SaveDrawing(r.Context(), d); err != nil {
			storeError(w, r, err, "Failed to create drawing", logrus.Fields{"user_id": user})
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, IDResponse{ID: d.ID})
	}
}

func HandleGet(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")

		d, err := store.GetDrawing(r.Context(), user, id)
		if err != nil {
			storeError(w, r, err, "Failed to get drawing", logrus.Fields{"user_id": user, "drawing_id": id})
			return
		}
		render.JSON(w, r, wire(d))
	}
}

func HandleUpdate(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		fields := logrus.Fields{"user_id": user, "drawing_id": id}

		var req UpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			fail(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}

		patch := core.DrawingPatch{Name: req.Name, Preview: req.Preview}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				fail(w, r, http.StatusBadRequest, "Name must not be empty")
				return
			}
			patch.Name = &name
		}
		if len(req.CollectionID) > 0 {
			var target *string
			if err := json.Unmarshal(req.CollectionID, &target); err != nil {
				fail(w, r, http.StatusBadRequest, "Invalid collectionId")
				return
			}
			patch.Move, patch.MoveTo = true, core.NormalizeCollectionID(target)

			valid, err := validTarget(r.Context(), store, user, patch.MoveTo, true)
			if err != nil {
				storeError(w, r, err, "Failed to update drawing", fields)
				return
			}
			if !valid {
				fail(w, r, http.StatusBadRequest, "Unknown collection")
				return
			}
		}

		d, err := store.GetDrawing(r.Context(), user, id)
		if err != nil {
			storeError(w, r, err, "Failed to update drawing", fields)
			return
		}
		patch.Apply(d)
		if err := store.SaveDrawing(r.Context(), d); err != nil {
			storeError(w, r, err, "Failed to update drawing", fields)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleSaveData replaces the scene of a drawing. The payload is sanitized
// like an imported file.
func HandleSaveData(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		fields := logrus.Fields{"user_id": user, "drawing_id": id}

		body, err := io.ReadAll(io.LimitReader(r.Body, importer.MaxFileSize+1))
		if err != nil {
			logrus.WithFields(fields).WithError(err).Error("Failed to read request body")
			fail(w, r, http.StatusInternalServerError, "Failed to read request body")
			return
		}
		clean, err := importer.SanitizeScene(body)
		if err != nil {
			fail(w, r, http.StatusBadRequest, "Invalid drawing data: "+err.Error())
			return
		}

		d, err := store.GetDrawing(r.Context(), user, id)
		if err != nil {
			storeError(w, r, err, "Failed to save drawing", fields)
			return
		}
		d.Data = clean
		if err := store.SaveDrawing(r.Context(), d); err != nil {
			storeError(w, r, err, "Failed to save drawing", fields)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleDelete(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")

		if err := store.DeleteDrawing(r.Context(), user, id); err != nil {
			storeError(w, r, err, "Failed to delete drawing", logrus.Fields{"user_id": user, "drawing_id": id})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleDuplicate copies a drawing into the same collection under a new id.
func HandleDuplicate(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		fields := logrus.Fields{"user_id": user, "drawing_id": id}

		src, err := store.GetDrawing(r.Context(), user, id)
		if err != nil {
			storeError(w, r, err, "Failed to duplicate drawing", fields)
			return
		}
		cp := src.Clone()
		cp.ID = ulid.Make().String()
		cp.Name = src.Name + " (copy)"
		cp.CreatedAt = time.Time{}
		if err := store.SaveDrawing(r.Context(), cp); err != nil {
			storeError(w, r, err, "Failed to duplicate drawing", fields)
			return
		}

		logrus.WithFields(fields).WithField("copy_id", cp.ID).Info("Drawing duplicated")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, IDResponse{ID: cp.ID})
	}
}
