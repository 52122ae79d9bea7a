package collections

import (
	"errors"
	"excalidash/core"
	"excalidash/middleware"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const maxNameLength = 100

type (
	NameRequest struct {
		Name string `json:"name"`
	}

	IDResponse struct {
		ID string `json:"id"`
	}
)

func fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

// decodeName reads and validates the collection name of a request body.
func decodeName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req NameRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "Invalid request body")
		return "", false
	}
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		fail(w, r, http.StatusBadRequest, "Name must not be empty")
		return "", false
	case len([]rune(name)) > maxNameLength:
		fail(w, r, http.StatusBadRequest, "Name is too long")
		return "", false
	}
	return name, true
}

func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.UserID(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "User claims not found")
	}
	return id, ok
}

func HandleList(store core.CollectionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(w, r)
		if !ok {
			return
		}
		list, err := store.ListCollections(r.Context(), user)
		if err != nil {
			logrus.WithField("user_id", user).WithError(err).Error("Failed to list collections")
			fail(w, r, http.StatusInternalServerError, "Failed to list collections")
			return
		}
		if list == nil {
			list = []*core.Collection{}
		}
		render.JSON(w, r, list)
	}
}

func HandleCreate(store core.CollectionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(w, r)
		if !ok {
			return
		}
		name, ok := decodeName(w, r)
		if !ok {
			return
		}

		c := &core.Collection{ID: ulid.Make().String(), UserID: user, Name: name}
		if err := store.SaveCollection(r.Context(), c); err != nil {
			logrus.WithField("user_id", user).WithError(err).Error("Failed to create collection")
			fail(w, r, http.StatusInternalServerError, "Failed to create collection")
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, IDResponse{ID: c.ID})
	}
}

// HandleRename renames an existing collection. Unknown ids are 404 rather
// than being created.
func HandleRename(store core.CollectionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		name, ok := decodeName(w, r)
		if !ok {
			return
		}
		log := logrus.WithFields(logrus.Fields{"user_id": user, "collection_id": id})

		list, err := store.ListCollections(r.Context(), user)
		if err != nil {
			log.WithError(err).Error("Failed to rename collection")
			fail(w, r, http.StatusInternalServerError, "Failed to rename collection")
			return
		}
		var target *core.Collection
		for _, c := range list {
			if c.ID == id {
				target = c
				break
			}
		}
		if target == nil {
			fail(w, r, http.StatusNotFound, "Collection not found")
			return
		}

		target.Name = name
		if err := store.SaveCollection(r.Context(), target); err != nil {
			log.WithError(err).Error("Failed to rename collection")
			fail(w, r, http.StatusInternalServerError, "Failed to rename collection")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleDelete removes a collection; its drawings become unorganized.
func HandleDelete(store core.CollectionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")

		if err := store.DeleteCollection(r.Context(), user, id); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				fail(w, r, http.StatusNotFound, "Collection not found")
				return
			}
			logrus.WithFields(logrus.Fields{"user_id": user, "collection_id": id}).WithError(err).Error("Failed to delete collection")
			fail(w, r, http.StatusInternalServerError, "Failed to delete collection")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
