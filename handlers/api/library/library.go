// Package library stores imported .excalidrawlib files as documents.
package library

import (
	"bytes"
	"errors"
	"excalidash/core"
	"excalidash/importer"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// NameHeader carries the original file name of an uploaded library.
const NameHeader = "X-Library-Name"

type CreateResponse struct {
	ID string `json:"id"`
}

func fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

func HandleCreate(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.Header.Get(NameHeader)
		if name == "" {
			name = "library.excalidrawlib"
		}
		log := logrus.WithField("library", name)

		body, err := io.ReadAll(io.LimitReader(r.Body, importer.MaxFileSize+1))
		if err != nil {
			log.WithError(err).Error("Failed to read request body")
			fail(w, r, http.StatusInternalServerError, "Failed to read request body")
			return
		}
		clean, err := importer.ValidateLibrary(name, body)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, importer.ErrTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			log.WithError(err).Warn("Rejected library")
			fail(w, r, status, err.Error())
			return
		}

		id, err := store.Create(r.Context(), &core.Document{Data: *bytes.NewBuffer(clean)})
		if err != nil {
			log.WithError(err).Error("Failed to save library")
			fail(w, r, http.StatusInternalServerError, "Failed to save library")
			return
		}
		log.WithField("document_id", id).Info("Library imported")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, CreateResponse{ID: id})
	}
}

func HandleGet(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		doc, err := store.FindID(r.Context(), id)
		if err != nil {
			logrus.WithField("document_id", id).WithError(err).Warn("Library lookup failed")
			fail(w, r, http.StatusNotFound, "Library not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc.Data.Bytes())
	}
}
