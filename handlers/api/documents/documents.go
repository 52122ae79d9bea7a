// Package documents serves anonymous share links: an opaque scene blob is
// posted once and fetched by id.
package documents

import (
	"bytes"
	"excalidash/core"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type DocumentCreateResponse struct {
	ID string `json:"id"`
}

func HandleCreate(documentStore core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := new(bytes.Buffer)
		if _, err := io.Copy(data, r.Body); err != nil {
			logrus.WithError(err).Error("Failed to read request body")
			http.Error(w, "Failed to copy", http.StatusInternalServerError)
			return
		}

		id, err := documentStore.Create(r.Context(), &core.Document{Data: *data})
		if err != nil {
			logrus.WithError(err).Error("Failed to save document")
			http.Error(w, "Failed to save", http.StatusInternalServerError)
			return
		}

		logrus.WithFields(logrus.Fields{"document_id": id, "size": data.Len()}).Info("Document created")
		render.JSON(w, r, DocumentCreateResponse{ID: id})
	}
}

func HandleGet(documentStore core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		document, err := documentStore.FindID(r.Context(), id)
		if err != nil {
			logrus.WithField("document_id", id).WithError(err).Warn("Document lookup failed")
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(document.Data.Bytes())
	}
}
