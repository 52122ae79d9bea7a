package core

import (
	"bytes"
	"context"
)

type (
	// Document is an opaque blob addressed by id. Shared scenes and imported
	// libraries are stored as documents.
	Document struct {
		Data bytes.Buffer
	}

	DocumentStore interface {
		FindID(ctx context.Context, id string) (*Document, error)
		Create(ctx context.Context, document *Document) (string, error)
	}
)
