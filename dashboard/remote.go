package dashboard

import (
	"context"
	"excalidash/core"
	"excalidash/importer"
	"fmt"
)

// Remote is the authoritative store the dashboard mirrors. Every call may fail
// or time out independently.
type Remote interface {
	ListDrawings(ctx context.Context, search string, scope core.Scope) ([]*core.Drawing, error)
	ListCollections(ctx context.Context) ([]*core.Collection, error)
	CreateDrawing(ctx context.Context, in core.DrawingInput) (string, error)
	UpdateDrawing(ctx context.Context, id string, patch core.DrawingPatch) error
	DeleteDrawing(ctx context.Context, id string) error
	DuplicateDrawing(ctx context.Context, id string) (string, error)
	CreateCollection(ctx context.Context, name string) (string, error)
	UpdateCollection(ctx context.Context, id, name string) error
	DeleteCollection(ctx context.Context, id string) error
	ImportLibrary(ctx context.Context, name string, data []byte) (string, error)
}

// Confirmer is asked before anything is deleted for good.
type Confirmer interface {
	Confirm(prompt string, count int) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string, count int) bool

func (f ConfirmFunc) Confirm(prompt string, count int) bool { return f(prompt, count) }

// File is a dropped or imported file.
type File struct {
	Name string
	Data []byte
}

// Importer turns one external file into a drawing or library in the remote store.
type Importer interface {
	ImportDrawing(ctx context.Context, f File, target *string) error
	ImportLibrary(ctx context.Context, f File) error
}

// RemoteImporter sanitizes files with the importer package and stores them
// through a Remote.
type RemoteImporter struct {
	Remote Remote
}

func (ri RemoteImporter) ImportDrawing(ctx context.Context, f File, target *string) error {
	d, err := importer.ValidateDrawing(f.Name, f.Data)
	if err != nil {
		return &ImportError{File: f.Name, Err: err}
	}
	_, err = ri.Remote.CreateDrawing(ctx, core.DrawingInput{Name: d.Name, CollectionID: target, Data: d.Data})
	if err != nil {
		return &ImportError{File: f.Name, Err: fmt.Errorf("upload: %w", err)}
	}
	return nil
}

func (ri RemoteImporter) ImportLibrary(ctx context.Context, f File) error {
	data, err := importer.ValidateLibrary(f.Name, f.Data)
	if err != nil {
		return &ImportError{File: f.Name, Err: err}
	}
	if _, err := ri.Remote.ImportLibrary(ctx, f.Name, data); err != nil {
		return &ImportError{File: f.Name, Err: fmt.Errorf("upload: %w", err)}
	}
	return nil
}
