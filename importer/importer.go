// Package importer is the trust boundary for drawing and library files coming
// from outside: every payload is parsed, checked and re-encoded from an
// allowlist before anything else sees it.
package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const (
	// MaxFileSize bounds a single imported payload.
	MaxFileSize = 50 << 20
	// MaxElements bounds the element count of one scene or library item.
	MaxElements = 100_000

	sceneType   = "excalidraw"
	libraryType = "excalidrawlib"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindDrawing
	KindLibrary
)

func (k Kind) String() string {
	switch k {
	case KindDrawing:
		return "drawing"
	case KindLibrary:
		return "library"
	default:
		return "unknown"
	}
}

var (
	ErrTooLarge        = errors.New("file too large")
	ErrInvalidJSON     = errors.New("invalid JSON")
	ErrWrongType       = errors.New("unexpected file type")
	ErrTooManyElements = errors.New("too many elements")
	ErrInvalidElement  = errors.New("invalid element")
	ErrUnsupported     = errors.New("unsupported file extension")
)

// Classify maps a file name to the kind of payload it should carry.
func Classify(filename string) Kind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".excalidrawlib":
		return KindLibrary
	case ".excalidraw", ".json":
		return KindDrawing
	default:
		return KindUnknown
	}
}

// Drawing is a sanitized scene ready to be stored.
type Drawing struct {
	Name string
	Data []byte
}

// ValidateDrawing sanitizes an .excalidraw payload. The drawing is named after
// appState.name when present, otherwise after the file name.
func ValidateDrawing(filename string, data []byte) (*Drawing, error) {
	if Classify(filename) != KindDrawing {
		return nil, fmt.Errorf("%s: %w", filename, ErrUnsupported)
	}
	clean, scene, err := sanitizeScene(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if n, ok := scene.AppState["name"].(string); ok && strings.TrimSpace(n) != "" {
		name = strings.TrimSpace(n)
	}
	return &Drawing{Name: name, Data: clean}, nil
}

// SanitizeScene returns the canonical, allowlisted encoding of a scene.
func SanitizeScene(data []byte) ([]byte, error) {
	clean, _, err := sanitizeScene(data)
	return clean, err
}

// ValidateLibrary sanitizes an .excalidrawlib payload.
func ValidateLibrary(filename string, data []byte) ([]byte, error) {
	if Classify(filename) != KindLibrary {
		return nil, fmt.Errorf("%s: %w", filename, ErrUnsupported)
	}
	clean, err := sanitizeLibrary(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return clean, nil
}

type scene struct {
	Type     string                    `json:"type"`
	Version  int                       `json:"version"`
	Source   string                    `json:"source,omitempty"`
	Elements []map[string]any          `json:"elements"`
	AppState map[string]any            `json:"appState"`
	Files    map[string]map[string]any `json:"files,omitempty"`
}

func decode(data []byte, v any) error {
	if len(data) > MaxFileSize {
		return ErrTooLarge
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrInvalidJSON)
	}
	return nil
}

func sanitizeScene(data []byte) ([]byte, *scene, error) {
	var in scene
	if err := decode(data, &in); err != nil {
		return nil, nil, err
	}
	if in.Type != sceneType {
		return nil, nil, fmt.Errorf("%w: %q", ErrWrongType, in.Type)
	}

	elements, err := sanitizeElements(in.Elements)
	if err != nil {
		return nil, nil, err
	}
	out := &scene{
		Type:     sceneType,
		Version:  in.Version,
		Source:   sanitizeSource(in.Source),
		Elements: elements,
		AppState: sanitizeAppState(in.AppState),
		Files:    sanitizeFiles(in.Files),
	}
	if out.Version <= 0 {
		out.Version = 2
	}

	clean, err := json.Marshal(out)
	if err != nil {
		return nil, nil, err
	}
	return clean, out, nil
}

type library struct {
	Type         string             `json:"type"`
	Version      int                `json:"version"`
	Source       string             `json:"source,omitempty"`
	Library      [][]map[string]any `json:"library,omitempty"`
	LibraryItems []libraryItem      `json:"libraryItems,omitempty"`
}

type libraryItem struct {
	ID       string           `json:"id"`
	Status   string           `json:"status,omitempty"`
	Name     string           `json:"name,omitempty"`
	Created  json.Number      `json:"created,omitempty"`
	Elements []map[string]any `json:"elements"`
}

func sanitizeLibrary(data []byte) ([]byte, error) {
	var in library
	if err := decode(data, &in); err != nil {
		return nil, err
	}
	if in.Type != libraryType {
		return nil, fmt.Errorf("%w: %q", ErrWrongType, in.Type)
	}

	out := library{Type: libraryType, Version: in.Version, Source: sanitizeSource(in.Source)}
	// Version 1 libraries are a bare list of element groups.
	for _, group := range in.Library {
		elements, err := sanitizeElements(group)
		if err != nil {
			return nil, err
		}
		out.Library = append(out.Library, elements)
	}
	for _, item := range in.LibraryItems {
		elements, err := sanitizeElements(item.Elements)
		if err != nil {
			return nil, err
		}
		status := item.Status
		if status != "published" {
			status = "unpublished"
		}
		out.LibraryItems = append(out.LibraryItems, libraryItem{
			ID:       item.ID,
			Status:   status,
			Name:     truncate(item.Name, 256),
			Created:  item.Created,
			Elements: elements,
		})
	}
	return json.Marshal(out)
}

func sanitizeSource(source string) string {
	if strings.HasPrefix(source, "https://") || strings.HasPrefix(source, "http://") {
		return truncate(source, 512)
	}
	return ""
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
