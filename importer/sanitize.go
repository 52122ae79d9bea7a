package importer

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"
)

var elementTypes = map[string]bool{
	"rectangle":  true,
	"diamond":    true,
	"ellipse":    true,
	"arrow":      true,
	"line":       true,
	"freedraw":   true,
	"text":       true,
	"image":      true,
	"frame":      true,
	"magicframe": true,
	"embeddable": true,
	"iframe":     true,
	"selection":  true,
}

var numericFields = []string{"x", "y", "width", "height", "angle", "strokeWidth", "opacity", "roughness", "fontSize"}

const maxTextLength = 1 << 20

func sanitizeElements(elements []map[string]any) ([]map[string]any, error) {
	if len(elements) > MaxElements {
		return nil, fmt.Errorf("%w: %d", ErrTooManyElements, len(elements))
	}
	out := make([]map[string]any, 0, len(elements))
	for i, el := range elements {
		if el == nil {
			return nil, fmt.Errorf("%w: #%d is null", ErrInvalidElement, i)
		}
		if id, ok := el["id"].(string); !ok || id == "" {
			return nil, fmt.Errorf("%w: #%d has no id", ErrInvalidElement, i)
		}
		typ, _ := el["type"].(string)
		if !elementTypes[typ] {
			return nil, fmt.Errorf("%w: #%d has type %q", ErrInvalidElement, i, typ)
		}
		for _, field := range numericFields {
			v, present := el[field]
			if !present {
				continue
			}
			if !finiteNumber(v) {
				return nil, fmt.Errorf("%w: #%d field %s is not a finite number", ErrInvalidElement, i, field)
			}
		}
		if text, present := el["text"]; present {
			s, ok := text.(string)
			if !ok || len(s) > maxTextLength {
				return nil, fmt.Errorf("%w: #%d has invalid text", ErrInvalidElement, i)
			}
		}
		if link, present := el["link"]; present {
			s, _ := link.(string)
			if safe := safeLink(s); safe == "" {
				delete(el, "link")
			} else {
				el["link"] = safe
			}
		}
		out = append(out, el)
	}
	return out, nil
}

func finiteNumber(v any) bool {
	n, ok := v.(json.Number)
	if !ok {
		return false
	}
	f, err := n.Float64()
	return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// safeLink keeps http(s), mailto and relative links; anything else (notably
// javascript: and data: URLs) is dropped.
func safeLink(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto":
		return link
	case "":
		if u.Host == "" && !strings.HasPrefix(link, "//") {
			return link
		}
	}
	return ""
}

var appStateKeys = map[string]bool{
	"viewBackgroundColor":            true,
	"gridSize":                       true,
	"gridModeEnabled":                true,
	"name":                           true,
	"theme":                          true,
	"scrollX":                        true,
	"scrollY":                        true,
	"zoom":                           true,
	"exportBackground":               true,
	"exportWithDarkMode":             true,
	"exportEmbedScene":               true,
	"currentItemFontFamily":          true,
	"currentItemFontSize":            true,
	"currentItemStrokeColor":         true,
	"currentItemBackgroundColor":     true,
	"currentItemFillStyle":           true,
	"currentItemStrokeWidth":         true,
	"currentItemRoughness":           true,
	"currentItemOpacity":             true,
	"currentItemTextAlign":           true,
	"currentItemStartArrowhead":      true,
	"currentItemEndArrowhead":        true,
	"currentItemRoundness":           true,
	"currentItemStrokeStyle":         true,
	"frameRendering":                 true,
	"objectsSnapModeEnabled":         true,
	"previousGridSize":               true,
	"lockedMultiSelections":          true,
	"viewModeEnabled":                true,
	"zenModeEnabled":                 true,
	"currentChartType":               true,
	"currentItemArrowType":           true,
	"defaultSidebarDockedPreference": true,
}

func sanitizeAppState(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if !appStateKeys[k] {
			continue
		}
		if s, ok := v.(string); ok {
			v = truncate(s, 1024)
		}
		out[k] = v
	}
	return out
}

var imageMimeTypes = map[string]bool{
	"image/png":    true,
	"image/jpeg":   true,
	"image/gif":    true,
	"image/webp":   true,
	"image/bmp":    true,
	"image/x-icon": true,
	"image/avif":   true,
	"image/jfif":   true,
}

// sanitizeFiles drops embedded files whose data URL does not carry a raster
// image of the declared type. SVG is excluded because it can carry script.
func sanitizeFiles(in map[string]map[string]any) map[string]map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]map[string]any, len(in))
	for id, file := range in {
		mime, _ := file["mimeType"].(string)
		dataURL, _ := file["dataURL"].(string)
		if !imageMimeTypes[mime] || !strings.HasPrefix(dataURL, "data:"+mime+";base64,") {
			continue
		}
		clean := map[string]any{
			"id":       id,
			"mimeType": mime,
			"dataURL":  dataURL,
		}
		if created, ok := file["created"]; ok && finiteNumber(created) {
			clean["created"] = created
		}
		out[id] = clean
	}
	return out
}
