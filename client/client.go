// Package client talks to the excalidash HTTP API and implements
// dashboard.Remote on top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"excalidash/core"
	"excalidash/handlers/api/collections"
	"excalidash/handlers/api/drawings"
	"excalidash/handlers/api/library"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 30 * time.Second

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Message)
}

// Unwrap maps 404 to core.ErrNotFound.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return core.ErrNotFound
	}
	return nil
}

type Client struct {
	base  string
	token string
	http  *http.Client
}

// New returns a client for the server at baseURL. token may be empty when the
// server runs without authentication.
func New(baseURL, token string) *Client {
	return &Client{
		base:  strings.TrimRight(baseURL, "/") + "/api/v2",
		token: token,
		http:  &http.Client{Timeout: DefaultTimeout},
	}
}

// WithHTTPClient replaces the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	log := logrus.WithFields(logrus.Fields{"method": method, "path": path})
	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).Debug("Request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		log.WithField("status", resp.StatusCode).Debug(msg)
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	return c.do(ctx, method, path, body, nil, out)
}

func fromWire(w drawings.Drawing) (*core.Drawing, error) {
	if w.Drawing == nil {
		return nil, errors.New("empty drawing in response")
	}
	d := w.Drawing
	d.Data = []byte(w.Data)
	return d, nil
}

func (c *Client) ListDrawings(ctx context.Context, search string, scope core.Scope) ([]*core.Drawing, error) {
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	if s := scope.String(); s != "" {
		q.Set("collection", s)
	}
	path := "/drawings"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list []drawings.Drawing
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	out := make([]*core.Drawing, 0, len(list))
	for _, w := range list {
		d, err := fromWire(w)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (c *Client) GetDrawing(ctx context.Context, id string) (*core.Drawing, error) {
	var w drawings.Drawing
	if err := c.doJSON(ctx, http.MethodGet, "/drawings/"+url.PathEscape(id), nil, &w); err != nil {
		return nil, err
	}
	return fromWire(w)
}

func (c *Client) CreateDrawing(ctx context.Context, in core.DrawingInput) (string, error) {
	var resp drawings.IDResponse
	err := c.doJSON(ctx, http.MethodPost, "/drawings", drawings.CreateRequest{
		Name:         in.Name,
		CollectionID: in.CollectionID,
		Data:         json.RawMessage(in.Data),
	}, &resp)
	return resp.ID, err
}

func (c *Client) UpdateDrawing(ctx context.Context, id string, patch core.DrawingPatch) error {
	req := drawings.UpdateRequest{Name: patch.Name, Preview: patch.Preview}
	if patch.Move {
		raw, err := json.Marshal(patch.MoveTo)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		req.CollectionID = raw
	}
	return c.doJSON(ctx, http.MethodPatch, "/drawings/"+url.PathEscape(id), req, nil)
}

func (c *Client) DeleteDrawing(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/drawings/"+url.PathEscape(id), nil, nil)
}

func (c *Client) DuplicateDrawing(ctx context.Context, id string) (string, error) {
	var resp drawings.IDResponse
	err := c.doJSON(ctx, http.MethodPost, "/drawings/"+url.PathEscape(id)+"/duplicate", nil, &resp)
	return resp.ID, err
}

func (c *Client) ListCollections(ctx context.Context) ([]*core.Collection, error) {
	var list []*core.Collection
	if err := c.doJSON(ctx, http.MethodGet, "/collections", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) CreateCollection(ctx context.Context, name string) (string, error) {
	var resp collections.IDResponse
	err := c.doJSON(ctx, http.MethodPost, "/collections", collections.NameRequest{Name: name}, &resp)
	return resp.ID, err
}

func (c *Client) UpdateCollection(ctx context.Context, id, name string) error {
	return c.doJSON(ctx, http.MethodPut, "/collections/"+url.PathEscape(id), collections.NameRequest{Name: name}, nil)
}

func (c *Client) DeleteCollection(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/collections/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ImportLibrary(ctx context.Context, name string, data []byte) (string, error) {
	header := http.Header{}
	header.Set(library.NameHeader, name)
	var resp library.CreateResponse
	err := c.do(ctx, http.MethodPost, "/library", bytes.NewReader(data), header, &resp)
	return resp.ID, err
}
