// Copyright 2025 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

// Package supabase implements backend.Client on top of a Supabase project's
// GoTrue (auth) and PostgREST (data) REST endpoints.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/la5nta/memorymap/backend"
	"github.com/la5nta/memorymap/internal/buildinfo"
	"github.com/la5nta/memorymap/internal/debug"
)

type Client struct {
	backend.Dispatcher

	rootURL     string
	apiKey      string
	httpClient  *http.Client
	sessionPath string

	mu      sync.Mutex
	session *backend.Session
	loaded  bool
}

type Option func(*Client)

// WithSessionFile persists the session at path so it survives restarts.
func WithSessionFile(path string) Option { return func(c *Client) { c.sessionPath = path } }

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// New returns a client for the project at rootURL (e.g. https://xyz.supabase.co)
// authenticating requests with the anon apiKey.
func New(rootURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		rootURL:    strings.TrimSuffix(rootURL, "/"),
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ backend.Client = (*Client)(nil)

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Request, error) {
	u := c.rootURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token := c.apiKey
	if s := c.currentSession(); s != nil {
		token = s.AccessToken
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

// do executes req and decodes a successful JSON response into v (if non-nil).
func (c *Client) do(req *http.Request, v interface{}) error {
	debug.Printf("supabase: %s %s", req.Method, req.URL.Path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeError(resp)
	}
	if v == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// errorBody covers both the GoTrue and the PostgREST error formats.
type errorBody struct {
	// PostgREST uses a string code, GoTrue a numeric one.
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
	Details string          `json:"details"`

	// GoTrue
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	ErrorName        string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func decodeError(resp *http.Response) error {
	e := &backend.Error{Status: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		e.Message = strings.TrimSpace(string(raw))
	}
	if body.ErrorCode == "" && body.ErrorName != "" {
		body.ErrorCode = body.ErrorName
	}
	for _, s := range []string{body.Message, body.Msg, body.ErrorDescription} {
		if s != "" {
			e.Message = s
			break
		}
	}
	var code string
	if json.Unmarshal(body.Code, &code) == nil {
		e.Code = code
	}
	if e.Code == "" {
		e.Code = body.ErrorCode
	}
	if e.Message == "" {
		e.Message = resp.Status
	}

	switch {
	case e.Code == "PGRST116":
		e.Err = backend.ErrNoRows
	case e.Code == "23505", e.Code == "user_already_exists", resp.StatusCode == http.StatusConflict:
		e.Err = backend.ErrConflict
	case e.Code == "invalid_credentials", e.Code == "invalid_grant":
		e.Err = backend.ErrInvalidCredentials
	case resp.StatusCode == http.StatusUnauthorized:
		e.Err = backend.ErrNotAuthenticated
	}
	return e
}

// Session persistence

func (c *Client) currentSession() *backend.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadSessionLocked()
	return c.session.Clone()
}

func (c *Client) loadSessionLocked() {
	if c.loaded {
		return
	}
	c.loaded = true
	if c.sessionPath == "" {
		return
	}
	b, err := os.ReadFile(c.sessionPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			debug.Printf("supabase: unable to read session file: %v", err)
		}
		return
	}
	var s backend.Session
	if err := json.Unmarshal(b, &s); err != nil {
		debug.Printf("supabase: ignoring corrupt session file: %v", err)
		return
	}
	c.session = &s
}

func (c *Client) setSession(s *backend.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = true
	c.session = s.Clone()
	if c.sessionPath == "" {
		return
	}
	if s == nil {
		if err := os.Remove(c.sessionPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			debug.Printf("supabase: unable to remove session file: %v", err)
		}
		return
	}
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	os.MkdirAll(filepath.Dir(c.sessionPath), 0o755)
	if err := os.WriteFile(c.sessionPath, b, 0o600); err != nil {
		debug.Printf("supabase: unable to persist session: %v", err)
	}
}

func now() time.Time { return time.Now() }
