// Copyright 2025 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

// Package local implements backend.Client on an embedded SQLite database.
//
// It mirrors the observable behavior of the hosted backend closely enough
// for offline use and tests: email + password accounts, a profile row
// created on sign up, per-user row scoping and ordered session events.
package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/la5nta/memorymap/backend"
	"github.com/la5nta/memorymap/internal/debug"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	metadata      TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS sessions (
	access_token TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL REFERENCES users(id),
	current      INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS profiles (
	id       TEXT PRIMARY KEY REFERENCES users(id),
	username TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS markers (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL REFERENCES users(id),
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	latitude    REAL NOT NULL,
	longitude   REAL NOT NULL,
	color       TEXT NOT NULL DEFAULT '#FF0000',
	created_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS collections (
	id      TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id),
	name    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS marker_collections (
	marker_id     TEXT NOT NULL REFERENCES markers(id),
	collection_id TEXT NOT NULL REFERENCES collections(id),
	PRIMARY KEY (marker_id, collection_id)
);
`

// table describes a data table exposed through the generic operations.
type table struct {
	columns []string
	owner   string // Column holding the owning user's id, if any.
	hasID   bool   // Generate a uuid id when the row carries none.
	stamp   string // Column set to the insert time when empty.
}

var tables = map[string]table{
	backend.TableProfiles:          {columns: []string{"id", "username"}, owner: "id"},
	backend.TableMarkers:           {columns: []string{"id", "user_id", "name", "description", "latitude", "longitude", "color", "created_at"}, owner: "user_id", hasID: true, stamp: "created_at"},
	backend.TableCollections:       {columns: []string{"id", "user_id", "name"}, owner: "user_id", hasID: true},
	backend.TableMarkerCollections: {columns: []string{"marker_id", "collection_id"}},
}

func (t table) hasColumn(name string) bool {
	for _, c := range t.columns {
		if c == name {
			return true
		}
	}
	return false
}

type Client struct {
	backend.Dispatcher

	db *sql.DB

	mu      sync.Mutex
	session *backend.Session
}

var _ backend.Client = (*Client)(nil)

// Open opens (creating if needed) the database at path. Use ":memory:" for
// a throwaway database.
func Open(path string) (*Client, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to create schema: %w", err)
	}
	c := &Client{db: db}
	if err := c.restoreSession(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) Close() error { return c.db.Close() }

// userID returns the id of the signed in user.
func (c *Client) userID() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return "", &backend.Error{Status: 401, Message: "JWT required", Err: backend.ErrNotAuthenticated}
	}
	return c.session.User.ID, nil
}

// mapError translates SQLite constraint failures into the backend's error
// codes.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"), strings.Contains(msg, "PRIMARY KEY constraint failed"):
		return &backend.Error{Status: 409, Code: "23505", Message: msg, Err: backend.ErrConflict}
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return &backend.Error{Status: 409, Code: "23503", Message: msg, Err: backend.ErrConflict}
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return &backend.Error{Status: 400, Code: "23502", Message: msg}
	}
	return err
}

func lookupTable(name string) (table, error) {
	t, ok := tables[name]
	if !ok {
		return table{}, &backend.Error{Status: 404, Code: "42P01", Message: fmt.Sprintf("relation %q does not exist", name)}
	}
	return t, nil
}

func unknownColumn(table, column string) error {
	return &backend.Error{Status: 400, Code: "42703", Message: fmt.Sprintf("column %s.%s does not exist", table, column)}
}

func (c *Client) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	debug.Printf("local: %s %v", query, args)
	res, err := c.db.ExecContext(ctx, query, args...)
	return res, mapError(err)
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
