// Copyright 2025 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

// Package backend defines the hosted auth + data API consumed by the app.
//
// Implementations live in the sub packages supabase (REST, the production
// backend) and local (embedded SQLite for offline use and tests).
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNoRows             = errors.New("no rows returned")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrConflict           = errors.New("conflict")
)

// Event is a session state transition.
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
	EventUserDeleted    Event = "USER_DELETED"
)

// LoggedIn reports whether the event leaves the client with a session.
func (e Event) LoggedIn() bool {
	switch e {
	case EventSignedOut, EventUserDeleted:
		return false
	default:
		return true
	}
}

type User struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"user_metadata,omitempty"`
}

type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.User.Metadata != nil {
		c.User.Metadata = make(map[string]string, len(s.User.Metadata))
		for k, v := range s.User.Metadata {
			c.User.Metadata[k] = v
		}
	}
	return &c
}

// Filter restricts a table operation to rows where Column equals Value.
type Filter struct {
	Column string
	Value  string
}

func Eq(column, value string) Filter { return Filter{Column: column, Value: value} }

// Client is the auth + table API.
//
// Select and Insert decode rows into dst, which must be a pointer to a slice
// (or nil for Insert when the representation is not needed).
type Client interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (User, error)
	SignInWithPassword(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context) error
	GetSession(ctx context.Context) (*Session, error)

	// OnSessionChange registers fn for session transitions. Transitions are
	// delivered in the order they occurred, one at a time.
	OnSessionChange(fn func(Event, *Session)) (unsubscribe func())

	Select(ctx context.Context, table string, columns []string, filters []Filter, dst interface{}) error
	Insert(ctx context.Context, table string, row interface{}, dst interface{}) error
	Update(ctx context.Context, table string, patch interface{}, filters []Filter) error
	Delete(ctx context.Context, table string, filters []Filter) error
}

// Error is a failure reported by the backend service.
type Error struct {
	Status  int    // HTTP status, if any
	Code    string // Service error code (e.g. PGRST116, 23505)
	Message string
	Err     error // Matching sentinel, if any
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Message == "" && e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }
