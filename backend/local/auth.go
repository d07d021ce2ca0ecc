package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/la5nta/memorymap/backend"
)

const minPasswordLength = 6

func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]string) (backend.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	switch {
	case !strings.Contains(email, "@"):
		return backend.User{}, &backend.Error{Status: 400, Code: "validation_failed", Message: "Unable to validate email address: invalid format"}
	case len(password) < minPasswordLength:
		return backend.User{}, &backend.Error{Status: 422, Code: "weak_password", Message: "Password should be at least 6 characters."}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return backend.User{}, err
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return backend.User{}, err
	}
	user := backend.User{ID: uuid.NewString(), Email: email, Metadata: metadata}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return backend.User{}, err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `INSERT INTO users (id, email, password_hash, metadata) VALUES (?, ?, ?, ?)`, user.ID, email, string(hash), string(meta))
	if err := mapError(err); err != nil {
		if e, ok := err.(*backend.Error); ok && e.Code == "23505" {
			e.Status, e.Code, e.Message = 422, "user_already_exists", "User already registered"
		}
		return backend.User{}, err
	}
	// Stands in for the hosted backend's profile trigger.
	username := metadata["username"]
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO profiles (id, username) VALUES (?, ?)`, user.ID, username); err != nil {
		return backend.User{}, mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return backend.User{}, err
	}

	// No email confirmation step; the new user is signed in right away.
	if _, err := c.startSession(ctx, user); err != nil {
		return backend.User{}, err
	}
	return user, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (backend.Session, error) {
	var (
		user       backend.User
		hash, meta string
	)
	row := c.db.QueryRowContext(ctx, `SELECT id, email, password_hash, metadata FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
	err := row.Scan(&user.ID, &user.Email, &hash, &meta)
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	}
	switch {
	case isNoRows(err), err == bcrypt.ErrMismatchedHashAndPassword:
		return backend.Session{}, &backend.Error{Status: 400, Code: "invalid_credentials", Message: "Invalid login credentials", Err: backend.ErrInvalidCredentials}
	case err != nil:
		return backend.Session{}, err
	}
	json.Unmarshal([]byte(meta), &user.Metadata)
	return c.startSession(ctx, user)
}

func (c *Client) startSession(ctx context.Context, user backend.User) (backend.Session, error) {
	s := backend.Session{AccessToken: uuid.NewString(), User: user}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return backend.Session{}, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET current = 0`); err != nil {
		return backend.Session{}, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO sessions (access_token, user_id, current) VALUES (?, ?, 1)`, s.AccessToken, user.ID); err != nil {
		return backend.Session{}, mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return backend.Session{}, err
	}

	c.mu.Lock()
	c.session = s.Clone()
	c.mu.Unlock()
	c.Emit(backend.EventSignedIn, &s)
	return s, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	_, err := c.exec(ctx, `DELETE FROM sessions WHERE access_token = ?`, s.AccessToken)
	c.Emit(backend.EventSignedOut, nil)
	return err
}

func (c *Client) GetSession(ctx context.Context) (*backend.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone(), nil
}

// restoreSession picks up the session left current by a previous process.
func (c *Client) restoreSession() error {
	var (
		s    backend.Session
		meta string
	)
	err := c.db.QueryRow(`
		SELECT s.access_token, u.id, u.email, u.metadata
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.current = 1`).Scan(&s.AccessToken, &s.User.ID, &s.User.Email, &meta)
	switch {
	case err == sql.ErrNoRows:
		return nil
	case err != nil:
		return err
	}
	json.Unmarshal([]byte(meta), &s.User.Metadata)
	c.session = &s
	return nil
}
