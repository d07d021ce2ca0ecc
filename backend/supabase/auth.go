package supabase

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/la5nta/memorymap/backend"
)

// tokenResponse is GoTrue's session payload.
//
// Signup returns a bare user object when email confirmation is required,
// so the user fields are mirrored at the top level.
type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	User         *backend.User `json:"user"`

	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"user_metadata"`
}

func (t tokenResponse) session() *backend.Session {
	if t.AccessToken == "" || t.User == nil {
		return nil
	}
	s := &backend.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		User:         *t.User,
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0)
	case t.ExpiresIn > 0:
		s.ExpiresAt = now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return s
}

func (t tokenResponse) user() backend.User {
	if t.User != nil {
		return *t.User
	}
	return backend.User{ID: t.ID, Email: t.Email, Metadata: t.Metadata}
}

// SignUp registers a new user. If the project has email confirmation
// disabled, the returned session is activated and SIGNED_IN is emitted.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]string) (backend.User, error) {
	body := struct {
		Email    string            `json:"email"`
		Password string            `json:"password"`
		Data     map[string]string `json:"data,omitempty"`
	}{email, password, metadata}

	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/signup", nil, body)
	if err != nil {
		return backend.User{}, err
	}
	var resp tokenResponse
	if err := c.do(req, &resp); err != nil {
		return backend.User{}, err
	}
	if s := resp.session(); s != nil {
		c.setSession(s)
		c.Emit(backend.EventSignedIn, s)
	}
	return resp.user(), nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (backend.Session, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{email, password}
	return c.token(ctx, "password", body, backend.EventSignedIn)
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (backend.Session, error) {
	body := struct {
		RefreshToken string `json:"refresh_token"`
	}{refreshToken}
	return c.token(ctx, "refresh_token", body, backend.EventTokenRefreshed)
}

func (c *Client) token(ctx context.Context, grantType string, body interface{}, event backend.Event) (backend.Session, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {grantType}}, body)
	if err != nil {
		return backend.Session{}, err
	}
	var resp tokenResponse
	if err := c.do(req, &resp); err != nil {
		return backend.Session{}, err
	}
	s := resp.session()
	if s == nil {
		return backend.Session{}, &backend.Error{Message: "token response without session"}
	}
	c.setSession(s)
	c.Emit(event, s)
	return *s, nil
}

// SignOut revokes the current session. The local session is cleared (and
// SIGNED_OUT emitted) even if the revocation request fails.
func (c *Client) SignOut(ctx context.Context) error {
	if c.currentSession() == nil {
		return nil
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/logout", nil, nil)
	if err == nil {
		err = c.do(req, nil)
	}
	c.setSession(nil)
	c.Emit(backend.EventSignedOut, nil)
	if err != nil && !isStatus(err, http.StatusUnauthorized) {
		return err
	}
	return nil
}

// GetSession returns the current session, refreshing it if expired. A nil
// session means the user is logged out.
func (c *Client) GetSession(ctx context.Context) (*backend.Session, error) {
	s := c.currentSession()
	if s == nil || !s.Expired(now()) {
		return s, nil
	}
	if s.RefreshToken == "" {
		c.setSession(nil)
		return nil, nil
	}
	refreshed, err := c.refresh(ctx, s.RefreshToken)
	if err != nil {
		if isStatus(err, http.StatusBadRequest) || isStatus(err, http.StatusUnauthorized) {
			c.setSession(nil)
			c.Emit(backend.EventSignedOut, nil)
			return nil, nil
		}
		return nil, err
	}
	return &refreshed, nil
}

func isStatus(err error, status int) bool {
	e, ok := err.(*backend.Error)
	return ok && e.Status == status
}
