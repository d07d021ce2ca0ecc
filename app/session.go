package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/la5nta/memorymap/api/types"
	"github.com/la5nta/memorymap/backend"
	"github.com/la5nta/memorymap/internal/debug"
)

// counter tracks outstanding work. Unlike sync.WaitGroup it may be
// incremented from zero while another goroutine is blocked in Wait.
type counter struct {
	mu sync.Mutex
	c  *sync.Cond
	n  int
}

func (c *counter) cond() *sync.Cond {
	if c.c == nil {
		c.c = sync.NewCond(&c.mu)
	}
	return c.c
}

func (c *counter) Add(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n += delta
	switch {
	case c.n < 0:
		panic("app: negative counter")
	case c.n == 0:
		c.cond().Broadcast()
	}
}

func (c *counter) Done() { c.Add(-1) }

// Wait blocks until the counter is zero.
func (c *counter) Wait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.n > 0 {
		c.cond().Wait()
	}
}

type sessionEvent struct {
	event   backend.Event
	session *backend.Session
}

func (a *App) enqueueSessionEvent(event backend.Event, session *backend.Session) {
	a.pending.Add(1)
	select {
	case a.events <- sessionEvent{event, session}:
	case <-a.ctx.Done():
		a.pending.Done()
	}
}

// sessionLoop handles session transitions one at a time, in the order they
// occurred.
func (a *App) sessionLoop(ctx context.Context) {
	defer debug.Printf("Session loop stopped")
	for {
		select {
		case ev := <-a.events:
			a.handleSessionEvent(ctx, ev)
			a.pending.Done()
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) handleSessionEvent(ctx context.Context, ev sessionEvent) {
	debug.Printf("Session event: %s (session: %t)", ev.event, ev.session != nil)

	if ev.session == nil || !ev.event.LoggedIn() {
		a.handleLoggedOut(ev.event)
		return
	}

	// Token refreshes and metadata updates keep the loaded data.
	switch ev.event {
	case backend.EventTokenRefreshed, backend.EventUserUpdated:
		if u := a.state.User(); u != nil && u.ID == ev.session.User.ID {
			a.state.Update(a.state.Generation(), func(s *State) {
				user := ev.session.User
				s.user = &user
			})
			return
		}
	}

	user := ev.session.User
	gen := a.state.begin(&user)
	a.state.Update(gen, func(s *State) { s.statusText = "Loading profile..." })
	a.ClearNotifications(types.TargetAuth)
	a.hub().UpdateStatus()

	a.pending.Add(1)
	go func() {
		defer a.pending.Done()
		a.loadSession(ctx, gen, ev.event, user)
	}()
}

func (a *App) handleLoggedOut(event backend.Event) {
	a.state.begin(nil)
	a.mapView.Clear()
	a.dialogs.ForceClose()

	if event == backend.EventUserDeleted {
		a.ClearNotifications(types.TargetApp)
	}
	// An explicit sign out has its own message.
	if event != backend.EventSignedOut {
		a.Notify(types.TargetAuth, types.NotificationWarning, "You are currently a guest.")
	}
	a.hub().UpdateStatus()
}

// loadSession resolves the profile and loads the user's data for generation
// gen. Results arriving after the session has moved on are discarded.
func (a *App) loadSession(ctx context.Context, gen uint64, event backend.Event, user backend.User) {
	name, created, err := a.resolveProfile(ctx, user)
	if err != nil {
		log.Printf("Unable to fetch profile: %v", err)
		name = user.Email
		if name == "" {
			name = "User"
		}
	}
	applied := a.state.Update(gen, func(s *State) {
		s.username = name
		s.statusText = name
	})
	if !applied {
		debug.Printf("Discarding stale profile for %s", user.ID)
		return
	}

	switch {
	case err != nil:
		a.Notify(types.TargetApp, types.NotificationError, "Error fetching your profile: "+userMessage(err))
	case created:
		a.Notify(types.TargetApp, types.NotificationSuccess, fmt.Sprintf("Profile created. Welcome, %s!", name))
	case event == backend.EventSignedIn, event == backend.EventInitialSession:
		a.Notify(types.TargetApp, types.NotificationSuccess, fmt.Sprintf("Welcome back, %s!", name))
	}
	a.hub().UpdateStatus()

	if err := a.loadData(ctx, gen); err != nil {
		log.Printf("Unable to load markers and collections: %v", err)
		if a.state.Generation() == gen {
			a.Notify(types.TargetApp, types.NotificationError, userMessage(err))
		}
	}
}

// loadData concurrently loads collections and markers for generation gen.
func (a *App) loadData(ctx context.Context, gen uint64) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.loadCollections(ctx, gen) })
	g.Go(func() error { return a.loadMarkers(ctx, gen) })
	return g.Wait()
}

// Refresh reloads markers and collections of the current session.
func (a *App) Refresh(ctx context.Context) error {
	if a.state.User() == nil {
		return ErrNotLoggedIn
	}
	return a.loadData(ctx, a.state.Generation())
}

// resolveProfile returns the user's display name, creating the profile if
// it is missing and auto creation is enabled.
func (a *App) resolveProfile(ctx context.Context, user backend.User) (name string, created bool, err error) {
	p, err := remote(ctx, a.remoteTimeout(), "fetch profile", func(ctx context.Context) (types.Profile, error) {
		return backend.FetchProfile(ctx, a.backend, user.ID)
	})
	switch {
	case err == nil:
		return p.Username, false, nil
	case !errors.Is(err, backend.ErrNoRows):
		return "", false, err
	case !a.config.ProfileAutoCreate:
		debug.Printf("No profile for %s", user.ID)
		return fallbackUsername(user), false, nil
	}

	name = fallbackUsername(user)
	err = exec(ctx, a.remoteTimeout(), "create profile", func(ctx context.Context) error {
		return backend.EnsureProfile(ctx, a.backend, types.Profile{ID: user.ID, Username: name})
	})
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

// fallbackUsername derives a username from the sign up metadata or the
// email address.
func fallbackUsername(user backend.User) string {
	if name := strings.TrimSpace(user.Metadata["username"]); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(user.Email, "@"); ok && local != "" {
		return local
	}
	return "UnknownUser"
}
