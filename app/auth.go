package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/la5nta/memorymap/api/types"
	"github.com/la5nta/memorymap/backend"
)

func (a *App) SignIn(ctx context.Context, email, password string) error {
	a.ClearNotifications(types.TargetAuth)
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		err := invalid("email", "Please provide both email and password.")
		a.Notify(types.TargetAuth, types.NotificationWarning, userMessage(err))
		return err
	}
	err := exec(ctx, a.remoteTimeout(), "sign in", func(ctx context.Context) error {
		_, err := a.backend.SignInWithPassword(ctx, email, password)
		return err
	})
	if err != nil {
		a.Notify(types.TargetAuth, types.NotificationError, userMessage(err))
		return err
	}
	a.notify(types.TargetAuth, types.NotificationSuccess, "Logging in...", time.Second)
	return nil
}

func (a *App) SignUp(ctx context.Context, email, password, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		err := invalid("username", "Please provide a username.")
		a.Notify(types.TargetAuth, types.NotificationWarning, userMessage(err))
		return err
	}
	a.ClearNotifications(types.TargetAuth)

	err := exec(ctx, a.remoteTimeout(), "sign up", func(ctx context.Context) error {
		_, err := a.backend.SignUp(ctx, strings.TrimSpace(email), password, map[string]string{"username": username})
		return err
	})
	if err != nil {
		a.Notify(types.TargetAuth, types.NotificationError, userMessage(err))
		return err
	}

	// Backends without email confirmation sign the new user in right away.
	session, _ := remote(ctx, a.remoteTimeout(), "get session", a.backend.GetSession)
	if session != nil {
		a.notify(types.TargetAuth, types.NotificationSuccess, fmt.Sprintf("Signed up and logged in successfully! Welcome, %s!", username), 5*time.Second)
		return nil
	}
	a.notify(types.TargetAuth, types.NotificationSuccess, "Sign up successful! Please check your email to confirm your account before logging in.", 5*time.Second)
	return nil
}

func (a *App) SignOut(ctx context.Context) error {
	err := exec(ctx, a.remoteTimeout(), "sign out", a.backend.SignOut)
	if err != nil {
		a.Notify(types.TargetApp, types.NotificationError, userMessage(err))
		return err
	}
	a.Notify(types.TargetApp, types.NotificationSuccess, "Logged out successfully!")
	return nil
}

// Session returns the current backend session, or nil if logged out.
func (a *App) Session(ctx context.Context) (*backend.Session, error) {
	return remote(ctx, a.remoteTimeout(), "get session", a.backend.GetSession)
}
