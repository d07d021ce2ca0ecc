// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

// Package app implements the core functionality shared by cli and api.
package app

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/la5nta/memorymap/api/types"
	"github.com/la5nta/memorymap/backend"
	"github.com/la5nta/memorymap/backend/local"
	"github.com/la5nta/memorymap/backend/supabase"
	"github.com/la5nta/memorymap/cfg"
	"github.com/la5nta/memorymap/dialog"
	"github.com/la5nta/memorymap/internal/buildinfo"
	"github.com/la5nta/memorymap/internal/debug"
	"github.com/la5nta/memorymap/internal/directories"
	"github.com/la5nta/memorymap/mapview"
)

type Options struct {
	ConfigPath   string
	LogPath      string
	SessionPath  string // Persisted session of the hosted backend
	DatabasePath string // Local backend database, overrides the config value
}

type App struct {
	options  Options
	config   cfg.Config
	OnReload func()

	ctx          context.Context
	backend      backend.Client
	dialogs      *dialog.Controller
	mapView      *mapview.Remote
	state        *State

	hubMu        sync.RWMutex
	websocketHub WSHub
	noticesMu    sync.Mutex
	notices      []types.Notification // Persistent notifications not yet cleared

	events      chan sessionEvent
	pending     counter // Queued session events and in-flight session loads
	unsubscribe func()

	logWriter io.WriteCloser
}

func New(opts Options) *App {
	opts.ConfigPath = filepath.Clean(opts.ConfigPath)
	opts.LogPath = filepath.Clean(opts.LogPath)
	opts.SessionPath = filepath.Clean(opts.SessionPath)
	if opts.DatabasePath != "" {
		opts.DatabasePath = filepath.Clean(opts.DatabasePath)
	}

	return &App{
		options:      opts,
		config:       cfg.DefaultConfig,
		ctx:          context.Background(),
		dialogs:      dialog.NewController(),
		mapView:      mapview.NewRemote(nil),
		state:        NewState(),
		websocketHub: noopWSSocket{},
		events:       make(chan sessionEvent, 64),
	}
}

func (a *App) Config() cfg.Config { return a.config }

func (a *App) Options() Options { return a.options }

func (a *App) Backend() backend.Client { return a.backend }

func (a *App) Dialogs() *dialog.Controller { return a.dialogs }

func (a *App) Map() *mapview.Remote { return a.mapView }

func (a *App) State() *State { return a.state }

func (a *App) Reload() error {
	if a.OnReload == nil {
		return fmt.Errorf("reload not supported")
	}
	a.OnReload()
	return nil
}

// EnableWebSocket makes wsHub a dialog surface and the map renderer.
//
// It may be called before or after Start.
func (a *App) EnableWebSocket(ctx context.Context, wsHub WSHub) error {
	a.hubMu.Lock()
	a.websocketHub = wsHub
	a.hubMu.Unlock()
	a.dialogs.AddPresenter(wsHub)
	a.mapView.SetSink(wsHub)
	return nil
}

func (a *App) hub() WSHub {
	a.hubMu.RLock()
	defer a.hubMu.RUnlock()
	return a.websocketHub
}

func (a *App) Run(ctx context.Context, cmd Command, args []string) {
	debug.Printf("Version: %s", buildinfo.VersionString())
	debug.Printf("Command: %s %v", cmd.Str, args)
	debug.Printf("Config file is\t'%s'", a.options.ConfigPath)
	debug.Printf("Log file is \t'%s'", a.options.LogPath)
	debug.Printf("Session file is\t'%s'", a.options.SessionPath)

	// Skip initialization for some commands
	switch cmd.Str {
	case "configure", "version":
		cmd.HandleFunc(ctx, a, args)
		return
	}

	// Parse configuration file
	var err error
	a.config, err = LoadConfig(a.options.ConfigPath, cfg.DefaultConfig)
	if err != nil {
		log.Fatalf("Unable to load/write config: %s", err)
	}

	// Initialize logger
	f, err := os.Create(a.options.LogPath)
	if err != nil {
		log.Fatalf("Unable to create log file at %s: %v", a.options.LogPath, err)
	}
	a.logWriter = struct {
		io.Writer
		io.Closer
	}{io.MultiWriter(f, os.Stdout), f}
	log.SetOutput(a.logWriter)

	client, err := a.openBackend()
	if err != nil {
		log.Fatalf("Unable to open %s backend: %v", a.config.Backend.Kind, err)
	}
	a.Start(ctx, client)

	if cmd.RequiresLogin {
		a.WaitIdle()
		if a.state.User() == nil {
			fmt.Fprintln(os.Stderr, "Not logged in. Use the signin command first.")
			os.Exit(1)
		}
	}

	// Start command execution
	cmd.HandleFunc(ctx, a, args)
}

func (a *App) openBackend() (backend.Client, error) {
	conf := a.config.Backend
	switch conf.Kind {
	case cfg.BackendSupabase:
		if conf.URL == "" || conf.AnonKey == "" {
			return nil, fmt.Errorf("missing url and/or anon_key in backend config")
		}
		return supabase.New(conf.URL, conf.AnonKey, supabase.WithSessionFile(a.options.SessionPath)), nil
	case cfg.BackendLocal:
		path := a.options.DatabasePath
		if path == "" {
			path = conf.DatabasePath
		}
		if path == "" {
			path = filepath.Join(directories.DataDir(), "memorymap.db")
		}
		debug.Printf("Database file is\t'%s'", path)
		return local.Open(path)
	default:
		return nil, fmt.Errorf("unknown backend kind %q", conf.Kind)
	}
}

// Start attaches client and begins processing session transitions.
func (a *App) Start(ctx context.Context, client backend.Client) {
	a.ctx = ctx
	a.backend = client

	a.mapView.SetView(a.config.Map.Latitude, a.config.Map.Longitude, a.config.Map.Zoom)
	a.mapView.OnClick(func(lat, lng float64) {
		go func() {
			if _, err := a.HandleMapClick(a.ctx, lat, lng); err != nil && !IsCancelled(err) {
				debug.Printf("Map click at %f,%f: %v", lat, lng, err)
			}
		}()
	})

	go a.sessionLoop(ctx)
	a.unsubscribe = client.OnSessionChange(a.enqueueSessionEvent)

	session, err := remote(ctx, a.remoteTimeout(), "get session", client.GetSession)
	if err != nil {
		log.Printf("Unable to restore session: %v", err)
		session = nil
	}
	a.enqueueSessionEvent(backend.EventInitialSession, session)
}

// WaitIdle blocks until all session transitions emitted by the backend so
// far have been handled and their data loaded.
func (a *App) WaitIdle() {
	if d, ok := a.backend.(interface{ Wait() }); ok {
		d.Wait()
	}
	a.pending.Wait()
}

func (a *App) GetStatus() types.Status {
	configHash := func(c cfg.Config) string {
		h := sha1.New()
		if err := json.NewEncoder(h).Encode(c); err != nil {
			panic(err)
		}
		return fmt.Sprintf("%x", h.Sum(nil))
	}

	_, dialogActive := a.dialogs.Active()
	status := types.Status{
		Username:           a.state.Username(),
		StatusText:         a.state.StatusText(),
		SelectedCollection: a.state.SelectedCollection(),
		NumMarkers:         len(a.state.Markers()),
		NumCollections:     len(a.state.Collections()),
		DialogActive:       dialogActive,
		DialogsQueued:      a.dialogs.Pending(),
		HTTPClients:        a.hub().ClientAddrs(),
		ConfigHash:         configHash(a.config),
	}
	if u := a.state.User(); u != nil {
		status.LoggedIn = true
		status.Email = u.Email
	}
	return status
}

func (a *App) Close() {
	debug.Printf("Starting cleanup")
	defer func() {
		debug.Printf("Cleanup done")
		if a.logWriter != nil {
			a.logWriter.Close()
		}
	}()

	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.dialogs.Close()
	a.hub().Close()
	if c, ok := a.backend.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Printf("Failure to close backend: %s", err)
		}
	}
}

func (a *App) remoteTimeout() time.Duration { return a.config.RemoteTimeout.Std() }
