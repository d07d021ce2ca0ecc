// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/la5nta/memorymap/api/types"
	"github.com/la5nta/memorymap/app"
	"github.com/la5nta/memorymap/backend"
	"github.com/la5nta/memorymap/cfg"
	"github.com/la5nta/memorymap/dialog"
	"github.com/la5nta/memorymap/internal/buildinfo"
	"github.com/la5nta/memorymap/internal/debug"
	"github.com/la5nta/memorymap/internal/releases"
)

// The web/ go:embed directive must be in package main because we can't
// reference ../ here. main assigns this variable on init.
var EmbeddedFS embed.FS

func devServerAddr() string { return strings.TrimSuffix(os.Getenv("MEMMAP_WEB_DEV_ADDR"), "/") }

func ListenAndServe(ctx context.Context, a *app.App, addr string) error {
	log.Printf("Starting HTTP service (http://%s)...", addr)

	staticContent, err := fs.Sub(EmbeddedFS, "web")
	if err != nil {
		return err
	}

	handler := NewHandler(a, staticContent)
	go handler.wsHub.WatchConfig(ctx, a.Options().ConfigPath)
	if err := a.EnableWebSocket(ctx, handler.wsHub); err != nil {
		return err
	}

	srv := http.Server{
		Addr:    addr,
		Handler: handler,
	}
	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutting down HTTP server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		return nil
	case err := <-errs:
		return err
	}
}

type Handler struct {
	*app.App
	wsHub *WSHub
	r     *mux.Router
}

func NewHandler(app *app.App, staticContent fs.FS) *Handler {
	r := mux.NewRouter()
	h := &Handler{app, NewWSHub(app), r}

	r.HandleFunc("/api/status", h.statusHandler).Methods("GET")
	r.HandleFunc("/api/session", h.sessionHandler).Methods("GET")
	r.HandleFunc("/api/auth/signin", h.signInHandler).Methods("POST")
	r.HandleFunc("/api/auth/signup", h.signUpHandler).Methods("POST")
	r.HandleFunc("/api/auth/signout", h.signOutHandler).Methods("POST")
	r.HandleFunc("/api/collections", h.collectionsHandler).Methods("GET")
	r.HandleFunc("/api/collections", h.createCollectionHandler).Methods("POST")
	r.HandleFunc("/api/collections/{id}", h.viewCollectionHandler).Methods("GET")
	r.HandleFunc("/api/collections/{id}", h.renameCollectionHandler).Methods("PUT")
	r.HandleFunc("/api/collections/{id}", h.deleteCollectionHandler).Methods("DELETE")
	r.HandleFunc("/api/collections/{id}/select", h.selectCollectionHandler).Methods("POST")
	r.HandleFunc("/api/markers", h.markersHandler).Methods("GET")
	r.HandleFunc("/api/markers/{id}", h.viewMarkerHandler).Methods("GET")
	r.HandleFunc("/api/markers/{id}", h.editMarkerHandler).Methods("PUT")
	r.HandleFunc("/api/markers/{id}", h.deleteMarkerHandler).Methods("DELETE")
	r.HandleFunc("/api/map/click", h.mapClickHandler).Methods("POST")
	r.HandleFunc("/api/map/location", h.userLocationHandler).Methods("PUT")
	r.HandleFunc("/api/dialog", h.dialogHandler).Methods("GET")
	r.HandleFunc("/api/dialog/{id}", h.dialogResponseHandler).Methods("POST")
	r.HandleFunc("/api/config", h.configHandler).Methods("GET", "PUT")
	r.HandleFunc("/api/new-release-check", h.newReleaseCheckHandler).Methods("GET")

	r.PathPrefix("/dist/").Handler(h.distHandler(staticContent))
	r.HandleFunc("/ws", h.wsHandler)
	r.HandleFunc("/ui", h.uiHandler(staticContent, "dist/index.html")).Methods("GET")
	r.HandleFunc("/", h.rootHandler).Methods("GET")

	return h
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) { h.r.ServeHTTP(w, r) }

// WSHub returns the websocket hub serving this handler's clients.
func (h Handler) WSHub() *WSHub { return h.wsHub }

func (h Handler) distHandler(staticContent fs.FS) http.Handler {
	switch target := devServerAddr(); {
	case target != "":
		targetURL, err := url.Parse(target)
		if err != nil {
			log.Fatalf("invalid proxy target URL: %v", err)
		}
		return httputil.NewSingleHostReverseProxy(targetURL)
	default:
		return http.FileServer(http.FS(staticContent))
	}
}

func (h Handler) rootHandler(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/ui", http.StatusFound)
}

func (h Handler) wsHandler(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	h.wsHub.Handle(conn)
}

func (h Handler) uiHandler(staticContent fs.FS, templatePath string) http.HandlerFunc {
	templateFunc := func() ([]byte, error) { return fs.ReadFile(staticContent, templatePath) }
	if target := devServerAddr(); target != "" {
		templateFunc = func() ([]byte, error) {
			resp, err := http.Get(target + "/" + templatePath)
			if err != nil {
				return nil, fmt.Errorf("dev server not reachable: %w", err)
			}
			defer resp.Body.Close()
			return io.ReadAll(resp.Body)
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		data, err := templateFunc()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		t, err := template.New("index.html").Parse(string(data))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		conf := h.Config()
		tmplData := struct {
			AppName, Version string
			Map              cfg.MapConfig
		}{buildinfo.AppName, buildinfo.VersionString(), conf.Map}
		if err := t.Execute(w, tmplData); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

// writeError responds with the status code matching err.
//
// A cancelled dialog is a normal outcome and yields 204 No Content.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *app.ValidationError
		remoteErr     *app.RemoteError
		code          int
	)
	switch {
	case app.IsCancelled(err):
		w.WriteHeader(http.StatusNoContent)
		return
	case errors.As(err, &validationErr):
		code = http.StatusBadRequest
	case errors.Is(err, app.ErrNotLoggedIn),
		errors.Is(err, backend.ErrNotAuthenticated),
		errors.Is(err, backend.ErrInvalidCredentials):
		code = http.StatusUnauthorized
	case errors.Is(err, backend.ErrNoRows):
		code = http.StatusNotFound
	case errors.Is(err, backend.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, app.ErrTimeout):
		code = http.StatusGatewayTimeout
	case errors.Is(err, dialog.ErrClosed):
		code = http.StatusServiceUnavailable
	case errors.As(err, &remoteErr):
		code = http.StatusBadGateway
	default:
		code = http.StatusInternalServerError
	}
	debug.Printf("%s %s: %v (%d)", r.Method, r.URL.Path, err, code)
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, v interface{}) { writeJSONStatus(w, http.StatusOK, v) }

func writeJSONStatus(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		log.Printf("%s %s: %s", r.Method, r.URL.Path, err)
		return false
	}
	return true
}

func (h Handler) statusHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.GetStatus())
}

func (h Handler) sessionHandler(w http.ResponseWriter, r *http.Request) {
	session, err := h.Session(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := struct {
		LoggedIn bool          `json:"logged_in"`
		User     *backend.User `json:"user,omitempty"`
		Username string        `json:"username,omitempty"`
	}{}
	if session != nil {
		resp.LoggedIn = true
		resp.User = &session.User
		resp.Username = h.State().Username()
	}
	writeJSON(w, resp)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username,omitempty"`
}

func (h Handler) signInHandler(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if !decodeBody(w, r, &c) {
		return
	}
	if err := h.SignIn(r.Context(), c.Email, c.Password); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, "OK")
}

func (h Handler) signUpHandler(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if !decodeBody(w, r, &c) {
		return
	}
	if err := h.SignUp(r.Context(), c.Email, c.Password, c.Username); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, "OK")
}

func (h Handler) signOutHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.SignOut(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, "OK")
}

type jsonCollection struct {
	types.Collection
	Selected bool `json:"selected"`
}

func (h Handler) collectionsHandler(w http.ResponseWriter, r *http.Request) {
	if h.State().User() == nil {
		writeError(w, r, app.ErrNotLoggedIn)
		return
	}
	selected := h.State().SelectedCollection()
	cols := h.State().Collections()
	resp := make([]jsonCollection, len(cols))
	for i, c := range cols {
		resp[i] = jsonCollection{c, c.ID == selected}
	}
	writeJSON(w, resp)
}

func (h Handler) createCollectionHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	col, err := h.CreateCollection(r.Context(), body.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, col)
}

func (h Handler) viewCollectionHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.ViewCollection(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, "OK")
}

func (h Handler) renameCollectionHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.RenameCollection(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, "OK")
}

func (h Handler) deleteCollectionHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.DeleteCollection(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, "OK")
}

func (h Handler) selectCollectionHandler(w http.ResponseWriter, r *http.Request) {
	selected, err := h.SelectCollection(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, struct {
		Selected bool `json:"selected"`
	}{selected})
}

func (h Handler) markersHandler(w http.ResponseWriter, r *http.Request) {
	if h.State().User() == nil {
		writeError(w, r, app.ErrNotLoggedIn)
		return
	}
	markers := h.State().Markers()
	resp := make([]types.Marker, len(markers))
	for i, m := range markers {
		resp[i] = m
	}
	writeJSON(w, resp)
}

func (h Handler) viewMarkerHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.ViewMarker(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	m, _ := h.State().Marker(id)
	writeJSON(w, m.Marker)
}

func (h Handler) editMarkerHandler(w http.ResponseWriter, r *http.Request) {
	m, err := h.EditMarker(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, m)
}

func (h Handler) deleteMarkerHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.DeleteMarker(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, "OK")
}

// mapClickHandler runs the new marker workflow for a click at the given
// position. It blocks until the marker dialog is answered.
func (h Handler) mapClickHandler(w http.ResponseWriter, r *http.Request) {
	var click types.MapClick
	if !decodeBody(w, r, &click) {
		return
	}
	if click.Lat < -90 || click.Lat > 90 || click.Lng < -180 || click.Lng > 180 {
		http.Error(w, "position out of range", http.StatusBadRequest)
		return
	}
	m, err := h.HandleMapClick(r.Context(), click.Lat, click.Lng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, m)
}

func (h Handler) userLocationHandler(w http.ResponseWriter, r *http.Request) {
	var loc types.UserLocation
	if !decodeBody(w, r, &loc) {
		return
	}
	if err := h.Map().SetUserLocation(loc.Lat, loc.Lng, loc.Accuracy); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Handler) dialogHandler(w http.ResponseWriter, _ *http.Request) {
	req, ok := h.Dialogs().Active()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, req)
}

func (h Handler) dialogResponseHandler(w http.ResponseWriter, r *http.Request) {
	var resp types.DialogResponse
	if !decodeBody(w, r, &resp) {
		return
	}
	resp.ID = mux.Vars(r)["id"]
	if err := h.Dialogs().Respond(resp); err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, dialog.ErrNotActive) {
			code = http.StatusConflict
		}
		http.Error(w, err.Error(), code)
		return
	}
	writeJSON(w, "OK")
}

func (h Handler) newReleaseCheckHandler(w http.ResponseWriter, r *http.Request) {
	if h.Config().ReleaseCheckDisabled {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	release, err := releases.NewerThan(ctx, releases.URL(), buildinfo.Version)
	if err != nil {
		http.Error(w, "Error getting latest version: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if release == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, release)
}

func (h Handler) configHandler(w http.ResponseWriter, r *http.Request) {
	const RedactedKey = "[REDACTED]"

	currentConfig, err := app.LoadConfig(h.Options().ConfigPath, cfg.DefaultConfig)
	if err != nil {
		log.Println(err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if r.Method == "GET" {
		if currentConfig.Backend.AnonKey != "" {
			// Redact key before sending over unsafe channel.
			currentConfig.Backend.AnonKey = RedactedKey
		}
		writeJSON(w, currentConfig)
		return
	}

	var newConfig cfg.Config
	if !decodeBody(w, r, &newConfig) {
		return
	}

	// Reset redacted key if it was unmodified (to retain old value)
	if newConfig.Backend.AnonKey == RedactedKey {
		newConfig.Backend.AnonKey = currentConfig.Backend.AnonKey
	}

	if err := app.WriteConfig(newConfig, h.Options().ConfigPath); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, "OK")
}
