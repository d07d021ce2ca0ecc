package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"

	"github.com/la5nta/memorymap/api/types"
	"github.com/la5nta/memorymap/app"
	"github.com/la5nta/memorymap/backend"
	"github.com/la5nta/memorymap/backend/local"
	"github.com/la5nta/memorymap/cfg"
	"github.com/la5nta/memorymap/dialog"
	"github.com/la5nta/memorymap/mapview"
)

type testEnv struct {
	app    *app.App
	client *local.Client
	h      *Handler
	srv    *httptest.Server
	dir    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	c, err := local.Open(filepath.Join(dir, "memorymap.db"))
	if err != nil {
		t.Fatal(err)
	}
	a := app.New(app.Options{
		ConfigPath: filepath.Join(dir, "config.json"),
		LogPath:    filepath.Join(dir, "memorymap.log"),
	})
	static := fstest.MapFS{
		"dist/index.html": {Data: []byte(`<title>{{.AppName}}</title><body data-zoom="{{.Map.Zoom}}">`)},
		"dist/app.js":     {Data: []byte(`console.log("hi")`)},
	}
	h := NewHandler(a, static)

	ctx, cancel := context.WithCancel(context.Background())
	a.EnableWebSocket(ctx, h.WSHub())
	a.Start(ctx, c)
	a.WaitIdle()
	srv := httptest.NewServer(h)

	t.Cleanup(func() {
		srv.Close()
		h.WSHub().Close()
		c.Wait()
		a.WaitIdle()
		cancel()
		a.Dialogs().Close()
		c.Close()
	})
	return &testEnv{app: a, client: c, h: h, srv: srv, dir: dir}
}

// settle waits for session transitions to be handled.
func (e *testEnv) settle() {
	e.client.Wait()
	e.app.WaitIdle()
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, code int) {
	t.Helper()
	if resp.StatusCode != code {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected status %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, code, resp.StatusCode, body)
	}
}

// signUp registers (and thereby signs in) a user with one collection.
func (e *testEnv) signUp(t *testing.T) backend.User {
	t.Helper()
	ctx := context.Background()
	u, err := e.client.SignUp(ctx, "ola@example.com", "secret1", map[string]string{"username": "ola"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := backend.InsertCollection(ctx, e.client, u.ID, "Trips"); err != nil {
		t.Fatal(err)
	}
	e.settle()
	if err := e.app.LoadCollections(ctx); err != nil {
		t.Fatal(err)
	}
	return u
}

func TestStatusAndUI(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "GET", "/api/status", nil)
	expectStatus(t, resp, http.StatusOK)
	var status types.Status
	decode(t, resp, &status)
	if status.LoggedIn || status.StatusText != "Guest" {
		t.Fatalf("Unexpected status %#v", status)
	}

	resp = env.do(t, "GET", "/", nil)
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if got := string(body); !strings.Contains(got, "<title>MemoryMap</title>") || !strings.Contains(got, `data-zoom="11"`) {
		t.Fatalf("Unexpected UI page: %s", got)
	}

	resp = env.do(t, "GET", "/dist/app.js", nil)
	expectStatus(t, resp, http.StatusOK)
}

func TestAuthAndCollections(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "POST", "/api/auth/signup", credentials{Email: "ola@example.com", Password: "secret1"})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = env.do(t, "GET", "/api/collections", nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = env.do(t, "POST", "/api/auth/signup", credentials{Email: "ola@example.com", Password: "secret1", Username: "ola"})
	expectStatus(t, resp, http.StatusOK)
	env.settle()

	resp = env.do(t, "GET", "/api/session", nil)
	expectStatus(t, resp, http.StatusOK)
	var session struct {
		LoggedIn bool         `json:"logged_in"`
		User     backend.User `json:"user"`
		Username string       `json:"username"`
	}
	decode(t, resp, &session)
	if !session.LoggedIn || session.User.Email != "ola@example.com" || session.Username != "ola" {
		t.Fatalf("Unexpected session %#v", session)
	}

	resp = env.do(t, "POST", "/api/collections", map[string]string{"name": "Trips"})
	expectStatus(t, resp, http.StatusCreated)
	var col types.Collection
	decode(t, resp, &col)
	if col.Name != "Trips" || col.UserID != session.User.ID {
		t.Fatalf("Unexpected collection %#v", col)
	}

	resp = env.do(t, "GET", "/api/collections", nil)
	expectStatus(t, resp, http.StatusOK)
	var cols []jsonCollection
	decode(t, resp, &cols)
	if len(cols) != 1 || cols[0].ID != col.ID || !cols[0].Selected {
		t.Fatalf("Unexpected collections %#v", cols)
	}

	resp = env.do(t, "POST", "/api/collections/"+col.ID+"/select", nil)
	expectStatus(t, resp, http.StatusOK)
	var sel struct{ Selected bool }
	decode(t, resp, &sel)
	if sel.Selected || env.app.State().SelectedCollection() != "" {
		t.Fatal("Expected selection to be toggled off")
	}

	resp = env.do(t, "POST", "/api/collections/nope/select", nil)
	expectStatus(t, resp, http.StatusBadRequest)

	resp = env.do(t, "POST", "/api/auth/signout", nil)
	expectStatus(t, resp, http.StatusOK)
	env.settle()

	resp = env.do(t, "POST", "/api/auth/signin", credentials{Email: "ola@example.com", Password: "wrong"})
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{dialog.ErrCancelled, http.StatusNoContent},
		{&app.ValidationError{Field: "name", Message: "Missing name"}, http.StatusBadRequest},
		{app.ErrNotLoggedIn, http.StatusUnauthorized},
		{&app.RemoteError{Op: "sign in", Err: backend.ErrInvalidCredentials}, http.StatusUnauthorized},
		{&app.RemoteError{Op: "load markers", Err: app.ErrTimeout}, http.StatusGatewayTimeout},
		{&app.RemoteError{Op: "save marker", Err: &backend.Error{Status: 500, Message: "boom"}}, http.StatusBadGateway},
		{&app.RemoteError{Op: "fetch profile", Err: backend.ErrNoRows}, http.StatusNotFound},
		{fmt.Errorf("show: %w", dialog.ErrClosed), http.StatusServiceUnavailable},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		writeError(w, httptest.NewRequest("GET", "/", nil), tt.err)
		if w.Code != tt.code {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.code, w.Code)
		}
	}
}

func TestMapClickRange(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, "POST", "/api/map/click", types.MapClick{Lat: 91, Lng: 0})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = env.do(t, "POST", "/api/map/click", types.MapClick{Lat: 60, Lng: 5})
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestDialogEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "GET", "/api/dialog", nil)
	expectStatus(t, resp, http.StatusNoContent)

	ch, err := env.app.Dialogs().Show(context.Background(), dialog.Confirm("Delete?", "Really?"))
	if err != nil {
		t.Fatal(err)
	}
	resp = env.do(t, "GET", "/api/dialog", nil)
	expectStatus(t, resp, http.StatusOK)
	var req types.Dialog
	decode(t, resp, &req)
	if req.Kind != types.DialogConfirm || req.Title != "Delete?" {
		t.Fatalf("Unexpected dialog %#v", req)
	}

	resp = env.do(t, "POST", "/api/dialog/"+req.ID, types.DialogResponse{Action: types.ActionOK})
	expectStatus(t, resp, http.StatusOK)
	select {
	case res := <-ch:
		if !res.Confirmed || res.ID != req.ID {
			t.Fatalf("Unexpected result %#v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Dialog not resolved")
	}

	resp = env.do(t, "POST", "/api/dialog/"+req.ID, types.DialogResponse{Action: types.ActionOK})
	expectStatus(t, resp, http.StatusConflict)
}

func TestConfigRedactsAnonKey(t *testing.T) {
	env := newTestEnv(t)
	path := env.app.Options().ConfigPath

	conf := cfg.DefaultConfig
	conf.Backend = cfg.BackendConfig{Kind: cfg.BackendSupabase, URL: "https://example.supabase.co", AnonKey: "s3cret"}
	if err := app.WriteConfig(conf, path); err != nil {
		t.Fatal(err)
	}

	resp := env.do(t, "GET", "/api/config", nil)
	expectStatus(t, resp, http.StatusOK)
	var got cfg.Config
	decode(t, resp, &got)
	if got.Backend.AnonKey != "[REDACTED]" || got.Backend.URL != conf.Backend.URL {
		t.Fatalf("Unexpected config %#v", got.Backend)
	}

	got.HTTPAddr = "localhost:9090"
	resp = env.do(t, "PUT", "/api/config", got)
	expectStatus(t, resp, http.StatusOK)

	stored, err := app.ReadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Backend.AnonKey != "s3cret" || stored.HTTPAddr != "localhost:9090" {
		t.Fatalf("Unexpected stored config %#v", stored)
	}
}

func TestNewReleaseCheck(t *testing.T) {
	env := newTestEnv(t)
	latest := "v99.0.0"
	releaseSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"version": %q, "release_url": "https://example.com/release"}`, latest)
	}))
	defer releaseSrv.Close()
	t.Setenv("MEMMAP_RELEASES_URL", releaseSrv.URL)

	resp := env.do(t, "GET", "/api/new-release-check", nil)
	expectStatus(t, resp, http.StatusOK)
	var release struct{ Version string }
	decode(t, resp, &release)
	if release.Version != latest {
		t.Fatalf("Unexpected release %#v", release)
	}

	latest = "v0.0.1"
	resp = env.do(t, "GET", "/api/new-release-check", nil)
	expectStatus(t, resp, http.StatusNoContent)
}

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages from conn until one has key and satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, key string, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg map[string]json.RawMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Waiting for %s: %v", key, err)
		}
		if v, ok := msg[key]; ok && (match == nil || match(v)) {
			return v
		}
	}
}

func readDialog(t *testing.T, conn *websocket.Conn, title string) types.Dialog {
	t.Helper()
	var d types.Dialog
	readUntil(t, conn, "Dialog", func(raw json.RawMessage) bool {
		d = types.Dialog{}
		return json.Unmarshal(raw, &d) == nil && d.Title == title
	})
	return d
}

func send(t *testing.T, conn *websocket.Conn, key string, v interface{}) {
	t.Helper()
	if err := conn.WriteJSON(map[string]interface{}{key: v}); err != nil {
		t.Fatal(err)
	}
}

func TestMapClickOverWebsocket(t *testing.T) {
	env := newTestEnv(t)
	u := env.signUp(t)
	conn := dialWS(t, env)

	// The initial map state is replayed on connect.
	readUntil(t, conn, "Map", func(raw json.RawMessage) bool {
		var cmd types.MapCommand
		return json.Unmarshal(raw, &cmd) == nil && cmd.Op == types.MapSetView && cmd.Zoom == 11
	})

	send(t, conn, "map_click", types.MapClick{Lat: 60.39, Lng: 5.32})
	form := readDialog(t, conn, "New marker")
	if form.Kind != types.DialogForm || len(form.Fields) != 4 {
		t.Fatalf("Unexpected form %#v", form)
	}

	send(t, conn, "dialog_edit", types.DialogEdit{ID: form.ID, Field: app.FieldName, Value: "Lighthouse"})
	send(t, conn, "dialog_response", types.DialogResponse{ID: form.ID, Action: types.ActionOK})

	success := readDialog(t, conn, "Success")
	send(t, conn, "dialog_response", types.DialogResponse{ID: success.ID, Action: types.ActionOK})

	readUntil(t, conn, "Map", func(raw json.RawMessage) bool {
		var cmd types.MapCommand
		return json.Unmarshal(raw, &cmd) == nil && cmd.Op == types.MapAddMarker && cmd.Lat == 60.39
	})

	markers, err := backend.ListMarkers(context.Background(), env.client, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(markers) != 1 || markers[0].Name != "Lighthouse" || markers[0].Color != "#FF0000" {
		t.Fatalf("Unexpected markers %#v", markers)
	}
}

func TestActiveDialogReplayedOnConnect(t *testing.T) {
	env := newTestEnv(t)
	ch, err := env.app.Dialogs().Show(context.Background(), dialog.Alert("Hello", "World"))
	if err != nil {
		t.Fatal(err)
	}

	conn := dialWS(t, env)
	alert := readDialog(t, conn, "Hello")
	send(t, conn, "dialog_response", types.DialogResponse{ID: alert.ID, Action: types.ActionEscape})

	readUntil(t, conn, "DialogDismiss", nil)
	select {
	case res := <-ch:
		if res.Cancelled || !res.Confirmed {
			t.Fatalf("Alert must resolve OK, got %#v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Alert not resolved")
	}
}

func TestWatchConfig(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)
	path := env.app.Options().ConfigPath

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go env.h.WSHub().WatchConfig(ctx, path)

	// Keep touching the file until the watcher is up and reports it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			os.WriteFile(path, []byte("{}\n"), 0o644)
			select {
			case <-done:
				return
			case <-time.After(200 * time.Millisecond):
			}
		}
	}()
	readUntil(t, conn, "ConfigChanged", nil)
}

func TestErrorNotificationsPersist(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t)
	expectStatus(t, env.do(t, "POST", "/api/auth/signout", nil), http.StatusOK)
	env.settle()

	conn := dialWS(t, env)
	resp := env.do(t, "POST", "/api/auth/signin", credentials{Email: "ola@example.com", Password: "wrong"})
	expectStatus(t, resp, http.StatusUnauthorized)

	isError := func(raw json.RawMessage) bool {
		var n types.Notification
		return json.Unmarshal(raw, &n) == nil && n.Type == types.NotificationError
	}
	raw := readUntil(t, conn, "Notification", isError)

	// The renderer keeps a message with a zero duration until its area is cleared.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatal(err)
	}
	if got := string(fields["duration_ms"]); got != "0" {
		t.Fatalf("Expected duration_ms 0 for errors, got %s", got)
	}
	if got := string(fields["target"]); got != `"auth"` {
		t.Fatalf("Expected auth target, got %s", got)
	}

	// Clients connecting later still see it.
	late := dialWS(t, env)
	readUntil(t, late, "Notification", isError)

	// A successful sign in clears the auth area only.
	env.app.Notify(types.TargetApp, types.NotificationError, "Network error")
	resp = env.do(t, "POST", "/api/auth/signin", credentials{Email: "ola@example.com", Password: "secret1"})
	expectStatus(t, resp, http.StatusOK)
	env.settle()

	raw = readUntil(t, conn, "Notification", func(raw json.RawMessage) bool {
		var n types.Notification
		return json.Unmarshal(raw, &n) == nil && n.Clear
	})
	var clear types.Notification
	json.Unmarshal(raw, &clear)
	if clear.Target != types.TargetAuth {
		t.Fatalf("Expected auth area cleared, got %#v", clear)
	}
	got := env.app.PersistentNotifications()
	if len(got) != 1 || got[0].Target != types.TargetApp || got[0].Message != "Network error" {
		t.Fatalf("Unexpected persistent notifications %#v", got)
	}
}

func TestUserLocation(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	send(t, conn, "user_location", types.UserLocation{Lat: 59.91, Lng: 10.75, Accuracy: 30})
	readUntil(t, conn, "Map", func(raw json.RawMessage) bool {
		var cmd types.MapCommand
		return json.Unmarshal(raw, &cmd) == nil && cmd.Op == types.MapUserLocation && cmd.Lat == 59.91 && cmd.Accuracy == 30
	})

	// Replayed to new clients.
	late := dialWS(t, env)
	readUntil(t, late, "Map", func(raw json.RawMessage) bool {
		var cmd types.MapCommand
		return json.Unmarshal(raw, &cmd) == nil && cmd.Op == types.MapUserLocation && cmd.Lng == 10.75
	})

	resp := env.do(t, "PUT", "/api/map/location", types.UserLocation{Lat: 91, Lng: 0})
	expectStatus(t, resp, http.StatusBadRequest)
	resp = env.do(t, "PUT", "/api/map/location", types.UserLocation{Lat: 60.39, Lng: 5.32})
	expectStatus(t, resp, http.StatusNoContent)
	if lat, _, ok := env.app.Map().UserLocation(); !ok || lat != 60.39 {
		t.Fatalf("Unexpected user location %f (set: %t)", lat, ok)
	}
}

func TestReplayDuringBroadcasts(t *testing.T) {
	env := newTestEnv(t)
	icon := mapview.Icon{Color: "#FF0000"}
	for i := 0; i < 100; i++ {
		env.app.Map().AddMarker(float64(i%90), 0, icon)
	}

	// Keep the map busy while the client connects.
	const concurrent = 200
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < concurrent; i++ {
			env.app.Map().AddMarker(1, 1, icon)
		}
	}()
	defer func() { <-done }()
	conn := dialWS(t, env)

	// Every marker arrives exactly once: replayed or broadcast.
	want := 100 + concurrent
	seen := map[string]bool{}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for len(seen) < want {
		var msg map[string]json.RawMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Got %d of %d markers: %v", len(seen), want, err)
		}
		var cmd types.MapCommand
		if raw, ok := msg["Map"]; !ok || json.Unmarshal(raw, &cmd) != nil || cmd.Op != types.MapAddMarker {
			continue
		}
		if seen[cmd.Handle] {
			t.Fatalf("Marker %s received twice", cmd.Handle)
		}
		seen[cmd.Handle] = true
	}
}
