// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"

	"github.com/la5nta/memorymap/api/types"
	"github.com/la5nta/memorymap/app"
	"github.com/la5nta/memorymap/dialog"
	"github.com/la5nta/memorymap/internal/debug"
)

const KeepaliveInterval = 4 * time.Minute

// outQueueSize is the number of broadcasts buffered per client.
const outQueueSize = 64

// WSConn represent one connection in the WSHub pool
type WSConn struct {
	conn *websocket.Conn
	out  chan interface{}
}

// WSHub is a hub for broadcasting data to several websocket connections.
//
// It is the Web GUI's dialog surface and map renderer.
type WSHub struct {
	*app.App

	mu   sync.Mutex
	pool map[*WSConn]struct{}
}

func NewWSHub(app *app.App) *WSHub {
	return &WSHub{App: app, pool: map[*WSConn]struct{}{}}
}

func (w *WSHub) UpdateStatus() {
	w.WriteJSON(struct{ Status types.Status }{w.GetStatus()})
}

func (w *WSHub) WriteNotification(n types.Notification) {
	w.WriteJSON(struct{ Notification types.Notification }{n})
}

// Present shows req as a modal dialog in every client.
func (w *WSHub) Present(req dialog.Request) {
	w.WriteJSON(struct{ Dialog types.Dialog }{req})
	w.UpdateStatus()
}

// Dismiss closes dialog id in every client.
func (w *WSHub) Dismiss(id string) {
	w.WriteJSON(struct{ DialogDismiss string }{id})
	w.UpdateStatus()
}

func (w *WSHub) SendMap(cmd types.MapCommand) {
	w.WriteJSON(struct{ Map types.MapCommand }{cmd})
}

func (w *WSHub) WriteJSON(v interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for c := range w.pool {
		select {
		case c.out <- v:
		case <-time.After(3 * time.Second):
			debug.Printf("Closing one unresponsive web socket")
			c.conn.Close()
			delete(w.pool, c)
		}
	}
}

// Close closes all active WebSocket connections in the hub.
//
// The hub should not be used after calling Close.
func (w *WSHub) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pool == nil {
		return nil
	}
	for conn := range w.pool {
		// Closing the connection should trigger the deferred cleanup in the Handle method for that client,
		// which includes removing it from the pool.
		err := conn.conn.Close()
		if err != nil {
			debug.Printf("Error closing WebSocket connection %s: %v", conn.conn.RemoteAddr(), err)
		}
	}
	w.pool = nil
	return nil
}

func (w *WSHub) NumClients() int { return len(w.ClientAddrs()) }

func (w *WSHub) ClientAddrs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	addrs := make([]string, 0, len(w.pool))
	for c := range w.pool {
		addrs = append(addrs, c.conn.RemoteAddr().String())
	}
	return addrs
}

// WatchConfig notifies the clients whenever the config file at path is
// written to.
func (w *WSHub) WatchConfig(ctx context.Context, path string) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Println("Unable to start fs watcher: ", err)
		return
	}
	defer fsWatcher.Close()

	// Watch the directory, as editors tend to replace the file on save.
	dir := filepath.Dir(path)
	debug.Printf("Adding '%s' to fs watcher", dir)
	if err := fsWatcher.Add(dir); err != nil {
		log.Printf("Unable to add path '%s' to fs watcher: %v", dir, err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-fsWatcher.Events:
			if e.Op == fsnotify.Chmod || filepath.Clean(e.Name) != filepath.Clean(path) {
				continue
			}
			// Make sure we don't send many of these events over a short period.
			drainUntilSilence(fsWatcher, 100*time.Millisecond)
			debug.Printf("Config file changed")
			w.WriteJSON(struct {
				ConfigChanged bool
			}{true})
		case err := <-fsWatcher.Errors:
			log.Println(err)
		}
	}
}

// Handle adds a new websocket to the hub
//
// It will block until the client either stops responding or closes the connection.
func (w *WSHub) Handle(conn *websocket.Conn) {
	debug.Printf("ws[%s] subscribed", conn.RemoteAddr())
	c := &WSConn{conn: conn}

	// Queue the current state and join the pool while the map is held still,
	// so the client sees every later broadcast exactly once and in order.
	var joined bool
	w.Map().Replay(func(snapshot []types.MapCommand) {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.pool == nil {
			return
		}
		replay := w.replay(snapshot)
		c.out = make(chan interface{}, len(replay)+outQueueSize)
		for _, v := range replay {
			c.out <- v
		}
		w.pool[c] = struct{}{}
		joined = true
	})
	if !joined {
		conn.Close()
		return
	}

	// Initial status update
	// (broadcasted as it includes info to other clients about this new one)
	w.UpdateStatus()

	quit := w.wsReadLoop(conn)

	// Disconnect and remove client when this handler returns.
	defer func() {
		debug.Printf("ws[%s] unsubscribing...", conn.RemoteAddr())
		c.conn.Close()
		w.mu.Lock()
		delete(w.pool, c)
		w.mu.Unlock()
		w.UpdateStatus()
		debug.Printf("ws[%s] unsubscribed", conn.RemoteAddr())
	}()

	var lines <-chan []byte
	if l, done, err := tailFile(w.Options().LogPath); err != nil {
		debug.Printf("ws[%s] not tailing log: %v", conn.RemoteAddr(), err)
	} else {
		lines = l
		defer close(done)
	}
	ticker := time.NewTicker(KeepaliveInterval)
	defer ticker.Stop()
	for {
		var err error
		c.conn.SetWriteDeadline(time.Time{})
		select {
		case <-ticker.C:
			debug.Printf("ws[%s] ping", conn.RemoteAddr())
			c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			err = c.conn.WriteJSON(struct {
				Ping bool
			}{true})
		case line := <-lines:
			c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			err = c.conn.WriteJSON(struct {
				LogLine string
			}{string(line)})
		case v := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			err = c.conn.WriteJSON(v)
		case <-quit:
			// The read loop failed/disconnected. Abort.
			return
		}
		if err != nil {
			debug.Printf("ws[%s] write error: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

// replay returns the messages that bring a new client up to date: the map,
// the persistent notifications and the active dialog. Must be called with
// w.mu held.
func (w *WSHub) replay(snapshot []types.MapCommand) []interface{} {
	msgs := make([]interface{}, 0, len(snapshot)+2)
	for _, cmd := range snapshot {
		msgs = append(msgs, struct{ Map types.MapCommand }{cmd})
	}
	for _, n := range w.PersistentNotifications() {
		msgs = append(msgs, struct{ Notification types.Notification }{n})
	}
	if req, ok := w.Dialogs().Active(); ok {
		msgs = append(msgs, struct{ Dialog types.Dialog }{req})
	}
	return msgs
}

// drainUntilSilence reads from w.Events and blocks until the channel has been silent for at least silenceDur.
func drainUntilSilence(w *fsnotify.Watcher, silenceDur time.Duration) {
	timer := time.NewTimer(silenceDur)
	defer timer.Stop()
	for {
		select {
		case <-w.Events:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(silenceDur)
		case <-timer.C:
			return
		}
	}
}

// Expects the file to never get renamed/truncated or deleted
func tailFile(path string) (<-chan []byte, chan<- struct{}, error) {
	lines := make(chan []byte)
	done := make(chan struct{})
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	go func() {
		defer file.Close()
		rd := bufio.NewReader(file)
		for {
			data, _, err := rd.ReadLine()
			switch {
			case errors.Is(err, io.EOF):
				select {
				case <-done:
					return
				case <-time.After(100 * time.Millisecond):
				}
				continue
			case err != nil:
				return
			}

			select {
			case <-done:
				return
			case lines <- data:
			}
		}
	}()

	return lines, done, nil
}

func (w *WSHub) handleWSMessage(v map[string]json.RawMessage) {
	switch {
	case v["dialog_response"] != nil:
		var resp types.DialogResponse
		if err := json.Unmarshal(v["dialog_response"], &resp); err != nil {
			debug.Printf("Invalid dialog response: %v", err)
			return
		}
		if err := w.Dialogs().Respond(resp); err != nil {
			debug.Printf("Dialog response ignored: %v", err)
		}
	case v["dialog_edit"] != nil:
		var edit types.DialogEdit
		if err := json.Unmarshal(v["dialog_edit"], &edit); err != nil {
			debug.Printf("Invalid dialog edit: %v", err)
			return
		}
		if err := w.Dialogs().Edit(edit.ID, edit.Field, edit.Value); err != nil {
			debug.Printf("Dialog edit ignored: %v", err)
		}
	case v["map_click"] != nil:
		var click types.MapClick
		if err := json.Unmarshal(v["map_click"], &click); err != nil {
			debug.Printf("Invalid map click: %v", err)
			return
		}
		if err := w.Map().HandleClick(click.Lat, click.Lng); err != nil {
			debug.Printf("Map click ignored: %v", err)
		}
	case v["user_location"] != nil:
		var loc types.UserLocation
		if err := json.Unmarshal(v["user_location"], &loc); err != nil {
			debug.Printf("Invalid user location: %v", err)
			return
		}
		if err := w.Map().SetUserLocation(loc.Lat, loc.Lng, loc.Accuracy); err != nil {
			debug.Printf("User location ignored: %v", err)
		}
	}
}

func (w *WSHub) wsReadLoop(c *websocket.Conn) <-chan struct{} {
	quit := make(chan struct{})
	go func() {
		for {
			v := map[string]json.RawMessage{}
			// We should at least get a ping response once per KeepaliveInterval.
			c.SetReadDeadline(time.Now().Add(KeepaliveInterval + 10*time.Second))
			err := c.ReadJSON(&v)
			if err != nil {
				debug.Printf("ws[%s] read error: %v", c.RemoteAddr(), err)
				close(quit)
				return
			}
			if _, ok := v["Pong"]; ok {
				// That's the Ping response.
				debug.Printf("ws[%s] pong", c.RemoteAddr())
				continue
			}
			// Handled in order: an edit must be recorded before the
			// response that follows it.
			w.handleWSMessage(v)
		}
	}()
	return quit
}
