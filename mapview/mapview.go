// Copyright 2025 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

// Package mapview provides the map widget capability used by the app.
//
// The map itself is rendered elsewhere (the Web GUI). Remote keeps the
// authoritative layer state server side and streams it to the renderer as
// types.MapCommand values.
package mapview

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/la5nta/memorymap/api/types"
	"github.com/la5nta/memorymap/internal/debug"
)

// Default view (Bergen, Norway).
const (
	DefaultLat  = 60.3913
	DefaultLng  = 5.3221
	DefaultZoom = 11
)

const DefaultColor = "#FF0000"

// UserLocationZoom is the zoom level used when centering on the user.
const UserLocationZoom = 15

// Handle identifies a marker placed on the map.
type Handle string

type Icon struct {
	Color string
}

var colorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// PinIcon returns a pin icon filled with color (#RRGGBB).
func PinIcon(color string) (Icon, error) {
	if !colorRe.MatchString(color) {
		return Icon{}, fmt.Errorf("invalid color %q: expected #RRGGBB", color)
	}
	return Icon{Color: color}, nil
}

// Widget is the capability the app requires from a map.
type Widget interface {
	SetView(lat, lng float64, zoom int)
	AddMarker(lat, lng float64, icon Icon) Handle
	RemoveMarker(h Handle)
	OnClick(fn func(lat, lng float64))
	BindPopup(h Handle, html string)
}

// Sink receives map commands, typically for broadcast to connected clients.
type Sink interface {
	SendMap(types.MapCommand)
}

type marker struct {
	lat, lng float64
	color    string
	popup    string
}

// Remote is a Widget rendered by a remote client.
type Remote struct {
	mu      sync.Mutex
	sink    Sink
	lat     float64
	lng     float64
	zoom    int
	markers map[Handle]*marker
	order   []Handle
	nextID  int
	onClick func(lat, lng float64)
	user    *userLocation
}

type userLocation struct {
	lat, lng, accuracy float64
}

var _ Widget = (*Remote)(nil)

func NewRemote(sink Sink) *Remote {
	return &Remote{
		sink:    sink,
		lat:     DefaultLat,
		lng:     DefaultLng,
		zoom:    DefaultZoom,
		markers: make(map[Handle]*marker),
	}
}

// SetSink replaces the command sink.
func (r *Remote) SetSink(sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

func (r *Remote) send(cmd types.MapCommand) {
	if r.sink != nil {
		r.sink.SendMap(cmd)
	}
}

func (r *Remote) SetView(lat, lng float64, zoom int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lat, r.lng, r.zoom = lat, lng, zoom
	r.send(types.MapCommand{Op: types.MapSetView, Lat: lat, Lng: lng, Zoom: zoom})
}

func (r *Remote) AddMarker(lat, lng float64, icon Icon) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	h := Handle("m" + strconv.Itoa(r.nextID))
	r.markers[h] = &marker{lat: lat, lng: lng, color: icon.Color}
	r.order = append(r.order, h)
	r.send(types.MapCommand{Op: types.MapAddMarker, Handle: string(h), Lat: lat, Lng: lng, Color: icon.Color})
	return h
}

// RemoveMarker removes the marker. Unknown handles are ignored.
func (r *Remote) RemoveMarker(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.markers[h]; !ok {
		return
	}
	delete(r.markers, h)
	for i, v := range r.order {
		if v == h {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.send(types.MapCommand{Op: types.MapRemoveMarker, Handle: string(h)})
}

// Clear removes every marker.
func (r *Remote) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markers = make(map[Handle]*marker)
	r.order = nil
	r.send(types.MapCommand{Op: types.MapClear})
}

func (r *Remote) BindPopup(h Handle, html string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.markers[h]
	if !ok {
		return
	}
	m.popup = html
	r.send(types.MapCommand{Op: types.MapBindPopup, Handle: string(h), HTML: html})
}

func (r *Remote) OnClick(fn func(lat, lng float64)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onClick = fn
}

// HandleClick dispatches a click reported by the renderer.
func (r *Remote) HandleClick(lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("coordinates out of range: %f,%f", lat, lng)
	}
	r.mu.Lock()
	fn := r.onClick
	r.mu.Unlock()
	if fn == nil {
		debug.Printf("mapview: click at %f,%f without handler", lat, lng)
		return nil
	}
	fn(lat, lng)
	return nil
}

// SetUserLocation shows the user's position and centers the view on it.
// The location is kept across Clear.
func (r *Remote) SetUserLocation(lat, lng, accuracy float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("coordinates out of range: %f,%f", lat, lng)
	}
	if accuracy < 0 {
		accuracy = 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.user = &userLocation{lat, lng, accuracy}
	r.lat, r.lng, r.zoom = lat, lng, UserLocationZoom
	r.send(types.MapCommand{Op: types.MapUserLocation, Lat: lat, Lng: lng, Accuracy: accuracy})
	r.send(types.MapCommand{Op: types.MapSetView, Lat: lat, Lng: lng, Zoom: UserLocationZoom})
	return nil
}

// UserLocation returns the last reported user position.
func (r *Remote) UserLocation() (lat, lng float64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.user == nil {
		return 0, 0, false
	}
	return r.user.lat, r.user.lng, true
}

// Len returns the number of markers on the map.
func (r *Remote) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.markers)
}

// Snapshot returns the commands that bring a freshly loaded renderer up to
// the current state.
func (r *Remote) Snapshot() []types.MapCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// Replay calls fn with the current snapshot. No command is sent to the sink
// until fn returns, so a subscriber registered by fn sees every later
// command exactly once.
func (r *Remote) Replay(fn func(snapshot []types.MapCommand)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.snapshot())
}

func (r *Remote) snapshot() []types.MapCommand {
	cmds := []types.MapCommand{
		{Op: types.MapClear},
		{Op: types.MapSetView, Lat: r.lat, Lng: r.lng, Zoom: r.zoom},
	}
	for _, h := range r.order {
		m := r.markers[h]
		cmds = append(cmds, types.MapCommand{Op: types.MapAddMarker, Handle: string(h), Lat: m.lat, Lng: m.lng, Color: m.color})
		if m.popup != "" {
			cmds = append(cmds, types.MapCommand{Op: types.MapBindPopup, Handle: string(h), HTML: m.popup})
		}
	}
	if u := r.user; u != nil {
		cmds = append(cmds, types.MapCommand{Op: types.MapUserLocation, Lat: u.lat, Lng: u.lng, Accuracy: u.accuracy})
	}
	return cmds
}
