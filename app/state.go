package app

import (
	"sort"
	"sync"

	"github.com/la5nta/memorymap/api/types"
	"github.com/la5nta/memorymap/backend"
	"github.com/la5nta/memorymap/mapview"
)

// MapMarker is a loaded marker and its handle on the map.
type MapMarker struct {
	types.Marker
	Handle mapview.Handle
}

// State is the application state of the current session.
//
// Every session transition starts a new generation. Results of backend
// fetches are applied through Update, which discards them if the session
// has moved on since the fetch was started.
type State struct {
	mu          sync.Mutex
	gen         uint64
	user        *backend.User
	username    string
	statusText  string
	markers     map[string]*MapMarker
	collections []types.Collection
	selected    string
}

func NewState() *State {
	return &State{statusText: "Guest", markers: make(map[string]*MapMarker)}
}

// begin starts a new generation for user (nil when logged out).
func (s *State) begin(user *backend.User) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if user == nil {
		s.resetLocked()
		return s.gen
	}
	if s.user == nil || s.user.ID != user.ID {
		s.resetLocked()
	}
	u := *user
	s.user = &u
	return s.gen
}

// Generation returns the current generation.
func (s *State) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Update calls fn with the state locked, unless gen is stale. It reports
// whether fn was called.
func (s *State) Update(gen uint64, fn func(*State)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	fn(s)
	return true
}

// Reset clears everything known about the session.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *State) resetLocked() {
	s.user = nil
	s.username = ""
	s.statusText = "Guest"
	s.markers = make(map[string]*MapMarker)
	s.collections = nil
	s.selected = ""
}

func (s *State) User() *backend.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *State) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

func (s *State) StatusText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusText
}

// Markers returns the loaded markers ordered by creation time.
func (s *State) Markers() []types.Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	markers := make([]types.Marker, 0, len(s.markers))
	for _, m := range s.markers {
		markers = append(markers, m.Marker)
	}
	sort.Slice(markers, func(i, j int) bool {
		if markers[i].CreatedAt.Equal(markers[j].CreatedAt) {
			return markers[i].ID < markers[j].ID
		}
		return markers[i].CreatedAt.Before(markers[j].CreatedAt)
	})
	return markers
}

func (s *State) Marker(id string) (MapMarker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markers[id]
	if !ok {
		return MapMarker{}, false
	}
	return *m, true
}

func (s *State) Collections() []types.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Collection(nil), s.collections...)
}

func (s *State) Collection(id string) (types.Collection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.collections {
		if c.ID == id {
			return c, true
		}
	}
	return types.Collection{}, false
}

func (s *State) SelectedCollection() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Select toggles the selection of collection id. Selecting the selected
// collection clears the selection.
func (s *State) Select(id string) (selected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == id {
		s.selected = ""
		return false
	}
	s.selected = id
	return true
}

// setCollections replaces the loaded collections. The selection is kept if
// the collection still exists, otherwise the first collection is selected.
func (s *State) setCollections(cols []types.Collection) {
	s.collections = cols
	for _, c := range cols {
		if c.ID == s.selected {
			return
		}
	}
	s.selected = ""
	if len(cols) > 0 {
		s.selected = cols[0].ID
	}
}
