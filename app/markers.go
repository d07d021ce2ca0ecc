package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/la5nta/memorymap/api/types"
	"github.com/la5nta/memorymap/backend"
	"github.com/la5nta/memorymap/dialog"
	"github.com/la5nta/memorymap/internal/debug"
	"github.com/la5nta/memorymap/mapview"
)

// Form field ids of the marker dialogs.
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldColor       = "color"
	FieldCollection  = "collection"
)

// LoadMarkers replaces the markers on the map with the user's markers.
func (a *App) LoadMarkers(ctx context.Context) error {
	return a.loadMarkers(ctx, a.state.Generation())
}

func (a *App) loadMarkers(ctx context.Context, gen uint64) error {
	user := a.state.User()
	if user == nil {
		return ErrNotLoggedIn
	}
	markers, err := remote(ctx, a.remoteTimeout(), "load markers", func(ctx context.Context) ([]types.Marker, error) {
		return backend.ListMarkers(ctx, a.backend, user.ID)
	})
	if err != nil {
		return err
	}
	applied := a.state.Update(gen, func(s *State) {
		for _, m := range s.markers {
			a.mapView.RemoveMarker(m.Handle)
		}
		s.markers = make(map[string]*MapMarker, len(markers))
		for _, m := range markers {
			s.markers[m.ID] = a.placeMarker(m)
		}
	})
	if !applied {
		debug.Printf("Discarding stale markers")
		return nil
	}
	a.hub().UpdateStatus()
	return nil
}

// placeMarker adds m to the map with a pin in its color and its popup.
func (a *App) placeMarker(m types.Marker) *MapMarker {
	icon, err := mapview.PinIcon(m.Color)
	if err != nil {
		debug.Printf("Marker %s: %v", m.ID, err)
		icon = mapview.Icon{Color: mapview.DefaultColor}
	}
	h := a.mapView.AddMarker(m.Latitude, m.Longitude, icon)
	a.mapView.BindPopup(h, mapview.PopupHTML(mapview.MarkerInfo{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Lat:         m.Latitude,
		Lng:         m.Longitude,
	}))
	return &MapMarker{Marker: m, Handle: h}
}

func markerFields(name, description, color string) []dialog.Field {
	return []dialog.Field{
		{ID: FieldName, Label: "Name", Type: dialog.InputText, Value: name},
		{ID: FieldDescription, Label: "Description", Type: dialog.InputTextarea, Value: description},
		{ID: FieldColor, Label: "Color", Type: dialog.InputColor, Value: color},
	}
}

// validateMarker checks and normalizes the values of a marker form.
func validateMarker(values map[string]string) (name, description, color string, err error) {
	name = strings.TrimSpace(values[FieldName])
	description = strings.TrimSpace(values[FieldDescription])
	color = strings.TrimSpace(values[FieldColor])
	if color == "" {
		color = mapview.DefaultColor
	}
	switch {
	case name == "":
		return "", "", "", invalid(FieldName, "Please enter a name for the marker.")
	case !isColor(color):
		return "", "", "", invalid(FieldColor, "Invalid color %q.", color)
	}
	return name, description, strings.ToUpper(color), nil
}

func isColor(s string) bool { _, err := mapview.PinIcon(s); return err == nil }

// HandleMapClick asks the user for the details of a new marker at the
// clicked position and stores it in the chosen collection.
func (a *App) HandleMapClick(ctx context.Context, lat, lng float64) (types.Marker, error) {
	user := a.state.User()
	if user == nil {
		a.alert("Not logged in", "Please log in to add markers.")
		return types.Marker{}, ErrNotLoggedIn
	}
	cols := a.state.Collections()
	if len(cols) == 0 {
		return types.Marker{}, a.reject(invalid(FieldCollection, "Create a collection before adding markers."), "No collections")
	}
	selected := a.state.SelectedCollection()
	if selected == "" {
		selected = cols[0].ID
	}
	options := make([]dialog.Option, len(cols))
	for i, c := range cols {
		options[i] = dialog.Option{Value: c.ID, Label: c.Name}
	}
	fields := append(markerFields("", "", mapview.DefaultColor),
		dialog.Field{ID: FieldCollection, Label: "Collection", Type: dialog.InputSelect, Value: selected, Options: options},
	)

	values, err := a.dialogs.Form(ctx, "New marker",
		fmt.Sprintf("New marker at %s\nEnter a name and select a color:", mapview.FormatPosition(lat, lng)),
		fields...)
	if err != nil {
		return types.Marker{}, err
	}
	name, description, color, err := validateMarker(values)
	if err != nil {
		return types.Marker{}, a.reject(err, "Invalid marker")
	}
	collectionID := values[FieldCollection]
	if _, ok := a.state.Collection(collectionID); !ok {
		return types.Marker{}, a.reject(invalid(FieldCollection, "Please select a collection."), "Invalid marker")
	}

	m, err := remote(ctx, a.remoteTimeout(), "save marker", func(ctx context.Context) (types.Marker, error) {
		return backend.InsertMarker(ctx, a.backend, types.Marker{
			UserID:      user.ID,
			Name:        name,
			Description: description,
			Latitude:    lat,
			Longitude:   lng,
			Color:       color,
		})
	})
	if err != nil {
		a.alert("Error", "Failed to save marker: "+userMessage(err))
		return types.Marker{}, err
	}

	err = exec(ctx, a.remoteTimeout(), "link marker", func(ctx context.Context) error {
		return backend.LinkMarker(ctx, a.backend, m.ID, collectionID)
	})
	if err != nil {
		// Don't leave a marker outside of any collection behind.
		rerr := exec(ctx, a.remoteTimeout(), "delete marker", func(ctx context.Context) error {
			return backend.DeleteMarker(ctx, a.backend, m.ID)
		})
		if rerr != nil {
			log.Printf("Unable to roll back marker %s: %v", m.ID, rerr)
		}
		a.alert("Error", "Failed to add the marker to the collection: "+userMessage(err))
		return types.Marker{}, err
	}

	a.alert("Success", "Marker added successfully!")
	if err := a.LoadMarkers(ctx); err != nil {
		debug.Printf("Reload after add failed: %v", err)
	}
	return m, nil
}

// DeleteMarker deletes marker id after confirmation.
func (a *App) DeleteMarker(ctx context.Context, id string) error {
	if _, ok := a.state.Marker(id); !ok {
		return invalid("marker", "Unknown marker.")
	}
	confirmed, err := a.dialogs.Confirm(ctx, "Confirm Deletion", "Are you sure you want to delete this marker? This action cannot be undone.")
	switch {
	case err != nil:
		return err
	case !confirmed:
		return dialog.ErrCancelled
	}

	err = exec(ctx, a.remoteTimeout(), "delete marker", func(ctx context.Context) error {
		return backend.DeleteMarker(ctx, a.backend, id)
	})
	if err != nil {
		a.alert("Error", "Failed to delete marker: "+userMessage(err))
		return err
	}
	a.state.Update(a.state.Generation(), func(s *State) {
		if m, ok := s.markers[id]; ok {
			a.mapView.RemoveMarker(m.Handle)
			delete(s.markers, id)
		}
	})
	a.hub().UpdateStatus()
	a.alert("Success", "Marker deleted successfully.")
	return nil
}

// EditMarker lets the user change the name, description and color of
// marker id.
func (a *App) EditMarker(ctx context.Context, id string) (types.Marker, error) {
	m, ok := a.state.Marker(id)
	if !ok {
		return types.Marker{}, invalid("marker", "Unknown marker.")
	}
	values, err := a.dialogs.Form(ctx, "Edit marker", "", markerFields(m.Name, m.Description, m.Color)...)
	if err != nil {
		return types.Marker{}, err
	}
	name, description, color, err := validateMarker(values)
	if err != nil {
		return types.Marker{}, a.reject(err, "Invalid marker")
	}

	patch := backend.MarkerPatch{Name: name, Description: description, Color: color}
	err = exec(ctx, a.remoteTimeout(), "update marker", func(ctx context.Context) error {
		return backend.UpdateMarker(ctx, a.backend, id, patch)
	})
	if err != nil {
		a.alert("Error", "Failed to update marker: "+userMessage(err))
		return types.Marker{}, err
	}

	updated := m.Marker
	updated.Name, updated.Description, updated.Color = name, description, color
	a.state.Update(a.state.Generation(), func(s *State) {
		if old, ok := s.markers[id]; ok {
			a.mapView.RemoveMarker(old.Handle)
			s.markers[id] = a.placeMarker(updated)
		}
	})
	a.alert("Success", "Marker updated successfully.")
	return updated, nil
}

// ViewMarker shows the details of marker id.
func (a *App) ViewMarker(ctx context.Context, id string) error {
	m, ok := a.state.Marker(id)
	if !ok {
		return invalid("marker", "Unknown marker.")
	}
	var b strings.Builder
	if m.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", m.Description)
	}
	fmt.Fprintf(&b, "Position: %s\n", mapview.FormatPosition(m.Latitude, m.Longitude))
	fmt.Fprintf(&b, "Color: %s", m.Color)
	if !m.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "\nCreated: %s", m.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	a.alert(m.Name, b.String())
	return nil
}
