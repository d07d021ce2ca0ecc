package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/la5nta/memorymap/api/types"
	"github.com/la5nta/memorymap/backend"
	"github.com/la5nta/memorymap/dialog"
)

func TestHandleMapClick(t *testing.T) {
	a, c, hub := newTestApp(t)
	ctx := context.Background()
	u := signUp(t, a, c, "ola")
	col := a.state.Collections()[0]

	hub.Reset()
	hub.Script(okAll(map[string]string{
		FieldName:        "Lighthouse",
		FieldDescription: "By the sea",
		FieldColor:       "#00ff00",
		FieldCollection:  col.ID,
	}))
	m, err := a.HandleMapClick(ctx, 60.3913, 5.3221)
	if err != nil {
		t.Fatal(err)
	}

	form := hub.Dialogs()[0]
	if form.Kind != dialog.KindForm || !strings.Contains(form.Message, "60.39130, 5.32210") {
		t.Fatalf("Unexpected form %#v", form)
	}
	var ids []string
	for _, f := range form.Fields {
		ids = append(ids, f.ID)
	}
	if diff := cmp.Diff([]string{FieldName, FieldDescription, FieldColor, FieldCollection}, ids); diff != "" {
		t.Fatalf("Fields mismatch (-want +got):\n%s", diff)
	}
	if form.Fields[2].Value != "#FF0000" || form.Fields[3].Value != col.ID {
		t.Fatalf("Unexpected defaults %#v", form.Fields)
	}

	if m.Name != "Lighthouse" || m.Color != "#00FF00" || m.UserID != u.ID {
		t.Fatalf("Unexpected marker %#v", m)
	}
	ids, err = backend.CollectionMarkerIDs(ctx, c, col.ID)
	if err != nil || len(ids) != 1 || ids[0] != m.ID {
		t.Fatalf("Marker not linked: %v, %v", ids, err)
	}
	if loaded, ok := a.state.Marker(m.ID); !ok || loaded.Handle == "" {
		t.Fatal("Marker not placed on the map")
	}
	if a.mapView.Len() != 1 {
		t.Fatalf("Expected 1 marker on map, got %d", a.mapView.Len())
	}
	if diff := cmp.Diff([]string{"New marker", "Success"}, hub.Titles()); diff != "" {
		t.Fatalf("Dialogs mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleMapClickCancelled(t *testing.T) {
	a, c, hub := newTestApp(t)
	signUp(t, a, c, "ola")

	hub.Reset()
	hub.Script(func(req dialog.Request) *dialog.Response {
		return &dialog.Response{ID: req.ID, Action: dialog.ActionEscape}
	})
	_, err := a.HandleMapClick(context.Background(), 1, 1)
	if !IsCancelled(err) {
		t.Fatalf("Expected cancellation, got %v", err)
	}
	if len(hub.Dialogs()) != 1 {
		t.Fatalf("Expected no dialogs after cancel, got %v", hub.Titles())
	}
}

func TestHandleMapClickValidation(t *testing.T) {
	a, c, hub := newTestApp(t)
	ctx := context.Background()
	u := signUp(t, a, c, "ola")
	col := a.state.Collections()[0]

	tests := map[string]map[string]string{
		"empty name":    {FieldName: "  ", FieldColor: "#FF0000", FieldCollection: col.ID},
		"bad color":     {FieldName: "x", FieldColor: "red", FieldCollection: col.ID},
		"no collection": {FieldName: "x", FieldColor: "#FF0000", FieldCollection: ""},
	}
	for name, values := range tests {
		t.Run(name, func(t *testing.T) {
			hub.Reset()
			hub.Script(okAll(values))
			_, err := a.HandleMapClick(ctx, 1, 1)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected validation error, got %v", err)
			}
			if titles := hub.Titles(); titles[len(titles)-1] != "Invalid marker" {
				t.Fatalf("Expected validation alert, got %v", titles)
			}
		})
	}
	markers, _ := backend.ListMarkers(ctx, c, u.ID)
	if len(markers) != 0 {
		t.Fatalf("Invalid input reached the backend: %#v", markers)
	}
}

func TestHandleMapClickLinkFailureRollsBack(t *testing.T) {
	a, c, hub := newTestApp(t)
	ctx := context.Background()
	u := signUp(t, a, c, "ola")
	col := a.state.Collections()[0]

	c.FailInsert(backend.TableMarkerCollections, &backend.Error{Status: 403, Message: "permission denied"})
	hub.Reset()
	hub.Script(okAll(map[string]string{FieldName: "x", FieldColor: "#FF0000", FieldCollection: col.ID}))

	_, err := a.HandleMapClick(ctx, 1, 1)
	var re *RemoteError
	if !errors.As(err, &re) || re.Op != "link marker" {
		t.Fatalf("Expected link error, got %v", err)
	}
	markers, _ := backend.ListMarkers(ctx, c, u.ID)
	if len(markers) != 0 {
		t.Fatalf("Marker not rolled back: %#v", markers)
	}
	last := hub.Dialogs()[len(hub.Dialogs())-1]
	if last.Title != "Error" || !strings.Contains(last.Message, "permission denied") {
		t.Fatalf("Unexpected alert %#v", last)
	}
}

func TestHandleMapClickRequiresCollection(t *testing.T) {
	a, c, hub := newTestApp(t)
	ctx := context.Background()
	u, err := c.SignUp(ctx, "ola@example.com", "secret1", map[string]string{"username": "ola"})
	if err != nil {
		t.Fatal(err)
	}
	settle(a, c)

	hub.Reset()
	hub.Script(okAll(nil))
	_, err = a.HandleMapClick(ctx, 1, 1)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != FieldCollection {
		t.Fatalf("Expected collection validation error, got %v", err)
	}
	if diff := cmp.Diff([]string{"No collections"}, hub.Titles()); diff != "" {
		t.Fatalf("Dialogs mismatch (-want +got):\n%s", diff)
	}
	if markers, _ := backend.ListMarkers(ctx, c, u.ID); len(markers) != 0 {
		t.Fatal("Unexpected marker")
	}
}

func TestHandleMapClickLoggedOut(t *testing.T) {
	a, _, _ := newTestApp(t)
	if _, err := a.HandleMapClick(context.Background(), 1, 1); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("Expected ErrNotLoggedIn, got %v", err)
	}
}

func addMarker(t *testing.T, a *App, hub *testHub, name string) types.Marker {
	t.Helper()
	col := a.state.Collections()[0]
	hub.Script(okAll(map[string]string{FieldName: name, FieldColor: "#FF0000", FieldCollection: col.ID}))
	m, err := a.HandleMapClick(context.Background(), 60, 5)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestEditMarker(t *testing.T) {
	a, c, hub := newTestApp(t)
	ctx := context.Background()
	u := signUp(t, a, c, "ola")
	m := addMarker(t, a, hub, "Lighthouse")

	hub.Reset()
	hub.Script(okAll(map[string]string{FieldName: "Old lighthouse", FieldDescription: "Closed", FieldColor: "#0000FF"}))
	updated, err := a.EditMarker(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	form := hub.Dialogs()[0]
	if form.Fields[0].Value != "Lighthouse" {
		t.Fatalf("Form not prefilled: %#v", form.Fields)
	}

	markers, _ := backend.ListMarkers(ctx, c, u.ID)
	if len(markers) != 1 || markers[0].Name != "Old lighthouse" || markers[0].Color != "#0000FF" {
		t.Fatalf("Marker not updated: %#v", markers)
	}
	if got, _ := a.state.Marker(m.ID); got.Name != updated.Name || got.Description != "Closed" {
		t.Fatalf("State not updated: %#v", got)
	}
}

func TestDeleteMarker(t *testing.T) {
	a, c, hub := newTestApp(t)
	ctx := context.Background()
	u := signUp(t, a, c, "ola")
	m := addMarker(t, a, hub, "Lighthouse")

	// Declined
	hub.Script(func(req dialog.Request) *dialog.Response {
		return &dialog.Response{ID: req.ID, Action: dialog.ActionCancel}
	})
	if err := a.DeleteMarker(ctx, m.ID); !IsCancelled(err) {
		t.Fatalf("Expected cancellation, got %v", err)
	}
	if markers, _ := backend.ListMarkers(ctx, c, u.ID); len(markers) != 1 {
		t.Fatal("Marker deleted without confirmation")
	}

	hub.Script(okAll(nil))
	if err := a.DeleteMarker(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	if markers, _ := backend.ListMarkers(ctx, c, u.ID); len(markers) != 0 {
		t.Fatal("Marker not deleted")
	}
	if _, ok := a.state.Marker(m.ID); ok || a.mapView.Len() != 0 {
		t.Fatal("Marker still on the map")
	}

	var ve *ValidationError
	if err := a.DeleteMarker(ctx, m.ID); !errors.As(err, &ve) {
		t.Fatalf("Expected validation error for unknown marker, got %v", err)
	}
}

func TestViewMarker(t *testing.T) {
	a, c, hub := newTestApp(t)
	signUp(t, a, c, "ola")
	m := addMarker(t, a, hub, "Lighthouse")

	hub.Reset()
	if err := a.ViewMarker(context.Background(), m.ID); err != nil {
		t.Fatal(err)
	}
	alert := hub.Dialogs()[0]
	if alert.Kind != dialog.KindAlert || alert.Title != "Lighthouse" || !strings.Contains(alert.Message, "JP20") {
		t.Fatalf("Unexpected alert %#v", alert)
	}
}
