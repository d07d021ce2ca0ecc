package local

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/la5nta/memorymap/api/types"
	"github.com/la5nta/memorymap/backend"
)

func openTest(t *testing.T) *Client {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "memorymap.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Wait(); c.Close() })
	return c
}

func signUp(t *testing.T, c *Client, email, username string) backend.User {
	t.Helper()
	u, err := c.SignUp(context.Background(), email, "secret1", map[string]string{"username": username})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	return u
}

func TestSignUpValidation(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	if _, err := c.SignUp(ctx, "not-an-email", "secret1", nil); err == nil {
		t.Error("Expected error for malformed email")
	}
	if _, err := c.SignUp(ctx, "ola@example.com", "123", nil); err == nil {
		t.Error("Expected error for short password")
	}
	signUp(t, c, "ola@example.com", "ola")
	_, err := c.SignUp(ctx, "OLA@example.com", "secret1", nil)
	if !errors.Is(err, backend.ErrConflict) {
		t.Fatalf("Expected ErrConflict for duplicate email, got %v", err)
	}
}

func TestAuthLifecycle(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	var events []backend.Event
	c.OnSessionChange(func(e backend.Event, _ *backend.Session) { events = append(events, e) })

	u := signUp(t, c, "ola@example.com", "ola")
	if err := c.SignOut(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SignInWithPassword(ctx, "ola@example.com", "wrong1"); !errors.Is(err, backend.ErrInvalidCredentials) {
		t.Fatalf("Expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := c.SignInWithPassword(ctx, "nobody@example.com", "secret1"); !errors.Is(err, backend.ErrInvalidCredentials) {
		t.Fatalf("Expected ErrInvalidCredentials for unknown user, got %v", err)
	}
	s, err := c.SignInWithPassword(ctx, "ola@example.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if s.User.ID != u.ID || s.User.Metadata["username"] != "ola" {
		t.Fatalf("Unexpected session user: %#v", s.User)
	}

	c.Wait()
	want := []backend.Event{backend.EventSignedIn, backend.EventSignedOut, backend.EventSignedIn}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Fatalf("Events mismatch (-want +got):\n%s", diff)
	}

	p, err := backend.FetchProfile(ctx, c, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.Username != "ola" {
		t.Fatalf("Expected profile created on sign up, got %#v", p)
	}
}

func TestSessionSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memorymap.db")
	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	u, err := c.SignUp(context.Background(), "ola@example.com", "secret1", nil)
	if err != nil {
		t.Fatal(err)
	}
	c.Wait()
	c.Close()

	c, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	s, _ := c.GetSession(context.Background())
	if s == nil || s.User.ID != u.ID {
		t.Fatalf("Session not restored: %#v", s)
	}
}

func TestRequiresSession(t *testing.T) {
	c := openTest(t)
	_, err := backend.ListMarkers(context.Background(), c, "someone")
	if !errors.Is(err, backend.ErrNotAuthenticated) {
		t.Fatalf("Expected ErrNotAuthenticated, got %v", err)
	}
}

func TestMarkersAndCollections(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()
	u := signUp(t, c, "ola@example.com", "ola")

	m, err := backend.InsertMarker(ctx, c, types.Marker{
		UserID:      u.ID,
		Name:        "Lighthouse",
		Description: "By the sea",
		Latitude:    60.3913,
		Longitude:   5.3221,
		Color:       "#FF0000",
	})
	if err != nil {
		t.Fatal(err)
	}
	if m.ID == "" || m.CreatedAt.IsZero() {
		t.Fatalf("Expected generated id and timestamp, got %#v", m)
	}

	col, err := backend.InsertCollection(ctx, c, u.ID, "Trips")
	if err != nil {
		t.Fatal(err)
	}
	if err := backend.LinkMarker(ctx, c, m.ID, col.ID); err != nil {
		t.Fatal(err)
	}
	if err := backend.LinkMarker(ctx, c, m.ID, col.ID); !errors.Is(err, backend.ErrConflict) {
		t.Fatalf("Expected ErrConflict for duplicate link, got %v", err)
	}
	if err := backend.LinkMarker(ctx, c, m.ID, "no-such-collection"); !errors.Is(err, backend.ErrConflict) {
		t.Fatalf("Expected ErrConflict for dangling link, got %v", err)
	}

	ids, err := backend.CollectionMarkerIDs(ctx, c, col.ID)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{m.ID}, ids); diff != "" {
		t.Fatalf("Marker ids mismatch (-want +got):\n%s", diff)
	}

	if err := backend.UpdateMarker(ctx, c, m.ID, backend.MarkerPatch{Name: "Old lighthouse", Description: "", Color: "#0000FF"}); err != nil {
		t.Fatal(err)
	}
	markers, err := backend.ListMarkers(ctx, c, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	m.Name, m.Description, m.Color = "Old lighthouse", "", "#0000FF"
	if diff := cmp.Diff([]types.Marker{m}, markers, cmpopts.EquateApproxTime(0)); diff != "" {
		t.Fatalf("Markers mismatch (-want +got):\n%s", diff)
	}

	if err := backend.RenameCollection(ctx, c, col.ID, "Holidays"); err != nil {
		t.Fatal(err)
	}
	if err := backend.DeleteCollection(ctx, c, col.ID); err != nil {
		t.Fatal(err)
	}
	cols, err := backend.ListCollections(ctx, c, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 0 {
		t.Fatalf("Expected no collections, got %#v", cols)
	}
	// Markers outlive their collections.
	if markers, _ := backend.ListMarkers(ctx, c, u.ID); len(markers) != 1 {
		t.Fatalf("Expected marker to survive collection delete, got %#v", markers)
	}

	if err := backend.DeleteMarker(ctx, c, m.ID); err != nil {
		t.Fatal(err)
	}
	if markers, _ := backend.ListMarkers(ctx, c, u.ID); len(markers) != 0 {
		t.Fatalf("Expected no markers, got %#v", markers)
	}
}

func TestRowScoping(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	ola := signUp(t, c, "ola@example.com", "ola")
	if _, err := backend.InsertCollection(ctx, c, ola.ID, "Ola's"); err != nil {
		t.Fatal(err)
	}
	kari := signUp(t, c, "kari@example.com", "kari")

	cols, err := backend.ListCollections(ctx, c, ola.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 0 {
		t.Fatalf("Rows of another user visible: %#v", cols)
	}
	if _, err := backend.InsertCollection(ctx, c, ola.ID, "Sneaky"); err == nil {
		t.Fatal("Expected insert on behalf of another user to fail")
	}
	if _, err := backend.InsertCollection(ctx, c, kari.ID, "Kari's"); err != nil {
		t.Fatal(err)
	}
}

func TestUnknownTableAndColumn(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()
	signUp(t, c, "ola@example.com", "ola")

	var rows []map[string]interface{}
	if err := c.Select(ctx, "users", nil, nil, &rows); err == nil {
		t.Error("Expected error selecting from a private table")
	}
	if err := c.Select(ctx, backend.TableMarkers, []string{"password_hash"}, nil, &rows); err == nil {
		t.Error("Expected error for unknown column")
	}
	if err := c.Delete(ctx, backend.TableMarkers, []backend.Filter{backend.Eq("1=1; --", "x")}); err == nil {
		t.Error("Expected error for unknown filter column")
	}
}
