package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/la5nta/memorymap/api/types"
	"github.com/la5nta/memorymap/backend"
	"github.com/la5nta/memorymap/dialog"
	"github.com/la5nta/memorymap/internal/debug"
)

// LoadCollections reloads the user's collections.
func (a *App) LoadCollections(ctx context.Context) error {
	return a.loadCollections(ctx, a.state.Generation())
}

func (a *App) loadCollections(ctx context.Context, gen uint64) error {
	user := a.state.User()
	if user == nil {
		return ErrNotLoggedIn
	}
	cols, err := remote(ctx, a.remoteTimeout(), "load collections", func(ctx context.Context) ([]types.Collection, error) {
		return backend.ListCollections(ctx, a.backend, user.ID)
	})
	if err != nil {
		return err
	}
	if !a.state.Update(gen, func(s *State) { s.setCollections(cols) }) {
		debug.Printf("Discarding stale collections")
		return nil
	}
	a.hub().UpdateStatus()
	return nil
}

func (a *App) CreateCollection(ctx context.Context, name string) (types.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Collection{}, a.reject(invalid("name", "Collection name cannot be empty."), "Missing name")
	}
	user := a.state.User()
	if user == nil {
		a.alert("No user", "You must be logged in to create a collection")
		return types.Collection{}, ErrNotLoggedIn
	}

	col, err := remote(ctx, a.remoteTimeout(), "create collection", func(ctx context.Context) (types.Collection, error) {
		return backend.InsertCollection(ctx, a.backend, user.ID, name)
	})
	if err != nil {
		a.alert("Error", "Error creating collection: "+userMessage(err))
		return types.Collection{}, err
	}
	a.alert("Success", fmt.Sprintf("Collection %q created successfully!", name))
	if err := a.LoadCollections(ctx); err != nil {
		debug.Printf("Reload after create failed: %v", err)
	}
	return col, nil
}

// SelectCollection toggles the selection of collection id.
func (a *App) SelectCollection(id string) (selected bool, err error) {
	if _, ok := a.state.Collection(id); !ok {
		return false, invalid("collection", "Unknown collection.")
	}
	selected = a.state.Select(id)
	a.hub().UpdateStatus()
	return selected, nil
}

func (a *App) RenameCollection(ctx context.Context, id string) error {
	col, ok := a.state.Collection(id)
	if !ok {
		return invalid("collection", "Unknown collection.")
	}
	name, err := a.dialogs.Prompt(ctx, "Rename collection", "Enter a new name for the collection.", col.Name)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return a.reject(invalid("name", "Collection name cannot be empty."), "Missing name")
	case name == col.Name:
		return nil
	}

	err = exec(ctx, a.remoteTimeout(), "rename collection", func(ctx context.Context) error {
		return backend.RenameCollection(ctx, a.backend, id, name)
	})
	if err != nil {
		a.alert("Error", "Error renaming collection: "+userMessage(err))
		return err
	}
	a.alert("Success", fmt.Sprintf("Collection renamed to %q.", name))
	return a.LoadCollections(ctx)
}

// DeleteCollection deletes the collection after confirmation. Its markers
// are kept.
func (a *App) DeleteCollection(ctx context.Context, id string) error {
	col, ok := a.state.Collection(id)
	if !ok {
		return invalid("collection", "Unknown collection.")
	}
	confirmed, err := a.dialogs.Confirm(ctx, "Delete collection", fmt.Sprintf("Delete collection %q? The markers in it are kept.", col.Name))
	switch {
	case err != nil:
		return err
	case !confirmed:
		return dialog.ErrCancelled
	}

	err = exec(ctx, a.remoteTimeout(), "delete collection", func(ctx context.Context) error {
		return backend.DeleteCollection(ctx, a.backend, id)
	})
	if err != nil {
		a.alert("Error", "Failed to delete collection: "+userMessage(err))
		return err
	}
	a.alert("Success", "Collection deleted successfully.")
	return a.LoadCollections(ctx)
}

// CollectionMarkers returns the loaded markers in collection id.
func (a *App) CollectionMarkers(ctx context.Context, id string) ([]types.Marker, error) {
	if _, ok := a.state.Collection(id); !ok {
		return nil, invalid("collection", "Unknown collection.")
	}
	ids, err := remote(ctx, a.remoteTimeout(), "load collection", func(ctx context.Context) ([]string, error) {
		return backend.CollectionMarkerIDs(ctx, a.backend, id)
	})
	if err != nil {
		return nil, err
	}
	markers := make([]types.Marker, 0, len(ids))
	for _, id := range ids {
		if m, ok := a.state.Marker(id); ok {
			markers = append(markers, m.Marker)
		}
	}
	return markers, nil
}

// ViewCollection shows the names of the markers in collection id.
func (a *App) ViewCollection(ctx context.Context, id string) error {
	markers, err := a.CollectionMarkers(ctx, id)
	if err != nil {
		a.alert("Error", userMessage(err))
		return err
	}
	col, _ := a.state.Collection(id)
	if len(markers) == 0 {
		a.alert(col.Name, "This collection has no markers.")
		return nil
	}
	var b strings.Builder
	for _, m := range markers {
		fmt.Fprintf(&b, "• %s\n", m.Name)
	}
	a.alert(col.Name, strings.TrimSuffix(b.String(), "\n"))
	return nil
}
