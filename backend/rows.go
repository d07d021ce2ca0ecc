package backend

import (
	"context"
	"errors"
	"time"

	"github.com/la5nta/memorymap/api/types"
)

const (
	TableProfiles          = "profiles"
	TableMarkers           = "markers"
	TableCollections       = "collections"
	TableMarkerCollections = "marker_collections"
)

func FetchProfile(ctx context.Context, c Client, userID string) (types.Profile, error) {
	var rows []types.Profile
	if err := c.Select(ctx, TableProfiles, []string{"id", "username"}, []Filter{Eq("id", userID)}, &rows); err != nil {
		return types.Profile{}, err
	}
	if len(rows) == 0 {
		return types.Profile{}, ErrNoRows
	}
	return rows[0], nil
}

// EnsureProfile inserts a profile row unless one already exists.
func EnsureProfile(ctx context.Context, c Client, p types.Profile) error {
	err := c.Insert(ctx, TableProfiles, p, nil)
	if errors.Is(err, ErrConflict) {
		return nil
	}
	return err
}

func ListMarkers(ctx context.Context, c Client, userID string) ([]types.Marker, error) {
	var rows []types.Marker
	err := c.Select(ctx, TableMarkers, nil, []Filter{Eq("user_id", userID)}, &rows)
	return rows, err
}

type markerRow struct {
	UserID      string  `json:"user_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Color       string  `json:"color"`
}

// InsertMarker stores m and returns the stored row (with id and created_at).
func InsertMarker(ctx context.Context, c Client, m types.Marker) (types.Marker, error) {
	var rows []types.Marker
	err := c.Insert(ctx, TableMarkers, markerRow{
		UserID:      m.UserID,
		Name:        m.Name,
		Description: m.Description,
		Latitude:    m.Latitude,
		Longitude:   m.Longitude,
		Color:       m.Color,
	}, &rows)
	switch {
	case err != nil:
		return types.Marker{}, err
	case len(rows) == 0:
		return types.Marker{}, ErrNoRows
	}
	if rows[0].CreatedAt.IsZero() {
		rows[0].CreatedAt = time.Now()
	}
	return rows[0], nil
}

type MarkerPatch struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

func UpdateMarker(ctx context.Context, c Client, id string, patch MarkerPatch) error {
	return c.Update(ctx, TableMarkers, patch, []Filter{Eq("id", id)})
}

// DeleteMarker removes the marker and its collection links.
func DeleteMarker(ctx context.Context, c Client, id string) error {
	if err := c.Delete(ctx, TableMarkerCollections, []Filter{Eq("marker_id", id)}); err != nil {
		return err
	}
	return c.Delete(ctx, TableMarkers, []Filter{Eq("id", id)})
}

func ListCollections(ctx context.Context, c Client, userID string) ([]types.Collection, error) {
	var rows []types.Collection
	err := c.Select(ctx, TableCollections, nil, []Filter{Eq("user_id", userID)}, &rows)
	return rows, err
}

func InsertCollection(ctx context.Context, c Client, userID, name string) (types.Collection, error) {
	var rows []types.Collection
	err := c.Insert(ctx, TableCollections, struct {
		UserID string `json:"user_id"`
		Name   string `json:"name"`
	}{userID, name}, &rows)
	switch {
	case err != nil:
		return types.Collection{}, err
	case len(rows) == 0:
		return types.Collection{}, ErrNoRows
	}
	return rows[0], nil
}

func RenameCollection(ctx context.Context, c Client, id, name string) error {
	return c.Update(ctx, TableCollections, struct {
		Name string `json:"name"`
	}{name}, []Filter{Eq("id", id)})
}

// DeleteCollection removes the collection and its marker links. The markers
// themselves are kept.
func DeleteCollection(ctx context.Context, c Client, id string) error {
	if err := c.Delete(ctx, TableMarkerCollections, []Filter{Eq("collection_id", id)}); err != nil {
		return err
	}
	return c.Delete(ctx, TableCollections, []Filter{Eq("id", id)})
}

func LinkMarker(ctx context.Context, c Client, markerID, collectionID string) error {
	return c.Insert(ctx, TableMarkerCollections, types.MarkerCollection{
		MarkerID:     markerID,
		CollectionID: collectionID,
	}, nil)
}

func CollectionMarkerIDs(ctx context.Context, c Client, collectionID string) ([]string, error) {
	var rows []types.MarkerCollection
	if err := c.Select(ctx, TableMarkerCollections, []string{"marker_id", "collection_id"}, []Filter{Eq("collection_id", collectionID)}, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.MarkerID
	}
	return ids, nil
}
