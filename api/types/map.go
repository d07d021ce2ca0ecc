package types

type MapOp string

const (
	MapSetView      MapOp = "set_view"
	MapAddMarker    MapOp = "add_marker"
	MapRemoveMarker MapOp = "remove_marker"
	MapBindPopup    MapOp = "bind_popup"
	MapClear        MapOp = "clear"
	MapUserLocation MapOp = "user_location"
)

// MapCommand instructs the Web GUI's map widget.
type MapCommand struct {
	Op     MapOp   `json:"op"`
	Handle string  `json:"handle,omitempty"`
	Lat    float64 `json:"lat,omitempty"`
	Lng    float64 `json:"lng,omitempty"`
	Zoom   int     `json:"zoom,omitempty"`
	Color  string  `json:"color,omitempty"`
	HTML   string  `json:"html,omitempty"`

	// Accuracy radius in meters of a user location.
	Accuracy float64 `json:"accuracy,omitempty"`
}

// MapClick is a click on the map as reported by the Web GUI.
type MapClick struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// UserLocation is the user's position as reported by the browser.
type UserLocation struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"` // Meters
}
