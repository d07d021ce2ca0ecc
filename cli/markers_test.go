package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/la5nta/memorymap/api/types"
)

func TestParseLatLng(t *testing.T) {
	tests := []struct {
		in       string
		lat, lng float64
		wantErr  bool
	}{
		{in: "60.3913,5.3221", lat: 60.3913, lng: 5.3221},
		{in: "60.3913, 5.3221", lat: 60.3913, lng: 5.3221},
		{in: "-33.86 151.21", lat: -33.86, lng: 151.21},
		{in: "59.91;10.75", lat: 59.91, lng: 10.75},
		{in: "59.91\t10.75", lat: 59.91, lng: 10.75},
		{in: " 59.91 ,; 10.75 ", lat: 59.91, lng: 10.75},
		{in: "60.39", wantErr: true},
		{in: "north,5", wantErr: true},
		{in: "91,0", wantErr: true},
		{in: "0,-180.5", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		lat, lng, err := parseLatLng(tt.in)
		switch {
		case tt.wantErr && err == nil:
			t.Errorf("parseLatLng(%q): expected error", tt.in)
		case !tt.wantErr && err != nil:
			t.Errorf("parseLatLng(%q): %v", tt.in, err)
		case !tt.wantErr && (lat != tt.lat || lng != tt.lng):
			t.Errorf("parseLatLng(%q) = %v,%v", tt.in, lat, lng)
		}
	}
}

func TestWriteMarkers(t *testing.T) {
	var buf bytes.Buffer
	WriteMarkers(&buf, nil)
	if got := buf.String(); got != "No markers.\n" {
		t.Fatalf("unexpected output for no markers: %q", got)
	}

	buf.Reset()
	WriteMarkers(&buf, []types.Marker{
		{ID: "1", Name: "Fløyen", Latitude: 60.3947, Longitude: 5.3447, Color: "#FF0000"},
		{ID: "2", Name: "Ulriken", Latitude: 60.3775, Longitude: 5.3869, Color: "#00FF00", Description: "Top"},
	})
	out := buf.String()
	for _, want := range []string{"Name", "Fløyen", "Ulriken", "#00FF00", "Top", "JP20"} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q:\n%s", want, out)
		}
	}
}

func TestWriteCollectionsMarksSelected(t *testing.T) {
	var buf bytes.Buffer
	WriteCollections(&buf, []types.Collection{
		{ID: "a", Name: "Trips"},
		{ID: "b", Name: "Holidays"},
	}, "b")
	for _, line := range strings.Split(buf.String(), "\n") {
		switch {
		case strings.Contains(line, "Holidays") && !strings.Contains(line, "*"):
			t.Errorf("selected collection not marked: %q", line)
		case strings.Contains(line, "Trips") && strings.Contains(line, "*"):
			t.Errorf("unselected collection marked: %q", line)
		}
	}
}
