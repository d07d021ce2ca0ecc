package releases

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewerThan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag_name": "v1.2.0", "html_url": "https://example.com/v1.2.0"}`))
	}))
	defer srv.Close()

	tests := []struct {
		current string
		newer   bool
	}{
		{"1.1.9", true},
		{"1.2.0", false},
		{"v1.3.0", false},
	}
	for _, tt := range tests {
		got, err := NewerThan(context.Background(), srv.URL, tt.current)
		if err != nil {
			t.Fatalf("%s: %v", tt.current, err)
		}
		if (got != nil) != tt.newer {
			t.Errorf("%s: expected newer=%t, got %#v", tt.current, tt.newer, got)
		}
		if got != nil && (got.Version != "v1.2.0" || got.ReleaseURL != "https://example.com/v1.2.0") {
			t.Errorf("Unexpected release %#v", got)
		}
	}
}

func TestGetLatestVersionErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/empty":
			w.Write([]byte(`{}`))
		default:
			http.Error(w, "nope", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	for _, path := range []string{"/empty", "/missing"} {
		if _, err := GetLatestVersion(context.Background(), srv.URL+path); err == nil {
			t.Errorf("%s: expected error", path)
		}
	}
}
