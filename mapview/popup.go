package mapview

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/pd0mz/go-maidenhead"
)

// MarkerInfo is the content of a marker's popup.
type MarkerInfo struct {
	ID          string
	Name        string
	Description string
	Lat, Lng    float64
}

var popupTmpl = template.Must(template.New("popup").Parse(`<div class="marker-popup">
<b>{{.Name}}</b>
{{- if .Description}}<p>{{.Description}}</p>{{end}}
<small>{{.Locator}}</small>
<div class="marker-actions">
<button class="view-marker" data-action="view" data-id="{{.ID}}">View</button>
<button class="edit-marker" data-action="edit" data-id="{{.ID}}">Edit</button>
<button class="delete-marker" data-action="delete" data-id="{{.ID}}">Delete</button>
</div>
</div>`))

var popupPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("button")
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("data-action", "data-id").OnElements("button")
	return p
}()

// PopupHTML renders the popup content for a marker. User supplied text is
// escaped and the result sanitized.
func PopupHTML(m MarkerInfo) string {
	var buf bytes.Buffer
	err := popupTmpl.Execute(&buf, struct {
		MarkerInfo
		Locator string
	}{m, Locator(m.Lat, m.Lng)})
	if err != nil {
		// Only fails on a broken template.
		panic(err)
	}
	return popupPolicy.Sanitize(buf.String())
}

// Locator returns the Maidenhead grid square of the position, or an empty
// string if the position is invalid.
func Locator(lat, lng float64) string {
	square, err := maidenhead.NewPoint(lat, lng).GridSquare()
	if err != nil {
		return ""
	}
	return square
}

// FormatPosition formats a position as decimal degrees with its grid square.
func FormatPosition(lat, lng float64) string {
	s := fmt.Sprintf("%.5f, %.5f", lat, lng)
	if loc := Locator(lat, lng); loc != "" {
		s += " (" + loc + ")"
	}
	return s
}
