package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/bndr/gotabulate"
	"github.com/spf13/pflag"

	"github.com/la5nta/memorymap/api/types"
	"github.com/la5nta/memorymap/app"
	"github.com/la5nta/memorymap/mapview"
)

const (
	CollectionsUsage = `[subcommand] [name or id]

subcommands:
  (none)             List your collections.
  create <name>      Create a new collection.
  select <name>      Toggle the selected collection.
  rename <name>      Rename a collection.
  delete <name>      Delete a collection. Its markers are kept.
  view <name>        List the markers in a collection.
`
	CollectionsExample = `
  collections create Holidays    Create a collection named "Holidays".
  collections delete Holidays    Delete the collection named "Holidays" (after confirmation).
`
	ExampleAddMarker = `
  add-marker 60.3913,5.3221       Add a marker in Bergen.
  add-marker -c Trips 59.91,10.75 Add a marker in Oslo to the "Trips" collection.
  add-marker -- -33.86,151.21     Negative latitudes must follow --.
`
)

func WriteWhoami(w io.Writer, a *app.App) {
	user := a.State().User()
	if user == nil {
		fmt.Fprintln(w, "Not signed in.")
		return
	}
	fmt.Fprintf(w, "%s <%s>\n", a.State().Username(), user.Email)
}

func MarkersHandle(ctx context.Context, a *app.App, args []string) {
	set := pflag.NewFlagSet("markers", pflag.ExitOnError)
	collection := set.StringP("collection", "c", "", "")
	set.Parse(args)

	markers := a.State().Markers()
	if *collection != "" {
		col, ok := findCollection(a, *collection)
		if !ok {
			fmt.Printf("Unknown collection %q.\n", *collection)
			os.Exit(1)
		}
		var err error
		if markers, err = a.CollectionMarkers(ctx, col.ID); err != nil {
			log.Fatal(err)
		}
	}
	WriteMarkers(os.Stdout, markers)
}

// WriteMarkers prints markers as a table.
func WriteMarkers(w io.Writer, markers []types.Marker) {
	if len(markers) == 0 {
		fmt.Fprintln(w, "No markers.")
		return
	}
	rows := make([][]string, len(markers))
	for i, m := range markers {
		var created string
		if !m.CreatedAt.IsZero() {
			created = m.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		rows[i] = []string{
			m.Name,
			mapview.FormatPosition(m.Latitude, m.Longitude),
			m.Color,
			created,
			m.Description,
		}
	}
	t := gotabulate.Create(rows)
	t.SetHeaders([]string{"Name", "Position", "Color", "Created", "Description"})
	t.SetAlign("left")
	t.SetWrapStrings(true)
	t.SetMaxCellSize(40)
	fmt.Fprintln(w, t.Render("simple"))
}

// WriteCollections prints collections as a table, marking the selected one.
func WriteCollections(w io.Writer, cols []types.Collection, selected string) {
	if len(cols) == 0 {
		fmt.Fprintln(w, "No collections.")
		return
	}
	rows := make([][]string, len(cols))
	for i, c := range cols {
		var flags string
		if c.ID == selected {
			flags = "*"
		}
		rows[i] = []string{flags, c.Name, c.ID}
	}
	t := gotabulate.Create(rows)
	t.SetHeaders([]string{"", "Name", "ID"})
	t.SetAlign("left")
	fmt.Fprintln(w, t.Render("simple"))
}

// findCollection looks up a loaded collection by id or (case-insensitive) name.
func findCollection(a *app.App, nameOrID string) (types.Collection, bool) {
	if c, ok := a.State().Collection(nameOrID); ok {
		return c, true
	}
	for _, c := range a.State().Collections() {
		if strings.EqualFold(c.Name, nameOrID) {
			return c, true
		}
	}
	return types.Collection{}, false
}

func CollectionsHandle(ctx context.Context, a *app.App, args []string) {
	cmd, args := shiftArgs(args)
	if cmd == "" {
		WriteCollections(os.Stdout, a.State().Collections(), a.State().SelectedCollection())
		return
	}
	name := strings.TrimSpace(strings.Join(args, " "))

	presenter := presentInTerminal(a)
	defer presenter.Close()

	var err error
	switch cmd {
	case "create":
		_, err = a.CreateCollection(ctx, name)
	case "select", "rename", "delete", "view":
		col, ok := findCollection(a, name)
		if !ok {
			fmt.Printf("Unknown collection %q.\n", name)
			os.Exit(1)
		}
		switch cmd {
		case "select":
			var selected bool
			if selected, err = a.SelectCollection(col.ID); err == nil && selected {
				fmt.Printf("Selected %q.\n", col.Name)
			} else if err == nil {
				fmt.Printf("Deselected %q.\n", col.Name)
			}
		case "rename":
			err = a.RenameCollection(ctx, col.ID)
		case "delete":
			err = a.DeleteCollection(ctx, col.ID)
		case "view":
			err = a.ViewCollection(ctx, col.ID)
		}
	default:
		fmt.Println("Unknown subcommand, try 'help collections'.")
		os.Exit(1)
	}
	presenter.Wait(ctx)
	if err != nil && !app.IsCancelled(err) {
		os.Exit(1)
	}
}

func AddMarkerHandle(ctx context.Context, a *app.App, args []string) {
	set := pflag.NewFlagSet("add-marker", pflag.ExitOnError)
	collection := set.StringP("collection", "c", "", "")
	set.Parse(args)

	lat, lng, err := parseLatLng(strings.Join(set.Args(), " "))
	if err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}
	if *collection != "" {
		col, ok := findCollection(a, *collection)
		if !ok {
			fmt.Printf("Unknown collection %q.\n", *collection)
			os.Exit(1)
		}
		if a.State().SelectedCollection() != col.ID {
			a.SelectCollection(col.ID)
		}
	}

	presenter := presentInTerminal(a)
	defer presenter.Close()

	_, err = a.HandleMapClick(ctx, lat, lng)
	presenter.Wait(ctx)
	if err != nil && !app.IsCancelled(err) {
		os.Exit(1)
	}
}

// parseLatLng parses a latitude/longitude pair in decimal degrees,
// separated by comma, semicolon or whitespace.
func parseLatLng(s string) (lat, lng float64, err error) {
	parts := strings.FieldsFunc(s, func(c rune) bool {
		return unicode.IsSpace(c) || c == ',' || c == ';'
	})
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected latitude,longitude, got %q", s)
	}
	if lat, err = strconv.ParseFloat(parts[0], 64); err != nil {
		return 0, 0, fmt.Errorf("invalid latitude: %w", err)
	}
	if lng, err = strconv.ParseFloat(parts[1], 64); err != nil {
		return 0, 0, fmt.Errorf("invalid longitude: %w", err)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, fmt.Errorf("position %s out of range", s)
	}
	return lat, lng, nil
}
