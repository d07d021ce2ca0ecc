package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/la5nta/memorymap/api"
	"github.com/la5nta/memorymap/app"
	"github.com/peterh/liner"

	"github.com/spf13/pflag"
)

func InteractiveHandle(ctx context.Context, a *app.App, args []string) {
	var http string
	set := pflag.NewFlagSet("interactive", pflag.ExitOnError)
	set.StringVarP(&http, "http", "h", "", "HTTP listen address")
	set.Lookup("http").NoOptDefVal = a.Config().HTTPAddr
	set.Parse(args)

	presenter := presentInTerminal(a)
	defer presenter.Close()

	if http == "" {
		Interactive(ctx, a)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := api.ListenAndServe(ctx, a, http); err != nil {
			log.Println(err)
		}
	}()
	time.Sleep(time.Second)
	Interactive(ctx, a)
}

func Interactive(ctx context.Context, a *app.App) {
	scheduleLoop(ctx, a)

	line := liner.NewLiner()
	defer line.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			str, err := line.Prompt(getPrompt(a))
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return
			}
			if str == "" {
				continue
			}
			line.AppendHistory(str)

			if str[0] == '#' {
				continue
			}

			if quit := execCmd(ctx, a, str); quit {
				break
			}
		}
	}()
	select {
	case <-ctx.Done():
	case <-done:
	}
}

func execCmd(ctx context.Context, a *app.App, line string) (quit bool) {
	cmd, param := parseCommand(line)
	switch cmd {
	case "status":
		printStatus(a)
	case "whoami":
		WriteWhoami(os.Stdout, a)
	case "reload":
		if err := a.Refresh(ctx); err != nil {
			log.Printf("Unable to reload: %v", err)
		}
	case "markers":
		WriteMarkers(os.Stdout, a.State().Markers())
	case "collections":
		WriteCollections(os.Stdout, a.State().Collections(), a.State().SelectedCollection())
	case "select":
		col, ok := findCollection(a, param)
		if !ok {
			fmt.Printf("Unknown collection %q.\n", param)
			return
		}
		if selected, _ := a.SelectCollection(col.ID); selected {
			fmt.Printf("Selected %q.\n", col.Name)
		} else {
			fmt.Printf("Deselected %q.\n", col.Name)
		}
	case "add":
		lat, lng, err := parseLatLng(param)
		if err != nil {
			fmt.Println(err)
			return
		}
		if _, err := a.HandleMapClick(ctx, lat, lng); err != nil && !app.IsCancelled(err) {
			log.Println(err)
		}
		waitDialogs(ctx, a.Dialogs())
	case "signout":
		if err := a.SignOut(ctx); err != nil {
			log.Println(err)
		}
	case "debug":
		fmt.Println("Number of goroutines:", runtime.NumGoroutine())
	case "q", "quit":
		return true
	case "":
		return
	default:
		printInteractiveUsage()
	}
	return
}

func printInteractiveUsage() {
	cmds := []string{
		"status                     Print session status.",
		"whoami                     Print the signed in user.",
		"reload                     Reload collections and markers.",
		"markers                    List markers.",
		"collections                List collections.",
		"select  <collection>       Toggle the selected collection.",
		"add     <lat>,<lng>        Add a marker at the given position.",
		"signout                    Sign out.",
		"quit                       Exit.",
	}
	fmt.Println("Commands: ")
	for _, cmd := range cmds {
		fmt.Printf(" %s\n", cmd)
	}
}

func printStatus(a *app.App) {
	s := a.GetStatus()
	fmt.Printf("%s: %d markers, %d collections\n", s.StatusText, s.NumMarkers, s.NumCollections)
	if col, ok := a.State().Collection(s.SelectedCollection); ok {
		fmt.Printf("Selected collection: %s\n", col.Name)
	}
	if len(s.HTTPClients) > 0 {
		fmt.Printf("Web clients: %s\n", strings.Join(s.HTTPClients, ", "))
	}
}

func getPrompt(a *app.App) string {
	var buf bytes.Buffer

	if name := a.State().Username(); name != "" {
		fmt.Fprint(&buf, name)
	}
	if col, ok := a.State().Collection(a.State().SelectedCollection()); ok {
		fmt.Fprintf(&buf, "[%s]", col.Name)
	}

	fmt.Fprint(&buf, "> ")
	return buf.String()
}

func parseCommand(str string) (mode, param string) {
	parts := strings.SplitN(str, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}
