// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

var ErrNoCmd = fmt.Errorf("no cmd")

type Command struct {
	Str        string
	Aliases    []string
	Desc       string
	HandleFunc func(ctx context.Context, app *App, args []string)
	Usage      string
	Options    map[string]string
	Example    string

	LongLived     bool // Runs until interrupted (e.g. http)
	RequiresLogin bool // Exit unless a session is restored on startup
}

// Matches reports whether s is the command's name or one of its aliases.
func (cmd Command) Matches(s string) bool {
	if cmd.Str == s {
		return true
	}
	for _, alias := range cmd.Aliases {
		if alias == s {
			return true
		}
	}
	return false
}

func (cmd Command) PrintUsage() { cmd.WriteUsage(os.Stderr) }

func (cmd Command) WriteUsage(w io.Writer) {
	fmt.Fprintf(w, "%s - %s\n", cmd.Str, cmd.Desc)

	fmt.Fprintf(w, "\nUsage:\n  %s %s\n", cmd.Str, strings.TrimSpace(cmd.Usage))

	if len(cmd.Options) > 0 {
		flags := make([]string, 0, len(cmd.Options))
		for f := range cmd.Options {
			flags = append(flags, f)
		}
		sort.Strings(flags)
		fmt.Fprint(w, "\nOptions:\n")
		for _, f := range flags {
			fmt.Fprintf(w, "   %-17s %s\n", f, cmd.Options[f])
		}
	}

	if cmd.Example != "" {
		fmt.Fprintf(w, "\nExample:\n  %s\n", strings.TrimSpace(cmd.Example))
	}

	fmt.Fprint(w, "\n")
}
