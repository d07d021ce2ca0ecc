// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

// A map of your memories: place markers, group them in collections and
// browse them in the web GUI or from the terminal.
package main

import (
	"context"
	"embed"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/la5nta/memorymap/api"
	"github.com/la5nta/memorymap/app"
	"github.com/la5nta/memorymap/cli"
	"github.com/la5nta/memorymap/internal/buildinfo"
	"github.com/la5nta/memorymap/internal/debug"
	"github.com/la5nta/memorymap/internal/directories"
)

//go:embed web/dist
var embeddedFS embed.FS

func init() { api.EmbeddedFS = embeddedFS }

func main() {
	cmd, args := parseFlags(os.Args)

	if fOptions.Debug {
		debug.Enable()
	}

	switch cmd.Str {
	case "help":
		pflag.Usage = optionsSet().Usage
		if len(args) == 0 {
			pflag.Usage()
			return
		}
		cli.HelpHandle(args)
		return
	}

	a := app.New(app.Options{
		ConfigPath:   fOptions.ConfigPath,
		LogPath:      fOptions.LogPath,
		SessionPath:  fOptions.SessionPath,
		DatabasePath: fOptions.DatabasePath,
	})
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reload := make(chan struct{}, 1)
	a.OnReload = func() {
		select {
		case reload <- struct{}{}:
		default:
		}
	}

	// Graceful shutdown by cancelling background context on interrupt.
	//
	// If we have an active dialog we cancel that one first, and the main
	// context on the next interrupt.
	go func() {
		sig := notifySignals()
		for {
			select {
			case s := <-sig:
				if isReload(s) {
					a.Reload()
					continue
				}
				if _, ok := a.Dialogs().Active(); ok {
					log.Println("Interrupted. Closing dialogs...")
					a.Dialogs().ForceClose()
					continue
				}
				log.Println("Got interrupt. Shutting down...")
				cancel()
				return
			case <-reload:
				log.Println("Reloading markers and collections...")
				if err := a.Refresh(ctx); err != nil {
					log.Println(err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	a.Run(ctx, cmd, args)
}

func defaultPath(dir func() string, name string) string { return filepath.Join(dir(), name) }

func appName() string { return buildinfo.AppName }

func defaultConfigPath() string { return defaultPath(directories.ConfigDir, "config.json") }

func defaultLogPath() string { return defaultPath(directories.StateDir, "memorymap.log") }

func defaultSessionPath() string { return defaultPath(directories.StateDir, "session.json") }
