// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/la5nta/memorymap/app"
	"github.com/la5nta/memorymap/cli"
)

var fOptions struct {
	ConfigPath   string
	LogPath      string
	SessionPath  string
	DatabasePath string
	Debug        bool
}

func optionsSet() *pflag.FlagSet {
	set := pflag.NewFlagSet("options", pflag.ExitOnError)

	set.StringVar(&fOptions.ConfigPath, "config", defaultConfigPath(), "Path to config file.")
	set.StringVar(&fOptions.LogPath, "log", defaultLogPath(), "Path to log file. The file is truncated on each startup.")
	set.StringVar(&fOptions.SessionPath, "session", defaultSessionPath(), "Path to the stored sign-in session.")
	set.StringVar(&fOptions.DatabasePath, "database", "", "Path to the local backend database. Overrides the config value.")
	set.BoolVarP(&fOptions.Debug, "debug", "d", false, "Enable debug output.")

	set.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s is a map of your memories.\n\n", appName())
		fmt.Fprintf(os.Stderr, "Usage:\n  %s [options] command [arguments]\n", os.Args[0])

		fmt.Fprintln(os.Stderr, "\nCommands:")
		for _, cmd := range cli.Commands {
			fmt.Fprintf(os.Stderr, "  %-15s %s\n", cmd.Str, cmd.Desc)
		}

		fmt.Fprintln(os.Stderr, "\nOptions:")
		set.PrintDefaults()
		fmt.Fprintln(os.Stderr, "")
	}
	return set
}

func parseFlags(args []string) (cmd app.Command, arguments []string) {
	var options []string
	var err error
	cmd, options, arguments, err = cli.FindCommand(args)
	if err != nil {
		optionsSet().Usage()
		os.Exit(1)
	}

	optionsSet().Parse(options)

	if len(arguments) == 0 {
		arguments = append(arguments, "")
	}

	switch arguments[0] {
	case "--help", "-help", "help", "-h":
		if cmd.Str != "help" {
			cmd.PrintUsage()
			os.Exit(1)
		}
	}

	return cmd, trimEmpty(arguments)
}

func trimEmpty(args []string) []string {
	if len(args) == 1 && strings.TrimSpace(args[0]) == "" {
		return nil
	}
	return args
}
