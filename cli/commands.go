package cli

import (
	"github.com/la5nta/memorymap/app"
)

var Commands = []app.Command{
	{
		Str:        "configure",
		Desc:       "Open configuration file for editing.",
		HandleFunc: ConfigureHandle,
	},
	{
		Str:   "interactive",
		Desc:  "Run interactive mode.",
		Usage: "[options]",
		Options: map[string]string{
			"--http, -h": "Start http server for web UI in the background.",
		},
		HandleFunc: InteractiveHandle,
		LongLived:  true,
	},
	{
		Str:   "http",
		Desc:  "Run http server for web UI.",
		Usage: "[options]",
		Options: map[string]string{
			"--addr, -a": "Listen address. Default is localhost:8080.",
		},
		HandleFunc: HTTPHandle,
		LongLived:  true,
	},
	{
		Str:     "signin",
		Aliases: []string{"login"},
		Desc:    "Sign in to your account.",
		Usage:   "[options]",
		Options: map[string]string{
			"--email, -e": "Account email. Prompted for if empty.",
		},
		Example:    ExampleSignIn,
		HandleFunc: SignInHandle,
	},
	{
		Str:   "signup",
		Desc:  "Create a new account.",
		Usage: "[options]",
		Options: map[string]string{
			"--email, -e":    "Account email. Prompted for if empty.",
			"--username, -u": "Display name. Prompted for if empty.",
		},
		HandleFunc: SignUpHandle,
	},
	{
		Str:        "signout",
		Aliases:    []string{"logout"},
		Desc:       "Sign out and forget the stored session.",
		HandleFunc: SignOutHandle,
	},
	{
		Str:        "whoami",
		Desc:       "Print the signed in user.",
		HandleFunc: WhoamiHandle,
	},
	{
		Str:   "markers",
		Desc:  "List your markers.",
		Usage: "[options]",
		Options: map[string]string{
			"--collection, -c": "Only list markers in the given collection (name or id).",
		},
		HandleFunc:    MarkersHandle,
		RequiresLogin: true,
	},
	{
		Str:           "collections",
		Desc:          "List and manage your collections.",
		Usage:         CollectionsUsage,
		Example:       CollectionsExample,
		HandleFunc:    CollectionsHandle,
		RequiresLogin: true,
	},
	{
		Str:   "add-marker",
		Desc:  "Add a marker at the given position.",
		Usage: "[options] latitude,longitude",
		Options: map[string]string{
			"--collection, -c": "Preselected collection (name or id).",
		},
		Example:       ExampleAddMarker,
		HandleFunc:    AddMarkerHandle,
		RequiresLogin: true,
	},
	{
		Str:   "version",
		Desc:  "Print the application version.",
		Usage: "[options]",
		Options: map[string]string{
			"--check, -c": "Check if a new version is available",
		},
		HandleFunc: VersionHandle,
	},
	{
		Str:        "env",
		Desc:       "List environment variables.",
		Usage:      "[variable...]",
		HandleFunc: EnvHandle,
	},
	{
		Str:  "help",
		Desc: "Print detailed help for a given command.",
		// Avoid initialization loop by invoking helpHandler in main
	},
}

func FindCommand(args []string) (cmd app.Command, pre, post []string, err error) {
	cmdMap := make(map[string]app.Command, len(Commands))
	for _, c := range Commands {
		cmdMap[c.Str] = c
		for _, alias := range c.Aliases {
			cmdMap[alias] = c
		}
	}

	for i, arg := range args {
		if cmd, ok := cmdMap[arg]; ok {
			return cmd, args[1:i], args[i+1:], nil
		}
	}
	err = app.ErrNoCmd
	return
}
