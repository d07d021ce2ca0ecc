package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/la5nta/memorymap/app"
)

// EnvHandle prints the environment of the app as shell assignments, or the
// value of the variables named in args.
func EnvHandle(_ context.Context, a *app.App, args []string) {
	env := a.Env()
	if len(args) == 0 {
		fmt.Println(strings.Join(env, "\n"))
		return
	}
	values := make(map[string]string, len(env))
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		values[k] = strings.Trim(v, `"`)
	}
	for _, k := range args {
		v, ok := values[k]
		if !ok {
			fmt.Fprintf(os.Stderr, "Unknown variable %q\n", k)
			os.Exit(1)
		}
		fmt.Println(v)
	}
}
