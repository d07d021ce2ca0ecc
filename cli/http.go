package cli

import (
	"context"
	"log"
	"os"

	"github.com/la5nta/memorymap/api"
	"github.com/la5nta/memorymap/app"

	"github.com/spf13/pflag"
)

func HTTPHandle(ctx context.Context, a *app.App, args []string) {
	addr := a.Config().HTTPAddr

	set := pflag.NewFlagSet("http", pflag.ExitOnError)
	set.StringVarP(&addr, "addr", "a", addr, "Listen address.")
	set.Parse(args)

	if addr == "" {
		set.Usage()
		os.Exit(1)
	}

	scheduleLoop(ctx, a)

	if err := api.ListenAndServe(ctx, a, addr); err != nil {
		log.Println(err)
	}
}
