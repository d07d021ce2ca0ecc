package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/la5nta/memorymap/app"
	"github.com/la5nta/memorymap/cfg"
	"github.com/la5nta/memorymap/internal/editor"
)

func ConfigureHandle(ctx context.Context, a *app.App, args []string) {
	path := a.Options().ConfigPath

	// Ensure config file has been written
	_, err := app.ReadConfig(path)
	if os.IsNotExist(err) {
		err = app.WriteConfig(cfg.DefaultConfig, path)
		if err != nil {
			log.Fatalf("Unable to write default config: %s", err)
		}
	}

	for {
		if err := editor.Open(path); err != nil {
			log.Fatalf("Unable to start editor: %s", err)
		}
		_, err := app.LoadConfig(path, cfg.DefaultConfig)
		if err == nil {
			return
		}
		fmt.Printf("Invalid configuration: %v\n", err)
		if ans := prompt("Edit again?", "y", "n"); !strings.EqualFold(ans, "y") {
			os.Exit(1)
		}
	}
}
