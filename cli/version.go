package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"

	"github.com/la5nta/memorymap/app"
	"github.com/la5nta/memorymap/internal/buildinfo"
	"github.com/la5nta/memorymap/internal/releases"
)

func VersionHandle(ctx context.Context, _ *app.App, args []string) {
	var check bool
	set := pflag.NewFlagSet("version", pflag.ExitOnError)
	set.BoolVarP(&check, "check", "c", false, "Check if new version is available")
	set.Parse(args)

	fmt.Printf("%s %s\n", buildinfo.AppName, buildinfo.VersionString())
	if !check {
		return
	}

	fmt.Println()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	release, err := releases.NewerThan(ctx, releases.URL(), buildinfo.Version)
	switch {
	case err != nil:
		log.Printf("Error checking version: %v", err)
	case release == nil:
		fmt.Println("You are running the latest version!")
	default:
		fmt.Printf("A new version (%s) is available!\nRelease URL: %s\n", release.Version, release.ReleaseURL)
	}
}
