package app

import (
	"os"
	"runtime"

	"github.com/la5nta/memorymap/internal/buildinfo"
	"github.com/la5nta/memorymap/internal/debug"
)

func (a *App) Env() []string {
	username := a.state.Username()
	return []string{
		`MEMMAP_USERNAME="` + username + `"`,
		`MEMMAP_BACKEND_KIND="` + a.config.Backend.Kind + `"`,
		`MEMMAP_BACKEND_URL="` + a.config.Backend.URL + `"`,
		`MEMMAP_VERSION="` + buildinfo.Version + `"`,
		`MEMMAP_ARCH="` + runtime.GOARCH + `"`,
		`MEMMAP_OS="` + runtime.GOOS + `"`,
		`MEMMAP_CONFIG_PATH="` + a.options.ConfigPath + `"`,
		`MEMMAP_LOG_PATH="` + a.options.LogPath + `"`,
		`MEMMAP_SESSION_PATH="` + a.options.SessionPath + `"`,
		`MEMMAP_DATABASE_PATH="` + a.options.DatabasePath + `"`,
		`MEMMAP_REMOTE_TIMEOUT="` + a.config.RemoteTimeout.Std().String() + `"`,
		debug.EnvVar + `="` + os.Getenv(debug.EnvVar) + `"`,
		`MEMMAP_WEB_DEV_ADDR="` + os.Getenv("MEMMAP_WEB_DEV_ADDR") + `"`,
		`MEMMAP_RELEASES_URL="` + os.Getenv("MEMMAP_RELEASES_URL") + `"`,
	}
}
