package buildinfo

import (
	"fmt"
	"runtime"
)

// VersionString returns the app SemVer and git rev plus the Go OS,
// architecture and version.
func VersionString() string {
	return fmt.Sprintf("%s %s/%s - %s",
		VersionStringShort(), runtime.GOOS, runtime.GOARCH, runtime.Version())
}

// VersionStringShort returns the app SemVer and git rev.
func VersionStringShort() string { return fmt.Sprintf("v%s (%s)", Version, GitRev) }

// UserAgent identifies the app in outgoing HTTP requests (release checks
// and the hosted backend).
func UserAgent() string {
	return fmt.Sprintf("%s/%s (%s; %s/%s)", AppName, Version, GitRev, runtime.GOOS, runtime.GOARCH)
}
