package buildinfo

import "runtime/debug"

// GitRev is the git commit hash that the binary was built at, suffixed with
// "-dirty" if the work tree had local modifications.
var GitRev = func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown origin"
	}
	var rev, dirty string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if len(setting.Value) > 7 {
				rev = setting.Value[:7]
			}
		case "vcs.modified":
			if setting.Value == "true" {
				dirty = "-dirty"
			}
		}
	}
	if rev == "" {
		return "unknown origin"
	}
	return rev + dirty
}()
