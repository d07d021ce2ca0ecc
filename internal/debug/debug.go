package debug

import (
	"log"
	"os"
	"strconv"
)

const (
	EnvVar = "MEMMAP_DEBUG"
	Prefix = "[DEBUG] "
)

var enabled bool

func init() {
	enabled, _ = strconv.ParseBool(os.Getenv(EnvVar))
}

func Enabled() bool { return enabled }

// Enable turns on debug output regardless of the environment.
func Enable() { enabled = true }

func Printf(format string, v ...interface{}) {
	if !enabled {
		return
	}
	log.Printf(Prefix+format, v...)
}
