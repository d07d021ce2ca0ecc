// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package cfg

import (
	"time"
)

const (
	BackendSupabase = "supabase"
	BackendLocal    = "local"
)

// Duration is a time.Duration represented as a string (e.g. "10s") in the
// config file and environment.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(p []byte) error {
	v, err := time.ParseDuration(string(p))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type Config struct {
	// Address to bind the http server to (e.g. localhost:8080).
	HTTPAddr string `json:"http_addr" envconfig:"HTTP_ADDR"`

	// The auth and data backend.
	Backend BackendConfig `json:"backend"`

	// Initial map view.
	Map MapConfig `json:"map"`

	// Maximum duration of a single backend request.
	RemoteTimeout Duration `json:"remote_timeout" envconfig:"REMOTE_TIMEOUT"`

	// Display duration of success and warning notifications. Errors persist
	// until cleared.
	NotificationDuration Duration `json:"notification_duration" envconfig:"NOTIFICATION_DURATION"`

	// Create the user's profile row on login if it does not exist.
	//
	// Leave disabled when the backend creates profiles (e.g. with a
	// database trigger on sign up).
	ProfileAutoCreate bool `json:"profile_auto_create" envconfig:"PROFILE_AUTO_CREATE"`

	// Do not check for new releases.
	ReleaseCheckDisabled bool `json:"release_check_disabled" envconfig:"RELEASE_CHECK_DISABLED"`

	// Command schedule (cron-like syntax).
	//
	// Examples:
	//   # Reload markers and collections every 10 minutes
	//   "*/10 * * * *": "reload"
	//
	//   # Print the number of markers every hour
	//   "@hourly": "status"
	Schedule map[string]string `json:"schedule" ignored:"true"`
}

type BackendConfig struct {
	// Backend kind: supabase (hosted) or local (embedded database).
	Kind string `json:"kind" envconfig:"KIND"`

	// Project URL of the hosted backend (e.g. https://xyzcompany.supabase.co).
	URL string `json:"url" envconfig:"URL"`

	// The project's public (anon) API key.
	AnonKey string `json:"anon_key" envconfig:"ANON_KEY"`

	// Path to the local database file. Defaults to a file in the data directory.
	DatabasePath string `json:"database_path" envconfig:"DATABASE_PATH"`
}

type MapConfig struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      int     `json:"zoom"`
}

var DefaultConfig = Config{
	HTTPAddr: "localhost:8080",
	Backend: BackendConfig{
		Kind: BackendLocal,
	},
	Map: MapConfig{
		Latitude:  60.3913,
		Longitude: 5.3221,
		Zoom:      11,
	},
	RemoteTimeout:        Duration(10 * time.Second),
	NotificationDuration: Duration(3 * time.Second),
	ProfileAutoCreate:    false,
	Schedule:             map[string]string{},
}
