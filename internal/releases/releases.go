// Copyright 2025 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

// Package releases looks up the latest published release of the app.
package releases

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/hashicorp/go-version"

	"github.com/la5nta/memorymap/internal/buildinfo"
)

const DefaultURL = "https://api.github.com/repos/la5nta/memorymap/releases/latest"

// URL returns the release endpoint, overridden by MEMMAP_RELEASES_URL.
func URL() string {
	if v := os.Getenv("MEMMAP_RELEASES_URL"); v != "" {
		return v
	}
	return DefaultURL
}

type LatestRelease struct {
	Version    string `json:"version"`
	ReleaseURL string `json:"release_url"`
}

// GetLatestVersion retrieves the latest release info from url.
func GetLatestVersion(ctx context.Context, url string) (*LatestRelease, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("getting latest version: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	// Accept both our own format and the GitHub releases API.
	var body struct {
		LatestRelease
		TagName string `json:"tag_name"`
		HTMLURL string `json:"html_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	release := body.LatestRelease
	if release.Version == "" {
		release.Version = body.TagName
	}
	if release.ReleaseURL == "" {
		release.ReleaseURL = body.HTMLURL
	}
	if release.Version == "" {
		return nil, fmt.Errorf("no version in response")
	}
	return &release, nil
}

// NewerThan returns the latest release if it is newer than current, or nil
// if current is up to date.
func NewerThan(ctx context.Context, url, current string) (*LatestRelease, error) {
	release, err := GetLatestVersion(ctx, url)
	if err != nil {
		return nil, err
	}
	currentVer, err := version.NewVersion(current)
	if err != nil {
		return nil, fmt.Errorf("invalid current version format: %w", err)
	}
	latestVer, err := version.NewVersion(release.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid latest version format: %w", err)
	}
	if currentVer.Compare(latestVer) >= 0 {
		return nil, nil
	}
	return release, nil
}
