// Copyright 2025 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package buildinfo

const (
	// AppName is the friendly name of the app.
	AppName = "MemoryMap"
	// Version is the app's SemVer.
	Version = "0.3.0"
)
