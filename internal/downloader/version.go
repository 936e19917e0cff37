// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloader

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CleanVersion normalizes a client version for the version label.
// "v4.6.3" becomes "4.6.3" and Transmission's "4.0.5 (a6fe2a64aa)" becomes
// "4.0.5". Strings that are not semantic versions are returned trimmed.
func CleanVersion(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	candidate := raw
	if i := strings.IndexAny(candidate, " ("); i > 0 {
		candidate = candidate[:i]
	}

	v, err := semver.NewVersion(candidate)
	if err != nil {
		return raw
	}

	return v.String()
}
