// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/downloader-exporter/internal/auth"
)

// BasicAuth requires HTTP basic credentials when authService is enabled
func BasicAuth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !authService.Enabled() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="downloader-exporter", charset="UTF-8"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if err := authService.Authenticate(username, password); err != nil {
				log.Warn().Str("username", username).Str("remote_addr", r.RemoteAddr).Msg("Invalid credentials")
				w.Header().Set("WWW-Authenticate", `Basic realm="downloader-exporter", charset="UTF-8"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
