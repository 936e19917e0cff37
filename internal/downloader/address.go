// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloader

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Endpoint is a client address split into its parts
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
	Path   string
}

// ParseAddress splits a bare host, a host:port pair or a full URL. The port
// falls back to 443 for https and to defaultPort otherwise; a zero
// defaultPort leaves it unset.
func ParseAddress(raw string, defaultPort int) Endpoint {
	raw = strings.TrimSpace(raw)

	var ep Endpoint
	authority := raw
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil {
			ep.Scheme = strings.ToLower(u.Scheme)
			ep.Path = strings.TrimSuffix(u.Path, "/")
			authority = u.Host
		} else {
			authority = raw[strings.Index(raw, "://")+3:]
		}
	}
	if i := strings.IndexByte(authority, '/'); i >= 0 {
		if ep.Path == "" {
			ep.Path = strings.TrimSuffix(authority[i:], "/")
		}
		authority = authority[:i]
	}

	host, portStr, err := net.SplitHostPort(authority)
	if err != nil {
		host = strings.Trim(authority, "[]")
	}
	ep.Host = host

	if port, convErr := strconv.Atoi(portStr); err == nil && convErr == nil && port > 0 {
		ep.Port = port
	} else if ep.Scheme == "https" {
		ep.Port = 443
	} else {
		ep.Port = defaultPort
	}

	return ep
}

// TLS reports whether the endpoint must be reached over TLS
func (e Endpoint) TLS() bool {
	return e.Scheme == "https" || e.Port == 443
}

// Authority returns host[:port]
func (e Endpoint) Authority() string {
	if e.Port == 0 {
		if strings.Contains(e.Host, ":") {
			return "[" + e.Host + "]"
		}
		return e.Host
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// URL renders the endpoint with the scheme implied by TLS
func (e Endpoint) URL() *url.URL {
	scheme := "http"
	if e.TLS() {
		scheme = "https"
	}
	return &url.URL{Scheme: scheme, Host: e.Authority(), Path: e.Path}
}
