// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/downloader-exporter/internal/domain"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Service checks basic auth credentials against the configured argon2id
// hash. Verified credentials are remembered by digest so repeated scrapes do
// not pay the hashing cost.
type Service struct {
	username     string
	passwordHash string

	mu       sync.RWMutex
	verified map[[sha256.Size]byte]struct{}
}

// NewService returns nil when web auth is not configured
func NewService(cfg domain.WebConfig) (*Service, error) {
	if cfg.Username == "" {
		return nil, nil
	}
	if err := ValidateHash(cfg.PasswordHash); err != nil {
		return nil, err
	}

	return &Service{
		username:     cfg.Username,
		passwordHash: cfg.PasswordHash,
		verified:     make(map[[sha256.Size]byte]struct{}),
	}, nil
}

// Enabled reports whether requests must authenticate
func (s *Service) Enabled() bool {
	return s != nil
}

// Authenticate checks a username and password pair
func (s *Service) Authenticate(username, password string) error {
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) != 1 {
		return ErrInvalidCredentials
	}

	digest := sha256.Sum256([]byte(username + "\x00" + password))

	s.mu.RLock()
	_, ok := s.verified[digest]
	s.mu.RUnlock()
	if ok {
		return nil
	}

	valid, err := VerifyPassword(password, s.passwordHash)
	if err != nil {
		log.Error().Err(err).Msg("Failed to verify password")
		return err
	}
	if !valid {
		return ErrInvalidCredentials
	}

	s.mu.Lock()
	s.verified[digest] = struct{}{}
	s.mu.Unlock()

	return nil
}
