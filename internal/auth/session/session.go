// SPDX-License-Identifier: MIT

// Package session stores refresh-token sessions.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/seedlab/seedlab/internal/config"
)

var ErrNotFound = errors.New("session not found")

// Session is a refresh token grant. ID is the hash of the token handed to the client.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	UserAgent string    `json:"userAgent,omitempty"`
	IP        string    `json:"ip,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// Store persists sessions.
type Store interface {
	Put(ctx context.Context, s Session) error
	// Take returns and removes a session in one step so a refresh token is usable once.
	Take(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
	DeleteUser(ctx context.Context, userID int64) (int, error)
	Purge(ctx context.Context, now time.Time) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// NewToken returns a random opaque refresh token.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken derives the storage id of a refresh token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Open returns the store selected by cfg.
func Open(cfg config.AuthConfig) (Store, error) {
	switch cfg.SessionBackend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "badger":
		return OpenBadgerStore(cfg.SessionPath)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}
