// Package session answers whether an access token id (jti) is still live.
// The identity provider writes sessions on login and deletes them on
// logout. This service only reads them.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/promoredeem/pkg/config"
)

const liveValue = "active"

var ErrEmptyAccessID = errors.New("access id is required")

// Store is the redis surface sessions need. *redis.Client satisfies it.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker is what the auth middleware depends on.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

type Manager struct {
	store Store
	ttl   time.Duration
}

// NewManager keeps sessions for the lifetime of the access tokens in cfg.
func NewManager(store Store, cfg config.JWTConfig) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	ttl := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if ttl <= 0 {
		return nil, fmt.Errorf("access token ttl must be positive, got %d minutes", cfg.ExpirationMinutes)
	}
	return &Manager{store: store, ttl: ttl}, nil
}

func (m *Manager) key(accessID string) (string, error) {
	id := strings.TrimSpace(accessID)
	if id == "" {
		return "", ErrEmptyAccessID
	}
	return m.store.AccessSessionKey(id), nil
}

func (m *Manager) Register(ctx context.Context, accessID string) error {
	key, err := m.key(accessID)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, liveValue, m.ttl)
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	key, err := m.key(accessID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

// HasSession treats a missing key as revoked. Redis failures surface as
// errors so callers can fail closed.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	key, err := m.key(accessID)
	if err != nil {
		return false, err
	}
	_, err = m.store.Get(ctx, key)
	switch {
	case errors.Is(err, redislib.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("session lookup: %w", err)
	}
	return true, nil
}
