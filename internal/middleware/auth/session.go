// Package auth resolves the acting user for job log entries. Session
// management itself belongs to the excluded auth service; this package only
// consults an injected session store keyed by opaque bearer tokens.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("session not found")

type Session struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type SessionStore interface {
	Find(ctx context.Context, token string) (*Session, error)
}

// MemoryStore is the single-process session store. Put exists for tests and
// local setups where the auth collaborator shares the process.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Put(token string, s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = s
}

func (m *MemoryStore) Find(_ context.Context, token string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

// RedisStore reads sessions written by the auth service, allowing multiple
// backend instances to share one session space.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr, password string) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})}
}

func (r *RedisStore) Find(ctx context.Context, token string) (*Session, error) {
	raw, err := r.client.Get(ctx, "session:"+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("auth: redis session lookup: %w", err)
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("auth: corrupt session payload: %w", err)
	}
	return &s, nil
}
