// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

// Package logstore persists terminal and information lines and serves the
// save-information endpoint.
package logstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ditchlabs/ditchterm/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Line kinds accepted by the store
const (
	KindTerminal    = "terminal"
	KindInformation = "information"
)

// ErrInvalidType is returned for a kind other than terminal or information
var ErrInvalidType = errors.New("Invalid type specified")

// Entry is one stored line
type Entry struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Store keeps the most recent lines of each kind
type Store interface {
	Save(ctx context.Context, kind string, e Entry) error
	Recent(ctx context.Context, kind string, n int64) ([]Entry, error)
	Close() error
}

// ValidKind reports whether kind names a stored list
func ValidKind(kind string) bool {
	return kind == KindTerminal || kind == KindInformation
}

//////////////////////////////////////////////////////////////
// Redis
//////////////////////////////////////////////////////////////

// RedisStore keeps each kind in a capped Redis list, newest first
type RedisStore struct {
	client     *redis.Client
	prefix     string
	maxEntries int64
	log        *logrus.Entry
}

// NewRedisStore connects and pings the server
func NewRedisStore(ctx context.Context, cfg config.RedisConfig, log *logrus.Entry) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	log.WithField("addr", cfg.Addr).Info("connected to redis")

	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = config.GetDefaultConfig().Redis.MaxEntries
	}
	return &RedisStore{
		client:     client,
		prefix:     cfg.KeyPrefix,
		maxEntries: maxEntries,
		log:        log,
	}, nil
}

func (s *RedisStore) key(kind string) string {
	if s.prefix == "" {
		return kind
	}
	return s.prefix + ":" + kind
}

// Save pushes e and trims the list to the configured length
func (s *RedisStore) Save(ctx context.Context, kind string, e Entry) error {
	if !ValidKind(kind) {
		return ErrInvalidType
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}

	key := s.key(kind)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, s.maxEntries-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save to %s: %w", key, err)
	}
	return nil
}

// Recent returns up to n entries, newest first
func (s *RedisStore) Recent(ctx context.Context, kind string, n int64) ([]Entry, error) {
	if !ValidKind(kind) {
		return nil, ErrInvalidType
	}
	if n <= 0 {
		return []Entry{}, nil
	}
	raw, err := s.client.LRange(ctx, s.key(kind), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.key(kind), err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			s.log.WithError(err).Warn("skipping malformed entry")
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close closes the client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

//////////////////////////////////////////////////////////////
// Memory
//////////////////////////////////////////////////////////////

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu         sync.Mutex
	lists      map[string][]Entry
	maxEntries int
}

// NewMemoryStore creates a store capped at maxEntries per kind (0 = unbounded)
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		lists:      make(map[string][]Entry),
		maxEntries: maxEntries,
	}
}

// Save appends an entry, dropping the oldest beyond the cap
func (s *MemoryStore) Save(ctx context.Context, kind string, e Entry) error {
	if !ValidKind(kind) {
		return ErrInvalidType
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.lists[kind], e)
	if s.maxEntries > 0 && len(list) > s.maxEntries {
		list = list[len(list)-s.maxEntries:]
	}
	s.lists[kind] = list
	return nil
}

// Recent returns up to n entries, newest first
func (s *MemoryStore) Recent(ctx context.Context, kind string, n int64) ([]Entry, error) {
	if !ValidKind(kind) {
		return nil, ErrInvalidType
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.lists[kind]
	out := make([]Entry, 0, min(int64(len(list)), max(n, 0)))
	for i := len(list) - 1; i >= 0 && int64(len(out)) < n; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
