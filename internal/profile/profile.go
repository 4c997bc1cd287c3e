/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package profile stores player names and experience points.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Seednode/wordrace/internal/challenge"
)

// HistoryLimit caps the per-player XP log.
const HistoryLimit = 50

var ErrInvalidAmount = errors.New("xp amount must be positive")

// Grant is one entry of a player's XP log, newest first.
type Grant struct {
	Amount int       `json:"amount"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// RedisStore keeps profiles in Redis hashes.
type RedisStore struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, now: time.Now}
}

// Dial connects to the Redis server at url and checks it responds.
func Dial(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisStore(rdb), nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }

func keyProfile(id string) string { return "profile:" + strings.TrimSpace(id) }
func keyHistory(id string) string { return keyProfile(id) + ":xp" }

// Ensure creates the profile if needed and refreshes its display name.
func (s *RedisStore) Ensure(ctx context.Context, id, name string) (challenge.Player, error) {
	key := keyProfile(id)

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "xp", 0)
		pipe.HSetNX(ctx, key, "created_at", s.now().UTC().Format(time.RFC3339))
		if name != "" {
			pipe.HSet(ctx, key, "name", name)
		} else {
			pipe.HSetNX(ctx, key, "name", id)
		}
		return nil
	})
	if err != nil {
		return challenge.Player{}, fmt.Errorf("ensure profile %s: %w", id, err)
	}

	return s.Get(ctx, id)
}

// Get reads a profile. A missing profile is an empty player with the id set.
func (s *RedisStore) Get(ctx context.Context, id string) (challenge.Player, error) {
	fields, err := s.rdb.HGetAll(ctx, keyProfile(id)).Result()
	if err != nil {
		return challenge.Player{}, fmt.Errorf("load profile %s: %w", id, err)
	}

	p := challenge.Player{ID: id, Name: fields["name"]}
	if raw := fields["xp"]; raw != "" {
		xp, err := strconv.Atoi(raw)
		if err != nil {
			return challenge.Player{}, fmt.Errorf("profile %s has bad xp %q: %w", id, raw, err)
		}
		p.XP = xp
	}

	return p, nil
}

// AddXP adds amount and logs the grant. It returns the new total.
func (s *RedisStore) AddXP(ctx context.Context, id string, amount int, reason string) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	entry, err := json.Marshal(Grant{Amount: amount, Reason: reason, At: s.now().UTC()})
	if err != nil {
		return 0, err
	}

	var total *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		total = pipe.HIncrBy(ctx, keyProfile(id), "xp", int64(amount))
		pipe.LPush(ctx, keyHistory(id), entry)
		pipe.LTrim(ctx, keyHistory(id), 0, HistoryLimit-1)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("add xp to %s: %w", id, err)
	}

	return int(total.Val()), nil
}

// History returns the player's most recent grants, newest first.
func (s *RedisStore) History(ctx context.Context, id string) ([]Grant, error) {
	raw, err := s.rdb.LRange(ctx, keyHistory(id), 0, HistoryLimit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("load xp history %s: %w", id, err)
	}

	out := make([]Grant, 0, len(raw))
	for _, r := range raw {
		var g Grant
		if err := json.Unmarshal([]byte(r), &g); err != nil {
			return nil, fmt.Errorf("decode xp history %s: %w", id, err)
		}
		out = append(out, g)
	}

	return out, nil
}

// MemoryStore is a process-local store for running without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	players map[string]challenge.Player
	history map[string][]Grant
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players: make(map[string]challenge.Player),
		history: make(map[string][]Grant),
		now:     time.Now,
	}
}

func (m *MemoryStore) Ensure(_ context.Context, id, name string) (challenge.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[id]
	if !ok {
		p = challenge.Player{ID: id, Name: id}
	}
	if name != "" {
		p.Name = name
	}
	m.players[id] = p

	return p, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (challenge.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[id]
	if !ok {
		return challenge.Player{ID: id}, nil
	}

	return p, nil
}

func (m *MemoryStore) AddXP(_ context.Context, id string, amount int, reason string) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[id]
	if !ok {
		p = challenge.Player{ID: id, Name: id}
	}
	p.XP += amount
	m.players[id] = p

	h := append([]Grant{{Amount: amount, Reason: reason, At: m.now().UTC()}}, m.history[id]...)
	if len(h) > HistoryLimit {
		h = h[:HistoryLimit]
	}
	m.history[id] = h

	return p.XP, nil
}

func (m *MemoryStore) History(_ context.Context, id string) ([]Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Grant(nil), m.history[id]...), nil
}
