// Package cache keeps recent conversation turns in Redis so prompt assembly
// avoids a database read on every message. Redis is optional: a nil cache
// degrades to repository reads.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"resume-agent/internal/model"
)

type TurnCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewTurnCache(client *redisv9.Client, ttl time.Duration) *TurnCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &TurnCache{client: client, ttl: ttl}
}

func (c *TurnCache) GetTurns(ctx context.Context, sessionID string) ([]model.ChatTurn, bool, error) {
	raw, err := c.client.Get(ctx, c.key(sessionID)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get turns failed: %w", err)
	}

	var turns []model.ChatTurn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached turns failed: %w", err)
	}
	return turns, true, nil
}

func (c *TurnCache) SetTurns(ctx context.Context, sessionID string, turns []model.ChatTurn) error {
	payload, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("marshal turn cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(sessionID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set turns failed: %w", err)
	}
	return nil
}

func (c *TurnCache) DeleteTurns(ctx context.Context, sessionID string) error {
	if err := c.client.Del(ctx, c.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete turns failed: %w", err)
	}
	return nil
}

func (c *TurnCache) key(sessionID string) string {
	return fmt.Sprintf("chat:turns:%s", sessionID)
}
