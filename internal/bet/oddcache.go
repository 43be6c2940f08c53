package bet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OddSnapshot é a visão em cache de um odd, usada como pré-checagem na
// colocação. A leitura autoritativa continua sendo a da transação.
type OddSnapshot struct {
	ID        int64  `json:"id"`
	MatchID   int64  `json:"match_id"`
	Base      string `json:"base"`
	Condition string `json:"condition"`
	Value1    string `json:"value1"`
	Value2    string `json:"value2"`
	IsActive  bool   `json:"is_active"`
}

// OddCache guarda snapshots de odds no Redis.
// Chave "odd:{id}" => JSON do snapshot.
type OddCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewOddCache(rdb *redis.Client) *OddCache {
	return &OddCache{rdb: rdb, ttl: 10 * time.Minute}
}

func (c *OddCache) key(oddID int64) string { return fmt.Sprintf("odd:%d", oddID) }

func (c *OddCache) Get(ctx context.Context, oddID int64) (*OddSnapshot, error) {
	val, err := c.rdb.Get(ctx, c.key(oddID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap OddSnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *OddCache) Set(ctx context.Context, odd Odd) error {
	snap := OddSnapshot{
		ID:        odd.ID,
		MatchID:   odd.MatchID,
		Base:      odd.Base,
		Condition: odd.Condition.String(),
		Value1:    odd.Value1.String(),
		Value2:    odd.Value2.String(),
		IsActive:  odd.IsActive,
	}
	b, _ := json.Marshal(snap)
	return c.rdb.Set(ctx, c.key(odd.ID), b, c.ttl).Err()
}
