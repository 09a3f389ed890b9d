package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
)

// RedisPersister stores the record-set as one hash: field = pattern id,
// value = the serialized LearnedPattern. Selected with
// memory.backend: redis.
type RedisPersister struct {
	client *redis.Client
	key    string
}

func NewRedisPersister(addr, password string, db int, key string) (*RedisPersister, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if key == "" {
		key = "whale:patterns"
	}
	return &RedisPersister{client: client, key: key}, nil
}

func (r *RedisPersister) Load(ctx context.Context) (map[string]*models.LearnedPattern, error) {
	raw, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", r.key, err)
	}
	out := make(map[string]*models.LearnedPattern, len(raw))
	for id, v := range raw {
		var p models.LearnedPattern
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			return nil, fmt.Errorf("parse pattern %s: %w", id, err)
		}
		out[id] = &p
	}
	return out, nil
}

func (r *RedisPersister) Save(ctx context.Context, patterns map[string]*models.LearnedPattern) error {
	if len(patterns) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(patterns))
	for id, p := range patterns {
		b, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal pattern %s: %w", id, err)
		}
		fields[id] = b
	}
	if err := r.client.HSet(ctx, r.key, fields).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisPersister) Close() error { return r.client.Close() }
