package draft

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps drafts as JSON values that expire on their own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Save(ctx context.Context, d Draft) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, Key(d.TaskID), b, r.ttl).Err()
}

func (r *RedisStore) Load(ctx context.Context, taskID string) (Draft, bool, error) {
	v, err := r.client.Get(ctx, Key(taskID)).Result()
	if err == redis.Nil {
		return Draft{}, false, nil
	}
	if err != nil {
		return Draft{}, false, err
	}

	var d Draft
	if err := json.Unmarshal([]byte(v), &d); err != nil {
		return Draft{}, false, err
	}
	return d, true, nil
}

func (r *RedisStore) Delete(ctx context.Context, taskID string) error {
	return r.client.Del(ctx, Key(taskID)).Err()
}
