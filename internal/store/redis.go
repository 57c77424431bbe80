package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fightwatch/api/internal/model"
)

// Job records expire from Redis a day after their last write.
const jobTTL = 24 * time.Hour

// RedisStore persists job records in Redis, for deployments where the HTTP
// front end and the analysis workers run in separate processes.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func jobKey(id string) string {
	return fmt.Sprintf("job:%s", id)
}

// Save serializes the record under job:<id>.
func (s *RedisStore) Save(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshalling job: %w", err)
	}
	return s.client.Set(ctx, jobKey(job.ID), data, jobTTL).Err()
}

// Get restores the record, mapping a missing key to ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, id string) (*model.Job, error) {
	data, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshalling job: %w", err)
	}
	return &job, nil
}
