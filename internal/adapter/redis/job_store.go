package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"costume-portal/internal/core/domain/models"
	"costume-portal/pkg/config"
)

const jobKeyPrefix = "audit:export:job:"

// NewClient connects to the configured redis instance.
func NewClient(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// JobStore keeps export jobs in redis so status polling stays O(1) and
// survives audit-service restarts. Jobs expire with their artifacts.
type JobStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewJobStore(client *redis.Client, ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &JobStore{client: client, ttl: ttl}
}

func (s *JobStore) Create(ctx context.Context, job models.ExportJob) error {
	return s.set(ctx, job)
}

func (s *JobStore) Update(ctx context.Context, job models.ExportJob) error {
	return s.set(ctx, job)
}

func (s *JobStore) set(ctx context.Context, job models.ExportJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode export job: %w", err)
	}
	if err := s.client.Set(ctx, jobKeyPrefix+job.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store export job: %w", err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, id string) (models.ExportJob, error) {
	data, err := s.client.Get(ctx, jobKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.ExportJob{}, models.ErrorJobNotFound
		}
		return models.ExportJob{}, fmt.Errorf("failed to load export job: %w", err)
	}

	var job models.ExportJob
	if err := json.Unmarshal(data, &job); err != nil {
		return models.ExportJob{}, fmt.Errorf("failed to decode export job: %w", err)
	}
	return job, nil
}
