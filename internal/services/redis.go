package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatsino/internal/config"

	"github.com/redis/go-redis/v9"
)

type RedisService struct {
	client *redis.Client
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisService{client: client}, nil
}

// NewRedisServiceWithClient wraps an existing client, e.g. one pointed at
// miniredis in tests.
func NewRedisServiceWithClient(client *redis.Client) *RedisService {
	return &RedisService{client: client}
}

// Client exposes the shared connection so the Redis bus can reuse it.
func (s *RedisService) Client() *redis.Client {
	return s.client
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func (s *RedisService) SetTicket(ctx context.Context, ticket string, snapshot []byte, ttl time.Duration) error {
	key := fmt.Sprintf(KeyTicket, ticket)
	if err := s.client.Set(ctx, key, snapshot, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache ticket: %w", err)
	}
	return nil
}

// TakeTicket returns and deletes the cached snapshot in one GETDEL, so two
// concurrent validations of the same ticket cannot both succeed.
func (s *RedisService) TakeTicket(ctx context.Context, ticket string) ([]byte, error) {
	key := fmt.Sprintf(KeyTicket, ticket)
	data, err := s.client.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ticket: %w", err)
	}
	return data, nil
}

func (s *RedisService) CheckRateLimit(ctx context.Context, clientID int64, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, clientID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}
