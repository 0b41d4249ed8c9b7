package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fila-zero/models"
	"fila-zero/utils"
)

// RedisStore persists entries in Redis: the entry JSON lives under
// entry:<id> and every establishment keeps a sorted set of entry ids scored
// by CreatedAt. Equal scores fall back to lexicographic member order, which
// gives the id tie-break for free.
//
// All commands run through a circuit breaker so a Redis outage fails fast
// instead of stacking up blocked requests.
type RedisStore struct {
	client  *redis.Client
	breaker *utils.CircuitBreaker

	// replaced in tests to make expectations deterministic
	newID func() (string, error)
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:  client,
		breaker: utils.NewCircuitBreaker("redis-store"),
		newID:   func() (string, error) { return utils.GenerateCode(8) },
	}
}

func entryKey(id string) string {
	return fmt.Sprintf("entry:%s", id)
}

func queueKey(establishmentID string) string {
	return fmt.Sprintf("queue:entries:%s", establishmentID)
}

func (s *RedisStore) Create(ctx context.Context, entry *models.QueueEntry) (string, error) {
	id, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("generate entry id: %w", err)
	}

	stored := entry.Clone()
	stored.ID = id

	data, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("marshal entry: %w", err)
	}

	_, err = s.breaker.Execute(ctx, func() (any, error) {
		if err := s.client.Set(ctx, entryKey(id), data, 0).Err(); err != nil {
			return nil, err
		}
		return nil, s.client.ZAdd(ctx, queueKey(stored.EstablishmentID), redis.Z{
			Score:  float64(stored.CreatedAt.UnixNano()),
			Member: id,
		}).Err()
	})
	if err != nil {
		return "", fmt.Errorf("create entry: %w", err)
	}

	entry.ID = id
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.QueueEntry, error) {
	result, err := s.breaker.Execute(ctx, func() (any, error) {
		data, err := s.client.Get(ctx, entryKey(id)).Result()
		if err == redis.Nil {
			return nil, nil
		}
		return data, err
	})
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	if result == nil {
		return nil, nil
	}

	var entry models.QueueEntry
	if err := json.Unmarshal([]byte(result.(string)), &entry); err != nil {
		return nil, fmt.Errorf("unmarshal entry: %w", err)
	}
	return &entry, nil
}

func (s *RedisStore) FindByEstablishment(ctx context.Context, establishmentID string, statuses ...models.Status) ([]*models.QueueEntry, error) {
	result, err := s.breaker.Execute(ctx, func() (any, error) {
		ids, err := s.client.ZRange(ctx, queueKey(establishmentID), 0, -1).Result()
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []any{}, nil
		}

		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = entryKey(id)
		}
		return s.client.MGet(ctx, keys...).Result()
	})
	if err != nil {
		return nil, fmt.Errorf("find entries: %w", err)
	}

	var entries []*models.QueueEntry
	for _, raw := range result.([]any) {
		data, ok := raw.(string)
		if !ok {
			// id in the set but entry key missing, skip
			continue
		}

		var entry models.QueueEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal entry: %w", err)
		}
		if !statusMatches(&entry, statuses) {
			continue
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

func (s *RedisStore) CountByEstablishment(ctx context.Context, establishmentID string, status models.Status) (int, error) {
	entries, err := s.FindByEstablishment(ctx, establishmentID, status)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (s *RedisStore) Update(ctx context.Context, id string, mutate Mutator) (*models.QueueEntry, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, models.ErrNotFound
	}

	mutate(entry)

	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("marshal entry: %w", err)
	}

	_, err = s.breaker.Execute(ctx, func() (any, error) {
		return nil, s.client.Set(ctx, entryKey(id), data, 0).Err()
	})
	if err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}
	return entry, nil
}
