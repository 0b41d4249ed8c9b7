package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fila-zero/models"
	"fila-zero/utils"
)

// MemoryStore keeps every entry in process memory. It is the default backend
// and the one the engine tests run against.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*models.QueueEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*models.QueueEntry),
	}
}

func (s *MemoryStore) Create(ctx context.Context, entry *models.QueueEntry) (string, error) {
	id, err := utils.GenerateCode(8)
	if err != nil {
		return "", fmt.Errorf("generate entry id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := entry.Clone()
	stored.ID = id
	s.entries[id] = stored
	entry.ID = id

	return id, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	return entry.Clone(), nil
}

func (s *MemoryStore) FindByEstablishment(ctx context.Context, establishmentID string, statuses ...models.Status) ([]*models.QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.QueueEntry
	for _, entry := range s.entries {
		if entry.EstablishmentID != establishmentID {
			continue
		}
		if !statusMatches(entry, statuses) {
			continue
		}
		result = append(result, entry.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (s *MemoryStore) CountByEstablishment(ctx context.Context, establishmentID string, status models.Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, entry := range s.entries {
		if entry.EstablishmentID == establishmentID && entry.Status == status {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, mutate Mutator) (*models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, models.ErrNotFound
	}

	mutate(entry)
	return entry.Clone(), nil
}
