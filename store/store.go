package store

import (
	"context"

	"fila-zero/models"
)

// Mutator applies field changes to an entry inside Update. It runs while the
// implementation holds whatever internal synchronization it needs, so it must
// not call back into the store.
type Mutator func(*models.QueueEntry)

// EntryStore is the single shared mutable resource of the queue engine.
// Implementations must return entries from FindByEstablishment ordered by
// CreatedAt ascending with ID ascending as the tie-break.
//
// Get returns (nil, nil) when the id is unknown; Update returns
// models.ErrNotFound instead, per the operation contracts.
type EntryStore interface {
	Create(ctx context.Context, entry *models.QueueEntry) (string, error)
	Get(ctx context.Context, id string) (*models.QueueEntry, error)
	FindByEstablishment(ctx context.Context, establishmentID string, statuses ...models.Status) ([]*models.QueueEntry, error)
	CountByEstablishment(ctx context.Context, establishmentID string, status models.Status) (int, error)
	Update(ctx context.Context, id string, mutate Mutator) (*models.QueueEntry, error)
}

func statusMatches(entry *models.QueueEntry, statuses []models.Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, status := range statuses {
		if entry.Status == status {
			return true
		}
	}
	return false
}
