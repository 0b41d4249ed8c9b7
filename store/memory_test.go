package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fila-zero/models"
)

func newWaitingEntry(establishmentID, name string, createdAt time.Time) *models.QueueEntry {
	return &models.QueueEntry{
		EstablishmentID: establishmentID,
		Name:            name,
		Phone:           "555",
		Status:          models.StatusWaiting,
		CreatedAt:       createdAt,
	}
}

func TestMemoryStore_CreateAssignsID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	entry := newWaitingEntry("shop-1", "Ana", time.Now())
	id, err := s.Create(ctx, entry)

	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, entry.ID)
}

func TestMemoryStore_GetUnknownIsSoftMiss(t *testing.T) {
	s := NewMemoryStore()

	entry, err := s.Get(context.Background(), "missing")

	assert.NoError(t, err)
	assert.Nil(t, entry)
}

func TestMemoryStore_FindByEstablishment_OrderAndFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	second := newWaitingEntry("shop-1", "Bruno", base.Add(time.Second))
	first := newWaitingEntry("shop-1", "Ana", base)
	other := newWaitingEntry("shop-2", "Carla", base)

	_, err := s.Create(ctx, second)
	require.NoError(t, err)
	_, err = s.Create(ctx, first)
	require.NoError(t, err)
	_, err = s.Create(ctx, other)
	require.NoError(t, err)

	entries, err := s.FindByEstablishment(ctx, "shop-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Ana", entries[0].Name)
	assert.Equal(t, "Bruno", entries[1].Name)

	// status filter
	_, err = s.Update(ctx, first.ID, func(e *models.QueueEntry) {
		e.Status = models.StatusCalled
	})
	require.NoError(t, err)

	waiting, err := s.FindByEstablishment(ctx, "shop-1", models.StatusWaiting)
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, "Bruno", waiting[0].Name)
}

func TestMemoryStore_FindByEstablishment_TieBreakByID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	createdAt := time.Now()

	// identical timestamps must still come back in a deterministic order
	var ids []string
	for i := 0; i < 5; i++ {
		entry := newWaitingEntry("shop-1", "Client", createdAt)
		id, err := s.Create(ctx, entry)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	entries, err := s.FindByEstablishment(ctx, "shop-1")
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].ID, entries[i].ID)
	}
	_ = ids
}

func TestMemoryStore_CountByEstablishment(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, newWaitingEntry("shop-1", "Client", time.Now()))
		require.NoError(t, err)
	}

	count, err := s.CountByEstablishment(ctx, "shop-1", models.StatusWaiting)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = s.CountByEstablishment(ctx, "shop-1", models.StatusServed)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryStore_Update(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	entry := newWaitingEntry("shop-1", "Ana", time.Now())
	id, err := s.Create(ctx, entry)
	require.NoError(t, err)

	calledAt := time.Now()
	updated, err := s.Update(ctx, id, func(e *models.QueueEntry) {
		e.Status = models.StatusCalled
		e.CalledAt = &calledAt
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCalled, updated.Status)

	stored, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCalled, stored.Status)
	require.NotNil(t, stored.CalledAt)
}

func TestMemoryStore_UpdateUnknownFails(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Update(context.Background(), "missing", func(e *models.QueueEntry) {})

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	entry := newWaitingEntry("shop-1", "Ana", time.Now())
	id, err := s.Create(ctx, entry)
	require.NoError(t, err)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	got.Name = "changed"

	again, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ana", again.Name)
}
