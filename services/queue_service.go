package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"fila-zero/models"
	"fila-zero/monitoring"
	"fila-zero/notify"
	"fila-zero/store"
)

// QueueService owns the FIFO and state-machine rules for every
// establishment's queue. Operations on different establishments run fully in
// parallel; operations on the same establishment are serialized through a
// per-establishment mutex, otherwise concurrent enqueues would race on the
// waiting count and hand out duplicate positions.
//
// All mutation goes through here; nothing else writes to the store.
type QueueService struct {
	store   store.EntryStore
	hub     *notify.Hub
	monitor *monitoring.Monitor

	locks sync.Map // establishmentID -> *sync.Mutex
}

func NewQueueService(entryStore store.EntryStore, hub *notify.Hub, monitor *monitoring.Monitor) *QueueService {
	return &QueueService{
		store:   entryStore,
		hub:     hub,
		monitor: monitor,
	}
}

func (s *QueueService) lockFor(establishmentID string) *sync.Mutex {
	value, _ := s.locks.LoadOrStore(establishmentID, &sync.Mutex{})
	return value.(*sync.Mutex)
}

// Enqueue adds a client to the establishment's queue and returns the created
// entry with its assigned position.
func (s *QueueService) Enqueue(ctx context.Context, establishmentID, name, phone string) (*models.QueueEntry, error) {
	establishmentID = strings.TrimSpace(establishmentID)
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)

	if establishmentID == "" || name == "" || phone == "" {
		return nil, fmt.Errorf("%w: establishmentId, name and phone are required", models.ErrInvalidInput)
	}

	mu := s.lockFor(establishmentID)
	mu.Lock()
	defer mu.Unlock()

	waitingCount, err := s.store.CountByEstablishment(ctx, establishmentID, models.StatusWaiting)
	if err != nil {
		return nil, s.storageFailure("enqueue", establishmentID, fmt.Errorf("count waiting entries: %w", err))
	}

	entry := &models.QueueEntry{
		EstablishmentID: establishmentID,
		Name:            name,
		Phone:           phone,
		Status:          models.StatusWaiting,
		Position:        waitingCount + 1,
		CreatedAt:       time.Now(),
	}

	if _, err := s.store.Create(ctx, entry); err != nil {
		return nil, s.storageFailure("enqueue", establishmentID, fmt.Errorf("create entry: %w", err))
	}

	s.monitor.TrackQueueOperation("enqueue", establishmentID, "success")
	s.publishUpdate(ctx, establishmentID, entry)

	return entry.Clone(), nil
}

// GetWaitingQueue returns the establishment's waiting entries in FIFO order
// with positions recomputed as the 1-based rank in that ordering. Stored
// positions are never trusted for live waiting entries.
func (s *QueueService) GetWaitingQueue(ctx context.Context, establishmentID string) ([]*models.QueueEntry, error) {
	entries, err := s.store.FindByEstablishment(ctx, establishmentID, models.StatusWaiting)
	if err != nil {
		return nil, s.storageFailure("get_queue", establishmentID, fmt.Errorf("find waiting entries: %w", err))
	}

	for i, entry := range entries {
		entry.Position = i + 1
	}
	return entries, nil
}

// GetAllEntries returns every entry for the establishment regardless of
// status, in creation order. Waiting entries carry their live position;
// called and served ones keep the position frozen when they left waiting.
func (s *QueueService) GetAllEntries(ctx context.Context, establishmentID string) ([]*models.QueueEntry, error) {
	entries, err := s.store.FindByEstablishment(ctx, establishmentID)
	if err != nil {
		return nil, s.storageFailure("get_all", establishmentID, fmt.Errorf("find entries: %w", err))
	}

	rank := 0
	for _, entry := range entries {
		if entry.Status == models.StatusWaiting {
			rank++
			entry.Position = rank
		}
	}
	return entries, nil
}

// CallNext advances the earliest waiting entry to called and renumbers the
// rest of the queue. Returns (nil, nil) when nobody is waiting; an empty
// queue is not an error.
func (s *QueueService) CallNext(ctx context.Context, establishmentID string) (*models.QueueEntry, error) {
	mu := s.lockFor(establishmentID)
	mu.Lock()
	defer mu.Unlock()

	waiting, err := s.store.FindByEstablishment(ctx, establishmentID, models.StatusWaiting)
	if err != nil {
		return nil, s.storageFailure("call_next", establishmentID, fmt.Errorf("find waiting entries: %w", err))
	}
	if len(waiting) == 0 {
		s.monitor.TrackQueueOperation("call_next", establishmentID, "empty")
		return nil, nil
	}

	now := time.Now()
	called, err := s.store.Update(ctx, waiting[0].ID, func(e *models.QueueEntry) {
		e.Status = models.StatusCalled
		e.CalledAt = &now
		// freeze the position held while leaving the waiting state
		e.Position = 1
	})
	if err != nil {
		return nil, s.storageFailure("call_next", establishmentID, fmt.Errorf("update entry: %w", err))
	}

	if err := s.persistWaitingPositions(ctx, establishmentID); err != nil {
		return nil, s.storageFailure("call_next", establishmentID, err)
	}

	s.monitor.TrackQueueOperation("call_next", establishmentID, "success")
	s.hub.Publish(models.Event{
		Kind:            models.EventQueueCalled,
		EstablishmentID: establishmentID,
		Payload: models.EntryPayload{
			EstablishmentID: establishmentID,
			Entry:           called,
		},
	})
	s.publishUpdate(ctx, establishmentID, nil)

	return called, nil
}

// MarkServed finishes a called entry. Unknown ids and establishment
// mismatches are soft misses returning (nil, nil); serving an entry that is
// not currently called fails with ErrInvalidTransition.
func (s *QueueService) MarkServed(ctx context.Context, establishmentID, entryID string) (*models.QueueEntry, error) {
	mu := s.lockFor(establishmentID)
	mu.Lock()
	defer mu.Unlock()

	entry, err := s.store.Get(ctx, entryID)
	if err != nil {
		return nil, s.storageFailure("mark_served", establishmentID, fmt.Errorf("get entry: %w", err))
	}
	if entry == nil || entry.EstablishmentID != establishmentID {
		s.monitor.TrackQueueOperation("mark_served", establishmentID, "not_found")
		return nil, nil
	}
	if entry.Status != models.StatusCalled {
		s.monitor.TrackQueueOperation("mark_served", establishmentID, "invalid_transition")
		return nil, fmt.Errorf("%w: cannot serve entry in status %q", models.ErrInvalidTransition, entry.Status)
	}

	now := time.Now()
	served, err := s.store.Update(ctx, entryID, func(e *models.QueueEntry) {
		e.Status = models.StatusServed
		e.ServedAt = &now
	})
	if err != nil {
		return nil, s.storageFailure("mark_served", establishmentID, fmt.Errorf("update entry: %w", err))
	}

	if err := s.persistWaitingPositions(ctx, establishmentID); err != nil {
		return nil, s.storageFailure("mark_served", establishmentID, err)
	}

	s.monitor.TrackQueueOperation("mark_served", establishmentID, "success")
	if served.CalledAt != nil {
		s.monitor.TrackServiceDuration(establishmentID, now.Sub(*served.CalledAt))
	}

	s.hub.Publish(models.Event{
		Kind:            models.EventQueueServed,
		EstablishmentID: establishmentID,
		Payload: models.EntryPayload{
			EstablishmentID: establishmentID,
			Entry:           served,
		},
	})
	s.publishUpdate(ctx, establishmentID, nil)

	return served, nil
}

// GetStats aggregates the establishment's current numbers: live waiting
// count, entries served today, and the average called-to-served time in
// minutes across all served entries carrying both timestamps.
func (s *QueueService) GetStats(ctx context.Context, establishmentID string) (models.Stats, error) {
	waitingCount, err := s.store.CountByEstablishment(ctx, establishmentID, models.StatusWaiting)
	if err != nil {
		return models.Stats{}, s.storageFailure("get_stats", establishmentID, fmt.Errorf("count waiting entries: %w", err))
	}
	return s.computeStats(ctx, establishmentID, waitingCount)
}

func (s *QueueService) computeStats(ctx context.Context, establishmentID string, waitingCount int) (models.Stats, error) {
	served, err := s.store.FindByEstablishment(ctx, establishmentID, models.StatusServed)
	if err != nil {
		return models.Stats{}, s.storageFailure("get_stats", establishmentID, fmt.Errorf("find served entries: %w", err))
	}

	midnight := startOfToday()
	servedToday := 0
	qualified := 0
	var total time.Duration

	for _, entry := range served {
		if entry.ServedAt != nil && !entry.ServedAt.Before(midnight) {
			servedToday++
		}
		if entry.CalledAt != nil && entry.ServedAt != nil {
			total += entry.ServedAt.Sub(*entry.CalledAt)
			qualified++
		}
	}

	stats := models.Stats{
		TotalWaiting: waitingCount,
		TotalServed:  servedToday,
	}
	if qualified > 0 {
		stats.AverageTimeMinutes = int(math.Round(total.Minutes() / float64(qualified)))
	}

	s.monitor.SetWaitingDepth(establishmentID, waitingCount)
	return stats, nil
}

// persistWaitingPositions re-assigns 1..N to the waiting entries in FIFO
// order and persists every position that drifted. Runs after each transition
// out of waiting, inside the establishment lock.
func (s *QueueService) persistWaitingPositions(ctx context.Context, establishmentID string) error {
	waiting, err := s.store.FindByEstablishment(ctx, establishmentID, models.StatusWaiting)
	if err != nil {
		return fmt.Errorf("find waiting entries: %w", err)
	}

	for i, entry := range waiting {
		position := i + 1
		if entry.Position == position {
			continue
		}
		if _, err := s.store.Update(ctx, entry.ID, func(e *models.QueueEntry) {
			e.Position = position
		}); err != nil {
			return fmt.Errorf("persist position for %s: %w", entry.ID, err)
		}
	}
	return nil
}

// publishUpdate emits the full waiting queue plus stats. Failures here only
// affect the snapshot event, never the originating mutation, so they are
// logged and swallowed.
func (s *QueueService) publishUpdate(ctx context.Context, establishmentID string, newEntry *models.QueueEntry) {
	queue, err := s.GetWaitingQueue(ctx, establishmentID)
	if err != nil {
		slog.Error("skipping queue update event", "establishmentId", establishmentID, "error", err)
		return
	}
	stats, err := s.computeStats(ctx, establishmentID, len(queue))
	if err != nil {
		slog.Error("skipping queue update event", "establishmentId", establishmentID, "error", err)
		return
	}

	s.hub.Publish(models.Event{
		Kind:            models.EventQueueUpdate,
		EstablishmentID: establishmentID,
		Payload: models.UpdatePayload{
			EstablishmentID: establishmentID,
			Queue:           queue,
			Stats:           stats,
			NewEntry:        newEntry,
		},
	})
}

func (s *QueueService) storageFailure(operation, establishmentID string, err error) error {
	s.monitor.TrackQueueOperation(operation, establishmentID, "error")
	slog.Error("queue operation failed",
		"operation", operation,
		"establishmentId", establishmentID,
		"error", err,
	)
	return err
}

func startOfToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
