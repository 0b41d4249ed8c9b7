package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"fila-zero/models"
)

const entriesCollection = "queue_entries"

// PocketBaseStore persists entries in the queue_entries collection, indexed
// by (establishmentId, status). Record ids double as entry ids.
type PocketBaseStore struct {
	app core.App
}

func NewPocketBaseStore(app core.App) *PocketBaseStore {
	return &PocketBaseStore{app: app}
}

func (s *PocketBaseStore) Create(ctx context.Context, entry *models.QueueEntry) (string, error) {
	collection, err := s.app.FindCollectionByNameOrId(entriesCollection)
	if err != nil {
		return "", fmt.Errorf("find collection: %w", err)
	}

	record := core.NewRecord(collection)
	applyEntry(record, entry)

	if err := s.app.Save(record); err != nil {
		return "", fmt.Errorf("save entry: %w", err)
	}

	entry.ID = record.Id
	return record.Id, nil
}

func (s *PocketBaseStore) Get(ctx context.Context, id string) (*models.QueueEntry, error) {
	record, err := s.app.FindRecordById(entriesCollection, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find entry: %w", err)
	}
	return recordToEntry(record), nil
}

func (s *PocketBaseStore) FindByEstablishment(ctx context.Context, establishmentID string, statuses ...models.Status) ([]*models.QueueEntry, error) {
	filter := "establishmentId = {:establishmentId}"
	params := dbx.Params{"establishmentId": establishmentID}

	if len(statuses) > 0 {
		clauses := make([]string, len(statuses))
		for i, status := range statuses {
			key := fmt.Sprintf("status%d", i)
			clauses[i] = fmt.Sprintf("status = {:%s}", key)
			params[key] = string(status)
		}
		filter += " && (" + strings.Join(clauses, " || ") + ")"
	}

	records, err := s.app.FindRecordsByFilter(entriesCollection, filter, "createdAt,id", 0, 0, params)
	if err != nil {
		return nil, fmt.Errorf("find entries: %w", err)
	}

	entries := make([]*models.QueueEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, recordToEntry(record))
	}
	return entries, nil
}

func (s *PocketBaseStore) CountByEstablishment(ctx context.Context, establishmentID string, status models.Status) (int, error) {
	count, err := s.app.CountRecords(entriesCollection, dbx.HashExp{
		"establishmentId": establishmentID,
		"status":          string(status),
	})
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return int(count), nil
}

func (s *PocketBaseStore) Update(ctx context.Context, id string, mutate Mutator) (*models.QueueEntry, error) {
	record, err := s.app.FindRecordById(entriesCollection, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("find entry: %w", err)
	}

	entry := recordToEntry(record)
	mutate(entry)
	applyEntry(record, entry)

	if err := s.app.Save(record); err != nil {
		return nil, fmt.Errorf("save entry: %w", err)
	}
	return entry, nil
}

func applyEntry(record *core.Record, entry *models.QueueEntry) {
	record.Set("establishmentId", entry.EstablishmentID)
	record.Set("name", entry.Name)
	record.Set("phone", entry.Phone)
	record.Set("status", string(entry.Status))
	record.Set("position", entry.Position)
	record.Set("createdAt", entry.CreatedAt)
	if entry.CalledAt != nil {
		record.Set("calledAt", *entry.CalledAt)
	}
	if entry.ServedAt != nil {
		record.Set("servedAt", *entry.ServedAt)
	}
}

func recordToEntry(record *core.Record) *models.QueueEntry {
	entry := &models.QueueEntry{
		ID:              record.Id,
		EstablishmentID: record.GetString("establishmentId"),
		Name:            record.GetString("name"),
		Phone:           record.GetString("phone"),
		Status:          models.Status(record.GetString("status")),
		Position:        record.GetInt("position"),
		CreatedAt:       record.GetDateTime("createdAt").Time(),
	}
	if calledAt := record.GetDateTime("calledAt"); !calledAt.IsZero() {
		t := calledAt.Time()
		entry.CalledAt = &t
	}
	if servedAt := record.GetDateTime("servedAt"); !servedAt.IsZero() {
		t := servedAt.Time()
		entry.ServedAt = &t
	}
	return entry
}
