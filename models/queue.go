package models

import (
	"time"
)

type Status string

const (
	StatusWaiting Status = "waiting"
	StatusCalled  Status = "called"
	StatusServed  Status = "served"
)

// QueueEntry is one client's ticket in one establishment's queue.
// Position is live-recomputed while the entry is waiting and frozen at the
// value it held when it left the waiting state.
type QueueEntry struct {
	ID              string     `json:"id"`
	EstablishmentID string     `json:"establishmentId"`
	Name            string     `json:"name"`
	Phone           string     `json:"phone"`
	Status          Status     `json:"status"`
	Position        int        `json:"position"`
	CreatedAt       time.Time  `json:"createdAt"`
	CalledAt        *time.Time `json:"calledAt"`
	ServedAt        *time.Time `json:"servedAt"`
}

// Clone returns a copy so callers can adjust the live position without
// mutating stored state.
func (e *QueueEntry) Clone() *QueueEntry {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// Stats is derived per establishment, never stored.
type Stats struct {
	TotalWaiting       int `json:"totalWaiting"`
	TotalServed        int `json:"totalServed"`
	AverageTimeMinutes int `json:"averageTime"`
}
