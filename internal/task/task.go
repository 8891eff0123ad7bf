// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

/*
Package task implements the synchronized task collection.

The collection is a read mirror of the remote task store, never the
authority: every mutation goes to the server first and the in-memory state
is updated from the server's response. Offline, mutations are rejected
outright — no queuing, no local-first writes.

Architecture:

  - Engine: Owns the mirror, the load/retry state machine, and the
    reload triggers (realtime change events, visibility regains).
  - Offline gating: Reads return an empty collection immediately;
    writes fail with a typed operation error.
  - Generation counter: Superseded or offline-flipped in-flight fetch
    results are discarded instead of repopulating the collection.
*/
package task

import (
	"time"

	"github.com/nesttask/client/internal/remote"
)

// Status values of a task's lifecycle.
const (
	StatusPending    = "my-tasks"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

// Task is one row of the mirrored collection.
type Task struct {
	ID          string
	OwnerID     string
	SectionID   string
	Name        string
	Category    string
	Description string
	Status      string
	DueAt       time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Overdue reports whether the due date passed without completion.
func (t Task) Overdue() bool {
	return t.Status != StatusCompleted && !t.DueAt.IsZero() && time.Now().After(t.DueAt)
}

func fromRecord(record *remote.TaskRecord) Task {
	return Task{
		ID:          record.ID,
		OwnerID:     record.OwnerID,
		SectionID:   record.SectionID,
		Name:        record.Name,
		Category:    record.Category,
		Description: record.Description,
		Status:      record.Status,
		DueAt:       record.DueAt,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

func toRecord(task Task) *remote.TaskRecord {
	return &remote.TaskRecord{
		ID:          task.ID,
		OwnerID:     task.OwnerID,
		SectionID:   task.SectionID,
		Name:        task.Name,
		Category:    task.Category,
		Description: task.Description,
		Status:      task.Status,
		DueAt:       task.DueAt,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}
