package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// ReplaceDay deletes every entry dated day and inserts entries.
	ReplaceDay(ctx context.Context, day time.Time, entries []*Entry) error
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	ListByDate(ctx context.Context, day time.Time) ([]*Entry, error)
	// UpdateStatus moves an entry from one status to another and binds
	// patientID when non-nil. It reports false when the entry was not in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, patientID *uuid.UUID) (bool, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	ListByStatus(ctx context.Context, status string, from, to time.Time) ([]*Entry, error)
}

type QueueRepository interface {
	// NextPosition is one past the highest waiting position.
	NextPosition(ctx context.Context) (int, error)
	Create(ctx context.Context, q *QueueEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*QueueEntry, error)
	// ListActive returns the day's waiting and in-treatment entries, those
	// in treatment first, then by position.
	ListActive(ctx context.Context, day time.Time, doctorID *uuid.UUID) ([]*QueueEntry, error)
	// Transition reports false when the entry was not in from.
	Transition(ctx context.Context, id uuid.UUID, from, to string, t Transition) (bool, error)
	// Reassign reports false when the entry is no longer waiting or in
	// treatment.
	Reassign(ctx context.Context, id, doctorID uuid.UUID, doctorName string) (bool, error)
	CountByStatus(ctx context.Context, day time.Time) (map[string]int, error)
}
