package risk

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no snapshot matches the requested id.
var ErrNotFound = errors.New("risk snapshot not found")

// Repository persists risk snapshots, append-only.
type Repository interface {
	Create(ctx context.Context, s *Snapshot) error
	GetByID(ctx context.Context, id string) (*Snapshot, error)
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Snapshot, int, error)
}
