package assessment

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no record matches the requested id.
var ErrNotFound = errors.New("assessment not found")

// Repository persists assessment records. Records are append-only; there are
// no update or delete operations.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, limit, offset int) ([]*Record, int, error)
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Record, int, error)
}
