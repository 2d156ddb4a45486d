package risk

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrMissingPatientID rejects an evaluation without a subject.
var ErrMissingPatientID = errors.New("patient_id is required")

// Service evaluates risk and persists snapshots.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Evaluate runs the rule engine and stores a snapshot.
func (s *Service) Evaluate(ctx context.Context, in Input) (*Snapshot, error) {
	if in.PatientID == "" {
		return nil, ErrMissingPatientID
	}
	snap := &Snapshot{
		ID:        uuid.NewString(),
		PatientID: in.PatientID,
		Vitals:    in.Vitals,
		Symptoms:  in.Symptoms,
		Result:    Evaluate(in),
		CreatedAt: time.Now(),
	}
	if snap.Symptoms == nil {
		snap.Symptoms = []Symptom{}
	}
	if err := s.repo.Create(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Get returns one stored snapshot.
func (s *Service) Get(ctx context.Context, id string) (*Snapshot, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByPatient returns a patient's snapshots, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Snapshot, int, error) {
	if patientID == "" {
		return nil, 0, ErrMissingPatientID
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
