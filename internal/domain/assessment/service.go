package assessment

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

var (
	// ErrMissingPatientID rejects a run before any model call is made.
	ErrMissingPatientID = errors.New("patient_id is required")
	// ErrInvalidViewMode rejects an unrecognized view.
	ErrInvalidViewMode = errors.New("view_mode must be \"Doctor View\" or \"Patient View\"")
)

// Service validates inputs, runs the orchestrator, and persists results.
type Service struct {
	repo Repository
	orch *Orchestrator
	log  zerolog.Logger
}

func NewService(repo Repository, orch *Orchestrator, log zerolog.Logger) *Service {
	return &Service{repo: repo, orch: orch, log: log}
}

// Run executes one assessment and persists the record. Precondition failures
// return an error before any model call; everything downstream degrades into
// the record instead.
func (s *Service) Run(ctx context.Context, in RunInput) (*Record, error) {
	if in.PatientID == "" {
		return nil, ErrMissingPatientID
	}
	if in.ViewMode == "" {
		in.ViewMode = DoctorView
	}
	if !in.ViewMode.Valid() {
		return nil, ErrInvalidViewMode
	}

	rec := s.orch.Run(ctx, in)
	if err := s.repo.Create(ctx, &rec); err != nil {
		// The assessment itself succeeded; surface the persistence failure
		// but hand the record back so the caller still sees the result.
		s.log.Error().Err(err).Str("assessment_id", rec.ID).Msg("persist assessment failed")
		return &rec, err
	}
	return &rec, nil
}

// Get returns one stored assessment by id.
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns stored assessments, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// ListByPatient returns one patient's assessments, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Record, int, error) {
	if patientID == "" {
		return nil, 0, ErrMissingPatientID
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
