package assessment

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// ── Mock Repositories ────────────────────────────────────────────────────

type mockRepo struct {
	mu        sync.Mutex
	records   map[string]*Record
	createErr error
	created   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: map[string]*Record{}}
}

func (m *mockRepo) Create(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
	if m.createErr != nil {
		return m.createErr
	}
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (m *mockRepo) List(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *mockRepo) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Record, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Record
	for _, r := range m.records {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

func newTestService(repo Repository) *Service {
	orch := NewOrchestrator(routerLLM(), nil, nil, nil, OrchestratorOpts{}, testLogger())
	return NewService(repo, orch, testLogger())
}

func TestService_Run(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	rec, err := svc.Run(context.Background(), RunInput{
		PatientID: "p-1",
		ViewMode:  DoctorView,
		Chief:     "productive cough and fever",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.PatientID != "p-1" {
		t.Errorf("unexpected patient id: %q", rec.PatientID)
	}
	stored, err := repo.GetByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if stored.Diagnosis.PrimaryDiagnosis != rec.Diagnosis.PrimaryDiagnosis {
		t.Error("stored record differs from returned record")
	}
}

func TestService_Run_RequiresPatientID(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	_, err := svc.Run(context.Background(), RunInput{ViewMode: DoctorView})
	if !errors.Is(err, ErrMissingPatientID) {
		t.Errorf("expected ErrMissingPatientID, got %v", err)
	}
	if repo.created != 0 {
		t.Error("validation failure must not reach the repository")
	}
}

func TestService_Run_DefaultsViewMode(t *testing.T) {
	svc := newTestService(newMockRepo())
	rec, err := svc.Run(context.Background(), RunInput{PatientID: "p-1", Chief: "cough"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ViewMode != DoctorView {
		t.Errorf("expected doctor view default, got %q", rec.ViewMode)
	}
}

func TestService_Run_RejectsUnknownViewMode(t *testing.T) {
	svc := newTestService(newMockRepo())
	_, err := svc.Run(context.Background(), RunInput{PatientID: "p-1", ViewMode: "Nurse View"})
	if !errors.Is(err, ErrInvalidViewMode) {
		t.Errorf("expected ErrInvalidViewMode, got %v", err)
	}
}

func TestService_Run_ReturnsRecordOnPersistFailure(t *testing.T) {
	repo := newMockRepo()
	repo.createErr = errors.New("db down")
	svc := newTestService(repo)

	rec, err := svc.Run(context.Background(), RunInput{PatientID: "p-1", Chief: "cough"})
	if err == nil {
		t.Fatal("expected persistence error")
	}
	if rec == nil {
		t.Fatal("record must be returned despite persistence failure")
	}
	if rec.Diagnosis.PrimaryDiagnosis == "" {
		t.Error("expected completed assessment on the returned record")
	}
}

func TestService_ListByPatient_RequiresPatientID(t *testing.T) {
	svc := newTestService(newMockRepo())
	_, _, err := svc.ListByPatient(context.Background(), "", 20, 0)
	if !errors.Is(err, ErrMissingPatientID) {
		t.Errorf("expected ErrMissingPatientID, got %v", err)
	}
}
