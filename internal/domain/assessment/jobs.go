package assessment

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// JobStatus is the lifecycle state of an async assessment run.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job tracks one submitted assessment run. AssessmentID is set once the run
// completes; Error is set only on precondition or persistence failures,
// since pipeline-internal failures degrade into the record.
type Job struct {
	ID           string    `json:"job_id"`
	Status       JobStatus `json:"status"`
	PatientID    string    `json:"patient_id"`
	AssessmentID string    `json:"assessment_id,omitempty"`
	Error        string    `json:"error,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// jobRetention is how long finished jobs stay queryable before eviction.
const jobRetention = time.Hour

// JobManager runs assessments in the background and tracks their status in
// memory. Finished jobs are evicted after jobRetention so the map stays
// bounded; jobs do not survive a restart, the assessment records themselves
// are durable.
type JobManager struct {
	svc       *Service
	timeout   time.Duration
	retention time.Duration
	log       zerolog.Logger
	now       func() time.Time

	mu   sync.RWMutex
	jobs map[string]*Job
	wg   sync.WaitGroup
}

func NewJobManager(svc *Service, timeout time.Duration, log zerolog.Logger) *JobManager {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &JobManager{
		svc:       svc,
		timeout:   timeout,
		retention: jobRetention,
		log:       log,
		now:       time.Now,
		jobs:      make(map[string]*Job),
	}
}

// Submit validates the input synchronously, then runs the assessment in the
// background. Validation errors return immediately so the caller gets a 4xx
// instead of a doomed job.
func (m *JobManager) Submit(in RunInput) (*Job, error) {
	if in.PatientID == "" {
		return nil, ErrMissingPatientID
	}
	if in.ViewMode != "" && !in.ViewMode.Valid() {
		return nil, ErrInvalidViewMode
	}

	job := &Job{
		ID:          uuid.NewString(),
		Status:      JobPending,
		PatientID:   in.PatientID,
		SubmittedAt: m.now(),
	}
	m.mu.Lock()
	m.evictExpired()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(job.ID, in)
	return job, nil
}

// Shutdown blocks until in-flight runs finish. Each run is already bounded
// by the manager's timeout, so the wait is bounded too.
func (m *JobManager) Shutdown() {
	m.wg.Wait()
}

// Get returns a job by id.
func (m *JobManager) Get(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	cp := *job
	return &cp, true
}

func (m *JobManager) run(jobID string, in RunInput) {
	defer m.wg.Done()
	m.setStatus(jobID, JobRunning, "", "")

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	defer m.cleanupAudio(in.AudioPath)

	rec, err := m.svc.Run(ctx, in)
	if err != nil && rec == nil {
		m.log.Error().Err(err).Str("job_id", jobID).Msg("assessment job failed")
		m.setStatus(jobID, JobFailed, "", err.Error())
		return
	}
	if err != nil {
		// Record exists but was not persisted; report the job as failed with
		// the assessment id so the caller can retry or inspect logs.
		m.setStatus(jobID, JobFailed, rec.ID, err.Error())
		return
	}
	m.setStatus(jobID, JobDone, rec.ID, "")
}

func (m *JobManager) setStatus(jobID string, status JobStatus, assessmentID, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return
	}
	job.Status = status
	if assessmentID != "" {
		job.AssessmentID = assessmentID
	}
	if errMsg != "" {
		job.Error = errMsg
	}
	if status == JobDone || status == JobFailed {
		now := m.now()
		job.FinishedAt = &now
	}
}

// evictExpired drops finished jobs older than the retention window. Caller
// must hold the write lock.
func (m *JobManager) evictExpired() {
	cutoff := m.now().Add(-m.retention)
	for id, job := range m.jobs {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(m.jobs, id)
		}
	}
}

// cleanupAudio removes the staged upload once the run finishes.
func (m *JobManager) cleanupAudio(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		m.log.Warn().Err(err).Str("path", path).Msg("remove staged audio failed")
	}
}
