package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/roll-call/internal/attendance"
	"github.com/kozaktomas/roll-call/internal/constants"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobView is the encodable state of a MarkJob.
type JobView struct {
	ID              string                 `json:"id"`
	Batch           string                 `json:"batch"`
	Class           string                 `json:"class"`
	Subject         string                 `json:"subject"`
	Status          JobStatus              `json:"status"`
	Progress        int                    `json:"progress"`
	TotalPhotos     int                    `json:"total_photos"`
	ProcessedPhotos int                    `json:"processed_photos"`
	Present         int                    `json:"present"`
	Error           string                 `json:"error,omitempty"`
	StartedAt       time.Time              `json:"started_at"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
	Result          *attendance.MarkResult `json:"result,omitempty"`
}

// MarkJob is an attendance run executed in the background.
type MarkJob struct {
	EventBroadcaster
	JobView
}

// GetStatus returns the current job status (implements SSEJob).
func (j *MarkJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Snapshot returns a copy of the job state safe to encode while the job runs.
func (j *MarkJob) Snapshot() JobView {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.JobView
}

// Cancel cancels the job.
func (j *MarkJob) Cancel() {
	j.mu.Lock()
	if !isJobTerminal(j.Status) {
		j.Status = JobStatusCancelled
	}
	j.mu.Unlock()
	j.EventBroadcaster.Cancel()
}

// update applies a resolver progress report.
func (j *MarkJob) update(p attendance.ProgressInfo) {
	j.mu.Lock()
	j.TotalPhotos = p.Total
	j.Present = p.Present
	j.ProcessedPhotos = p.Current - 1
	if p.Done() {
		j.ProcessedPhotos = p.Current
	}
	if p.Total > 0 {
		j.Progress = j.ProcessedPhotos * 100 / p.Total
	}
	j.mu.Unlock()
	j.SendEvent(JobEvent{Type: "progress", Message: p.Message, Data: p})
}

// finish moves the job into a terminal state unless it was cancelled.
func (j *MarkJob) finish(result *attendance.MarkResult, err error) {
	now := time.Now()
	j.mu.Lock()
	j.CompletedAt = &now
	switch {
	case j.Status == JobStatusCancelled:
	case err != nil:
		j.Status = JobStatusFailed
		j.Error = err.Error()
	default:
		j.Status = JobStatusCompleted
		j.Progress = 100
		j.Result = result
	}
	status := j.Status
	j.mu.Unlock()

	switch status {
	case JobStatusFailed:
		j.SendEvent(JobEvent{Type: "job_error", Message: err.Error()})
	case JobStatusCompleted:
		j.SendEvent(JobEvent{Type: "completed", Data: result})
	}
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async jobs.
type JobManager struct {
	jobs map[string]*MarkJob
	mu   sync.RWMutex
	now  func() time.Time
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*MarkJob),
		now:  time.Now,
	}
}

// CreateJob creates a new pending attendance job and prunes expired ones.
func (m *JobManager) CreateJob(id, batch, class, subject string, photos int) *MarkJob {
	job := &MarkJob{JobView: JobView{
		ID:          id,
		Batch:       batch,
		Class:       class,
		Subject:     subject,
		Status:      JobStatusPending,
		TotalPhotos: photos,
		StartedAt:   m.now(),
	}}

	m.mu.Lock()
	m.pruneLocked()
	m.jobs[id] = job
	m.mu.Unlock()

	return job
}

// pruneLocked drops finished jobs older than constants.JobRetention.
func (m *JobManager) pruneLocked() {
	cutoff := m.now().Add(-constants.JobRetention)
	for id, job := range m.jobs {
		job.mu.RLock()
		expired := job.CompletedAt != nil && job.CompletedAt.Before(cutoff)
		job.mu.RUnlock()
		if expired {
			delete(m.jobs, id)
		}
	}
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *MarkJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ListJobs returns all jobs.
func (m *JobManager) ListJobs() []*MarkJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*MarkJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}
