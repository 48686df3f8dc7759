package api

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/runelight-sys/LyroDocs/internal/models"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusComplete   = "complete"
	JobStatusFailed     = "failed"
)

// maxJobs bounds the in-memory job table; the oldest finished jobs are
// evicted first.
const maxJobs = 64

// maxActiveJobs bounds pending and processing jobs. Each one holds a decoded
// image until it finishes.
const maxActiveJobs = 4

// ErrTooManyJobs is returned by CreateJob while maxActiveJobs are unfinished.
var ErrTooManyJobs = errors.New("too many analyses in progress, try again shortly")

// AnalysisJob tracks one asynchronous analysis the frontend polls.
type AnalysisJob struct {
	ID         string                 `json:"jobId"`
	Name       string                 `json:"name"`
	Status     string                 `json:"status"`
	Step       string                 `json:"step,omitempty"`
	Message    string                 `json:"message,omitempty"`
	Percent    int                    `json:"percent"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
	Result     *models.AnalysisResult `json:"result,omitempty"`
	Exportable bool                   `json:"exportable"`
	Error      string                 `json:"error,omitempty"`
}

type JobManager struct {
	mu    sync.RWMutex
	jobs  map[string]*AnalysisJob
	order []string
}

func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*AnalysisJob),
	}
}

func (m *JobManager) CreateJob(name string) (string, *AnalysisJob, error) {
	now := time.Now().UTC()
	job := &AnalysisJob{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    JobStatusPending,
		Step:      string(models.StageIdle),
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeLocked() >= maxActiveJobs {
		return "", nil, ErrTooManyJobs
	}
	m.jobs[job.ID] = job
	m.order = append(m.order, job.ID)
	m.evictLocked()

	return job.ID, job.clone(), nil
}

func (m *JobManager) GetJob(id string) (*AnalysisJob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	return job.clone(), true
}

func (m *JobManager) MarkProcessing(id string) {
	m.withJob(id, func(job *AnalysisJob) {
		job.Status = JobStatusProcessing
		job.Message = "Starting"
	})
}

func (m *JobManager) UpdateProgress(id string, step, message string, current, total int) {
	m.withJob(id, func(job *AnalysisJob) {
		job.Status = JobStatusProcessing
		job.Step = step
		job.Message = message
		job.Percent = percent(current, total)
	})
}

// MarkComplete stores the result of a pipeline run that reached display,
// including runs whose completion call failed.
func (m *JobManager) MarkComplete(id string, result *models.AnalysisResult) {
	m.withJob(id, func(job *AnalysisJob) {
		job.Status = JobStatusComplete
		job.Step = string(result.Stage)
		job.Percent = 100
		job.Result = cloneResult(result)
		job.Exportable = result.Exportable()
		job.Error = result.ErrorMessage
		if job.Error == "" {
			job.Message = "Analysis complete"
		} else {
			job.Message = job.Error
		}
	})
}

func (m *JobManager) MarkFailed(id string, message string, result *models.AnalysisResult) {
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = "processing error"
	}
	m.withJob(id, func(job *AnalysisJob) {
		job.Status = JobStatusFailed
		job.Message = msg
		job.Error = msg
		job.Percent = 100
		job.Exportable = false
		if result != nil {
			job.Step = string(result.Stage)
			job.Result = cloneResult(result)
		}
	})
}

func (m *JobManager) withJob(id string, fn func(job *AnalysisJob)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return
	}
	fn(job)
	job.UpdatedAt = time.Now().UTC()
}

func (m *JobManager) activeLocked() int {
	active := 0
	for _, job := range m.jobs {
		if job.Status == JobStatusPending || job.Status == JobStatusProcessing {
			active++
		}
	}
	return active
}

// evictLocked drops the oldest finished jobs while the table is over
// capacity. Must be called with the lock held.
func (m *JobManager) evictLocked() {
	for i := 0; len(m.jobs) > maxJobs && i < len(m.order); {
		id := m.order[i]
		job := m.jobs[id]
		if job != nil && (job.Status == JobStatusPending || job.Status == JobStatusProcessing) {
			i++
			continue
		}
		delete(m.jobs, id)
		m.order = append(m.order[:i], m.order[i+1:]...)
	}
}

func (job *AnalysisJob) clone() *AnalysisJob {
	if job == nil {
		return nil
	}
	copyJob := *job
	copyJob.Result = cloneResult(job.Result)
	return &copyJob
}

func cloneResult(result *models.AnalysisResult) *models.AnalysisResult {
	if result == nil {
		return nil
	}
	res := *result
	return &res
}

func percent(current, total int) int {
	if total <= 0 {
		if current <= 0 {
			return 0
		}
		if current > 100 {
			return 100
		}
		return current
	}
	if current <= 0 {
		return 0
	}
	if current >= total {
		return 100
	}
	return int((float64(current) / float64(total)) * 100)
}
