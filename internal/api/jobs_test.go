package api

import (
	"errors"
	"sync"
	"testing"

	"github.com/runelight-sys/LyroDocs/internal/models"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		current, total, want int
	}{
		{0, 100, 0},
		{20, 100, 20},
		{1, 3, 33},
		{5, 5, 100},
		{7, 5, 100},
		{-1, 5, 0},
		{50, 0, 50},
		{150, 0, 100},
	}
	for _, tt := range tests {
		if got := percent(tt.current, tt.total); got != tt.want {
			t.Errorf("percent(%d, %d) = %d, want %d", tt.current, tt.total, got, tt.want)
		}
	}
}

func TestJobManagerLifecycle(t *testing.T) {
	m := NewJobManager()
	id, snapshot, err := m.CreateJob("scan.png")
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if snapshot.Status != JobStatusPending || snapshot.Step != string(models.StageIdle) {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}

	m.MarkProcessing(id)
	m.UpdateProgress(id, string(models.StageRecognizing), "Lyro is scanning...", 20, 100)
	job, _ := m.GetJob(id)
	if job.Status != JobStatusProcessing || job.Percent != 20 || job.Step != "recognizing" {
		t.Fatalf("unexpected job %+v", job)
	}

	m.MarkComplete(id, &models.AnalysisResult{Stage: models.StageDisplayed, Analysis: "Name: John Doe"})
	job, _ = m.GetJob(id)
	if job.Status != JobStatusComplete || !job.Exportable || job.Message != "Analysis complete" {
		t.Fatalf("unexpected job %+v", job)
	}

	job.Result.Analysis = "tampered"
	again, _ := m.GetJob(id)
	if again.Result.Analysis != "Name: John Doe" {
		t.Fatal("snapshots must not alias stored results")
	}
}

func TestJobManagerFailure(t *testing.T) {
	m := NewJobManager()
	id, _, _ := m.CreateJob("scan.png")

	m.MarkFailed(id, "  ", &models.AnalysisResult{Stage: models.StageEngineUnavailable})
	job, _ := m.GetJob(id)
	if job.Status != JobStatusFailed || job.Error != "processing error" || job.Exportable {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.Step != string(models.StageEngineUnavailable) {
		t.Fatalf("step = %q", job.Step)
	}
}

func TestJobManagerEvictsFinishedJobs(t *testing.T) {
	m := NewJobManager()
	running, _, _ := m.CreateJob("running.png")
	m.MarkProcessing(running)

	first, _, _ := m.CreateJob("first.png")
	m.MarkComplete(first, &models.AnalysisResult{Stage: models.StageDisplayed, Analysis: "x"})

	for i := 0; i < maxJobs; i++ {
		id, _, err := m.CreateJob("more.png")
		if err != nil {
			t.Fatalf("CreateJob() error = %v", err)
		}
		m.MarkComplete(id, &models.AnalysisResult{Stage: models.StageDisplayed, Analysis: "x"})
	}

	if _, ok := m.GetJob(running); !ok {
		t.Fatal("running jobs must not be evicted")
	}
	if _, ok := m.GetJob(first); ok {
		t.Fatal("expected the oldest finished job to be evicted")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.jobs) > maxJobs {
		t.Fatalf("job table holds %d entries, cap is %d", len(m.jobs), maxJobs)
	}
}

func TestJobManagerCapsActiveJobs(t *testing.T) {
	m := NewJobManager()
	var ids []string
	for i := 0; i < maxActiveJobs; i++ {
		id, _, err := m.CreateJob("scan.png")
		if err != nil {
			t.Fatalf("CreateJob(%d) error = %v", i, err)
		}
		ids = append(ids, id)
	}

	for i := 0; i < 500; i++ {
		if _, _, err := m.CreateJob("burst.png"); !errors.Is(err, ErrTooManyJobs) {
			t.Fatalf("expected ErrTooManyJobs, got %v", err)
		}
	}
	m.mu.RLock()
	held := len(m.jobs)
	m.mu.RUnlock()
	if held != maxActiveJobs {
		t.Fatalf("job table holds %d entries, want %d", held, maxActiveJobs)
	}

	m.MarkComplete(ids[0], &models.AnalysisResult{Stage: models.StageDisplayed, Analysis: "x"})
	if _, _, err := m.CreateJob("next.png"); err != nil {
		t.Fatalf("expected a free slot after a job finished, got %v", err)
	}
}

func TestJobManagerConcurrentPolling(t *testing.T) {
	m := NewJobManager()
	id, _, err := m.CreateJob("scan.png")
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		m.MarkProcessing(id)
		for i := 0; i <= 100; i++ {
			m.UpdateProgress(id, string(models.StageRecognizing), "Lyro is scanning...", i, 100)
		}
		m.MarkComplete(id, &models.AnalysisResult{Stage: models.StageDisplayed, Analysis: "Name: John Doe"})
	}()

	for polling := true; polling; {
		select {
		case <-done:
			polling = false
		default:
		}
		job, ok := m.GetJob(id)
		if !ok {
			t.Fatal("job disappeared while polling")
		}
		if job.Percent < 0 || job.Percent > 100 {
			t.Fatalf("percent out of range: %d", job.Percent)
		}
	}
	wg.Wait()

	job, _ := m.GetJob(id)
	if job.Status != JobStatusComplete || job.Result == nil || job.Result.Analysis != "Name: John Doe" {
		t.Fatalf("unexpected final job %+v", job)
	}
}
